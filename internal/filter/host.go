package filter

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/bdougie/scxmask/internal/video"
)

const (
	// FunctionName is the name the mask filter is registered under
	FunctionName = "SCXvidMask"
	// Signature declares an unnamed clip followed by optional named arguments
	Signature = "c[path]s[offset]i[strict]b"
	// Banner is returned to the host once the plugin has registered
	Banner = "SCXvidMask: XviD keyframe masks"
)

var ErrUnknownFunction = errors.New("unknown function")

// CreateFunc builds a clip from bound arguments
type CreateFunc func(args Bound, env *Environment) (Clip, error)

// Host is what a plugin sees while registering its functions
type Host interface {
	AddFunction(name, signature string, fn CreateFunc) error
}

// Register adds the mask filter to h and returns the plugin banner
func Register(h Host) (string, error) {
	if err := h.AddFunction(FunctionName, Signature, createMask); err != nil {
		return "", err
	}
	return Banner, nil
}

func createMask(args Bound, env *Environment) (Clip, error) {
	clip := args.Clip()
	var path *string
	if p, ok := args.String("path"); ok {
		path = &p
	}
	m, err := New(Args{
		Clip:   clip.Info(),
		Path:   path,
		Offset: args.IntOr("offset", 0),
		Strict: args.BoolOr("strict", false),
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// HostError is how a failed filter call is reported back to the script
type HostError struct {
	Function string
	Err      error
}

func (e *HostError) Error() string {
	return fmt.Sprintf("%s: %v", e.Function, e.Err)
}

func (e *HostError) Unwrap() error { return e.Err }

type function struct {
	params []param
	create CreateFunc
}

// Environment is an in-process host. It keeps the registered functions and
// allocates frames for the clips it creates.
type Environment struct {
	mu        sync.RWMutex
	functions map[string]function
	logger    *slog.Logger
}

// NewEnvironment creates an empty host
func NewEnvironment(logger *slog.Logger) *Environment {
	if logger == nil {
		logger = slog.Default()
	}
	return &Environment{
		functions: make(map[string]function),
		logger:    logger,
	}
}

// LoadPlugin runs a plugin's registration entry point against this host
func (e *Environment) LoadPlugin(entry func(Host) (string, error)) (string, error) {
	banner, err := entry(e)
	if err != nil {
		return "", fmt.Errorf("load plugin: %w", err)
	}
	e.logger.Debug("plugin loaded", "banner", banner)
	return banner, nil
}

// AddFunction registers fn under name. The signature is parsed up front so
// calls can be bound without re-reading it.
func (e *Environment) AddFunction(name, signature string, fn CreateFunc) error {
	params, err := parseSignature(signature)
	if err != nil {
		return fmt.Errorf("function %s: %w", name, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.functions[name]; ok {
		return fmt.Errorf("function %s already registered", name)
	}
	e.functions[name] = function{params: params, create: fn}
	e.logger.Debug("function registered", "name", name, "signature", signature)
	return nil
}

// Functions lists registered function names in sorted order
func (e *Environment) Functions() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.functions))
	for name := range e.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewVideoFrame allocates a frame for vi
func (e *Environment) NewVideoFrame(vi video.Info) *video.Frame {
	return video.NewFrame(vi)
}

// Invoke calls a registered function. Named values are checked against the
// function's signature; any failure comes back as a *HostError.
func (e *Environment) Invoke(name string, clip Clip, named map[string]any) (Clip, error) {
	e.mu.RLock()
	fn, ok := e.functions[name]
	e.mu.RUnlock()
	if !ok {
		return nil, &HostError{Function: name, Err: ErrUnknownFunction}
	}

	bound, err := bind(fn.params, clip, named)
	if err != nil {
		return nil, &HostError{Function: name, Err: err}
	}

	out, err := fn.create(bound, e)
	if err != nil {
		return nil, &HostError{Function: name, Err: err}
	}
	return out, nil
}

// GetFrame requests frame n from clip and reports failures the same way
// Invoke does
func (e *Environment) GetFrame(name string, clip Clip, n int) (*video.Frame, error) {
	f, err := clip.GetFrame(n, e)
	if err != nil {
		return nil, &HostError{Function: name, Err: err}
	}
	return f, nil
}
