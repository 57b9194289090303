// Package filter exposes the keyframe mask as a host filter: a clip whose
// frames are requested by number and allocated by the host.
package filter

import (
	"errors"
	"fmt"

	"github.com/bdougie/scxmask/internal/mask"
	"github.com/bdougie/scxmask/internal/models"
	"github.com/bdougie/scxmask/internal/video"
	"github.com/bdougie/scxmask/internal/xvidlog"
)

var ErrMissingPathConfiguration = errors.New("no path passed")

// CacheHint is a query or instruction the host sends to a clip
type CacheHint int

const (
	CacheNothing CacheHint = iota
	CacheWindow
	CacheGetMTMode
)

// MTMode tells the host how a filter may be used from several threads
type MTMode int

const (
	MTUnset MTMode = iota
	// MTNice filters can serve any frame from any thread on one instance
	MTNice
	MTMultiInstance
	MTSerialized
)

// FrameAllocator hands out frame buffers owned by the host
type FrameAllocator interface {
	NewVideoFrame(vi video.Info) *video.Frame
}

// Clip is the frame-serving interface every filter presents to the host
type Clip interface {
	Info() video.Info
	GetFrame(n int, env FrameAllocator) (*video.Frame, error)
	CacheHints(hint CacheHint, frameRange int) MTMode
}

// Args are the bound arguments of a mask filter
type Args struct {
	Clip   video.Info
	Path   *string
	Offset int
	Strict bool
}

// ScxMask renders white frames where the log has a keyframe and black
// frames everywhere else
type ScxMask struct {
	vi  video.Info
	gen *mask.Generator
}

// New parses the log named in args. The returned filter is immutable.
func New(args Args) (*ScxMask, error) {
	if args.Path == nil || *args.Path == "" {
		return nil, ErrMissingPathConfiguration
	}
	if err := args.Clip.Validate(); err != nil {
		return nil, fmt.Errorf("invalid clip: %w", err)
	}

	seq, err := xvidlog.ParseFile(*args.Path)
	if err != nil {
		return nil, err
	}

	return &ScxMask{
		vi:  args.Clip,
		gen: mask.New(seq, args.Offset, args.Strict),
	}, nil
}

// Info returns the geometry of the source clip; masks share it
func (s *ScxMask) Info() video.Info {
	return s.vi
}

// Generator returns the lookup behind the filter
func (s *ScxMask) Generator() *mask.Generator {
	return s.gen
}

// Render returns the fill value for frame n without allocating a frame
func (s *ScxMask) Render(n int) (models.FillValue, error) {
	return s.gen.Render(n)
}

// Describe reports how frame n maps onto the log. It does not apply the
// strict policy.
func (s *ScxMask) Describe(n int) models.MaskResult {
	r := models.MaskResult{
		Frame:        n,
		LogicalIndex: s.gen.LogicalIndex(n),
		Type:         models.NoFrame,
		Fill:         models.Black,
	}
	if t, ok := s.gen.Type(n); ok {
		r.Type = t.String()
		if t == models.Keyframe {
			r.Fill = models.White
		}
	}
	return r
}

// GetFrame allocates a frame through env and fills it with the mask value
func (s *ScxMask) GetFrame(n int, env FrameAllocator) (*video.Frame, error) {
	v, err := s.gen.Render(n)
	if err != nil {
		return nil, err
	}
	dst := env.NewVideoFrame(s.vi)
	mask.Fill(dst, v)
	return dst, nil
}

// CacheHints reports MTNice for the MT mode query and nothing else
func (s *ScxMask) CacheHints(hint CacheHint, frameRange int) MTMode {
	if hint == CacheGetMTMode {
		return MTNice
	}
	return MTUnset
}

// BlankClip is a source clip of black frames with fixed geometry. It stands
// in for the upstream clip when only its video info matters.
type BlankClip struct {
	VI video.Info
}

func (b BlankClip) Info() video.Info { return b.VI }

func (b BlankClip) GetFrame(n int, env FrameAllocator) (*video.Frame, error) {
	if n < 0 || (b.VI.NumFrames > 0 && n >= b.VI.NumFrames) {
		return nil, fmt.Errorf("frame %d outside clip of %d frames", n, b.VI.NumFrames)
	}
	return env.NewVideoFrame(b.VI), nil
}

func (b BlankClip) CacheHints(hint CacheHint, frameRange int) MTMode {
	if hint == CacheGetMTMode {
		return MTNice
	}
	return MTUnset
}
