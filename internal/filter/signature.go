package filter

import (
	"fmt"
	"strings"
)

type param struct {
	name string // empty for positional
	kind byte   // c, s, i, b or f
}

// parseSignature reads strings such as "c[path]s[offset]i[strict]b"
func parseSignature(sig string) ([]param, error) {
	var params []param
	for i := 0; i < len(sig); {
		var name string
		if sig[i] == '[' {
			end := strings.IndexByte(sig[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("unterminated name in signature %q", sig)
			}
			name = sig[i+1 : i+end]
			if name == "" {
				return nil, fmt.Errorf("empty name in signature %q", sig)
			}
			i += end + 1
			if i >= len(sig) {
				return nil, fmt.Errorf("missing type for %q in signature %q", name, sig)
			}
		}
		kind := sig[i]
		switch kind {
		case 'c', 's', 'i', 'b', 'f':
		default:
			return nil, fmt.Errorf("unknown type %q in signature %q", kind, sig)
		}
		params = append(params, param{name: name, kind: kind})
		i++
	}
	return params, nil
}

// Bound holds the arguments of one call after they were checked against
// a signature
type Bound struct {
	clip   Clip
	values map[string]any
}

func bind(params []param, clip Clip, named map[string]any) (Bound, error) {
	b := Bound{clip: clip, values: make(map[string]any, len(named))}
	known := make(map[string]byte, len(params))
	for _, p := range params {
		if p.name == "" {
			if p.kind == 'c' && clip == nil {
				return Bound{}, fmt.Errorf("no clip passed")
			}
			continue
		}
		known[p.name] = p.kind
	}

	for name, v := range named {
		kind, ok := known[name]
		if !ok {
			return Bound{}, fmt.Errorf("unexpected argument '%s'", name)
		}
		if v == nil {
			continue
		}
		cv, err := convert(kind, v)
		if err != nil {
			return Bound{}, fmt.Errorf("argument '%s': %w", name, err)
		}
		b.values[name] = cv
	}
	return b, nil
}

func convert(kind byte, v any) (any, error) {
	switch kind {
	case 's':
		if s, ok := v.(string); ok {
			return s, nil
		}
	case 'i':
		switch n := v.(type) {
		case int:
			return n, nil
		case int64:
			return int(n), nil
		case int32:
			return int(n), nil
		}
	case 'b':
		if bv, ok := v.(bool); ok {
			return bv, nil
		}
	case 'f':
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		}
	case 'c':
		if c, ok := v.(Clip); ok {
			return c, nil
		}
	}
	return nil, fmt.Errorf("expected %s, got %T", kindName(kind), v)
}

func kindName(kind byte) string {
	switch kind {
	case 's':
		return "string"
	case 'i':
		return "int"
	case 'b':
		return "bool"
	case 'f':
		return "float"
	case 'c':
		return "clip"
	}
	return string(kind)
}

// Clip returns the positional clip argument
func (b Bound) Clip() Clip { return b.clip }

// String returns a named string argument and whether it was given
func (b Bound) String(name string) (string, bool) {
	s, ok := b.values[name].(string)
	return s, ok
}

// IntOr returns a named int argument or def
func (b Bound) IntOr(name string, def int) int {
	if n, ok := b.values[name].(int); ok {
		return n
	}
	return def
}

// BoolOr returns a named bool argument or def
func (b Bound) BoolOr(name string, def bool) bool {
	if v, ok := b.values[name].(bool); ok {
		return v
	}
	return def
}
