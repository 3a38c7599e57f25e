package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Fielder lets a non-map value (typically schema.Record) participate in
// dotted-path navigation the same way a map[string]any does.
type Fielder interface {
	Field(name string) (any, bool)
}

// DefaultOutputter is implemented by a record that declares a default
// output field (§3.3 default-output mix-in). When path resolution lands on
// such a value with nothing left to navigate, the resolver follows the
// default field instead of returning the record itself (§4.1: "{{ actionId
// }} yields actionId.<default_output>").
type DefaultOutputter interface {
	DefaultOutputField() (name string, ok bool)
}

// ResolveFieldPath navigates path ("b[0].c") through root, following
// default-output records. Exported for the engine/facade to render a
// target path against a fully-computed task result.
func ResolveFieldPath(root any, path string) (any, error) {
	return resolvePath(root, path)
}

// ApplyDefaultOutput is the exported form of applyDefaultOutput, for the
// engine/facade to resolve a bare root value (no further path) the same
// way Var/Link rendering does.
func ApplyDefaultOutput(v any) (any, error) {
	return applyDefaultOutput(v)
}

// resolvePath navigates a dotted/bracketed path ("a.b[0].c") through a
// context value, following default-output records at every step.
func resolvePath(root any, path string) (any, error) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	cur := root
	for i, seg := range segments {
		cur, err = applyDefaultOutput(cur)
		if err != nil {
			return nil, err
		}
		next, err := step(cur, seg)
		if err != nil {
			return nil, fmt.Errorf("path %q: %w", strings.Join(segments[:i+1], "."), err)
		}
		cur = next
	}
	return applyDefaultOutput(cur)
}

// applyDefaultOutput follows DefaultOutputField chains until a value with
// no further default field is reached, or the field is missing (returns
// the record as-is in that case rather than erroring).
func applyDefaultOutput(v any) (any, error) {
	for {
		do, ok := v.(DefaultOutputter)
		if !ok {
			return v, nil
		}
		field, has := do.DefaultOutputField()
		if !has {
			return v, nil
		}
		fielder, ok := v.(Fielder)
		if !ok {
			return v, nil
		}
		next, found := fielder.Field(field)
		if !found {
			return v, nil
		}
		v = next
	}
}

func step(cur any, seg string) (any, error) {
	if seg[0] == '[' {
		n, err := strconv.Atoi(seg[1 : len(seg)-1])
		if err != nil {
			return nil, fmt.Errorf("invalid index %q", seg)
		}
		slice, ok := cur.([]any)
		if !ok {
			return nil, fmt.Errorf("cannot index non-list value of type %T", cur)
		}
		if n < 0 || n >= len(slice) {
			return nil, fmt.Errorf("index %d out of range (len %d)", n, len(slice))
		}
		return slice[n], nil
	}
	switch m := cur.(type) {
	case map[string]any:
		v, ok := m[seg]
		if !ok {
			return nil, fmt.Errorf("unknown field %q", seg)
		}
		return v, nil
	case Fielder:
		v, ok := m.Field(seg)
		if !ok {
			return nil, fmt.Errorf("unknown field %q", seg)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("cannot navigate field %q into value of type %T", seg, cur)
	}
}

// splitPath turns "a.b[0].c" into ["a", "b", "[0]", "c"].
func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}
	var segments []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			segments = append(segments, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(path); i++ {
		switch path[i] {
		case '.':
			flush()
		case '[':
			flush()
			j := strings.IndexByte(path[i:], ']')
			if j < 0 {
				return nil, fmt.Errorf("unterminated '[' in path %q", path)
			}
			segments = append(segments, path[i:i+j+1])
			i += j
		default:
			cur.WriteByte(path[i])
		}
	}
	flush()
	if len(segments) == 0 {
		return nil, fmt.Errorf("empty path")
	}
	return segments, nil
}
