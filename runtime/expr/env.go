package expr

import (
	"context"
	"fmt"
	"os"
)

// Env reads a process environment variable at render time (§3.2). It has
// no upstream dependency: its value is resolved from the OS, not the
// context map.
type Env struct {
	Name   string
	Stream bool
}

func (e Env) Dependencies() []Dep { return nil }

func (e Env) Render(_ context.Context, _ map[string]any) (any, error) {
	v, ok := os.LookupEnv(e.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrEnvNotSet, e.Name)
	}
	return v, nil
}
