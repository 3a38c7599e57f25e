// Package action defines the Action Contract (§3.3): a typed unit with a
// name, a declared input/output shape, a cache policy, and one of two
// execution shapes (single-shot or streaming), plus the mix-in interfaces
// the scheduler injects into an action's input before invoking it.
package action

import "context"

// Action is implemented by every registered action type. NewInput returns
// a fresh pointer to the action's declared input struct (or
// *map[string]any for an action with no fixed schema) for schema.DecodeInput
// to populate.
type Action interface {
	Name() string
	NewInput() any
	// Cache reports the §3.3 cache flag (default true).
	Cache() bool
	// Version is nil when the action should be keyed by the project's
	// latest file-modification timestamp instead of a fixed version
	// (§3.3, §6.3).
	Version() *int
}

// SingleShot actions return exactly one output per invocation.
type SingleShot interface {
	Action
	Run(ctx context.Context, input any) (any, error)
}

// Streaming actions yield zero or more outputs; emit is called once per
// partial output in order. Returning from Stream ends the action's run.
type Streaming interface {
	Action
	Stream(ctx context.Context, input any, emit func(any) error) error
}

// DefaultModelReceiver is the default-model input mix-in (§3.3): if an
// action's input implements it, the scheduler calls it with
// ActionConfig.DefaultModel before validation. The map is passed as loaded;
// expressions in it are not rendered.
type DefaultModelReceiver interface {
	SetDefaultModel(map[string]any)
}

// BlobRepo is the minimal surface the blob-repo input mix-in needs; the
// concrete blob.Repo implementations satisfy it structurally.
type BlobRepo interface {
	Save(ctx context.Context, data []byte) (id string, err error)
	Retrieve(ctx context.Context, id string) ([]byte, error)
}

// BlobRepoReceiver is the blob-repo input mix-in (§3.3).
type BlobRepoReceiver interface {
	SetBlobRepo(BlobRepo)
}

// RedisURLReceiver is the redis-url input mix-in (§3.3, §6.5).
type RedisURLReceiver interface {
	SetRedisURL(string)
}

// FinalInvocationReceiver is the final-invocation input mix-in (§3.3):
// after all partial inputs have streamed through, the scheduler invokes
// the action once more against the last input set with finished=true.
type FinalInvocationReceiver interface {
	SetFinalInvocation(bool)
}

// CacheControlSetter is the cache-control output mix-in (§3.3): an output
// implementing it can suppress specific fields from being written to
// cache. schema.Record implements this.
type CacheControlSetter interface {
	SuppressCache(field string)
}

// DefaultOutputSetter is the default-output output mix-in (§3.3).
// schema.Record implements this.
type DefaultOutputSetter interface {
	SetDefaultOutput(field string)
}
