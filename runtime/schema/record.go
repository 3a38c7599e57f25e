// Package schema describes action input/output records as typed Go
// structs, validates values assembled from the render context against an
// action's declared input type, and carries the two output mix-ins of
// §3.3 (default-output, cache-control) on a lightweight record wrapper
// that the expr package's path resolver can navigate natively.
package schema

// Record wraps an action's decoded output as a map plus the two output
// mix-ins (§3.3): a default output field so `{{ actionId }}` yields
// `actionId.<default_output>` (expr.DefaultOutputter), and a per-field
// cache-control override (§6.3) consulted when the engine writes to cache.
type Record struct {
	Fields        map[string]any
	defaultOutput string
	hasDefault    bool
	noCache       map[string]bool
}

// NewRecord wraps fields with no mix-ins configured.
func NewRecord(fields map[string]any) *Record {
	if fields == nil {
		fields = map[string]any{}
	}
	return &Record{Fields: fields}
}

// Field implements expr.Fielder.
func (r *Record) Field(name string) (any, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// SetDefaultOutput declares the field `{{ actionId }}` resolves to.
func (r *Record) SetDefaultOutput(name string) {
	r.defaultOutput = name
	r.hasDefault = true
}

// DefaultOutputField implements expr.DefaultOutputter.
func (r *Record) DefaultOutputField() (string, bool) {
	return r.defaultOutput, r.hasDefault
}

// SuppressCache marks a field as excluded from the cached representation
// of this record (the cache-control output mix-in of §3.3).
func (r *Record) SuppressCache(field string) {
	if r.noCache == nil {
		r.noCache = map[string]bool{}
	}
	r.noCache[field] = true
}

// CacheableFields returns a copy of Fields with any cache-suppressed
// fields removed, for the engine to hand to the cache repository.
func (r *Record) CacheableFields() map[string]any {
	if len(r.noCache) == 0 {
		return r.Fields
	}
	out := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		if !r.noCache[k] {
			out[k] = v
		}
	}
	return out
}
