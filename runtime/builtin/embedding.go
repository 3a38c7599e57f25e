package builtin

import (
	"context"
	"crypto/sha256"
	"encoding/binary"

	"flowdag/runtime/schema"
)

// EmbeddingInput is the input of the text_embedding stub action.
type EmbeddingInput struct {
	Text string `flow:"text" validate:"required"`
	Dims int    `flow:"dims" default:"8"`
}

// EmbeddingAction stands in for a real embedding-model call (§1: "a
// text-embedding stub action" — out of core scope, concrete actions are
// external collaborators per spec.md §1). No example repo in the pack
// wires a real embedding-model client, so rather than fabricate a
// dependency this derives a deterministic vector, each component in
// [-1, 1] (the vector is not normalised), from the input text's SHA-256
// digest: same text always yields the same vector,
// which is enough to exercise caching and downstream numeric flows
// without claiming semantic meaning the stub doesn't have.
type EmbeddingAction struct{ base }

func NewEmbeddingAction() *EmbeddingAction {
	return &EmbeddingAction{base{name: "text_embedding", cache: true}}
}

func (e *EmbeddingAction) NewInput() any { return &EmbeddingInput{} }

func (e *EmbeddingAction) Run(_ context.Context, input any) (any, error) {
	in := input.(*EmbeddingInput)
	vec := deterministicVector(in.Text, in.Dims)

	out := schema.NewRecord(map[string]any{
		"vector": vec,
		"dims":   len(vec),
	})
	out.SetDefaultOutput("vector")
	return out, nil
}

// deterministicVector hashes text with repeated SHA-256 passes (salting
// each pass with its index) until it has enough bytes to fill dims
// float64s, then folds each 8-byte block into a value in [-1, 1].
func deterministicVector(text string, dims int) []float64 {
	if dims <= 0 {
		dims = 8
	}
	var digest []byte
	for pass := 0; len(digest) < dims*8; pass++ {
		h := sha256.New()
		h.Write([]byte(text))
		h.Write([]byte{byte(pass)})
		digest = append(digest, h.Sum(nil)...)
	}

	vec := make([]float64, dims)
	for i := range vec {
		bits := binary.BigEndian.Uint64(digest[i*8 : i*8+8])
		vec[i] = float64(bits)/float64(^uint64(0))*2 - 1
	}
	return vec
}
