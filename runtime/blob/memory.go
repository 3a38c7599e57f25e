package blob

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process blob repository backed by a map keyed on id.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Save(_ context.Context, data []byte, ext, namespace string) (Blob, error) {
	id := IDFor(data)
	m.mu.Lock()
	m.data[id] = data
	m.mu.Unlock()
	return Blob{ID: id, Ext: ext, Namespace: namespace}, nil
}

func (m *Memory) Retrieve(_ context.Context, b Blob) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[b.ID]
	if !ok {
		return nil, fmt.Errorf("blob: %s: not found", b.ID)
	}
	return data, nil
}

func (m *Memory) MultiRetrieve(ctx context.Context, bs []Blob) ([][]byte, error) {
	out := make([][]byte, len(bs))
	for i, b := range bs {
		data, err := m.Retrieve(ctx, b)
		if err != nil {
			return nil, err
		}
		out[i] = data
	}
	return out, nil
}

func (m *Memory) Exists(_ context.Context, b Blob) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[b.ID]
	return ok, nil
}

func (m *Memory) Download(ctx context.Context, b Blob) (string, error) {
	return "", fmt.Errorf("blob: in-memory repository has no local path for %s", b.ID)
}

func (m *Memory) Delete(_ context.Context, b Blob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, b.ID)
	return nil
}
