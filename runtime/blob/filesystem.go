package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Filesystem is a blob repository rooted at a directory; each blob is one
// file named by its id (plus extension, if any).
type Filesystem struct {
	Dir string

	mu        sync.Mutex
	downloads map[string]string // id -> already-materialized local path
}

func NewFilesystem(dir string) (*Filesystem, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create dir %s: %w", dir, err)
	}
	return &Filesystem{Dir: dir, downloads: make(map[string]string)}, nil
}

func (f *Filesystem) pathFor(b Blob) string {
	name := b.ID
	if b.Namespace != "" {
		name = b.Namespace + "_" + name
	}
	if b.Ext != "" {
		name += "." + b.Ext
	}
	return filepath.Join(f.Dir, name)
}

func (f *Filesystem) Save(_ context.Context, data []byte, ext, namespace string) (Blob, error) {
	b := Blob{ID: IDFor(data), Ext: ext, Namespace: namespace}
	if err := os.WriteFile(f.pathFor(b), data, 0o644); err != nil {
		return Blob{}, fmt.Errorf("blob: write %s: %w", b.ID, err)
	}
	return b, nil
}

func (f *Filesystem) Retrieve(_ context.Context, b Blob) ([]byte, error) {
	data, err := os.ReadFile(f.pathFor(b))
	if err != nil {
		return nil, fmt.Errorf("blob: read %s: %w", b.ID, err)
	}
	return data, nil
}

func (f *Filesystem) MultiRetrieve(ctx context.Context, bs []Blob) ([][]byte, error) {
	out := make([][]byte, len(bs))
	for i, b := range bs {
		data, err := f.Retrieve(ctx, b)
		if err != nil {
			return nil, err
		}
		out[i] = data
	}
	return out, nil
}

func (f *Filesystem) Exists(_ context.Context, b Blob) (bool, error) {
	_, err := os.Stat(f.pathFor(b))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("blob: stat %s: %w", b.ID, err)
	}
	return true, nil
}

func (f *Filesystem) Download(_ context.Context, b Blob) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if path, ok := f.downloads[b.ID]; ok {
		return path, nil
	}
	path := f.pathFor(b)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("blob: download %s: %w", b.ID, err)
	}
	f.downloads[b.ID] = path
	return path, nil
}

func (f *Filesystem) Delete(_ context.Context, b Blob) error {
	if err := os.Remove(f.pathFor(b)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("blob: delete %s: %w", b.ID, err)
	}
	return nil
}
