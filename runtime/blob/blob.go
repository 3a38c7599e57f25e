// Package blob is the content-addressed blob repository of §6.4,
// Component E: save/retrieve/exists/download/delete over byte content
// identified by the hex SHA-256 of its bytes.
package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Blob is a handle to content stored in a Repo: its content-addressed id,
// an optional file extension (carried through for download's local path),
// and the namespace it was saved under.
type Blob struct {
	ID        string
	Ext       string
	Namespace string
}

// Repo is the blob repository interface. Implementations: Memory,
// Filesystem, and S3.
type Repo interface {
	Save(ctx context.Context, data []byte, ext, namespace string) (Blob, error)
	Retrieve(ctx context.Context, b Blob) ([]byte, error)
	MultiRetrieve(ctx context.Context, bs []Blob) ([][]byte, error)
	Exists(ctx context.Context, b Blob) (bool, error)
	// Download materializes the blob at a local path, caching the result
	// per engine instance so repeated downloads of the same blob are free.
	Download(ctx context.Context, b Blob) (localPath string, err error)
	// Delete is test-only (§6.4): production flows never delete a blob.
	Delete(ctx context.Context, b Blob) error
}

// IDFor returns the content-addressed id for data: hex SHA-256.
func IDFor(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// MixinAdapter narrows a Repo to the action.BlobRepo mix-in surface (bare
// id, no namespace/extension) the scheduler injects into an action's
// blob-repo input (§3.3).
type MixinAdapter struct{ Repo Repo }

func (m MixinAdapter) Save(ctx context.Context, data []byte) (string, error) {
	b, err := m.Repo.Save(ctx, data, "", "")
	if err != nil {
		return "", err
	}
	return b.ID, nil
}

func (m MixinAdapter) Retrieve(ctx context.Context, id string) ([]byte, error) {
	return m.Repo.Retrieve(ctx, Blob{ID: id})
}
