package blob

import (
	"context"

	"github.com/Jeffail/gabs/v2"
)

// marker is the key a Blob round-trips through in a cached outputs tree:
// map[string]any{"__blob_id__": id, "ext": ..., "namespace": ...}.
const marker = "__blob_id__"

// ToTree renders a Blob into the map form ContainsExpired recognizes when
// it later walks a cached outputs value.
func (b Blob) ToTree() map[string]any {
	return map[string]any{marker: b.ID, "ext": b.Ext, "namespace": b.Namespace}
}

func fromTree(m map[string]any) (Blob, bool) {
	id, ok := m[marker].(string)
	if !ok {
		return Blob{}, false
	}
	ext, _ := m["ext"].(string)
	ns, _ := m["namespace"].(string)
	return Blob{ID: id, Ext: ext, Namespace: ns}, true
}

// ContainsExpired walks an arbitrary cached outputs tree (as produced by
// json.Unmarshal / schema.Record.Fields) looking for blob leaves, treating
// any whose Exists check returns false or errors as expired (§6.4, §7
// BlobBackendError: "treat blob as expired; log").
func ContainsExpired(ctx context.Context, r Repo, tree any) (bool, error) {
	container, err := gabs.Consume(tree)
	if err != nil {
		return false, err
	}
	return walkExpired(ctx, r, container.Data())
}

func walkExpired(ctx context.Context, r Repo, node any) (bool, error) {
	switch v := node.(type) {
	case map[string]any:
		if b, ok := fromTree(v); ok {
			exists, err := r.Exists(ctx, b)
			if err != nil || !exists {
				return true, nil
			}
			return false, nil
		}
		for _, child := range v {
			expired, err := walkExpired(ctx, r, child)
			if err != nil || expired {
				return expired, err
			}
		}
		return false, nil
	case []any:
		for _, child := range v {
			expired, err := walkExpired(ctx, r, child)
			if err != nil || expired {
				return expired, err
			}
		}
		return false, nil
	default:
		return false, nil
	}
}
