package blob

import (
	"context"
	"testing"
)

func TestMemory_SaveThenRetrieveRoundTrips(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	b, err := m.Save(ctx, []byte("payload"), "txt", "ns")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if b.ID != IDFor([]byte("payload")) {
		t.Fatalf("expected content-addressed id, got %q", b.ID)
	}
	got, err := m.Retrieve(ctx, b)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("expected %q, got %q", "payload", got)
	}
}

func TestMemory_RetrieveMissingIsError(t *testing.T) {
	m := NewMemory()
	_, err := m.Retrieve(context.Background(), Blob{ID: "missing"})
	if err == nil {
		t.Fatalf("expected an error retrieving a missing blob")
	}
}

func TestMemory_ExistsReflectsSaveAndDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	b, _ := m.Save(ctx, []byte("x"), "", "")
	if ok, _ := m.Exists(ctx, b); !ok {
		t.Fatalf("expected blob to exist after Save")
	}
	if err := m.Delete(ctx, b); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := m.Exists(ctx, b); ok {
		t.Fatalf("expected blob to be gone after Delete")
	}
}

func TestMixinAdapter_SaveThenRetrieveByBareID(t *testing.T) {
	adapter := MixinAdapter{Repo: NewMemory()}
	ctx := context.Background()
	id, err := adapter.Save(ctx, []byte("data"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := adapter.Retrieve(ctx, id)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if string(got) != "data" {
		t.Fatalf("expected %q, got %q", "data", got)
	}
}

func TestContainsExpired_DetectsMissingBlobLeaf(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()
	present, _ := repo.Save(ctx, []byte("kept"), "", "")

	tree := map[string]any{
		"a": present.ToTree(),
		"b": Blob{ID: "gone"}.ToTree(),
	}
	expired, err := ContainsExpired(ctx, repo, tree)
	if err != nil {
		t.Fatalf("ContainsExpired: %v", err)
	}
	if !expired {
		t.Fatalf("expected the tree to be reported expired due to the missing blob leaf")
	}
}

func TestContainsExpired_AllPresentIsNotExpired(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()
	a, _ := repo.Save(ctx, []byte("a"), "", "")
	b, _ := repo.Save(ctx, []byte("b"), "", "")

	tree := map[string]any{"a": a.ToTree(), "nested": map[string]any{"b": b.ToTree()}}
	expired, err := ContainsExpired(ctx, repo, tree)
	if err != nil {
		t.Fatalf("ContainsExpired: %v", err)
	}
	if expired {
		t.Fatalf("expected no expiry when every blob leaf is present")
	}
}
