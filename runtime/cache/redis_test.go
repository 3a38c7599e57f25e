package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestRedis_StoreThenRetrieveRoundTrips(t *testing.T) {
	mr := miniredis.RunT(t)
	repo, err := NewRedis(map[string]any{"addr": mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	ctx := context.Background()
	if err := repo.Store(ctx, "k", []byte("hello"), "1", "ns", 0); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, ok, err := repo.Retrieve(ctx, "k", "1", "ns")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !ok || string(got) != "hello" {
		t.Fatalf("expected a hit with %q, got %q (ok=%v)", "hello", got, ok)
	}
}

func TestRedis_InvalidAddrFailsValidation(t *testing.T) {
	if _, err := NewRedis(map[string]any{"addr": "not-a-hostport"}); err == nil {
		t.Fatalf("expected hostname_port validation to reject a bare string")
	}
}
