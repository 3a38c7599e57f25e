package cache

import (
	"context"
	"testing"
	"time"
)

func TestEffectiveKey_FoldsVersionAndNamespace(t *testing.T) {
	if got := EffectiveKey("k", "v1", "ns"); got != "ns/k:vv1" {
		t.Fatalf("unexpected effective key: %q", got)
	}
	if got := EffectiveKey("k", "v1", ""); got != "k:vv1" {
		t.Fatalf("unexpected effective key without namespace: %q", got)
	}
}

func TestMemory_StoreThenRetrieve(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if err := m.Store(ctx, "k", []byte("v"), "1", "ns", 0); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, ok, err := m.Retrieve(ctx, "k", "1", "ns")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !ok || string(got) != "v" {
		t.Fatalf("expected a hit with value %q, got %q (ok=%v)", "v", got, ok)
	}
}

func TestMemory_RetrieveMiss(t *testing.T) {
	m := NewMemory()
	_, ok, err := m.Retrieve(context.Background(), "nope", "1", "ns")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if ok {
		t.Fatalf("expected a miss")
	}
}

func TestMemory_DifferentVersionIsDifferentEntry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.Store(ctx, "k", []byte("v1"), "1", "ns", 0)
	_, ok, _ := m.Retrieve(ctx, "k", "2", "ns")
	if ok {
		t.Fatalf("expected a miss for a different version")
	}
}

func TestMemory_NonPositiveExpiryNeverExpires(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if err := m.Store(ctx, "k", []byte("v"), "1", "ns", -1); err != nil {
		t.Fatalf("Store: %v", err)
	}
	// expireSeconds <= 0 means no expiry per the Repo contract; this entry
	// should still be retrievable.
	_, ok, err := m.Retrieve(ctx, "k", "1", "ns")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !ok {
		t.Fatalf("expected expireSeconds<=0 to mean no expiry")
	}
}

func TestFile_StoreThenRetrieveRoundTrips(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	ctx := context.Background()
	if err := f.Store(ctx, "k", []byte("hello"), "1", "ns", 0); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, ok, err := f.Retrieve(ctx, "k", "1", "ns")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !ok || string(got) != "hello" {
		t.Fatalf("expected a hit with %q, got %q (ok=%v)", "hello", got, ok)
	}
}

func TestFile_ExpiredEntryIsRemovedAndMissed(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	ctx := context.Background()
	if err := f.Store(ctx, "k", []byte("hello"), "1", "ns", 1); err != nil {
		t.Fatalf("Store: %v", err)
	}
	time.Sleep(1100 * time.Millisecond)
	_, ok, err := f.Retrieve(ctx, "k", "1", "ns")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if ok {
		t.Fatalf("expected the entry to have expired")
	}
}
