package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/blackcoderx/apix/pkg/storage"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func entry(id string) storage.HistoryEntry {
	return storage.Snapshot(storage.NewRequest(id, id), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

func ids(entries []storage.HistoryEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestStore_CapAndUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryKV(), "ws1")

	for i := 1; i <= 12; i++ {
		if _, err := s.Add(ctx, entry(fmt.Sprintf("request%d", i))); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	got, err := s.Add(ctx, entry("request5"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if len(got) != DefaultMaxEntries {
		t.Fatalf("got %d entries, want %d", len(got), DefaultMaxEntries)
	}
	seen := map[string]bool{}
	for _, id := range ids(got) {
		if seen[id] {
			t.Errorf("duplicate id %s in %v", id, ids(got))
		}
		seen[id] = true
	}
	if got[len(got)-1].ID != "request5" {
		t.Errorf("resent request should be newest, got %v", ids(got))
	}
	if got[0].ID != "request3" {
		t.Errorf("oldest = %s, want request3 (%v)", got[0].ID, ids(got))
	}

	loaded, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if fmt.Sprint(ids(loaded)) != fmt.Sprint(ids(got)) {
		t.Errorf("loaded %v, want %v", ids(loaded), ids(got))
	}
}

func TestStore_TTL(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	clock := &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := New(kv, "ws1", WithClock(clock.now))

	if _, err := s.Add(ctx, entry("request1")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	clock.t = clock.t.Add(23 * time.Hour)
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("history dropped before TTL: %v", ids(got))
	}

	clock.t = clock.t.Add(2 * time.Hour)
	got, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expired history returned: %v", ids(got))
	}
	if _, ok, _ := kv.Get(ctx, Key("ws1")); ok {
		t.Error("expired record was not deleted")
	}
}

func TestStore_WorkspacesAreSeparate(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	a := New(kv, "a")
	b := New(kv, "b")

	if _, err := a.Add(ctx, entry("request1")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("workspace b sees %v", ids(got))
	}
}

func TestStore_Malformed(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	if err := kv.Put(ctx, Key("ws"), []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	s := New(kv, "ws")

	if _, err := s.Load(ctx); err == nil {
		t.Error("expected error for malformed record")
	}
	got, err := s.Add(ctx, entry("request1"))
	if err != nil {
		t.Fatalf("Add over malformed record: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %v", ids(got))
	}
}

func TestStore_GetAndClear(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryKV(), "ws", WithMaxEntries(3))

	for _, id := range []string{"request1", "request2"} {
		if _, err := s.Add(ctx, entry(id)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if _, ok, err := s.Get(ctx, "request2"); err != nil || !ok {
		t.Errorf("Get(request2) = %v, %v", ok, err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "request2"); ok {
		t.Error("entry survived Clear")
	}
}

func TestSQLiteKV(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	kv, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer func() { _ = kv.Close() }()

	if _, ok, err := kv.Get(ctx, "missing"); err != nil || ok {
		t.Errorf("Get(missing) = %v, %v", ok, err)
	}
	if err := kv.Put(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := kv.Put(ctx, "k", []byte("v2")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, ok, err := kv.Get(ctx, "k")
	if err != nil || !ok || string(v) != "v2" {
		t.Errorf("Get(k) = %q, %v, %v", v, ok, err)
	}
	if err := kv.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := kv.Get(ctx, "k"); ok {
		t.Error("key survived Delete")
	}

	// reopening must not reapply migrations
	kv2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = kv2.Close()
}
