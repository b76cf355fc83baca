package responses

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	list := []Response{
		{ID: "1", Question: "q1", Answer: "a1", Field: "name", Timestamp: time.Now().UTC().Truncate(time.Millisecond)},
		{ID: "2", Question: "q2", Answer: "a2", Field: "coppa", Timestamp: time.Now().UTC().Truncate(time.Millisecond)},
	}
	if err := store.Save(ctx, "responses:u1", list); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx, "responses:u1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "1" || got[1].Field != "coppa" {
		t.Fatalf("Load() = %+v", got)
	}
}

func TestSQLiteStoreOverwritesPerKey(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Save(ctx, "k", []Response{{ID: "1"}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(ctx, "k", []Response{{ID: "1"}, {ID: "2"}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx, "k")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Load() len = %d, want the whole latest list", len(got))
	}
}

func TestSQLiteStoreLoadMissingKey(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close()

	got, err := store.Load(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != nil {
		t.Fatalf("Load() = %+v, want nil for a missing key", got)
	}
}
