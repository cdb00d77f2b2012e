package store_test

import (
	"context"
	"encoding/json"
	"testing"

	"opsmap/internal/db"
	"opsmap/internal/migrate"
	"opsmap/internal/store"
)

func TestNormalizeCollectionKeyedMap(t *testing.T) {
	raw := json.RawMessage(`{"a1":{"name":"Sales"},"a2":{"name":"Ops"}}`)
	recs, err := store.NormalizeCollection(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if _, ok := recs["a1"]; !ok {
		t.Fatalf("missing a1")
	}
}

func TestNormalizeCollectionArray(t *testing.T) {
	raw := json.RawMessage(`[{"id":"a1","name":"Sales"},{"name":"no id, dropped"},{"id":"a2","name":"Ops"}]`)
	recs, err := store.NormalizeCollection(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected id-less record dropped, got %d records", len(recs))
	}
}

func TestNormalizeCollectionEmptyAndNull(t *testing.T) {
	for _, raw := range []string{"", "null", "{}", "[]"} {
		recs, err := store.NormalizeCollection(json.RawMessage(raw))
		if err != nil {
			t.Fatalf("%q: %v", raw, err)
		}
		if recs == nil || len(recs) != 0 {
			t.Fatalf("%q: expected empty map, got %v", raw, recs)
		}
	}
}

func TestNormalizeCollectionRejectsScalar(t *testing.T) {
	if _, err := store.NormalizeCollection(json.RawMessage(`42`)); err == nil {
		t.Fatalf("scalar collection shape must error")
	}
}

func TestMemoryCRUDAndSubscribe(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	var notified int
	unsub := m.Subscribe("tasks", func(recs map[string]store.Record) {
		notified = len(recs)
	})

	if err := m.Put(ctx, "tasks", "t1", store.Record(`{"name":"one"}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if notified != 1 {
		t.Fatalf("subscriber saw %d records, want 1", notified)
	}

	rec, err := m.GetByID(ctx, "tasks", "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(rec) != `{"name":"one"}` {
		t.Fatalf("unexpected record %s", rec)
	}
	if _, err := m.GetByID(ctx, "tasks", "missing"); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := m.Delete(ctx, "tasks", "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if notified != 0 {
		t.Fatalf("subscriber saw %d records after delete, want 0", notified)
	}
	if err := m.Delete(ctx, "tasks", "t1"); err != store.ErrNotFound {
		t.Fatalf("double delete: %v", err)
	}

	unsub()
	_ = m.Put(ctx, "tasks", "t2", store.Record(`{}`))
	if notified != 0 {
		t.Fatalf("unsubscribed callback still fired")
	}
}

// A committed write must report success regardless of what happens during
// subscriber notification; the snapshot delivered is the one the transaction
// committed.
func TestSQLiteWriteSucceedsIndependentOfNotification(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	s := store.NewSQLite(conn, "tester")

	var delivered map[string]store.Record
	s.Subscribe("tasks", func(recs map[string]store.Record) {
		delivered = recs
	})

	if err := s.Put(ctx, "tasks", "t1", store.Record(`{"name":"one"}`)); err != nil {
		t.Fatalf("put with subscriber: %v", err)
	}
	if len(delivered) != 1 {
		t.Fatalf("subscriber saw %d records, want 1", len(delivered))
	}
	if string(delivered["t1"]) != `{"name":"one"}` {
		t.Fatalf("subscriber saw %s", delivered["t1"])
	}
	if _, err := s.GetByID(ctx, "tasks", "t1"); err != nil {
		t.Fatalf("committed document missing: %v", err)
	}

	if err := s.Delete(ctx, "tasks", "t1"); err != nil {
		t.Fatalf("delete with subscriber: %v", err)
	}
	if len(delivered) != 0 {
		t.Fatalf("subscriber saw %d records after delete, want 0", len(delivered))
	}
	if _, err := s.GetByID(ctx, "tasks", "t1"); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
