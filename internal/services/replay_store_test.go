package services

import (
	"context"
	"testing"
	"time"
)

func TestReplayStore_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	store := NewReplayStore(db, time.Hour)
	ctx := context.Background()

	if err := store.Save(ctx, "acc-1", "retry-1", 200, []byte(`{"response":"answer"}`)); err != nil {
		t.Fatalf("save: %v", err)
	}

	status, body, found, err := store.Lookup(ctx, "acc-1", "retry-1")
	if err != nil || !found {
		t.Fatalf("lookup: found=%v err=%v", found, err)
	}
	if status != 200 || string(body) != `{"response":"answer"}` {
		t.Fatalf("stored response: status=%d body=%s", status, body)
	}
}

func TestReplayStore_MissAndForeignAccount(t *testing.T) {
	db := newTestDB(t)
	store := NewReplayStore(db, time.Hour)
	ctx := context.Background()

	if _, _, found, err := store.Lookup(ctx, "acc-1", "never-seen"); found || err != nil {
		t.Fatalf("miss: found=%v err=%v", found, err)
	}

	if err := store.Save(ctx, "acc-1", "retry-1", 200, []byte("{}")); err != nil {
		t.Fatalf("save: %v", err)
	}
	// The same key under another account is not a hit.
	if _, _, found, _ := store.Lookup(ctx, "acc-2", "retry-1"); found {
		t.Fatalf("replay leaked across accounts")
	}
}

func TestReplayStore_ExpiredRecordIsAMiss(t *testing.T) {
	db := newTestDB(t)
	store := NewReplayStore(db, time.Hour)
	ctx := context.Background()

	if err := store.Save(ctx, "acc-1", "retry-1", 200, []byte("{}")); err != nil {
		t.Fatalf("save: %v", err)
	}
	store.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, _, found, err := store.Lookup(ctx, "acc-1", "retry-1"); found || err != nil {
		t.Fatalf("expired record should miss: found=%v err=%v", found, err)
	}
}

func TestReplayStore_DuplicateSaveKeepsFirstRecord(t *testing.T) {
	db := newTestDB(t)
	store := NewReplayStore(db, time.Hour)
	ctx := context.Background()

	if err := store.Save(ctx, "acc-1", "retry-1", 200, []byte(`{"n":1}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	// A racing retry re-saving the same key is swallowed.
	if err := store.Save(ctx, "acc-1", "retry-1", 200, []byte(`{"n":2}`)); err != nil {
		t.Fatalf("duplicate save should not error: %v", err)
	}
	_, body, found, _ := store.Lookup(ctx, "acc-1", "retry-1")
	if !found || string(body) != `{"n":1}` {
		t.Fatalf("first record should win, got %s", body)
	}
}

func TestNewReplayStore_TTLFallback(t *testing.T) {
	store := NewReplayStore(newTestDB(t), 0)
	if store.ttl != DefaultReplayTTL {
		t.Fatalf("ttl = %v, want %v", store.ttl, DefaultReplayTTL)
	}
}
