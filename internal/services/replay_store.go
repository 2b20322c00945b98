// Package services – ReplayStore
//
// This file backs the Idempotency-Key middleware with durable storage. A
// completed response is recorded per (account, key) and replayed for retries
// within the TTL window, so a client that resends a chat turn after a network
// failure gets the original answer without a second generation call.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-legal-assistant-backend/internal/repo"
)

// DefaultReplayTTL bounds how long a recorded response stays replayable.
const DefaultReplayTTL = 24 * time.Hour

// ReplayStore persists and looks up recorded responses for idempotent
// retries.
type ReplayStore struct {
	db  *gorm.DB
	ttl time.Duration

	// Now is the clock; override in tests.
	Now func() time.Time
}

// NewReplayStore constructs a ReplayStore. A ttl <= 0 falls back to
// DefaultReplayTTL.
func NewReplayStore(db *gorm.DB, ttl time.Duration) *ReplayStore {
	if ttl <= 0 {
		ttl = DefaultReplayTTL
	}
	return &ReplayStore{db: db, ttl: ttl, Now: time.Now}
}

// Lookup returns the recorded response for (accountID, key) when a
// non-expired record exists. ok is false on a miss; err reports only storage
// failures.
func (s *ReplayStore) Lookup(ctx context.Context, accountID, key string) (status int, body []byte, ok bool, err error) {
	rec, err := repo.GetIdempotency(ctx, s.db, accountID, key, s.Now().UTC())
	if errors.Is(err, repo.ErrNotFound) {
		return 0, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, err
	}
	return rec.Status, []byte(rec.Body), true, nil
}

// Save records a completed response. A duplicate insert (a retry that raced
// this one) is not an error: the first stored response wins.
func (s *ReplayStore) Save(ctx context.Context, accountID, key string, status int, body []byte) error {
	_, err := repo.SaveIdempotency(ctx, s.db, accountID, key, status, string(body), s.ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}
