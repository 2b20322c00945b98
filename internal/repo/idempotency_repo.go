// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the idempotency store used to make
// retried chat turns safe: a completed response is recorded once and replayed
// for any later request carrying the same Idempotency-Key.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-legal-assistant-backend/internal/domain"
)

// ErrDuplicate indicates that a record already exists for the given
// (account_id, key) pair.
var ErrDuplicate = errors.New("duplicate")

// GetIdempotency returns a non-expired record for the account and key, or
// ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, accountID, key string, now time.Time) (*domain.IdempotencyRecord, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.IdempotencyRecord
	err := db.WithContext(ctx).
		Where("account_id = ? AND key = ? AND expires_at > ?", accountID, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveIdempotency records the response of a completed request. A concurrent
// retry that raced the insert surfaces as ErrDuplicate; the stored response
// wins either way.
func SaveIdempotency(ctx context.Context, db *gorm.DB, accountID, key string, status int, body string, ttl time.Duration) (*domain.IdempotencyRecord, error) {
	now := time.Now().UTC()
	rec := &domain.IdempotencyRecord{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Key:       key,
		Status:    status,
		Body:      body,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		// glebarez/sqlite often reports UNIQUE violations as plain text.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}
