// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for accounts,
// issued API keys, and per-account quota state.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a record is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-legal-assistant-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for consistency across the service
// layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateAccount inserts a new Account row with a UUID primary key.
func CreateAccount(ctx context.Context, db *gorm.DB, name, email, passwordHash, plan string) (*domain.Account, error) {
	a := &domain.Account{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Plan:         plan,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

// GetAccount fetches an account by its ID, or ErrNotFound if missing.
func GetAccount(ctx context.Context, db *gorm.DB, id string) (*domain.Account, error) {
	var a domain.Account
	if err := db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAccountByEmail fetches an account by email, or ErrNotFound if missing.
func GetAccountByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Account, error) {
	var a domain.Account
	if err := db.WithContext(ctx).First(&a, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// FindAccountBySecret resolves the account owning the presented secret.
// A secret matches when it equals the account's legacy single-key field, or
// when an active key entry carries it. The matching key entry (nil for the
// legacy form) is returned alongside the account so the caller can apply
// expiry rules; the resolver deliberately does NOT filter expired entries
// here, because "expired" must stay distinguishable from "not found".
func FindAccountBySecret(ctx context.Context, db *gorm.DB, secret string) (*domain.Account, *domain.APIKey, error) {
	var a domain.Account
	err := db.WithContext(ctx).First(&a, "legacy_api_key = ?", secret).Error
	if err == nil {
		return &a, nil, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, nil, err
	}

	var k domain.APIKey
	if err := db.WithContext(ctx).First(&k, "secret = ? AND active = ?", secret, true).Error; err != nil {
		return nil, nil, err
	}
	if err := db.WithContext(ctx).First(&a, "id = ?", k.AccountID).Error; err != nil {
		return nil, nil, err
	}
	return &a, &k, nil
}

// CreateAPIKey appends a new key entry for the account. Secrets are opaque;
// the caller supplies the generated value.
func CreateAPIKey(ctx context.Context, db *gorm.DB, accountID, secret string, expiresAt *time.Time) (*domain.APIKey, error) {
	k := &domain.APIKey{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Secret:    secret,
		ExpiresAt: expiresAt,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(k).Error; err != nil {
		return nil, err
	}
	return k, nil
}

// ListAPIKeys returns all key entries for an account, newest first.
func ListAPIKeys(ctx context.Context, db *gorm.DB, accountID string) ([]domain.APIKey, error) {
	var out []domain.APIKey
	err := db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// DeactivateAPIKey flips a key entry's active flag to false. Keys are never
// physically deleted. Returns ErrNotFound when the key does not exist or is
// not owned by accountID.
func DeactivateAPIKey(ctx context.Context, db *gorm.DB, accountID, keyID string) error {
	res := db.WithContext(ctx).
		Model(&domain.APIKey{}).
		Where("id = ? AND account_id = ?", keyID, accountID).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetQuotaState loads the quota counter for an account, creating a zeroed
// row anchored at now when none exists yet.
func GetQuotaState(ctx context.Context, db *gorm.DB, accountID string, now time.Time) (*domain.QuotaState, error) {
	var qs domain.QuotaState
	err := db.WithContext(ctx).First(&qs, "account_id = ?", accountID).Error
	if err == gorm.ErrRecordNotFound {
		qs = domain.QuotaState{AccountID: accountID, Count: 0, LastReset: now}
		if cerr := db.WithContext(ctx).Create(&qs).Error; cerr != nil {
			return nil, cerr
		}
		return &qs, nil
	}
	if err != nil {
		return nil, err
	}
	return &qs, nil
}

// SaveQuotaState persists the counter and reset anchor as a single row
// update.
func SaveQuotaState(ctx context.Context, db *gorm.DB, qs *domain.QuotaState) error {
	return db.WithContext(ctx).
		Model(&domain.QuotaState{}).
		Where("account_id = ?", qs.AccountID).
		Updates(map[string]any{"count": qs.Count, "last_reset": qs.LastReset}).Error
}
