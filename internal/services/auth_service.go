// Package services – AuthService
//
// This file implements the key resolver and account lifecycle. The resolver
// maps a presented credential string to one canonical Account, tolerating
// both the legacy single-key field and the newer key-entry set; nothing
// downstream ever sees which format matched. It also covers the
// first-party surface: signup, login (JWT), and API key issuance.
//
// Service-level errors (ErrUnauthenticated, ErrKeyExpired, ...) are
// returned for predictable cases so handlers can map them to HTTP results
// consistently.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-legal-assistant-backend/internal/domain"
	"github.com/tbourn/go-legal-assistant-backend/internal/repo"
	"github.com/tbourn/go-legal-assistant-backend/internal/sysutil"
)

// secretPrefix marks issued key secrets so they are recognizable in support
// tooling without being guessable.
const secretPrefix = "jk_"

// AuthService resolves API keys to accounts and manages the first-party
// account lifecycle (signup, login, key issuance).
type AuthService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Hasher hashes and verifies passwords. Credential storage itself is a
	// collaborator; the service only holds the digest.
	Hasher PasswordHasher

	// JWTSecret signs first-party session tokens.
	JWTSecret []byte
	// TokenTTL bounds session token lifetime.
	TokenTTL time.Duration

	// Now is the clock; overridable in tests. Defaults to time.Now.
	Now func() time.Time
}

// NewAuthService constructs an AuthService with sane defaults.
func NewAuthService(db *gorm.DB, hasher PasswordHasher, jwtSecret string, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{
		DB:        db,
		Hasher:    hasher,
		JWTSecret: []byte(jwtSecret),
		TokenTTL:  tokenTTL,
		Now:       time.Now,
	}
}

// ResolveKey maps the first present credential out of (bearer, header,
// query), in that precedence, to its owning account.
//
// Resolution matches the legacy single-key field or an active key entry.
// A matching key entry with an expiry in the past yields ErrKeyExpired,
// deliberately distinct from ErrUnauthenticated. The lookup is pure: no
// side effects, downstream components decide what the identity authorizes.
func (s *AuthService) ResolveKey(ctx context.Context, bearer, header, query string) (*domain.Account, error) {
	secret := sysutil.FirstNonEmpty(bearer, header, query)
	if strings.TrimSpace(secret) == "" {
		return nil, ErrUnauthenticated
	}

	account, entry, err := repo.FindAccountBySecret(ctx, s.DB, secret)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if entry != nil && entry.Expired(s.now()) {
		return nil, ErrKeyExpired
	}
	return account, nil
}

// SignupResult carries the created account and the one-time initial secret.
// The secret is shown to the caller exactly once; only its entry persists.
type SignupResult struct {
	Account *domain.Account
	Secret  string
}

// Signup registers a new account on the free plan and issues its first API
// key entry.
func (s *AuthService) Signup(ctx context.Context, name, email, password string) (*SignupResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := repo.GetAccountByEmail(ctx, s.DB, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	account, err := repo.CreateAccount(ctx, s.DB, strings.TrimSpace(name), email, hash, domain.PlanFree)
	if err != nil {
		return nil, err
	}

	secret := newSecret()
	if _, err := repo.CreateAPIKey(ctx, s.DB, account.ID, secret, nil); err != nil {
		return nil, err
	}
	return &SignupResult{Account: account, Secret: secret}, nil
}

// Login verifies the email/password pair and returns a signed session
// token for the first-party surface.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	account, err := repo.GetAccountByEmail(ctx, s.DB, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if err := s.Hasher.Compare(account.PasswordHash, password); err != nil {
		return "", ErrInvalidCredentials
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   account.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.TokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.JWTSecret)
}

// ParseToken validates a session token and returns the account id it was
// issued for.
func (s *AuthService) ParseToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidCredentials
		}
		return s.JWTSecret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidCredentials
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidCredentials
	}
	return claims.Subject, nil
}

// IssueKey appends a new key entry for the account. A non-positive ttl
// issues a non-expiring key.
func (s *AuthService) IssueKey(ctx context.Context, accountID string, ttl time.Duration) (*domain.APIKey, string, error) {
	var expires *time.Time
	if ttl > 0 {
		t := s.now().Add(ttl)
		expires = &t
	}
	secret := newSecret()
	entry, err := repo.CreateAPIKey(ctx, s.DB, accountID, secret, expires)
	if err != nil {
		return nil, "", err
	}
	return entry, secret, nil
}

// ListKeys returns the account's key entries, newest first. Secrets are
// never serialized back out.
func (s *AuthService) ListKeys(ctx context.Context, accountID string) ([]domain.APIKey, error) {
	return repo.ListAPIKeys(ctx, s.DB, accountID)
}

// RevokeKey deactivates a key entry. Entries are never physically deleted.
func (s *AuthService) RevokeKey(ctx context.Context, accountID, keyID string) error {
	if err := repo.DeactivateAPIKey(ctx, s.DB, accountID, keyID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrKeyNotFound
		}
		return err
	}
	return nil
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// newSecret generates an opaque, collision-resistant key secret.
func newSecret() string {
	return secretPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}
