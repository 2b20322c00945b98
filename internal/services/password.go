// Package services – password hashing adapter.
//
// Hashing is an opaque collaborator from the core's point of view; this
// file defines the narrow interface plus the bcrypt implementation used in
// production.
package services

import "golang.org/x/crypto/bcrypt"

// PasswordHasher hashes and verifies passwords. Implementations must be
// safe for concurrent use.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// BcryptHasher implements PasswordHasher with bcrypt.
type BcryptHasher struct {
	// Cost overrides bcrypt.DefaultCost when > 0.
	Cost int
}

// Hash implements PasswordHasher.
func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	out, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Compare implements PasswordHasher.
func (h BcryptHasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
