// Account and key management HTTP handlers.
//
// This file exposes the first-party surface:
//   - POST   /auth/signup        (register, returns the one-time initial key secret)
//   - POST   /auth/login         (returns a session token)
//   - POST   /api/v1/keys        (issue a key, session-authenticated)
//   - GET    /api/v1/keys        (list key entries, secrets never returned)
//   - DELETE /api/v1/keys/{id}   (revoke)
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-legal-assistant-backend/internal/domain"
	"github.com/tbourn/go-legal-assistant-backend/internal/http/middleware"
	"github.com/tbourn/go-legal-assistant-backend/internal/services"
)

// AuthService defines the account lifecycle operations consumed by HTTP
// handlers.
type AuthService interface {
	Signup(ctx context.Context, name, email, password string) (*services.SignupResult, error)
	Login(ctx context.Context, email, password string) (string, error)
	IssueKey(ctx context.Context, accountID string, ttl time.Duration) (*domain.APIKey, string, error)
	ListKeys(ctx context.Context, accountID string) ([]domain.APIKey, error)
	RevokeKey(ctx context.Context, accountID, keyID string) error
}

//
// DTOs
//

// SignupRequest registers a new account.
type SignupRequest struct {
	Name     string `json:"name"     binding:"required" example:"Ada Lovelace"`
	Email    string `json:"email"    binding:"required,email" example:"ada@example.com"`
	Password string `json:"password" binding:"required,min=8" example:"correct horse battery"`
}

// SignupResponse returns the created account and its one-time key secret.
// The secret is never retrievable again.
type SignupResponse struct {
	AccountID string `json:"accountId"`
	Email     string `json:"email"`
	Plan      string `json:"plan"`
	APIKey    string `json:"apiKey"`
}

// LoginRequest authenticates an existing account.
type LoginRequest struct {
	Email    string `json:"email"    binding:"required,email" example:"ada@example.com"`
	Password string `json:"password" binding:"required" example:"correct horse battery"`
}

// LoginResponse carries the session token for the key-management surface.
type LoginResponse struct {
	Token string `json:"token"`
}

// IssueKeyRequest optionally bounds the new key's lifetime.
type IssueKeyRequest struct {
	// TTL is a Go duration string (e.g. "720h"). Empty issues a
	// non-expiring key.
	TTL string `json:"ttl,omitempty" example:"720h"`
}

// IssueKeyResponse returns the new entry and its one-time secret.
type IssueKeyResponse struct {
	KeyID     string `json:"keyId"`
	Secret    string `json:"secret"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

// KeyView is one key entry in a listing. The secret is omitted.
type KeyView struct {
	KeyID     string `json:"keyId"`
	Active    bool   `json:"active"`
	ExpiresAt string `json:"expiresAt,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// AuthHandlers groups the account and key endpoints.
type AuthHandlers struct {
	svc AuthService
}

// NewAuthHandlers constructs an AuthHandlers bound to the given service.
func NewAuthHandlers(svc AuthService) *AuthHandlers {
	return &AuthHandlers{svc: svc}
}

// Signup godoc
// @ID          signup
// @Summary     Register an account
// @Description Creates a free-plan account and returns its first API key secret.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.SignupRequest  true  "Signup payload"
//
// @Success     201  {object}  handlers.SignupResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse  "Email already registered"
// @Router      /auth/signup [post]
func (h *AuthHandlers) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name, email and password (min 8 chars) are required")
		return
	}

	res, err := h.svc.Signup(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			fail(c, http.StatusConflict, ErrCodeEmailTaken, "email is already registered")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	ok(c, http.StatusCreated, SignupResponse{
		AccountID: res.Account.ID,
		Email:     res.Account.Email,
		Plan:      res.Account.Plan,
		APIKey:    res.Secret,
	})
}

// Login godoc
// @ID          login
// @Summary     Log in
// @Description Verifies credentials and returns a session token.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.LoginRequest  true  "Login payload"
//
// @Success     200  {object}  handlers.LoginResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid credentials"
// @Router      /auth/login [post]
func (h *AuthHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email and password are required")
		return
	}

	token, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			fail(c, http.StatusUnauthorized, ErrCodeInvalidCredentials, "invalid email or password")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	ok(c, http.StatusOK, LoginResponse{Token: token})
}

// IssueKey godoc
// @ID          issueKey
// @Summary     Issue an API key
// @Description Appends a new key entry for the authenticated account and
// @Description returns the secret exactly once.
// @Tags        Keys
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.IssueKeyRequest  false  "Optional TTL"
//
// @Success     201  {object}  handlers.IssueKeyResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /keys [post]
func (h *AuthHandlers) IssueKey(c *gin.Context) {
	var req IssueKeyRequest
	// Body is optional; ignore bind errors from an empty body.
	_ = c.ShouldBindJSON(&req)

	var ttl time.Duration
	if s := strings.TrimSpace(req.TTL); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "ttl must be a positive Go duration, e.g. \"720h\"")
			return
		}
		ttl = d
	}

	entry, secret, err := h.svc.IssueKey(c.Request.Context(), middleware.AccountIDFrom(c), ttl)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	resp := IssueKeyResponse{KeyID: entry.ID, Secret: secret}
	if entry.ExpiresAt != nil {
		resp.ExpiresAt = entry.ExpiresAt.UTC().Format(time.RFC3339)
	}
	ok(c, http.StatusCreated, resp)
}

// ListKeys godoc
// @ID          listKeys
// @Summary     List API key entries
// @Description Returns the account's key entries, newest first. Secrets are
// @Description never included.
// @Tags        Keys
// @Produce     json
//
// @Success     200  {array}  handlers.KeyView
// @Router      /keys [get]
func (h *AuthHandlers) ListKeys(c *gin.Context) {
	entries, err := h.svc.ListKeys(c.Request.Context(), middleware.AccountIDFrom(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	views := make([]KeyView, 0, len(entries))
	for _, e := range entries {
		v := KeyView{
			KeyID:     e.ID,
			Active:    e.Active,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		}
		if e.ExpiresAt != nil {
			v.ExpiresAt = e.ExpiresAt.UTC().Format(time.RFC3339)
		}
		views = append(views, v)
	}
	ok(c, http.StatusOK, views)
}

// RevokeKey godoc
// @ID          revokeKey
// @Summary     Revoke an API key
// @Description Deactivates a key entry owned by the authenticated account.
// @Tags        Keys
// @Produce     json
//
// @Param       id  path  string  true  "Key ID (UUID)"  format(uuid)
//
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Key not found"
// @Router      /keys/{id} [delete]
func (h *AuthHandlers) RevokeKey(c *gin.Context) {
	if err := h.svc.RevokeKey(c.Request.Context(), middleware.AccountIDFrom(c), c.Param("id")); err != nil {
		if errors.Is(err, services.ErrKeyNotFound) {
			fail(c, http.StatusNotFound, ErrCodeKeyNotFound, "key not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}
