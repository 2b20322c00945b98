// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements credential middleware for the two caller surfaces:
//
//   - APIKeyAuth resolves a presented API secret (Bearer header, dedicated
//     key header, or query parameter, in that precedence) to a canonical
//     account via the key resolver. The dual legacy/current key formats
//     never leak past this boundary; handlers only ever see the resolved
//     account.
//   - SessionAuth validates a first-party JWT session token for the key
//     management endpoints.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-legal-assistant-backend/internal/domain"
	"github.com/tbourn/go-legal-assistant-backend/internal/services"
)

const (
	// accountKey is the Gin context key holding the resolved *domain.Account.
	accountKey = "account"
	// accountIDKey is the Gin context key holding the account id string.
	// Stored separately so identity-keyed middleware (rate limiter, logger)
	// does not need the full record.
	accountIDKey = "accountID"

	// HeaderAPIKey is the dedicated key header.
	HeaderAPIKey = "X-API-Key"
)

// APIKeyAuth returns middleware that authenticates requests by API key.
//
// Credential precedence: Authorization: Bearer <key>, then X-API-Key, then
// ?apiKey=. Missing or unresolvable credentials abort with 401
// (code "unauthenticated"); a resolved-but-expired key entry aborts with
// 401 and the distinct code "expired_credential" so clients can tell the
// two apart.
func APIKeyAuth(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer := bearerToken(c.GetHeader("Authorization"))
		header := c.GetHeader(HeaderAPIKey)
		query := c.Query("apiKey")

		account, err := auth.ResolveKey(c.Request.Context(), bearer, header, query)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrKeyExpired):
				abortError(c, http.StatusUnauthorized, "expired_credential", "API key has expired")
			case errors.Is(err, services.ErrUnauthenticated):
				abortError(c, http.StatusUnauthorized, "unauthenticated",
					"API key is required: provide it as an Authorization Bearer token, X-API-Key header, or apiKey query parameter")
			default:
				abortError(c, http.StatusInternalServerError, "internal_error", "internal server error")
			}
			return
		}

		c.Set(accountKey, account)
		c.Set(accountIDKey, account.ID)
		c.Next()
	}
}

// SessionAuth returns middleware that validates a first-party session token
// (Authorization: Bearer <jwt>) and stores the account id in the context.
func SessionAuth(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			abortError(c, http.StatusUnauthorized, "unauthenticated", "session token required")
			return
		}
		accountID, err := auth.ParseToken(token)
		if err != nil {
			abortError(c, http.StatusUnauthorized, "unauthenticated", "invalid or expired session token")
			return
		}
		c.Set(accountIDKey, accountID)
		c.Next()
	}
}

// AccountFrom returns the resolved account stored by APIKeyAuth, if any.
func AccountFrom(c *gin.Context) (*domain.Account, bool) {
	v, ok := c.Get(accountKey)
	if !ok {
		return nil, false
	}
	a, ok := v.(*domain.Account)
	return a, ok
}

// AccountIDFrom returns the account id stored by APIKeyAuth or SessionAuth.
func AccountIDFrom(c *gin.Context) string {
	if v, ok := c.Get(accountIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// bearerToken extracts the token from an "Authorization: Bearer x" header,
// returning "" when the scheme does not match.
func bearerToken(header string) string {
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// abortError writes the standard error envelope used across middleware.
func abortError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       code,
		"message":    msg,
	})
}
