// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file enforces plan quotas. Unlike the token-bucket rate limiter in
// ratelimit.go (edge abuse control, process-local, IP fallback), the quota
// gate is the product-level admission decision: a persistent per-account
// counter inside a rolling window, sized by the account's plan. It must run
// after APIKeyAuth so the account is already resolved.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-legal-assistant-backend/internal/services"
)

// QuotaGate returns middleware that admits or rejects requests against the
// account's plan quota.
//
// Paths matching any of exemptPrefixes bypass the check entirely: no
// counter read, no reset, no mutation. Rejections return 429 with the
// standard error envelope plus retryAfter and plan fields so clients can
// surface a human-readable wait hint.
func QuotaGate(quota *services.QuotaService, exemptPrefixes []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, p := range exemptPrefixes {
			if p != "" && strings.HasPrefix(c.Request.URL.Path, p) {
				c.Next()
				return
			}
		}

		account, ok := AccountFrom(c)
		if !ok {
			// QuotaGate without a resolved account is a wiring bug, not a
			// client error.
			abortError(c, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}

		decision, err := quota.Admit(c.Request.Context(), account)
		if err != nil {
			if errors.Is(err, services.ErrQuotaExceeded) {
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
					"request_id": c.Writer.Header().Get("X-Request-ID"),
					"code":       "quota_exceeded",
					"message":    "plan quota exceeded",
					"retryAfter": decision.RetryAfter,
					"plan":       decision.Plan,
				})
				return
			}
			abortError(c, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}

		c.Next()
	}
}
