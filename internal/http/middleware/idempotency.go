// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements idempotent retries for unsafe methods. Clients may
// send an Idempotency-Key header with a chat turn; the first completed
// response is recorded, and any retry carrying the same key within the TTL
// window is answered from the record without re-running generation or
// consuming plan quota. Persistence is decoupled behind the narrow
// ReplayStore interface.
package middleware

import (
	"bytes"
	"context"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header clients use to convey an
// idempotency key. The value must be stable across retries of one semantic
// operation.
const HeaderIdempotencyKey = "Idempotency-Key"

// idemKeyPattern restricts keys to a conservative token alphabet.
var idemKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// maxIdemKeyLen caps the accepted key length.
const maxIdemKeyLen = 200

// ReplayStore looks up and records completed responses per (account, key).
// Lookup misses return ok=false with a nil error; a non-nil error reports a
// storage failure and never blocks the request.
type ReplayStore interface {
	Lookup(ctx context.Context, accountID, key string) (status int, body []byte, ok bool, err error)
	Save(ctx context.Context, accountID, key string, status int, body []byte) error
}

// bodyRecorder tees response bytes into a buffer so a successful body can be
// recorded after the handler has written it.
type bodyRecorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *bodyRecorder) WriteString(s string) (int, error) {
	r.buf.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}

// Idempotency returns middleware that makes POST retries safe.
//
// Behavior:
//   - Safe methods (GET, HEAD, OPTIONS) and requests without the header pass
//     through untouched.
//   - A malformed key aborts with 400 and code "bad_idempotency_key".
//   - A recorded response for (account, key) is replayed verbatim and the
//     handler chain is skipped, so neither generation nor the quota gate
//     downstream runs again.
//   - Otherwise the request proceeds with the response body teed; a 2xx
//     outcome is recorded for later retries. Storage failures are logged and
//     swallowed.
//
// Must run after APIKeyAuth (the record is scoped to the resolved account)
// and before QuotaGate (a replay must not consume quota).
func Idempotency(store ReplayStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdemKeyLen || !idemKeyPattern.MatchString(key) {
			abortError(c, http.StatusBadRequest, "bad_idempotency_key", "invalid Idempotency-Key")
			return
		}

		accountID := AccountIDFrom(c)
		ctx := c.Request.Context()

		status, body, replay, err := store.Lookup(ctx, accountID, key)
		if err != nil {
			LoggerFrom(c).Error().Err(err).Msg("idempotency lookup failed")
		}
		if replay {
			c.Header("Idempotency-Replayed", "true")
			c.Data(status, "application/json; charset=utf-8", body)
			c.Abort()
			return
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		if s := rec.Status(); s >= 200 && s < 300 {
			if err := store.Save(ctx, accountID, key, s, rec.buf.Bytes()); err != nil {
				LoggerFrom(c).Error().Err(err).Msg("idempotency save failed")
			}
		}
	}
}
