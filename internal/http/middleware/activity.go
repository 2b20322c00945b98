// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file wires the asynchronous activity recorder into the request
// lifecycle: a snapshot of the request is enqueued before the handler runs,
// and the same entry is patched with status and latency once the response
// has been written. Both calls are fire-and-forget; the recorder owns its
// own queue and the request path never waits on a database write.
package middleware

import (
	"bytes"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-legal-assistant-backend/internal/services"
)

// maxBodySample caps the number of request-body bytes kept in an activity
// record. Enough to identify the request, small enough to keep rows cheap.
const maxBodySample = 1024

// ActivityLog returns middleware that records each authenticated request via
// the background recorder. It must run after APIKeyAuth so the account id is
// available; requests with no resolved account are skipped.
func ActivityLog(rec *services.ActivityRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := AccountIDFrom(c)
		if accountID == "" {
			c.Next()
			return
		}

		id := rec.RecordStart(services.RequestSnapshot{
			AccountID:  accountID,
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			Query:      c.Request.URL.RawQuery,
			BodySample: sampleBody(c),
			UserAgent:  c.Request.UserAgent(),
			RemoteIP:   c.ClientIP(),
		})

		start := time.Now()
		c.Next()

		rec.RecordFinish(id, c.Writer.Status(), time.Since(start))
	}
}

// sampleBody reads up to maxBodySample bytes of the request body and puts the
// full body back so downstream binding still sees everything.
func sampleBody(c *gin.Context) string {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodySample+1))
	if err != nil {
		return ""
	}
	// Stitch the sampled bytes back in front of the unread remainder so
	// downstream binding and multipart parsing still stream the full body.
	c.Request.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(data), c.Request.Body), c.Request.Body}

	if len(data) > maxBodySample {
		data = data[:maxBodySample]
	}
	return string(data)
}
