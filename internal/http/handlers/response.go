// Package handlers implements the HTTP endpoints of the legal assistant API.
//
// This file holds the response helpers every endpoint goes through. Success
// bodies are plain JSON DTOs; failures always use the ErrorResponse envelope
// so clients can branch on `code` instead of parsing prose:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "conversation_not_found",
//	  "message": "conversation not found"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-legal-assistant-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by every endpoint.
//
// RequestID echoes the X-Request-ID header so a client-side failure can be
// matched to the server log line. Code is one of the stable constants in
// errors.go; Message is safe to surface to end users and never contains
// transcript or key material.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	Code      string `json:"code" example:"conversation_not_found"`
	Message   string `json:"message" example:"conversation not found"`
}

// fail aborts the request with the standard error envelope.
//
// Client errors (4xx) are the caller's problem and are not logged here; the
// access log already records them at warn. Server errors are additionally
// logged through the request-scoped logger so they carry the correlation id.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is the exported form of fail, for callers outside this package such as
// the router's NoRoute and NoMethod handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success body as JSON.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent answers 204 for operations with nothing to return, such as key
// revocation.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
