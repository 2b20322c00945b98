// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package). These codes provide clients with a stable,
// machine-readable error taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, unauthenticated) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes (e.g., quota_exceeded, expired_credential) are reserved
//     for business outcomes that cannot be conveyed by status alone: both
//     credential failures map to 401 and both throttles map to 429, so the code
//     is what disambiguates them.
//   - All error responses must include both an HTTP status and one of these codes.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "quota_exceeded",
//	  "message": "plan quota exceeded"
//	}
package handlers

const (
	ErrCodeBadRequest      = "bad_request"
	ErrCodeUnauthenticated = "unauthenticated"
	ErrCodeForbidden       = "forbidden"
	ErrCodeNotFound        = "not_found"
	ErrCodeConflict        = "conflict"
	ErrCodeRateLimited     = "rate_limited"
	ErrCodeInternal        = "internal_error"

	// Domain-specific:
	ErrCodeExpiredCredential    = "expired_credential"
	ErrCodeQuotaExceeded        = "quota_exceeded"
	ErrCodeConversationNotFound = "conversation_not_found"
	ErrCodeGenerationFailed     = "upstream_generation_failure"
	ErrCodeUnsupportedMedia     = "unsupported_media_type"
	ErrCodeDocumentNotFound     = "document_not_found"
	ErrCodeEmailTaken           = "email_taken"
	ErrCodeInvalidCredentials   = "invalid_credentials"
	ErrCodeKeyNotFound          = "key_not_found"
)
