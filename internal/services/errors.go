// Package services defines the business logic for key resolution, quota
// admission, conversations, documents, and activity recording. This file
// centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/middleware layer.
package services

import "errors"

// Credential errors.
var (
	// ErrUnauthenticated indicates that no credential was presented or the
	// presented secret does not resolve to any account.
	ErrUnauthenticated = errors.New("invalid API key")

	// ErrKeyExpired indicates the presented secret resolved to a key entry
	// whose expiry is in the past. Kept distinct from ErrUnauthenticated so
	// clients get an actionable message.
	ErrKeyExpired = errors.New("API key has expired")

	// ErrEmailTaken is returned by signup when the email is already
	// registered.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials is returned by login when the email/password
	// pair does not match.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrKeyNotFound indicates a key-management operation referenced a key
	// entry that does not exist or is not owned by the caller.
	ErrKeyNotFound = errors.New("API key entry not found")
)

// Quota errors.
var (
	// ErrQuotaExceeded indicates the account has used up its plan allowance
	// for the current window. The accompanying Decision carries the retry
	// hint and plan name.
	ErrQuotaExceeded = errors.New("quota exceeded")
)

// Conversation errors.
var (
	// ErrConversationNotFound indicates a supplied conversation id matched
	// no entry in any day bucket of the account's ledger. This is a hard
	// failure, never silently treated as "create new".
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrEmptyMessage is returned when a chat request carries no message.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrMessageTooLong is returned when a message exceeds the configured
	// maximum length.
	ErrMessageTooLong = errors.New("message too long")

	// ErrGenerationFailed wraps failures of the external generation
	// service (timeout, rate limit, malformed response). The ledger is
	// never mutated when this is returned; the condition is retryable.
	ErrGenerationFailed = errors.New("generation service failed")
)

// Document errors.
var (
	// ErrDocumentNotFound indicates no context exists for the supplied
	// document id, neither in the TTL cache nor in the durable store.
	ErrDocumentNotFound = errors.New("document context not found")

	// ErrUnsupportedMedia is returned for uploads that are neither PDF nor
	// an image type.
	ErrUnsupportedMedia = errors.New("unsupported media type")

	// ErrEmptyDocument is returned when extraction yields no text to seed
	// a context with.
	ErrEmptyDocument = errors.New("document contains no extractable text")
)
