// Package common defines shared constants and sentinel errors used across
// client and server layers of taskgrid. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Brute-force lockout. Wrapped by bruteforce.LockoutError which carries
	// the remaining lockout duration.
	ErrorTooManyAttempts = errors.New("too many attempts")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Key handling errors. Surfaced with detail so a client can fix its
	// registration; they are not security-sensitive.
	ErrorKeyMissing       = errors.New("no public key registered")
	ErrorInvalidKey       = errors.New("invalid public key")
	ErrorEncryptionFailed = errors.New("encryption failed")
	ErrorDecryptionFailed = errors.New("decryption failed")

	// Task errors.
	ErrorNoActiveTask     = errors.New("no active task")
	ErrorAlreadySubmitted = errors.New("task already submitted")

	// Messaging errors.
	ErrorSelfSend             = errors.New("cannot send message to yourself")
	ErrorRecipientUnavailable = errors.New("recipient not available")
)
