// Package common defines shared constants and sentinel errors used across
// client and server layers of Nodea. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Validation errors: malformed guard shape, missing identifiers,
	// payload without nonce and the like.
	ErrorValidation = errors.New("validation error")

	// ErrorForbidden is returned when a declarative rule or the guard hook
	// rejects an operation. Transport layers report it as a generic
	// "forbidden" so callers cannot tell which check failed.
	ErrorForbidden = errors.New("forbidden")

	// Crypto errors. ErrorDecryption is the raw AEAD failure; after the
	// single local retry it escalates to ErrorKeyMissing, which callers must
	// treat as "reauthenticate".
	ErrorDecryption = errors.New("decryption failed")
	ErrorKeyMissing = errors.New("key material missing or invalid")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)

// ErrVersionConflict reports a lost compare-and-set: the row changed (or
// vanished) between read and conditional write.
var ErrVersionConflict = errors.New("version conflict")
