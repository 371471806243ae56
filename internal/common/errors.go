// Package common defines shared constants and sentinel errors used across
// the server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Input errors.
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("already exists")

	// Token errors. ErrInvalidToken covers malformed, expired and
	// badly signed tokens; ErrTokenMismatch is a verified refresh token
	// that is no longer the one stored for its user.
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenMismatch = errors.New("refresh token is expired or used")

	ErrTooManyAttempts = errors.New("too many attempts")
)
