package service

import "errors"

// Outward-facing service errors. Not-found, expired and already-consumed
// credentials deliberately share one error each so callers cannot tell them apart.
var (
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrSessionNotFound    = errors.New("session not found")
	ErrDeviceCodeNotFound = errors.New("invalid or expired device code")
	ErrAccountBlocked     = errors.New("account is blocked")
	ErrUserNotFound       = errors.New("user not found")
)
