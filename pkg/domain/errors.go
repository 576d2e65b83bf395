package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")
	ErrProviderFailure = errors.New("provider failure")
	ErrSessionNotReady = errors.New("session not ready")
	ErrOverloaded      = errors.New("overloaded")
)
