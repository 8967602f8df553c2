package secret

import "errors"

// Sentinel errors.
var (
	ErrMissingEnv      = errors.New("secret: missing environment variables")
	ErrUnknownProvider = errors.New("secret: provider is not registered")
	ErrEmptySecret     = errors.New("secret: resolved value is empty")
	ErrNotFound        = errors.New("secret: reference not found")
)
