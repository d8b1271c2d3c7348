package live

import "errors"

// Common errors returned by the Live client.
var (
	ErrMissingAPIKey    = errors.New("live: missing API key")
	ErrNotConnected     = errors.New("live: not connected")
	ErrAlreadyConnected = errors.New("live: already connected")
)
