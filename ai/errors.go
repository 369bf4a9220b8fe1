package ai

import "errors"

var (
	// ErrUnknownProvider is returned when no backend serves a model's provider.
	ErrUnknownProvider = errors.New("unknown model provider")

	// ErrNoModelAvailable is returned when no model offers the requested
	// capabilities.
	ErrNoModelAvailable = errors.New("no model available")

	// ErrUnsupported is returned when a backend cannot perform an operation.
	ErrUnsupported = errors.New("operation not supported by provider")

	// ErrEmptyResponse is returned when a provider answers with no content.
	ErrEmptyResponse = errors.New("provider returned an empty response")

	// ErrEmbeddingCount is returned when a provider returns a different number
	// of vectors than texts.
	ErrEmbeddingCount = errors.New("embedding count mismatch")
)
