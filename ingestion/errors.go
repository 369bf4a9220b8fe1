package ingestion

import "errors"

var (
	// ErrOpenerRequired is returned when no storage opener is provided.
	ErrOpenerRequired = errors.New("storage opener required")

	// ErrExecutorRequired is returned when no row executor is provided.
	ErrExecutorRequired = errors.New("row executor required")

	// ErrLLMRequired is returned when no LLM is provided.
	ErrLLMRequired = errors.New("LLM required")

	// ErrEmbedderRequired is returned when no embedder is provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrUnsupportedFormat is returned for files no loader can read.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)
