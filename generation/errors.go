package generation

import "errors"

var (
	// ErrOpenerRequired is returned when no storage opener is provided.
	ErrOpenerRequired = errors.New("storage opener required")

	// ErrLLMRequired is returned when no LLM is provided.
	ErrLLMRequired = errors.New("LLM required")

	// ErrEmbedderRequired is returned when no embedder is provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrQueueRequired is returned when no task queue is provided.
	ErrQueueRequired = errors.New("task queue required")

	// ErrUnknownOp is returned for a request with an unsupported op.
	ErrUnknownOp = errors.New("unknown generation op")

	// ErrAllColumnsFailed is returned when every computed cell of a request
	// failed.
	ErrAllColumnsFailed = errors.New("all computed columns failed")
)
