package mock

import (
	"context"
	"hash/fnv"
	"sync/atomic"

	"github.com/poiesic/gentable/core"
)

// DefaultDimension is the vector length NewMockEmbedder uses.
const DefaultDimension = 8

// MockEmbedder is a test double for ai.Embedder.
// It allows custom behavior injection via function fields.
type MockEmbedder struct {
	// EmbedFunc is called by Embed if set.
	// If nil, uses default deterministic behavior.
	EmbedFunc func(ctx context.Context, texts []string, model string, creds core.Credentials) ([][]float32, error)

	// Dimension is the length of default vectors.
	Dimension int

	calls atomic.Int64
	texts atomic.Int64
}

// NewMockEmbedder creates a mock embedder with default deterministic behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{Dimension: DefaultDimension}
}

// Embed generates deterministic embeddings for texts.
func (m *MockEmbedder) Embed(ctx context.Context, texts []string, model string, creds core.Credentials) ([][]float32, error) {
	m.calls.Add(1)
	m.texts.Add(int64(len(texts)))

	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, texts, model, creds)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = DeterministicVector(text, m.Dimension)
	}
	return vectors, nil
}

// CallCount returns the number of Embed calls.
func (m *MockEmbedder) CallCount() int {
	return int(m.calls.Load())
}

// TextCount returns the number of texts embedded.
func (m *MockEmbedder) TextCount() int {
	return int(m.texts.Load())
}

// Reset clears the counters and injected behavior.
func (m *MockEmbedder) Reset() {
	m.calls.Store(0)
	m.texts.Store(0)
	m.EmbedFunc = nil
}

// DeterministicVector creates a vector from text. It uses an FNV hash so the
// same text always produces the same vector. The vector is not normalized.
func DeterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := 0; i < dim; i++ {
		// Simple pseudo-random generation based on seed and index
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(seed%1000)/100.0 + 0.01
	}
	return vector
}
