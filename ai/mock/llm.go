package mock

import (
	"context"
	"slices"
	"sync/atomic"

	"github.com/poiesic/gentable/ai"
	"github.com/poiesic/gentable/core"
)

// MockLLM is a test double for ai.LLM.
type MockLLM struct {
	// PredictFunc is called by Predict if set.
	// If nil, echoes the content of the last message.
	PredictFunc func(ctx context.Context, model string, messages []core.Message, params ai.SamplingParams, creds core.Credentials) (string, error)

	// ListFunc is called by ListCandidateModels if set.
	// If nil, returns Models with preferred moved first.
	ListFunc func(ctx context.Context, preferred string, caps []ai.Capability, creds core.Credentials) ([]string, error)

	// Models is the default candidate list.
	Models []string

	predicts atomic.Int64
	lists    atomic.Int64
}

// NewMockLLM creates a mock LLM offering the given models.
func NewMockLLM(models ...string) *MockLLM {
	return &MockLLM{Models: models}
}

// ListCandidateModels returns the configured models.
func (m *MockLLM) ListCandidateModels(ctx context.Context, preferred string, caps []ai.Capability, creds core.Credentials) ([]string, error) {
	m.lists.Add(1)
	if m.ListFunc != nil {
		return m.ListFunc(ctx, preferred, caps, creds)
	}
	if len(m.Models) == 0 {
		return nil, ai.ErrNoModelAvailable
	}
	models := slices.Clone(m.Models)
	if i := slices.Index(models, preferred); i > 0 {
		models = append([]string{preferred}, slices.Delete(models, i, i+1)...)
	}
	return models, nil
}

// Predict returns the injected result or echoes the last message.
func (m *MockLLM) Predict(ctx context.Context, model string, messages []core.Message, params ai.SamplingParams, creds core.Credentials) (string, error) {
	m.predicts.Add(1)
	if m.PredictFunc != nil {
		return m.PredictFunc(ctx, model, messages, params, creds)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(messages) == 0 {
		return "", nil
	}
	return messages[len(messages)-1].Content, nil
}

// PredictCalls returns the number of Predict calls.
func (m *MockLLM) PredictCalls() int {
	return int(m.predicts.Load())
}

// ListCalls returns the number of ListCandidateModels calls.
func (m *MockLLM) ListCalls() int {
	return int(m.lists.Load())
}
