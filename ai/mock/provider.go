// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package mock

import (
	"context"

	"github.com/poiesic/gentable/ai"
	"github.com/poiesic/gentable/core"
)

// MockProvider is a test double for ai.Provider.
// It aggregates mock LLM and embedder instances.
type MockProvider struct {
	*MockLLM
	*MockEmbedder

	// RerankFunc is called by Rerank if set.
	// If nil, scores by dot product of normalized mock embeddings.
	RerankFunc func(ctx context.Context, model, query string, docs []string, creds core.Credentials) ([]float32, error)
}

var _ ai.Provider = (*MockProvider)(nil)

// NewMockProvider creates a mock provider with default mock services.
// Note: Returns the concrete type so tests can reach the embedded mocks.
func NewMockProvider(models ...string) *MockProvider {
	return &MockProvider{
		MockLLM:      NewMockLLM(models...),
		MockEmbedder: NewMockEmbedder(),
	}
}

// Rerank scores documents against the query.
func (p *MockProvider) Rerank(ctx context.Context, model, query string, docs []string, creds core.Credentials) ([]float32, error) {
	if p.RerankFunc != nil {
		return p.RerankFunc(ctx, model, query, docs, creds)
	}
	q := core.NormalizeVector(DeterministicVector(query, p.Dimension))
	scores := make([]float32, len(docs))
	for i, doc := range docs {
		d := core.NormalizeVector(DeterministicVector(doc, p.Dimension))
		for j := range q {
			scores[i] += q[j] * d[j]
		}
	}
	return scores, nil
}

// Close is a no-op for mock provider.
func (p *MockProvider) Close() error {
	return nil
}
