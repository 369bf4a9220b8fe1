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


package ai

import (
	"context"

	"github.com/poiesic/gentable/core"
)

// Capability is something a model can do.
type Capability string

const (
	CapabilityChat   Capability = "chat"
	CapabilityEmbed  Capability = "embed"
	CapabilityRerank Capability = "rerank"
)

// SamplingParams tunes one generation call. Nil fields use the provider
// default.
type SamplingParams struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   int
}

// ModelInfo describes a model offered by a provider.
type ModelInfo struct {
	// ID is the provider-qualified model id, e.g. "openai/gpt-4o-mini".
	ID           string
	Capabilities []Capability
}

// Has reports whether the model offers every capability in caps.
func (m ModelInfo) Has(caps ...Capability) bool {
	for _, want := range caps {
		found := false
		for _, c := range m.Capabilities {
			if c == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// LLM generates text.
type LLM interface {
	// ListCandidateModels returns usable models offering caps, with preferred
	// first when it qualifies. Only models whose provider has a credential
	// are returned.
	ListCandidateModels(ctx context.Context, preferred string, caps []Capability, creds core.Credentials) ([]string, error)

	// Predict returns the completion of a conversation.
	Predict(ctx context.Context, model string, messages []core.Message, params SamplingParams, creds core.Credentials) (string, error)
}

// Embedder computes vector embeddings.
type Embedder interface {
	// Embed returns one vector per text, in input order.
	Embed(ctx context.Context, texts []string, model string, creds core.Credentials) ([][]float32, error)
}

// Reranker scores documents against a query.
type Reranker interface {
	// Rerank returns one relevance score per document, in input order.
	// Larger is more relevant.
	Rerank(ctx context.Context, model, query string, docs []string, creds core.Credentials) ([]float32, error)
}

// Provider aggregates the AI collaborators.
type Provider interface {
	LLM
	Embedder
	Reranker

	// Close releases resources held by the provider.
	Close() error
}

// Backend talks to one provider's API. Model names passed to a backend have
// the provider prefix removed.
type Backend interface {
	// Name returns the provider prefix the backend serves.
	Name() string

	// Chat returns the completion of a conversation.
	Chat(ctx context.Context, model string, messages []core.Message, params SamplingParams, apiKey string) (string, error)

	// Embed returns one vector per text.
	Embed(ctx context.Context, model string, texts []string, apiKey string) ([][]float32, error)

	// Models lists models the provider offers.
	Models(ctx context.Context, apiKey string) ([]ModelInfo, error)
}
