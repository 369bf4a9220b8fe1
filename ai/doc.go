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


// Package ai defines the model collaborators used by gentable.
//
// This package defines interfaces for text generation, embeddings and
// reranking. The orchestration packages depend on these abstractions rather
// than on provider clients.
//
// # Design Principles
//
// The package is designed around four interfaces:
//
//   - LLM: lists candidate chat models and generates completions
//   - Embedder: generates vector embeddings from text
//   - Reranker: scores documents against a query
//   - Provider: aggregates the three for convenient wiring
//
// Every call takes a core.Credentials map. Model ids carry a provider prefix
// ("openai/gpt-4o-mini", "anthropic/claude-3-5-haiku-latest"); the Router
// picks the Backend registered for that prefix and the key for that provider
// from the map. A missing key fails only the call that needed it, with
// core.ErrMissingCredential.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible APIs (OpenAI, Ollama, vLLM) via langchaingo
//   - ai/anthropic: Anthropic Messages API
//   - ai/mock: test doubles for unit testing without external dependencies
//
// # Usage Example
//
//	cfg := ai.DefaultConfig()
//	router, err := ai.NewRouter(cfg,
//	    ai.WithBackend(openai.New(core.ProviderOpenAI, cfg.OpenAIHost)),
//	    ai.WithBackend(anthropic.New([]string{"claude-3-5-haiku-latest"})),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer router.Close()
//
//	creds := core.Credentials{core.ProviderOpenAI: os.Getenv("OPENAI_API_KEY")}
//	vectors, err := router.Embed(ctx, []string{"Hello world"}, cfg.EmbeddingModel, creds)
//
//	// Testing usage with mocks
//	provider := mock.NewMockProvider("openai/gpt-4o-mini")
//	vectors, err := provider.Embed(ctx, []string{"test text"}, "openai/any", nil)
package ai
