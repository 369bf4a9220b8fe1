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


// Package openai provides an ai.Backend for OpenAI-compatible APIs.
//
// Chat and embeddings go through langchaingo; model discovery uses the
// go-openai client's model listing. The same backend serves OpenAI itself
// and local OpenAI-compatible servers such as Ollama, registered under a
// different provider name.
//
// # Usage
//
//	cfg := ai.DefaultConfig()
//	router, err := ai.NewRouter(cfg,
//	    ai.WithBackend(openai.New(core.ProviderOpenAI, cfg.OpenAIHost)),
//	    ai.WithBackend(openai.New(core.ProviderOllama, cfg.OllamaHost)),
//	)
//
// API keys are supplied per call, so one backend serves every tenant.
package openai
