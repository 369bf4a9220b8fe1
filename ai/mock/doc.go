// Package mock provides test doubles for the ai package interfaces.
//
// Each mock records calls and lets tests inject behavior through function
// fields:
//
//	llm := mock.NewMockLLM()
//	llm.PredictFunc = func(ctx context.Context, model string, msgs []core.Message,
//	    params ai.SamplingParams, creds core.Credentials) (string, error) {
//	    return "My Title", nil
//	}
//
//	// Check call counts
//	count := llm.PredictCalls()
//
// # Default Behavior
//
// The mock implementations provide sensible defaults:
//
//   - MockLLM: echoes the last message and lists the models it was given
//   - MockEmbedder: returns deterministic, unnormalized vectors based on a
//     text hash
//   - MockProvider: aggregates the two and reranks by embedding similarity
//
// Mocks are safe for concurrent use.
package mock
