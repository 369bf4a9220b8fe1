package core

import "strings"

// Known model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderCohere    = "cohere"
	ProviderGroq      = "groq"
	ProviderTogether  = "together"
	ProviderJina      = "jina"
	ProviderVoyage    = "voyage"
	ProviderOllama    = "ollama"
)

// keyless providers are served by local endpoints without authentication.
var keyless = map[string]bool{ProviderOllama: true}

// Credentials maps a provider name to its API key.
type Credentials map[string]string

// ProviderOf returns the provider prefix of a model id such as
// "openai/gpt-4o-mini". Models without a prefix belong to OpenAI.
func ProviderOf(model string) string {
	if i := strings.IndexByte(model, '/'); i > 0 {
		return strings.ToLower(model[:i])
	}
	return ProviderOpenAI
}

// ModelName strips the provider prefix from a model id.
func ModelName(model string) string {
	if i := strings.IndexByte(model, '/'); i > 0 {
		return model[i+1:]
	}
	return model
}

// Lookup returns the key for a provider. Keyless providers always succeed.
func (c Credentials) Lookup(provider string) (string, bool) {
	if keyless[provider] {
		return "none", true
	}
	key, ok := c[provider]
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

// For returns the key for the provider of model.
func (c Credentials) For(model string) (string, bool) {
	return c.Lookup(ProviderOf(model))
}

// Merge returns a new map with c's keys laid over defaults.
func (c Credentials) Merge(defaults Credentials) Credentials {
	out := make(Credentials, len(c)+len(defaults))
	for k, v := range defaults {
		if v != "" {
			out[k] = v
		}
	}
	for k, v := range c {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
