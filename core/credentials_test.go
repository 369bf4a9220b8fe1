package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderOf(t *testing.T) {
	assert.Equal(t, "openai", ProviderOf("openai/gpt-4o-mini"))
	assert.Equal(t, "anthropic", ProviderOf("Anthropic/claude-3-haiku"))
	assert.Equal(t, "openai", ProviderOf("gpt-4o"))
	assert.Equal(t, "gpt-4o", ModelName("openai/gpt-4o"))
	assert.Equal(t, "gpt-4o", ModelName("gpt-4o"))
}

func TestCredentialsLookup(t *testing.T) {
	creds := Credentials{"openai": "sk-1", "cohere": ""}

	key, ok := creds.For("openai/text-embedding-3-small")
	assert.True(t, ok)
	assert.Equal(t, "sk-1", key)

	_, ok = creds.Lookup("cohere")
	assert.False(t, ok, "empty key counts as missing")

	_, ok = creds.For("anthropic/claude-3-haiku")
	assert.False(t, ok)

	_, ok = creds.For("ollama/llama3")
	assert.True(t, ok, "local providers need no key")
}

func TestCredentialsMerge(t *testing.T) {
	defaults := Credentials{"openai": "server", "anthropic": "server-a"}
	merged := Credentials{"openai": "request", "groq": ""}.Merge(defaults)

	assert.Equal(t, "request", merged["openai"])
	assert.Equal(t, "server-a", merged["anthropic"])
	_, has := merged["groq"]
	assert.False(t, has)
}
