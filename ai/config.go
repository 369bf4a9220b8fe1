package ai

import (
	"errors"
	"strings"
	"time"
)

// Config holds the settings for provider backends and model selection.
type Config struct {
	// OpenAIHost is the base URL for the OpenAI API.
	// Example: "https://api.openai.com/v1"
	OpenAIHost string

	// OllamaHost is the base URL for a local OpenAI-compatible server.
	// Example: "http://localhost:11434/v1"
	OllamaHost string

	// ChatModel is the preferred provider-qualified chat model.
	// Example: "openai/gpt-4o-mini"
	ChatModel string

	// EmbeddingModel is the default provider-qualified embedding model.
	// Example: "openai/text-embedding-3-small"
	EmbeddingModel string

	// MaxAttempts is the number of tries per provider call.
	// Default: 3
	MaxAttempts int

	// RetryDelay is the base backoff between tries.
	// Default: 500ms
	RetryDelay time.Duration
}

// ConfigOption is a functional option for configuring Config.
type ConfigOption func(*Config)

// WithOpenAIHost sets the OpenAI base URL.
func WithOpenAIHost(host string) ConfigOption {
	return func(c *Config) {
		c.OpenAIHost = host
	}
}

// WithOllamaHost sets the local server base URL.
func WithOllamaHost(host string) ConfigOption {
	return func(c *Config) {
		c.OllamaHost = host
	}
}

// WithChatModel sets the preferred chat model.
func WithChatModel(model string) ConfigOption {
	return func(c *Config) {
		c.ChatModel = model
	}
}

// WithEmbeddingModel sets the default embedding model.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithRetry sets the attempt count and base delay of provider calls.
func WithRetry(attempts int, delay time.Duration) ConfigOption {
	return func(c *Config) {
		c.MaxAttempts = attempts
		c.RetryDelay = delay
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		OpenAIHost:     "https://api.openai.com/v1",
		OllamaHost:     "http://localhost:11434/v1",
		ChatModel:      "openai/gpt-4o-mini",
		EmbeddingModel: "openai/text-embedding-3-small",
		MaxAttempts:    3,
		RetryDelay:     500 * time.Millisecond,
	}
}

// NewConfig creates a Config by applying options over the defaults.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures hosts end with /v1 for OpenAI-compatible APIs.
func (c *Config) Normalize() {
	c.OpenAIHost = withV1(c.OpenAIHost)
	c.OllamaHost = withV1(c.OllamaHost)
}

func withV1(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate normalizes then checks the configuration.
func (c *Config) Validate() error {
	c.Normalize()

	if c.OpenAIHost == "" {
		return errors.New("ai config: OpenAIHost is required")
	}
	if c.ChatModel == "" {
		return errors.New("ai config: ChatModel is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.MaxAttempts < 1 {
		return errors.New("ai config: MaxAttempts must be at least 1")
	}
	if c.RetryDelay < 0 {
		return errors.New("ai config: RetryDelay must not be negative")
	}
	return nil
}
