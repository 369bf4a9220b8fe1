// Package config loads gentable settings from an optional YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/poiesic/gentable/ai"
	"github.com/poiesic/gentable/core"
)

// Lock backends.
const (
	LockFile  = "file"
	LockRedis = "redis"
)

// Config holds every tunable of the service.
type Config struct {
	DBDir    string `yaml:"db_dir" env:"GENTABLE_DB_DIR" env-default:"db"`
	LogLevel string `yaml:"log_level" env:"GENTABLE_LOG_LEVEL" env-default:"info"`

	ReindexPeriod           time.Duration `yaml:"reindex_period" env:"GENTABLE_REINDEX_PERIOD" env-default:"60s"`
	ImmediateReindexMaxRows int           `yaml:"immediate_reindex_max_rows" env:"GENTABLE_IMMEDIATE_REINDEX_MAX_ROWS" env-default:"2000"`
	OptimizePeriod          time.Duration `yaml:"optimize_period" env:"GENTABLE_OPTIMIZE_PERIOD" env-default:"60s"`
	RemoveVersionOlderThan  time.Duration `yaml:"remove_version_older_than" env:"GENTABLE_REMOVE_VERSION_OLDER_THAN" env-default:"168h"`

	ConcurrentRowsBatchSize int `yaml:"concurrent_rows_batch_size" env:"GENTABLE_CONCURRENT_ROWS_BATCH_SIZE" env-default:"3"`
	ConcurrentColsBatchSize int `yaml:"concurrent_cols_batch_size" env:"GENTABLE_CONCURRENT_COLS_BATCH_SIZE" env-default:"5"`
	TaskPoolSize            int `yaml:"task_pool_size" env:"GENTABLE_TASK_POOL_SIZE" env-default:"0"` // 0 picks from the CPU count

	Lock LockConfig `yaml:"lock"`
	AI   AIConfig   `yaml:"ai"`
	Keys Keys       `yaml:"-"`
}

// LockConfig selects where maintenance locks live.
type LockConfig struct {
	Backend   string        `yaml:"backend" env:"GENTABLE_LOCK_BACKEND" env-default:"file"`
	RedisAddr string        `yaml:"redis_addr" env:"GENTABLE_REDIS_ADDR" env-default:"localhost:6379"`
	KeyPrefix string        `yaml:"key_prefix" env:"GENTABLE_LOCK_KEY_PREFIX" env-default:"gentable:"`
	TTL       time.Duration `yaml:"ttl" env:"GENTABLE_LOCK_TTL" env-default:"10m"`
}

// AIConfig holds provider endpoints and model defaults.
type AIConfig struct {
	OpenAIHost     string        `yaml:"openai_host" env:"GENTABLE_OPENAI_HOST" env-default:"https://api.openai.com/v1"`
	OllamaHost     string        `yaml:"ollama_host" env:"GENTABLE_OLLAMA_HOST" env-default:"http://localhost:11434/v1"`
	ChatModel      string        `yaml:"chat_model" env:"GENTABLE_CHAT_MODEL" env-default:"openai/gpt-4o-mini"`
	EmbeddingModel string        `yaml:"embedding_model" env:"GENTABLE_EMBEDDING_MODEL" env-default:"openai/text-embedding-3-small"`
	MaxAttempts    int           `yaml:"max_attempts" env:"GENTABLE_AI_MAX_ATTEMPTS" env-default:"3"`
	RetryDelay     time.Duration `yaml:"retry_delay" env:"GENTABLE_AI_RETRY_DELAY" env-default:"500ms"`
}

// Keys are server-side provider API keys. Secrets come from the environment
// only.
type Keys struct {
	OpenAI    string `env:"OPENAI_API_KEY"`
	Anthropic string `env:"ANTHROPIC_API_KEY"`
	Gemini    string `env:"GEMINI_API_KEY"`
	Cohere    string `env:"COHERE_API_KEY"`
	Groq      string `env:"GROQ_API_KEY"`
	Together  string `env:"TOGETHER_API_KEY"`
	Jina      string `env:"JINA_API_KEY"`
	Voyage    string `env:"VOYAGE_API_KEY"`
}

// Load reads path, when given, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.DBDir == "" {
		errs = append(errs, errors.New("db_dir is required"))
	}
	if c.ReindexPeriod <= 0 || c.OptimizePeriod <= 0 {
		errs = append(errs, errors.New("maintenance periods must be positive"))
	}
	if c.RemoveVersionOlderThan < 0 {
		errs = append(errs, errors.New("remove_version_older_than must not be negative"))
	}
	if c.ConcurrentRowsBatchSize < 1 || c.ConcurrentColsBatchSize < 1 {
		errs = append(errs, errors.New("concurrent batch sizes must be at least 1"))
	}
	if c.ImmediateReindexMaxRows < 0 {
		errs = append(errs, errors.New("immediate_reindex_max_rows must not be negative"))
	}
	switch c.Lock.Backend {
	case LockFile:
	case LockRedis:
		if c.Lock.RedisAddr == "" {
			errs = append(errs, errors.New("lock.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown lock backend %q", c.Lock.Backend))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Credentials returns the configured keys as a credential map.
func (c *Config) Credentials() core.Credentials {
	creds := core.Credentials{}
	set := func(provider, key string) {
		if key != "" {
			creds[provider] = key
		}
	}
	set(core.ProviderOpenAI, c.Keys.OpenAI)
	set(core.ProviderAnthropic, c.Keys.Anthropic)
	set(core.ProviderGemini, c.Keys.Gemini)
	set(core.ProviderCohere, c.Keys.Cohere)
	set(core.ProviderGroq, c.Keys.Groq)
	set(core.ProviderTogether, c.Keys.Together)
	set(core.ProviderJina, c.Keys.Jina)
	set(core.ProviderVoyage, c.Keys.Voyage)
	return creds
}

// Provider returns the settings of the AI router.
func (c *Config) Provider() *ai.Config {
	return ai.NewConfig(
		ai.WithOpenAIHost(c.AI.OpenAIHost),
		ai.WithOllamaHost(c.AI.OllamaHost),
		ai.WithChatModel(c.AI.ChatModel),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithRetry(c.AI.MaxAttempts, c.AI.RetryDelay),
	)
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}
