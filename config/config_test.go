package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/gentable/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "db", cfg.DBDir)
	assert.Equal(t, 60*time.Second, cfg.ReindexPeriod)
	assert.Equal(t, 60*time.Second, cfg.OptimizePeriod)
	assert.Equal(t, 7*24*time.Hour, cfg.RemoveVersionOlderThan)
	assert.Equal(t, 2000, cfg.ImmediateReindexMaxRows)
	assert.Equal(t, 3, cfg.ConcurrentRowsBatchSize)
	assert.Equal(t, 5, cfg.ConcurrentColsBatchSize)
	assert.Equal(t, LockFile, cfg.Lock.Backend)
	assert.Equal(t, "openai/gpt-4o-mini", cfg.AI.ChatModel)
	assert.Equal(t, 3, cfg.AI.MaxAttempts)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gentable.yaml")
	yaml := `db_dir: /var/lib/gentable
reindex_period: 5m
concurrent_rows_batch_size: 8
lock:
  backend: redis
  redis_addr: redis:6379
ai:
  chat_model: anthropic/claude-3-5-haiku-latest
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	clearProviderKeys(t)
	t.Setenv("GENTABLE_CONCURRENT_COLS_BATCH_SIZE", "2")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/gentable", cfg.DBDir)
	assert.Equal(t, 5*time.Minute, cfg.ReindexPeriod)
	assert.Equal(t, 8, cfg.ConcurrentRowsBatchSize)
	assert.Equal(t, 2, cfg.ConcurrentColsBatchSize)
	assert.Equal(t, LockRedis, cfg.Lock.Backend)
	assert.Equal(t, "redis:6379", cfg.Lock.RedisAddr)
	assert.Equal(t, "anthropic/claude-3-5-haiku-latest", cfg.AI.ChatModel)
	assert.Equal(t, core.Credentials{core.ProviderOpenAI: "sk-test"}, cfg.Credentials())
}

// clearProviderKeys blanks provider keys inherited from the environment.
func clearProviderKeys(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "COHERE_API_KEY",
		"GROQ_API_KEY", "TOGETHER_API_KEY", "JINA_API_KEY", "VOYAGE_API_KEY",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := valid()
	cfg.Lock.Backend = "zookeeper"
	assert.ErrorContains(t, cfg.Validate(), "unknown lock backend")

	cfg = valid()
	cfg.ConcurrentColsBatchSize = 0
	assert.ErrorContains(t, cfg.Validate(), "batch sizes")

	cfg = valid()
	cfg.ReindexPeriod = 0
	assert.ErrorContains(t, cfg.Validate(), "periods")

	cfg = valid()
	cfg.LogLevel = "loud"
	assert.ErrorContains(t, cfg.Validate(), "unknown log level")
}

func TestProvider(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.AI.OllamaHost = "http://gpu-box:11434"

	p := cfg.Provider()
	require.NoError(t, p.Validate())
	assert.Equal(t, "http://gpu-box:11434/v1", p.OllamaHost)
	assert.Equal(t, cfg.AI.EmbeddingModel, p.EmbeddingModel)
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
}
