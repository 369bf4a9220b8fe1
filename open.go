package gentable

import (
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/poiesic/gentable/ai"
	"github.com/poiesic/gentable/ai/anthropic"
	"github.com/poiesic/gentable/ai/openai"
	"github.com/poiesic/gentable/config"
	"github.com/poiesic/gentable/core"
	"github.com/poiesic/gentable/maintenance"
	"github.com/poiesic/gentable/storage/badger"
	"github.com/poiesic/gentable/tasks"
)

// drainTimeout bounds how long Close waits for background tasks.
const drainTimeout = 30 * time.Second

// Anthropic chat models offered by default.
var anthropicModels = []string{"claude-3-5-haiku-latest", "claude-sonnet-4-0", "claude-opus-4-1"}

// OpenAI-compatible endpoints of hosted providers.
var compatibleHosts = map[string]string{
	core.ProviderGroq:     "https://api.groq.com/openai/v1",
	core.ProviderTogether: "https://api.together.xyz/v1",
}

// Open builds a service from configuration: BadgerDB storage under
// cfg.DBDir, the provider router, a task pool and the configured maintenance
// locks. Close releases all of them.
func Open(cfg *config.Config, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := slog.Default()

	registry, err := badger.NewRegistry(badger.WithLogger(logger.With("component", "storage-registry")))
	if err != nil {
		return nil, err
	}
	closers := []func() error{registry.Close}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	aiCfg := cfg.Provider()
	backends := []ai.RouterOption{
		ai.WithBackend(openai.New(core.ProviderOpenAI, aiCfg.OpenAIHost)),
		ai.WithBackend(openai.New(core.ProviderOllama, aiCfg.OllamaHost)),
		ai.WithBackend(anthropic.New(anthropicModels)),
	}
	for name, host := range compatibleHosts {
		backends = append(backends, ai.WithBackend(openai.New(name, host)))
	}
	router, err := ai.NewRouter(aiCfg, backends...)
	if err != nil {
		cleanup()
		return nil, err
	}
	closers = append(closers, router.Close)

	var poolOpts []tasks.Option
	if cfg.TaskPoolSize > 0 {
		poolOpts = append(poolOpts, tasks.WithPoolSize(cfg.TaskPoolSize))
	}
	pool, err := tasks.NewPool(poolOpts...)
	if err != nil {
		cleanup()
		return nil, err
	}
	closers = append(closers, func() error { return pool.Release(drainTimeout) })

	maint := []maintenance.Option{
		maintenance.WithIntervals(cfg.ReindexPeriod, cfg.OptimizePeriod),
		maintenance.WithRetention(cfg.RemoveVersionOlderThan),
	}
	if cfg.Lock.Backend == config.LockRedis {
		client := redis.NewClient(&redis.Options{Addr: cfg.Lock.RedisAddr})
		closers = append(closers, client.Close)
		maint = append(maint, maintenance.WithLocks(
			maintenance.NewRedisLock(client, cfg.Lock.KeyPrefix+"periodic_reindex", cfg.Lock.TTL),
			maintenance.NewRedisLock(client, cfg.Lock.KeyPrefix+"periodic_optimization", cfg.Lock.TTL),
		))
	}

	base := []Option{
		WithBatchSizes(cfg.ConcurrentRowsBatchSize, cfg.ConcurrentColsBatchSize),
		WithReindexThreshold(cfg.ImmediateReindexMaxRows),
		WithDefaultCredentials(cfg.Credentials()),
		WithTitleModel(cfg.AI.ChatModel),
		WithMaintenance(maint...),
	}
	svc, err := NewService(cfg.DBDir, registry, router, pool, append(base, opts...)...)
	if err != nil {
		cleanup()
		return nil, err
	}

	// Drain tasks before closing what they use.
	for i := len(closers) - 1; i >= 0; i-- {
		svc.closers = append(svc.closers, closers[i])
	}
	return svc, nil
}
