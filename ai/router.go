package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/poiesic/gentable/core"
	"github.com/poiesic/gentable/retry"
)

// catalogTTL is how long discovered model lists are reused.
const catalogTTL = 10 * time.Minute

// Router implements Provider by dispatching each call to the backend of the
// model's provider prefix, with the key from the request's credential map.
type Router struct {
	backends map[string]Backend
	catalog  []ModelInfo
	attempts int
	delay    time.Duration
	logger   *slog.Logger

	mu         sync.Mutex
	discovered map[string]discovery
	now        func() time.Time
}

type discovery struct {
	models []ModelInfo
	at     time.Time
}

var _ Provider = (*Router)(nil)

// RouterOption configures a Router.
type RouterOption func(*Router) error

// WithBackend registers a provider backend.
func WithBackend(b Backend) RouterOption {
	return func(r *Router) error {
		if b == nil {
			return errors.New("ai router: nil backend")
		}
		r.backends[b.Name()] = b
		return nil
	}
}

// WithCatalog adds statically known models to the catalog.
func WithCatalog(models ...ModelInfo) RouterOption {
	return func(r *Router) error {
		r.catalog = append(r.catalog, models...)
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRouter creates a router using the retry settings of config.
func NewRouter(config *Config, opts ...RouterOption) (*Router, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	r := &Router{
		backends:   make(map[string]Backend),
		attempts:   config.MaxAttempts,
		delay:      config.RetryDelay,
		logger:     slog.Default().With("component", "ai-router"),
		discovered: make(map[string]discovery),
		now:        time.Now,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ListCandidateModels returns models offering caps whose provider has a
// credential, preferred first.
func (r *Router) ListCandidateModels(ctx context.Context, preferred string, caps []Capability, creds core.Credentials) ([]string, error) {
	var candidates []string
	seen := make(map[string]bool)
	add := func(m ModelInfo) {
		if seen[m.ID] || !m.Has(caps...) {
			return
		}
		if _, ok := creds.For(m.ID); !ok {
			return
		}
		if _, ok := r.backends[core.ProviderOf(m.ID)]; !ok {
			return
		}
		seen[m.ID] = true
		candidates = append(candidates, m.ID)
	}

	for _, m := range r.catalog {
		add(m)
	}
	for _, name := range r.backendNames() {
		key, ok := creds.Lookup(name)
		if !ok {
			continue
		}
		for _, m := range r.discover(ctx, name, key) {
			add(m)
		}
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: capabilities %v", ErrNoModelAvailable, caps)
	}
	if i := slices.Index(candidates, preferred); i > 0 {
		candidates = append([]string{preferred}, slices.Delete(candidates, i, i+1)...)
	}
	return candidates, nil
}

// Predict returns the completion of a conversation.
func (r *Router) Predict(ctx context.Context, model string, messages []core.Message, params SamplingParams, creds core.Credentials) (string, error) {
	backend, key, err := r.route(model, creds)
	if err != nil {
		return "", err
	}
	var out string
	err = retry.WithBackoffIf(ctx, func() error {
		var err error
		out, err = backend.Chat(ctx, core.ModelName(model), messages, params, key)
		return err
	}, r.attempts, r.delay, retryable)
	if err != nil {
		r.logger.Warn("chat completion failed", "model", model, "err", err)
		return "", err
	}
	return out, nil
}

// Embed returns one vector per text.
func (r *Router) Embed(ctx context.Context, texts []string, model string, creds core.Credentials) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	backend, key, err := r.route(model, creds)
	if err != nil {
		return nil, err
	}
	var vectors [][]float32
	err = retry.WithBackoffIf(ctx, func() error {
		var err error
		vectors, err = backend.Embed(ctx, core.ModelName(model), texts, key)
		return err
	}, r.attempts, r.delay, retryable)
	if err != nil {
		r.logger.Warn("embedding failed", "model", model, "count", len(texts), "err", err)
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: %d texts, %d vectors", ErrEmbeddingCount, len(texts), len(vectors))
	}
	return vectors, nil
}

// Rerank scores documents by cosine similarity of their embeddings with the
// query embedding under model.
func (r *Router) Rerank(ctx context.Context, model, query string, docs []string, creds core.Credentials) ([]float32, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	vectors, err := r.Embed(ctx, append([]string{query}, docs...), model, creds)
	if err != nil {
		return nil, err
	}
	q := core.NormalizeVector(vectors[0])
	scores := make([]float32, len(docs))
	for i, v := range vectors[1:] {
		d := core.NormalizeVector(v)
		var dot float32
		for j := range min(len(q), len(d)) {
			dot += q[j] * d[j]
		}
		scores[i] = dot
	}
	return scores, nil
}

// Close is a no-op; backends hold no resources.
func (r *Router) Close() error {
	r.logger.Debug("closing ai router")
	return nil
}

func (r *Router) route(model string, creds core.Credentials) (Backend, string, error) {
	provider := core.ProviderOf(model)
	backend, ok := r.backends[provider]
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	key, ok := creds.Lookup(provider)
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", core.ErrMissingCredential, provider)
	}
	return backend, key, nil
}

func (r *Router) backendNames() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// discover returns the models a provider lists, cached for catalogTTL.
// Discovery failures yield no models.
func (r *Router) discover(ctx context.Context, provider, key string) []ModelInfo {
	r.mu.Lock()
	cached, ok := r.discovered[provider]
	r.mu.Unlock()
	if ok && r.now().Sub(cached.at) < catalogTTL {
		return cached.models
	}

	models, err := r.backends[provider].Models(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrUnsupported) {
			r.logger.Debug("model discovery failed", "provider", provider, "err", err)
		}
		return nil
	}
	r.mu.Lock()
	r.discovered[provider] = discovery{models: models, at: r.now()}
	r.mu.Unlock()
	return models
}

func retryable(err error) bool {
	return !errors.Is(err, ErrUnsupported) &&
		!errors.Is(err, core.ErrMissingCredential) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}
