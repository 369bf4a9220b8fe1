package openai

import (
	"context"
	"log/slog"
	"strings"

	gogpt "github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"github.com/poiesic/gentable/ai"
	"github.com/poiesic/gentable/core"
)

// Backend implements ai.Backend using an OpenAI-compatible endpoint.
type Backend struct {
	name    string
	baseURL string
	logger  *slog.Logger
}

var _ ai.Backend = (*Backend)(nil)

// New creates a backend serving the provider prefix name at baseURL.
func New(name, baseURL string) *Backend {
	return &Backend{
		name:    name,
		baseURL: baseURL,
		logger:  slog.Default().With("component", "openai-backend", "provider", name),
	}
}

// Name returns the provider prefix.
func (b *Backend) Name() string {
	return b.name
}

// Chat returns the completion of a conversation.
func (b *Backend) Chat(ctx context.Context, model string, messages []core.Message, params ai.SamplingParams, apiKey string) (string, error) {
	client, err := lcopenai.New(
		lcopenai.WithBaseURL(b.baseURL),
		lcopenai.WithToken(apiKey),
		lcopenai.WithModel(model),
	)
	if err != nil {
		return "", err
	}

	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.MessageContent{
			Role:  chatRole(m.Role),
			Parts: []llms.ContentPart{llms.TextPart(m.Content)},
		})
	}

	var opts []llms.CallOption
	if params.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*params.Temperature))
	}
	if params.TopP != nil {
		opts = append(opts, llms.WithTopP(*params.TopP))
	}
	if params.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(params.MaxTokens))
	}

	response, err := client.GenerateContent(ctx, content, opts...)
	if err != nil {
		b.logger.Error("failed to generate content", "model", model, "err", err)
		return "", err
	}
	if len(response.Choices) < 1 {
		return "", ai.ErrEmptyResponse
	}
	return response.Choices[0].Content, nil
}

// Embed returns one vector per text.
func (b *Backend) Embed(ctx context.Context, model string, texts []string, apiKey string) ([][]float32, error) {
	b.logger.Debug("generating embeddings", "model", model, "count", len(texts))

	client, err := lcopenai.New(
		lcopenai.WithBaseURL(b.baseURL),
		lcopenai.WithToken(apiKey),
		lcopenai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, err
	}
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		b.logger.Error("failed to generate embeddings", "model", model, "count", len(texts), "err", err)
		return nil, err
	}
	return vectors, nil
}

// Models lists the endpoint's models. Models whose id mentions "embed" are
// embedding models; the rest are chat models.
func (b *Backend) Models(ctx context.Context, apiKey string) ([]ai.ModelInfo, error) {
	cfg := gogpt.DefaultConfig(apiKey)
	cfg.BaseURL = b.baseURL
	client := gogpt.NewClientWithConfig(cfg)

	list, err := client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	models := make([]ai.ModelInfo, 0, len(list.Models))
	for _, m := range list.Models {
		models = append(models, ai.ModelInfo{
			ID:           b.name + "/" + m.ID,
			Capabilities: capabilitiesOf(m.ID),
		})
	}
	return models, nil
}

func capabilitiesOf(modelID string) []ai.Capability {
	if strings.Contains(strings.ToLower(modelID), "embed") {
		return []ai.Capability{ai.CapabilityEmbed, ai.CapabilityRerank}
	}
	return []ai.Capability{ai.CapabilityChat}
}

func chatRole(role string) llms.ChatMessageType {
	switch role {
	case core.RoleSystem:
		return llms.ChatMessageTypeSystem
	case core.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
