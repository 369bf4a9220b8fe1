// Package anthropic provides an ai.Backend for the Anthropic Messages API.
package anthropic

import (
	"context"
	"log/slog"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/poiesic/gentable/ai"
	"github.com/poiesic/gentable/core"
)

// defaultMaxTokens applies when a call sets no limit; the API requires one.
const defaultMaxTokens = 1024

// Backend implements ai.Backend for Anthropic chat models. Anthropic has no
// embedding endpoint, so Embed returns ai.ErrUnsupported.
type Backend struct {
	opts   []anthropic.ClientOption
	models []ai.ModelInfo
	logger *slog.Logger
}

var _ ai.Backend = (*Backend)(nil)

// New creates a backend. Models lists the chat models the backend advertises.
func New(models []string, opts ...anthropic.ClientOption) *Backend {
	infos := make([]ai.ModelInfo, 0, len(models))
	for _, m := range models {
		infos = append(infos, ai.ModelInfo{
			ID:           core.ProviderAnthropic + "/" + core.ModelName(m),
			Capabilities: []ai.Capability{ai.CapabilityChat},
		})
	}
	return &Backend{
		opts:   opts,
		models: infos,
		logger: slog.Default().With("component", "anthropic-backend"),
	}
}

// Name returns the provider prefix.
func (b *Backend) Name() string {
	return core.ProviderAnthropic
}

// Chat returns the completion of a conversation. System messages are joined
// into the request's system prompt.
func (b *Backend) Chat(ctx context.Context, model string, messages []core.Message, params ai.SamplingParams, apiKey string) (string, error) {
	client := anthropic.NewClient(apiKey, b.opts...)

	req := buildRequest(model, messages, params)
	resp, err := client.CreateMessages(ctx, req)
	if err != nil {
		b.logger.Error("failed to create message", "model", model, "err", err)
		return "", err
	}

	text := extractText(resp)
	if text == "" {
		return "", ai.ErrEmptyResponse
	}
	return text, nil
}

// Embed is not supported.
func (b *Backend) Embed(ctx context.Context, model string, texts []string, apiKey string) ([][]float32, error) {
	return nil, ai.ErrUnsupported
}

// Models returns the configured model list.
func (b *Backend) Models(ctx context.Context, apiKey string) ([]ai.ModelInfo, error) {
	return b.models, nil
}

func buildRequest(model string, messages []core.Message, params ai.SamplingParams) anthropic.MessagesRequest {
	var system []string
	msgs := make([]anthropic.Message, 0, len(messages))
	for _, m := range messages {
		text := m.Content
		switch m.Role {
		case core.RoleSystem:
			system = append(system, text)
		case core.RoleAssistant:
			msgs = append(msgs, anthropic.Message{Role: anthropic.RoleAssistant, Content: []anthropic.MessageContent{
				{Type: "text", Text: &text},
			}})
		default:
			msgs = append(msgs, anthropic.Message{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &text},
			}})
		}
	}

	req := anthropic.MessagesRequest{
		Model:     anthropic.Model(model),
		MaxTokens: defaultMaxTokens,
		System:    strings.Join(system, "\n\n"),
		Messages:  msgs,
	}
	if params.MaxTokens > 0 {
		req.MaxTokens = params.MaxTokens
	}
	if params.Temperature != nil {
		t := float32(*params.Temperature)
		req.Temperature = &t
	}
	if params.TopP != nil {
		p := float32(*params.TopP)
		req.TopP = &p
	}
	return req
}

func extractText(resp anthropic.MessagesResponse) string {
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			sb.WriteString(*block.Text)
		}
	}
	return sb.String()
}
