package anthropic

import (
	"context"
	"testing"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/poiesic/gentable/ai"
	"github.com/poiesic/gentable/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequest(t *testing.T) {
	temp := 0.5
	req := buildRequest("claude-3-5-haiku-latest", []core.Message{
		{Role: core.RoleSystem, Content: "be brief"},
		{Role: core.RoleUser, Content: "hi"},
		{Role: core.RoleAssistant, Content: "hello"},
		{Role: core.RoleUser, Content: "bye"},
	}, ai.SamplingParams{Temperature: &temp, MaxTokens: 50})

	assert.Equal(t, "be brief", req.System)
	assert.Equal(t, 50, req.MaxTokens)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.5, *req.Temperature, 1e-6)
	assert.Nil(t, req.TopP)
	require.Len(t, req.Messages, 3)
	assert.Equal(t, anthropic.RoleUser, req.Messages[0].Role)
	assert.Equal(t, anthropic.RoleAssistant, req.Messages[1].Role)
	assert.Equal(t, "bye", *req.Messages[2].Content[0].Text)
}

func TestBuildRequest_DefaultMaxTokens(t *testing.T) {
	req := buildRequest("m", nil, ai.SamplingParams{})
	assert.Equal(t, defaultMaxTokens, req.MaxTokens)
}

func TestExtractText(t *testing.T) {
	a, b := "Hello ", "world"
	resp := anthropic.MessagesResponse{Content: []anthropic.MessageContent{
		{Type: "text", Text: &a},
		{Type: "tool_use"},
		{Type: "text", Text: &b},
	}}
	assert.Equal(t, "Hello world", extractText(resp))
}

func TestBackend(t *testing.T) {
	b := New([]string{"claude-3-5-haiku-latest"})
	assert.Equal(t, core.ProviderAnthropic, b.Name())

	models, err := b.Models(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "anthropic/claude-3-5-haiku-latest", models[0].ID)

	_, err = b.Embed(context.Background(), "m", []string{"x"}, "key")
	assert.ErrorIs(t, err, ai.ErrUnsupported)
}
