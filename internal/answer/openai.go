package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/opexhub/ledgerfind/internal/models"
)

const systemPrompt = "You summarize expense search results for a personal finance app. " +
	"Answer in one or two short sentences. Mention amounts in rupees. " +
	"Only use the records provided; never invent records."

// ChatFormatter asks an OpenAI-compatible chat model to phrase the answer.
// Any failure falls back to the plain formatter so search responses always
// carry an answer.
type ChatFormatter struct {
	client   *openai.Client
	model    string
	fallback Formatter
}

// ChatConfig configures a ChatFormatter.
type ChatConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewChatFormatter creates a formatter backed by the configured chat model.
func NewChatFormatter(cfg ChatConfig) *ChatFormatter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &ChatFormatter{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    model,
		fallback: NewPlainFormatter(),
	}
}

// Format renders the response through the chat model, falling back to plain
// text on any error.
func (f *ChatFormatter) Format(ctx context.Context, resp *models.SearchResponse) (string, error) {
	if resp == nil || len(resp.Results) == 0 {
		return f.fallback.Format(ctx, resp)
	}

	payload, err := json.Marshal(resp.Results)
	if err != nil {
		return f.fallback.Format(ctx, resp)
	}

	chat, err := f.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: f.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Query: %s\nResults: %s",
					resp.Query, string(payload)),
			},
		},
		MaxTokens:   200,
		Temperature: 0.2,
	})
	if err != nil {
		return f.fallback.Format(ctx, resp)
	}
	if len(chat.Choices) == 0 {
		return f.fallback.Format(ctx, resp)
	}

	text := strings.TrimSpace(chat.Choices[0].Message.Content)
	if text == "" {
		return f.fallback.Format(ctx, resp)
	}
	return text, nil
}
