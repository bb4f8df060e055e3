package translate

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sjawhar/dictaite/internal/apperr"
)

// Long transcripts translate to roughly their own length.
const anthropicMaxTokens = 8192

type anthropicClient struct {
	messages anthropic.MessageService
	model    anthropic.Model
}

func newAnthropicClient(apiKey, model string, opts *clientOptions) *anthropicClient {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if opts.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.baseURL))
	}
	client := anthropic.NewClient(reqOpts...)
	return &anthropicClient{messages: client.Messages, model: anthropic.Model(model)}
}

// Complete sends the instructions as the system prompt and the transcript as
// the only user turn.
func (c *anthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: anthropicMaxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.Text))},
	}
	if req.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.Instructions}}
	}

	msg, err := c.messages.New(ctx, params)
	if err != nil {
		return "", apperr.Wrap(apperr.KindTranslation, "anthropic request", err)
	}

	parts := make([]string, 0, len(msg.Content))
	for _, block := range msg.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "")), nil
}
