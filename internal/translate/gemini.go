package translate

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/sjawhar/dictaite/internal/apperr"
)

type geminiClient struct {
	models *genai.Models
	model  string
}

func newGeminiClient(apiKey, model string, opts *clientOptions) (*geminiClient, error) {
	cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if opts.baseURL != "" {
		cc.HTTPOptions.BaseURL = opts.baseURL
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiClient{models: client.Models, model: model}, nil
}

// geminiRequest maps a translation request onto a system instruction plus a
// single user turn.
func geminiRequest(req Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: req.Text}}}}
	cfg := &genai.GenerateContentConfig{}
	if req.Instructions != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.Instructions}}}
	}
	return contents, cfg
}

func (c *geminiClient) Complete(ctx context.Context, req Request) (string, error) {
	contents, cfg := geminiRequest(req)
	resp, err := c.models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", apperr.Wrap(apperr.KindTranslation, "gemini request", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}
