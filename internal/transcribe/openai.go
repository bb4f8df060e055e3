package transcribe

import (
	"bytes"
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sjawhar/dictaite/internal/apperr"
)

const (
	DefaultModel  = "gpt-4o-transcribe"
	DefaultPrompt = "Transcribe the audio and return well-structured paragraphs. Use blank lines to separate paragraphs and fix simple punctuation errors."
)

type Option func(*openaiOptions)

type openaiOptions struct {
	baseURL string
	prompt  string
}

func WithBaseURL(url string) Option {
	return func(o *openaiOptions) { o.baseURL = url }
}

func WithPrompt(prompt string) Option {
	return func(o *openaiOptions) { o.prompt = prompt }
}

// OpenAI transcribes through the audio/transcriptions endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
	prompt string
}

func NewOpenAI(apiKey, model string, opts ...Option) (*OpenAI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, apperr.ErrMissingAPIKey
	}
	o := &openaiOptions{prompt: DefaultPrompt}
	for _, opt := range opts {
		opt(o)
	}
	if model == "" {
		model = DefaultModel
	}

	config := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		config.BaseURL = o.baseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(config), model: model, prompt: o.prompt}, nil
}

func (t *OpenAI) Transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: "audio.wav",
		Reader:   bytes.NewReader(wav),
		Prompt:   t.prompt,
		Language: languageHint(language),
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", apperr.Upstream(apperr.KindTranscription, err)
	}
	return FormatStructured(resp.Text), nil
}
