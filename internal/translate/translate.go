// Package translate rewrites transcripts into a target language through a
// chat-completion backend (OpenAI, Anthropic or Gemini).
package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sjawhar/dictaite/internal/apperr"
	"github.com/sjawhar/dictaite/internal/transcribe"
)

const DefaultModel = "openai/gpt-5-mini-2025-08-07"

const instructionTemplate = "Translate the following text to %s. Format the translation into clear paragraphs separated by blank lines. Return only the translated text."

// Request is one translation job as a backend receives it.
type Request struct {
	Instructions string
	Text         string
}

// Prompt folds the instructions and text into a single user turn.
func (r Request) Prompt() string {
	return r.Instructions + "\n\n" + r.Text
}

// Completer is one chat-completion backend. An empty reply is returned as "".
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type Option func(*clientOptions)

type clientOptions struct {
	baseURL string
}

func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

// ParseModel splits "provider/model".
func ParseModel(model string) (provider, modelName string, err error) {
	parts := strings.SplitN(model, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid model format %q: expected provider/model_name", model)
	}
	return parts[0], parts[1], nil
}

func NewCompleter(provider, apiKey, model string, opts ...Option) (Completer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, apperr.ErrMissingAPIKey
	}
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	switch provider {
	case "openai":
		return newOpenAIClient(apiKey, model, o), nil
	case "anthropic":
		return newAnthropicClient(apiKey, model, o), nil
	case "gemini":
		c, err := newGeminiClient(apiKey, model, o)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown translation provider %q: supported providers are openai, anthropic, gemini", provider)
	}
}

// Translator retries transient failures with the backoff below.
type Translator struct {
	client  Completer
	backoff []time.Duration
	sleep   func(time.Duration)
}

func New(client Completer) *Translator {
	return &Translator{
		client:  client,
		backoff: []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second},
		sleep:   time.Sleep,
	}
}

// Translate returns "" without a request when text is blank.
func (t *Translator) Translate(ctx context.Context, text, target string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	if t.client == nil {
		return "", apperr.ErrMissingAPIKey
	}

	req := Request{Instructions: fmt.Sprintf(instructionTemplate, target), Text: text}

	var lastErr error
	for attempt := range t.backoff {
		result, err := t.client.Complete(ctx, req)
		if err == nil {
			return transcribe.FormatStructured(result), nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt < len(t.backoff)-1 {
			slog.Warn("translate: retrying", "attempt", attempt+1, "error", err)
			t.sleep(t.backoff[attempt])
		}
	}

	if apperr.KindOf(lastErr) != apperr.KindMessage {
		return "", lastErr
	}
	return "", apperr.Wrap(apperr.KindTranslation, "", lastErr)
}
