package synth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sjawhar/dictaite/internal/apperr"
	"github.com/sjawhar/dictaite/internal/audio"
)

const (
	DefaultModel          = "tts-1"
	DefaultResponseFormat = "mp3"
)

// Synthesizer renders text as speech in the given voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (*audio.Clip, error)
}

// Cache stores canonical WAV renditions keyed by voice and text.
type Cache interface {
	GetSpeech(ctx context.Context, voice, text string) ([]byte, bool, error)
	PutSpeech(ctx context.Context, voice, text string, wav []byte) error
}

type Option func(*OpenAI)

func WithBaseURL(url string) Option {
	return func(o *OpenAI) { o.baseURL = url }
}

func WithModel(model string) Option {
	return func(o *OpenAI) {
		if model != "" {
			o.model = model
		}
	}
}

func WithResponseFormat(format string) Option {
	return func(o *OpenAI) {
		if format != "" {
			o.format = format
		}
	}
}

func WithCache(c Cache) Option {
	return func(o *OpenAI) { o.cache = c }
}

// OpenAI synthesises speech through the audio/speech endpoint.
type OpenAI struct {
	client  *openai.Client
	baseURL string
	model   string
	format  string
	cache   Cache
}

func NewOpenAI(apiKey string, opts ...Option) (*OpenAI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, apperr.ErrMissingAPIKey
	}
	o := &OpenAI{model: DefaultModel, format: DefaultResponseFormat}
	for _, opt := range opts {
		opt(o)
	}

	config := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		config.BaseURL = o.baseURL
	}
	o.client = openai.NewClientWithConfig(config)
	return o, nil
}

func (o *OpenAI) Synthesize(ctx context.Context, text, voice string) (*audio.Clip, error) {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil, apperr.Synthesisf("Cannot generate speech for empty text")
	}

	if o.cache != nil {
		if wav, ok, err := o.cache.GetSpeech(ctx, voice, clean); err != nil {
			slog.Warn("synth: speech cache lookup failed", "voice", voice, "error", err)
		} else if ok {
			if clip, err := audio.DecodeClip(wav); err == nil {
				return clip, nil
			}
		}
	}

	body, contentType, err := o.request(ctx, clean, voice)
	if err != nil {
		return nil, err
	}

	var clip *audio.Clip
	if strings.Contains(strings.ToLower(contentType), "json") {
		clip, err = AssembleClip(body)
	} else {
		clip, err = audio.DecodeClip(body)
	}
	if err != nil {
		return nil, err
	}

	if o.cache != nil {
		wav, err := clip.Encode()
		if err == nil {
			err = o.cache.PutSpeech(ctx, voice, clean, wav)
		}
		if err != nil {
			slog.Warn("synth: speech cache store failed", "voice", voice, "error", err)
		}
	}
	return clip, nil
}

func (o *OpenAI) request(ctx context.Context, text, voice string) ([]byte, string, error) {
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormat(o.format),
	})
	if err != nil {
		return nil, "", apperr.Upstream(apperr.KindSynthesis, err)
	}
	defer resp.Close()

	body, err := io.ReadAll(resp)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindNetwork, "read speech response", err)
	}
	if len(body) == 0 {
		return nil, "", apperr.Synthesisf("empty speech response")
	}
	return body, resp.Header().Get("Content-Type"), nil
}

func (o *OpenAI) String() string {
	return fmt.Sprintf("openai-tts(%s, %s)", o.model, o.format)
}
