// Package transcribe turns recorded WAV audio into formatted text.
package transcribe

import (
	"context"
	"fmt"
)

// AutoDetect is the language code that leaves detection to the provider.
const AutoDetect = "default"

type Transcriber interface {
	// Transcribe returns formatted text for wav. An empty language or
	// AutoDetect lets the provider detect it.
	Transcribe(ctx context.Context, wav []byte, language string) (string, error)
}

// New builds the transcriber for provider ("openai" or "deepgram").
func New(provider, apiKey, model string, opts ...Option) (Transcriber, error) {
	switch provider {
	case "", "openai":
		t, err := NewOpenAI(apiKey, model, opts...)
		if err != nil {
			return nil, err
		}
		return t, nil
	case "deepgram":
		t, err := NewDeepgram(apiKey, model)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown transcription provider %q: supported providers are openai, deepgram", provider)
	}
}

func languageHint(language string) string {
	if language == AutoDetect {
		return ""
	}
	return language
}
