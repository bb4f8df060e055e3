package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/tidwall/gjson"

	"github.com/sjawhar/dictaite/internal/apperr"
)

const DefaultDeepgramModel = "nova-3"

// Deepgram transcribes with Deepgram's pre-recorded REST API.
type Deepgram struct {
	rest  *api.Client
	model string
}

func NewDeepgram(apiKey, model string) (*Deepgram, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, apperr.ErrMissingAPIKey
	}
	if model == "" {
		model = DefaultDeepgramModel
	}
	c := client.NewREST(apiKey, &interfaces.ClientOptions{})
	return &Deepgram{rest: api.New(c), model: model}, nil
}

func (d *Deepgram) Transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	opts := &interfaces.PreRecordedTranscriptionOptions{
		Model:       d.model,
		Punctuate:   true,
		Paragraphs:  true,
		SmartFormat: true,
	}
	if lang := languageHint(language); lang != "" {
		opts.Language = lang
	} else {
		opts.DetectLanguage = true
	}

	resp, err := d.rest.FromStream(ctx, bytes.NewReader(wav), opts)
	if err != nil {
		return "", apperr.Wrap(apperr.KindTranscription, "deepgram request", err)
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return "", apperr.Wrap(apperr.KindTranscription, "read deepgram response", err)
	}
	return transcriptFromJSON(raw)
}

// transcriptFromJSON prefers the paragraph-formatted transcript and falls back
// to the plain one.
func transcriptFromJSON(raw []byte) (string, error) {
	alt := gjson.GetBytes(raw, "results.channels.0.alternatives.0")
	if !alt.Exists() {
		return "", apperr.Transcriptionf("deepgram response has no alternatives")
	}
	text := alt.Get("paragraphs.transcript").String()
	if strings.TrimSpace(text) == "" {
		text = alt.Get("transcript").String()
	}
	return FormatStructured(text), nil
}
