// Package synth turns speech-synthesis responses into playable clips.
package synth

import (
	"encoding/base64"
	"log/slog"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sjawhar/dictaite/internal/apperr"
	"github.com/sjawhar/dictaite/internal/audio"
)

const (
	DefaultSampleRate = 24000
	DefaultChannels   = 1

	dataURLMarker = "base64,"
)

var (
	audioKeys    = map[string]bool{"audio": true, "b64_json": true, "audio_data": true, "audio_base64": true, "audio_content": true}
	rateKeys     = map[string]bool{"sample_rate": true, "sampling_rate": true}
	channelKeys  = map[string]bool{"channels": true, "num_channels": true}
	mimeKeys     = map[string]bool{"mime_type": true, "content_type": true, "format": true, "audio_format": true}
	rawPCMFormat = []string{"pcm", "l16", "s16le", "linear16"}
)

// payload is everything collected from one walk of the response tree.
type payload struct {
	fragments []string
	rate      int
	channels  int
	mime      string
}

// Assemble decodes every base64 audio fragment found in a JSON payload and
// concatenates them into one 16-bit PCM WAV.
func Assemble(data []byte) ([]byte, error) {
	pcm, err := assemble(data)
	if err != nil {
		return nil, err
	}
	out, err := audio.EncodePCM16WAV(pcm)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSynthesis, "encode assembled audio", err)
	}
	return out, nil
}

// AssembleClip is Assemble followed by a decode into a Clip.
func AssembleClip(data []byte) (*audio.Clip, error) {
	wav, err := Assemble(data)
	if err != nil {
		return nil, err
	}
	return audio.DecodeClip(wav)
}

func assemble(data []byte) (audio.PCM16, error) {
	if !gjson.ValidBytes(data) {
		return audio.PCM16{}, apperr.Synthesisf("TTS response is not valid JSON")
	}

	var p payload
	collect(gjson.ParseBytes(data), &p)
	if len(p.fragments) == 0 {
		return audio.PCM16{}, apperr.Synthesisf("No audio content in TTS response")
	}

	rate, channels := p.rate, p.channels
	skipGeneral := declaresRawPCM(p.mime)

	var samples []int16
	for i, frag := range p.fragments {
		raw, ok := decodeFragment(frag)
		if !ok {
			slog.Debug("synth: skipping undecodable fragment", "index", i)
			continue
		}
		pcm, err := fragmentPCM(raw, rate, channels, skipGeneral)
		if err != nil {
			slog.Debug("synth: skipping fragment", "index", i, "error", err)
			continue
		}
		if (rate != 0 && pcm.SampleRate != rate) || (channels != 0 && pcm.Channels != channels) {
			slog.Debug("synth: dropping fragment with mismatched format",
				"index", i,
				"sample_rate", pcm.SampleRate,
				"channels", pcm.Channels,
				"expected_sample_rate", rate,
				"expected_channels", channels,
			)
			continue
		}
		if rate == 0 {
			rate = pcm.SampleRate
		}
		if channels == 0 {
			channels = pcm.Channels
		}
		samples = append(samples, pcm.Samples...)
	}

	if len(samples) == 0 {
		return audio.PCM16{}, apperr.Synthesisf("TTS response did not contain playable audio")
	}
	if rate == 0 {
		rate = DefaultSampleRate
	}
	if channels == 0 {
		channels = DefaultChannels
	}
	samples = samples[:len(samples)-len(samples)%channels]
	return audio.PCM16{Samples: samples, SampleRate: rate, Channels: channels}, nil
}

// collect walks v in document order. Each object's own fields are inspected
// before its children, so the shallowest hint on a path wins.
func collect(v gjson.Result, p *payload) {
	switch {
	case v.IsObject():
		v.ForEach(func(key, val gjson.Result) bool {
			inspectField(key.String(), val, p)
			return true
		})
		v.ForEach(func(_, val gjson.Result) bool {
			collect(val, p)
			return true
		})
	case v.IsArray():
		v.ForEach(func(_, val gjson.Result) bool {
			collect(val, p)
			return true
		})
	}
}

func inspectField(key string, val gjson.Result, p *payload) {
	key = strings.ToLower(key)
	switch {
	case audioKeys[key]:
		if val.Type == gjson.String {
			p.fragments = append(p.fragments, val.Str)
		} else if key == "audio" && val.IsObject() {
			// {"audio": {"data": "..."}} as returned by chat completions.
			if d := val.Get("data"); d.Type == gjson.String {
				p.fragments = append(p.fragments, d.Str)
			}
		}
	case rateKeys[key]:
		if p.rate == 0 {
			p.rate = positiveInt(val)
		}
	case channelKeys[key]:
		if p.channels == 0 {
			p.channels = positiveInt(val)
		}
	case mimeKeys[key]:
		if p.mime == "" && val.Type == gjson.String {
			p.mime = val.Str
		}
	}
}

func positiveInt(v gjson.Result) int {
	var n int64
	switch v.Type {
	case gjson.Number:
		n = v.Int()
	case gjson.String:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 32)
		if err != nil {
			return 0
		}
		n = parsed
	default:
		return 0
	}
	if n <= 0 || n > 1<<31-1 {
		return 0
	}
	return int(n)
}

func decodeFragment(s string) ([]byte, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	if idx := strings.Index(s, dataURLMarker); idx >= 0 {
		s = s[idx+len(dataURLMarker):]
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return raw, true
}

// fragmentPCM tries WAV, then the general decoder, then raw little-endian PCM16.
func fragmentPCM(raw []byte, rate, channels int, skipGeneral bool) (audio.PCM16, error) {
	if audio.LooksLikeWAV(raw) {
		return audio.DecodeWAVPCM16(raw)
	}
	if !skipGeneral {
		if pcm, err := audio.DecodeStream(raw); err == nil {
			return pcm.ToPCM16(), nil
		}
	}
	return rawPCM16(raw, rate, channels)
}

func rawPCM16(raw []byte, rate, channels int) (audio.PCM16, error) {
	if rate == 0 {
		return audio.PCM16{}, apperr.Synthesisf("Missing sample rate for PCM audio chunk")
	}
	if channels == 0 {
		return audio.PCM16{}, apperr.Synthesisf("Missing channel count for PCM audio chunk")
	}
	samples, err := audio.PCM16BytesToSamples(raw)
	if err != nil {
		return audio.PCM16{}, apperr.Synthesisf("Odd byte length in PCM audio chunk")
	}
	return audio.PCM16{Samples: samples, SampleRate: rate, Channels: channels}, nil
}

func declaresRawPCM(mime string) bool {
	mime = strings.ToLower(mime)
	for _, f := range rawPCMFormat {
		if strings.Contains(mime, f) {
			return true
		}
	}
	return false
}
