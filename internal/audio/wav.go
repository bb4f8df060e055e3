package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE

	pcmBitDepth = 16
)

var errNotWAV = errors.New("missing RIFF/WAVE markers")

// PCM is interleaved float audio in [-1, 1].
type PCM struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// PCM16 is interleaved signed 16-bit audio.
type PCM16 struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// LooksLikeWAV reports whether data starts with the RIFF/WAVE container markers.
func LooksLikeWAV(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE"))
}

// DecodeWAV parses an uncompressed WAV container. 8/16/24/32-bit integer and
// 32-bit float payloads are supported.
func DecodeWAV(data []byte) (PCM, error) {
	raw, err := readWAV(data)
	if err != nil {
		return PCM{}, err
	}

	samples := make([]float32, len(raw.data))
	switch {
	case raw.format == wavFormatFloat && raw.bitDepth == 32:
		for i, v := range raw.data {
			samples[i] = math.Float32frombits(uint32(int32(v)))
		}
	case raw.bitDepth == 8:
		// 8-bit WAV is unsigned; recentre before scaling by the signed range.
		for i, v := range raw.data {
			samples[i] = float32(v-128) / math.MaxInt8
		}
	case raw.bitDepth == 16:
		for i, v := range raw.data {
			samples[i] = float32(v) / math.MaxInt16
		}
	case raw.bitDepth == 24 || raw.bitDepth == 32:
		for i, v := range raw.data {
			samples[i] = float32(float64(v) / math.MaxInt32)
		}
	default:
		return PCM{}, fmt.Errorf("unsupported PCM bit depth: %d", raw.bitDepth)
	}

	return PCM{
		Samples:    trimFrames(samples, raw.channels),
		SampleRate: raw.sampleRate,
		Channels:   raw.channels,
	}, nil
}

// DecodeWAVPCM16 is DecodeWAV for callers that stay in the 16-bit domain:
// 16-bit payloads pass through untouched, everything else is requantised.
func DecodeWAVPCM16(data []byte) (PCM16, error) {
	raw, err := readWAV(data)
	if err != nil {
		return PCM16{}, err
	}
	if raw.bitDepth == 16 && raw.format != wavFormatFloat {
		out := make([]int16, len(raw.data))
		for i, v := range raw.data {
			out[i] = int16(v)
		}
		return PCM16{Samples: trimFrames(out, raw.channels), SampleRate: raw.sampleRate, Channels: raw.channels}, nil
	}

	pcm, err := DecodeWAV(data)
	if err != nil {
		return PCM16{}, err
	}
	return pcm.ToPCM16(), nil
}

type rawWAV struct {
	data       []int
	sampleRate int
	channels   int
	bitDepth   int
	format     int
}

func readWAV(data []byte) (rawWAV, error) {
	if !LooksLikeWAV(data) {
		return rawWAV{}, errNotWAV
	}

	// IsValidFile rejects zero-length payloads, so read the header directly.
	d := wav.NewDecoder(bytes.NewReader(data))
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return rawWAV{}, fmt.Errorf("parse wav header: %w", err)
	}

	channels := int(d.NumChans)
	if channels < 1 || d.SampleRate == 0 || d.BitDepth == 0 {
		return rawWAV{}, fmt.Errorf("invalid wav format: %d channels at %d Hz", channels, d.SampleRate)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil && !errors.Is(err, io.EOF) {
		return rawWAV{}, fmt.Errorf("read wav samples: %w", err)
	}
	if buf == nil {
		buf = &goaudio.IntBuffer{}
	}

	format := int(d.WavAudioFormat)
	if format == wavFormatExtensible {
		sub, ok := extensibleSubFormat(data)
		if !ok {
			return rawWAV{}, errors.New("wav extensible header has no subformat")
		}
		if sub != wavFormatPCM && sub != wavFormatFloat {
			return rawWAV{}, fmt.Errorf("unsupported wav subformat 0x%04x", sub)
		}
		format = sub
	}

	return rawWAV{
		data:       buf.Data,
		sampleRate: int(d.SampleRate),
		channels:   channels,
		bitDepth:   int(d.BitDepth),
		format:     format,
	}, nil
}

// extensibleSubFormat returns the format code at the head of the subformat
// GUID in a WAVE_FORMAT_EXTENSIBLE fmt chunk. go-audio does not expose it.
func extensibleSubFormat(data []byte) (int, bool) {
	const subFormatOffset = 24
	for pos := 12; pos+8 <= len(data); {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > len(data) {
			return 0, false
		}
		if id == "fmt " {
			if size < subFormatOffset+2 {
				return 0, false
			}
			return int(binary.LittleEndian.Uint16(data[body+subFormatOffset:])), true
		}
		pos = body + size + size%2
	}
	return 0, false
}

// EncodeWAV renders float samples as a 16-bit PCM WAV container, clamping to
// [-1, 1] before scaling.
func EncodeWAV(samples []float32, sampleRate, channels int) ([]byte, error) {
	return EncodePCM16WAV(PCM{Samples: samples, SampleRate: sampleRate, Channels: channels}.ToPCM16())
}

// EncodePCM16WAV renders 16-bit samples as a WAV container.
func EncodePCM16WAV(p PCM16) ([]byte, error) {
	if p.SampleRate <= 0 || p.Channels <= 0 {
		return nil, fmt.Errorf("invalid wav format: %d channels at %d Hz", p.Channels, p.SampleRate)
	}

	data := make([]int, len(p.Samples))
	for i, s := range p.Samples {
		data[i] = int(s)
	}

	out := &seekBuffer{}
	enc := wav.NewEncoder(out, p.SampleRate, pcmBitDepth, p.Channels, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: p.Channels, SampleRate: p.SampleRate},
		Data:           data,
		SourceBitDepth: pcmBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("write wav samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalise wav payload: %w", err)
	}
	return out.Bytes(), nil
}

// ToPCM16 quantises with truncation toward zero.
func (p PCM) ToPCM16() PCM16 {
	out := make([]int16, len(p.Samples))
	for i, s := range p.Samples {
		out[i] = FloatToInt16(s)
	}
	return PCM16{Samples: out, SampleRate: p.SampleRate, Channels: p.Channels}
}

// ToFloat scales 16-bit samples into [-1, 1].
func (p PCM16) ToFloat() PCM {
	out := make([]float32, len(p.Samples))
	for i, s := range p.Samples {
		out[i] = float32(s) / 32767
	}
	return PCM{Samples: out, SampleRate: p.SampleRate, Channels: p.Channels}
}

// FloatToInt16 clamps s to [-1, 1] and scales it by the positive int16 range.
func FloatToInt16(s float32) int16 {
	switch {
	case s > 1:
		s = 1
	case s < -1:
		s = -1
	case s != s: // NaN
		s = 0
	}
	return int16(s * math.MaxInt16)
}

// PCM16BytesToSamples reads little-endian 16-bit samples. A trailing odd byte is an error.
func PCM16BytesToSamples(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("odd byte length %d in 16-bit PCM", len(data))
	}
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
	}
	return out, nil
}

func trimFrames[T any](samples []T, channels int) []T {
	if channels <= 1 {
		return samples
	}
	return samples[:len(samples)-len(samples)%channels]
}
