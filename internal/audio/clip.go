// Package audio owns in-memory clips, the WAV container, the general decode
// chain, and the capture and playback engines built on top of them.
package audio

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sjawhar/dictaite/internal/apperr"
)

const levelWindow = 120 * time.Millisecond

// Clip is immutable decoded audio. Any transformation produces a new Clip;
// only the encoded form is filled in lazily.
type Clip struct {
	samples    []float32
	sampleRate int
	channels   int

	mu      sync.Mutex
	encoded []byte
}

// NewClip takes ownership of samples. The sample count must be a whole number of frames.
func NewClip(samples []float32, sampleRate, channels int) (*Clip, error) {
	if sampleRate <= 0 {
		return nil, apperr.Audiof("invalid sample rate %d", sampleRate)
	}
	if channels <= 0 {
		return nil, apperr.Audiof("invalid channel count %d", channels)
	}
	if len(samples)%channels != 0 {
		return nil, apperr.Audiof("%d samples is not a whole number of %d-channel frames", len(samples), channels)
	}
	return &Clip{samples: samples, sampleRate: sampleRate, channels: channels}, nil
}

func newClipFromPCM(p PCM) (*Clip, error) {
	return NewClip(p.Samples, p.SampleRate, p.Channels)
}

// DecodeClip parses data as WAV and falls back to the general decoder. A clip
// decoded from WAV keeps the original bytes as its encoded form.
func DecodeClip(data []byte) (*Clip, error) {
	pcm, wavErr := DecodeWAV(data)
	if wavErr == nil {
		c, err := newClipFromPCM(pcm)
		if err != nil {
			return nil, err
		}
		c.encoded = data
		return c, nil
	}

	pcm, err := DecodeStream(data)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindAudio, "unsupported audio format", err)
	}
	return newClipFromPCM(pcm)
}

// Encode renders the clip as 16-bit PCM WAV. The result is computed once and reused.
func (c *Clip) Encode() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.encoded != nil {
		return c.encoded, nil
	}
	data, err := EncodeWAV(c.samples, c.sampleRate, c.channels)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindAudio, "encode wav", err)
	}
	c.encoded = data
	return data, nil
}

func (c *Clip) SampleRate() int { return c.sampleRate }
func (c *Clip) Channels() int   { return c.channels }

// Samples returns the interleaved samples. Callers must not modify them.
func (c *Clip) Samples() []float32 { return c.samples }

func (c *Clip) Frames() int { return len(c.samples) / c.channels }

func (c *Clip) Duration() time.Duration {
	return time.Duration(float64(c.Frames()) / float64(c.sampleRate) * float64(time.Second))
}

// LevelAt returns the peak absolute amplitude in a 120ms window centred on t.
func (c *Clip) LevelAt(t time.Duration) float32 {
	total := c.Frames()
	if total == 0 {
		return 0
	}

	window := max(1, int(float64(c.sampleRate)*levelWindow.Seconds()))
	center := int(t.Seconds() * float64(c.sampleRate))
	start := min(max(center-window/2, 0), total)
	end := min(start+window, total)
	if start >= end {
		return 0
	}

	var peak float32
	for _, s := range c.samples[start*c.channels : end*c.channels] {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	return min(peak, 1)
}

func (c *Clip) String() string {
	return fmt.Sprintf("clip(%d frames, %d Hz, %d ch)", c.Frames(), c.sampleRate, c.channels)
}
