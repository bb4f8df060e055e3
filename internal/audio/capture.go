package audio

import (
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sjawhar/dictaite/internal/apperr"
)

// TargetSampleRate is the rate the capture policy prefers.
const TargetSampleRate = 16000

// Backend exposes the platform's input devices.
type Backend interface {
	DefaultInputDevice() (InputDevice, error)
}

type InputDevice interface {
	Name() string
	SupportedConfigs() ([]StreamConfig, error)
	// OpenStream delivers interleaved float samples to onSamples from the
	// device's own thread. onSamples must not retain the slice.
	OpenStream(f Format, onSamples func([]float32)) (Stream, error)
}

// Stream is an open device stream. Close stops it; once Close returns no
// further callback runs.
type Stream interface {
	Start() error
	Close() error
}

// StreamConfig is one channel layout and the rates a device accepts for it.
type StreamConfig struct {
	Channels    int
	SampleRates []int
}

func (c StreamConfig) supports(rate int) bool { return slices.Contains(c.SampleRates, rate) }

func (c StreamConfig) maxRate() int {
	if len(c.SampleRates) == 0 {
		return 0
	}
	return slices.Max(c.SampleRates)
}

// Format is a negotiated capture format.
type Format struct {
	SampleRate int
	Channels   int
}

// SelectFormat applies the capture policy in priority order: mono at target,
// any layout at target, mono at its maximum rate, any layout at its maximum rate.
func SelectFormat(configs []StreamConfig, target int) (Format, bool) {
	steps := []struct {
		match func(StreamConfig) bool
		rate  func(StreamConfig) int
	}{
		{func(c StreamConfig) bool { return c.Channels == 1 && c.supports(target) }, func(StreamConfig) int { return target }},
		{func(c StreamConfig) bool { return c.Channels > 0 && c.supports(target) }, func(StreamConfig) int { return target }},
		{func(c StreamConfig) bool { return c.Channels == 1 && c.maxRate() > 0 }, StreamConfig.maxRate},
		{func(c StreamConfig) bool { return c.Channels > 0 && c.maxRate() > 0 }, StreamConfig.maxRate},
	}
	for _, step := range steps {
		for _, c := range configs {
			if step.match(c) {
				return Format{SampleRate: step.rate(c), Channels: c.Channels}, true
			}
		}
	}
	return Format{}, false
}

// captureBuffer is shared between the device callback and the stopping goroutine.
// The mutex covers append and drain only; the meter is a lock-free float.
type captureBuffer struct {
	mu      sync.Mutex
	samples []float32
	level   atomic.Uint32
}

func (b *captureBuffer) push(data []float32) {
	var peak float32
	for _, s := range data {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	b.level.Store(math.Float32bits(min(peak, 1)))

	b.mu.Lock()
	b.samples = append(b.samples, data...)
	b.mu.Unlock()
}

func (b *captureBuffer) drain() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.samples
	b.samples = nil
	return out
}

func (b *captureBuffer) currentLevel() float32 {
	return math.Float32frombits(b.level.Load())
}

type captureSession struct {
	stream  Stream
	buf     *captureBuffer
	format  Format
	started time.Time
}

// Capture records from the default input device, one session at a time.
type Capture struct {
	backend Backend
	target  int
	now     func() time.Time

	mu      sync.Mutex
	session *captureSession
}

func NewCapture(backend Backend, targetRate int) *Capture {
	if targetRate <= 0 {
		targetRate = TargetSampleRate
	}
	return &Capture{backend: backend, target: targetRate, now: time.Now}
}

// Start opens the default input device. It is a no-op while a session is open.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return nil
	}
	if c.backend == nil {
		return apperr.Audiof("no audio backend available")
	}

	dev, err := c.backend.DefaultInputDevice()
	if err != nil {
		return apperr.Wrap(apperr.KindAudio, "no input device available", err)
	}
	configs, err := dev.SupportedConfigs()
	if err != nil {
		return apperr.Wrap(apperr.KindAudio, "query input configs", err)
	}
	format, ok := SelectFormat(configs, c.target)
	if !ok {
		return apperr.Audiof("no usable input configuration on %s", dev.Name())
	}

	buf := &captureBuffer{}
	stream, err := dev.OpenStream(format, buf.push)
	if err != nil {
		return apperr.Wrap(apperr.KindAudio, "build input stream", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return apperr.Wrap(apperr.KindAudio, "start input stream", err)
	}

	slog.Info("capture: recording", "device", dev.Name(), "sample_rate", format.SampleRate, "channels", format.Channels)
	c.session = &captureSession{stream: stream, buf: buf, format: format, started: c.now()}
	return nil
}

// Stop closes the stream and then drains everything captured since Start. It
// returns a nil clip when nothing was captured or no session was open.
// The lock is held across Close so a concurrent Start cannot open a second
// stream while this one is still tearing down.
func (c *Capture) Stop() (*Clip, error) {
	c.mu.Lock()
	s := c.session
	c.session = nil
	if s != nil {
		if err := s.stream.Close(); err != nil {
			slog.Warn("capture: close input stream", "error", err)
		}
	}
	c.mu.Unlock()

	if s == nil {
		return nil, nil
	}

	samples := trimFrames(s.buf.drain(), s.format.Channels)
	if len(samples) == 0 {
		return nil, nil
	}
	return NewClip(samples, s.format.SampleRate, s.format.Channels)
}

func (c *Capture) IsRecording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// CurrentLevel is the peak of the most recent callback, or 0 when idle.
func (c *Capture) CurrentLevel() float32 {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return 0
	}
	return s.buf.currentLevel()
}

func (c *Capture) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return 0
	}
	return c.now().Sub(c.session.started)
}
