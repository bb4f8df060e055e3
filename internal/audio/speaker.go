package audio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

const (
	speakerLatency    = 100 * time.Millisecond
	resampleQuality   = 4
	DefaultOutputRate = 48000
)

// SpeakerOutput plays through the default output device via beep's speaker.
// The device is opened once at a fixed rate; every sink is resampled to it.
type SpeakerOutput struct {
	rate beep.SampleRate

	once    sync.Once
	initErr error
}

func NewSpeakerOutput(rate int) *SpeakerOutput {
	if rate <= 0 {
		rate = DefaultOutputRate
	}
	return &SpeakerOutput{rate: beep.SampleRate(rate)}
}

func (o *SpeakerOutput) NewSink() (Sink, error) {
	o.once.Do(func() {
		o.initErr = speaker.Init(o.rate, o.rate.N(speakerLatency))
	})
	if o.initErr != nil {
		return nil, fmt.Errorf("initialise speaker: %w", o.initErr)
	}
	return &speakerSink{rate: o.rate}, nil
}

type speakerSink struct {
	rate    beep.SampleRate
	pending atomic.Int32

	mu    sync.Mutex
	ctrls []*beep.Ctrl
}

func (s *speakerSink) Append(st beep.Streamer, f beep.Format) {
	if f.SampleRate != s.rate {
		st = beep.Resample(resampleQuality, f.SampleRate, s.rate, st)
	}

	s.pending.Add(1)
	ctrl := &beep.Ctrl{Streamer: beep.Seq(st, beep.Callback(func() {
		s.pending.Add(-1)
	}))}

	s.mu.Lock()
	s.ctrls = append(s.ctrls, ctrl)
	s.mu.Unlock()

	speaker.Play(ctrl)
}

func (s *speakerSink) Stop() {
	s.mu.Lock()
	ctrls := s.ctrls
	s.ctrls = nil
	s.mu.Unlock()

	speaker.Lock()
	for _, c := range ctrls {
		c.Streamer = nil
	}
	speaker.Unlock()
	s.pending.Store(0)
}

func (s *speakerSink) Empty() bool { return s.pending.Load() <= 0 }
