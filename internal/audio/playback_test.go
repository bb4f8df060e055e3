package audio

import (
	"errors"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/sjawhar/dictaite/internal/apperr"
)

type fakeSink struct {
	frames  int
	format  beep.Format
	stopped bool
	done    bool
}

func (s *fakeSink) Append(st beep.Streamer, f beep.Format) {
	s.format = f
	buf := make([][2]float64, 512)
	for {
		n, ok := st.Stream(buf)
		s.frames += n
		if !ok {
			return
		}
	}
}

func (s *fakeSink) Stop()       { s.stopped = true }
func (s *fakeSink) Empty() bool { return s.done || s.stopped }

type fakeOutput struct {
	sinks []*fakeSink
	err   error
}

func (o *fakeOutput) NewSink() (Sink, error) {
	if o.err != nil {
		return nil, o.err
	}
	s := &fakeSink{}
	o.sinks = append(o.sinks, s)
	return s, nil
}

func toneClip(t *testing.T, frames, rate int) *Clip {
	t.Helper()
	samples := make([]float32, frames)
	for i := range samples {
		samples[i] = 0.8
	}
	clip, err := NewClip(samples, rate, 1)
	if err != nil {
		t.Fatalf("NewClip failed: %v", err)
	}
	return clip
}

func TestPlayFeedsDecodedClipToSink(t *testing.T) {
	out := &fakeOutput{}
	p := NewPlayer(out)

	clip := toneClip(t, 24000, 24000)
	if err := p.Play(clip); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if len(out.sinks) != 1 {
		t.Fatalf("expected one sink, got %d", len(out.sinks))
	}
	sink := out.sinks[0]
	if sink.frames != 24000 || int(sink.format.SampleRate) != 24000 {
		t.Fatalf("unexpected sink contents: %d frames at %d", sink.frames, sink.format.SampleRate)
	}
	if !p.IsPlaying() || p.Duration() != time.Second {
		t.Fatalf("expected active 1s session, playing=%v duration=%v", p.IsPlaying(), p.Duration())
	}
}

func TestPlaySupersedesPreviousSession(t *testing.T) {
	out := &fakeOutput{}
	p := NewPlayer(out)

	if err := p.Play(toneClip(t, 1000, 8000)); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	second := toneClip(t, 4000, 8000)
	if err := p.Play(second); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if !out.sinks[0].stopped {
		t.Fatal("expected superseded sink to be silenced")
	}
	if out.sinks[1].stopped {
		t.Fatal("new sink must keep playing")
	}
	if p.Duration() != second.Duration() {
		t.Fatalf("expected duration of second clip, got %v", p.Duration())
	}
}

func TestRefreshClearsFinishedSession(t *testing.T) {
	out := &fakeOutput{}
	p := NewPlayer(out)
	if err := p.Play(toneClip(t, 800, 8000)); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	p.Refresh()
	if !p.IsPlaying() {
		t.Fatal("expected session to survive refresh while sink has audio")
	}

	out.sinks[0].done = true
	p.Refresh()
	if p.IsPlaying() {
		t.Fatal("expected refresh to clear drained session")
	}
	if p.Elapsed() != 0 || p.Duration() != 0 || p.Level() != 0 {
		t.Fatal("expected neutral readings after completion")
	}
}

func TestStopHaltsSink(t *testing.T) {
	out := &fakeOutput{}
	p := NewPlayer(out)
	if err := p.Play(toneClip(t, 800, 8000)); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	p.Stop()
	if !out.sinks[0].stopped || p.IsPlaying() {
		t.Fatal("expected Stop to halt and clear the session")
	}
	p.Stop()
}

func TestLevelFollowsPlaybackClock(t *testing.T) {
	out := &fakeOutput{}
	p := NewPlayer(out)
	base := time.Unix(1700000000, 0)
	now := base
	p.now = func() time.Time { return now }

	if err := p.Play(toneClip(t, 8000, 8000)); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	now = base.Add(500 * time.Millisecond)
	if p.Elapsed() != 500*time.Millisecond {
		t.Fatalf("expected 500ms elapsed, got %v", p.Elapsed())
	}
	if lvl := p.Level(); lvl < 0.79 || lvl > 0.81 {
		t.Fatalf("expected level near 0.8, got %v", lvl)
	}
}

func TestPlayErrors(t *testing.T) {
	p := NewPlayer(&fakeOutput{err: errors.New("no output device")})
	if err := p.Play(toneClip(t, 10, 8000)); !apperr.Is(err, apperr.KindAudio) {
		t.Fatalf("expected audio error, got %v", err)
	}
	if err := p.Play(nil); !apperr.Is(err, apperr.KindAudio) {
		t.Fatalf("expected audio error for nil clip, got %v", err)
	}
}
