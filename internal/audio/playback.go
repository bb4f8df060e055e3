package audio

import (
	"sync"
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/sjawhar/dictaite/internal/apperr"
)

// Output creates sinks on the platform's default output device.
type Output interface {
	NewSink() (Sink, error)
}

// Sink queues streamers for playback.
type Sink interface {
	Append(s beep.Streamer, f beep.Format)
	Stop()
	Empty() bool
}

type playbackSession struct {
	sink    Sink
	clip    *Clip
	started time.Time
}

// Player plays one clip at a time. Refresh must be polled to notice natural completion.
type Player struct {
	output Output
	now    func() time.Time

	mu      sync.Mutex
	session *playbackSession
}

func NewPlayer(output Output) *Player {
	return &Player{output: output, now: time.Now}
}

// Play starts clip on a fresh sink, replacing any current session.
func (p *Player) Play(clip *Clip) error {
	if clip == nil {
		return apperr.Audiof("nothing to play")
	}
	if p.output == nil {
		return apperr.Audiof("no audio output available")
	}

	data, err := clip.Encode()
	if err != nil {
		return err
	}
	pcm, err := DecodeStream(data)
	if err != nil {
		return apperr.Wrap(apperr.KindAudio, "decode playback audio", err)
	}
	sink, err := p.output.NewSink()
	if err != nil {
		return apperr.Wrap(apperr.KindAudio, "open output stream", err)
	}
	sink.Append(newPCMStreamer(pcm), pcm.format())

	p.mu.Lock()
	prev := p.session
	p.session = &playbackSession{sink: sink, clip: clip, started: p.now()}
	p.mu.Unlock()

	// The superseded sink has no other owner; silence it so two clips never overlap.
	if prev != nil {
		prev.sink.Stop()
	}
	return nil
}

func (p *Player) Stop() {
	p.mu.Lock()
	s := p.session
	p.session = nil
	p.mu.Unlock()

	if s != nil {
		s.sink.Stop()
	}
}

// Refresh clears the session once its sink has drained.
func (p *Player) Refresh() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session != nil && p.session.sink.Empty() {
		p.session = nil
	}
}

func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session != nil
}

func (p *Player) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return 0
	}
	return p.now().Sub(p.session.started)
}

func (p *Player) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return 0
	}
	return p.session.clip.Duration()
}

func (p *Player) Level() float32 {
	p.mu.Lock()
	s := p.session
	p.mu.Unlock()
	if s == nil {
		return 0
	}
	return s.clip.LevelAt(p.now().Sub(s.started))
}
