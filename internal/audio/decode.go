package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	beepwav "github.com/gopxl/beep/v2/wav"
	"github.com/gopxl/beep/v2/vorbis"
)

const drainChunk = 4096

// ErrUnsupportedFormat is returned when no decoder in the chain accepts the payload.
var ErrUnsupportedFormat = errors.New("no decoder accepted the payload")

type decoder struct {
	name  string
	sniff func([]byte) bool
	open  func([]byte) (PCM, error)
}

// decoders is tried in order; the first success wins.
var decoders = []decoder{
	{name: "wav", sniff: LooksLikeWAV, open: DecodeWAV},
	{name: "beep-wav", sniff: LooksLikeWAV, open: beepDecoder(func(r io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
		return beepwav.Decode(r)
	})},
	{name: "flac", sniff: hasPrefix("fLaC"), open: beepDecoder(func(r io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
		return flac.Decode(r)
	})},
	{name: "vorbis", sniff: hasPrefix("OggS"), open: beepDecoder(vorbis.Decode)},
	{name: "mp3", sniff: looksLikeMP3, open: beepDecoder(mp3.Decode)},
	{name: "ffmpeg", sniff: needsTranscode, open: decodeWithFFmpeg},
}

// DecodeStream runs the general decode chain: WAV, FLAC, Ogg Vorbis, MP3, and
// finally an ffmpeg transcode for containers with no native decoder.
func DecodeStream(data []byte) (PCM, error) {
	if len(data) == 0 {
		return PCM{}, fmt.Errorf("decode audio: %w", ErrUnsupportedFormat)
	}

	var errs []error
	for _, d := range decoders {
		if !d.sniff(data) {
			continue
		}
		pcm, err := d.open(data)
		if err == nil {
			return pcm, nil
		}
		slog.Debug("audio: decoder rejected payload", "decoder", d.name, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", d.name, err))
	}

	if len(errs) == 0 {
		return PCM{}, fmt.Errorf("decode audio: %w", ErrUnsupportedFormat)
	}
	return PCM{}, fmt.Errorf("decode audio: %w: %w", ErrUnsupportedFormat, errors.Join(errs...))
}

func beepDecoder(open func(io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error)) func([]byte) (PCM, error) {
	return func(data []byte) (PCM, error) {
		st, format, err := open(io.NopCloser(bytes.NewReader(data)))
		if err != nil {
			return PCM{}, err
		}
		defer st.Close()
		return drain(st, format)
	}
}

// drain reads a beep streamer to completion. Beep always yields stereo frames,
// so mono sources keep only the left channel.
func drain(st beep.Streamer, format beep.Format) (PCM, error) {
	channels := min(max(format.NumChannels, 1), 2)
	rate := int(format.SampleRate)
	if rate <= 0 {
		return PCM{}, fmt.Errorf("invalid sample rate %d", rate)
	}

	buf := make([][2]float64, drainChunk)
	var out []float32
	for {
		n, ok := st.Stream(buf)
		for _, frame := range buf[:n] {
			out = append(out, float32(frame[0]))
			if channels == 2 {
				out = append(out, float32(frame[1]))
			}
		}
		if !ok {
			break
		}
	}
	if err := st.Err(); err != nil {
		return PCM{}, fmt.Errorf("stream samples: %w", err)
	}
	if len(out) == 0 {
		return PCM{}, errors.New("stream produced no samples")
	}
	return PCM{Samples: out, SampleRate: rate, Channels: channels}, nil
}

func hasPrefix(magic string) func([]byte) bool {
	return func(data []byte) bool { return bytes.HasPrefix(data, []byte(magic)) }
}

func looksLikeMP3(data []byte) bool {
	if bytes.HasPrefix(data, []byte("ID3")) {
		return true
	}
	// MPEG frame sync with a defined layer.
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 && data[1]&0x06 != 0
}

// needsTranscode matches containers the native chain cannot read.
func needsTranscode(data []byte) bool {
	switch {
	case len(data) >= 8 && bytes.Equal(data[4:8], []byte("ftyp")): // MP4 / M4A
		return true
	case bytes.HasPrefix(data, []byte{0x1A, 0x45, 0xDF, 0xA3}): // Matroska / WebM
		return true
	case bytes.HasPrefix(data, []byte("OggS")): // Opus in Ogg
		return true
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xF6 == 0xF0: // ADTS AAC
		return true
	}
	return false
}

// pcmStreamer plays interleaved float samples through beep.
type pcmStreamer struct {
	pcm PCM
	pos int
}

func newPCMStreamer(p PCM) *pcmStreamer { return &pcmStreamer{pcm: p} }

func (s *pcmStreamer) Stream(samples [][2]float64) (int, bool) {
	ch := s.pcm.Channels
	frames := len(s.pcm.Samples) / ch
	if s.pos >= frames {
		return 0, false
	}

	n := min(len(samples), frames-s.pos)
	for i := range n {
		base := (s.pos + i) * ch
		left := float64(s.pcm.Samples[base])
		right := left
		if ch > 1 {
			right = float64(s.pcm.Samples[base+1])
		}
		samples[i] = [2]float64{left, right}
	}
	s.pos += n
	return n, true
}

func (s *pcmStreamer) Err() error { return nil }

func (s *pcmStreamer) Len() int { return len(s.pcm.Samples) / s.pcm.Channels }

func (s *pcmStreamer) Position() int { return s.pos }

func (s *pcmStreamer) Seek(p int) error {
	if p < 0 || p > s.Len() {
		return fmt.Errorf("seek %d out of range [0, %d]", p, s.Len())
	}
	s.pos = p
	return nil
}

func (p PCM) format() beep.Format {
	return beep.Format{SampleRate: beep.SampleRate(p.SampleRate), NumChannels: min(p.Channels, 2), Precision: 2}
}
