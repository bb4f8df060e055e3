package audio

import (
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const transcodeRate = 24000

// ffmpegPath is overridden in tests.
var ffmpegPath = "ffmpeg"

// decodeWithFFmpeg transcodes data to mono 16-bit PCM through an ffmpeg
// subprocess. It fails cleanly when ffmpeg is not installed.
func decodeWithFFmpeg(data []byte) (PCM, error) {
	bin, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return PCM{}, fmt.Errorf("locate ffmpeg: %w", err)
	}

	cmd := exec.Command(
		bin,
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le",
		"-ac", "1",
		"-ar", strconv.Itoa(transcodeRate),
		"pipe:1",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return PCM{}, fmt.Errorf("run ffmpeg: %w: %s", err, msg)
		}
		return PCM{}, fmt.Errorf("run ffmpeg: %w", err)
	}

	samples, err := PCM16BytesToSamples(stdout.Bytes())
	if err != nil {
		return PCM{}, fmt.Errorf("read ffmpeg output: %w", err)
	}
	if len(samples) == 0 {
		return PCM{}, fmt.Errorf("ffmpeg produced no samples")
	}
	return PCM16{Samples: samples, SampleRate: transcodeRate, Channels: 1}.ToFloat(), nil
}
