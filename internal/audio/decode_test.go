package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

// wavFixture builds a WAV container by hand so non-16-bit layouts can be exercised.
func wavFixture(format, bitDepth, channels, rate int, payload []byte) []byte {
	blockAlign := channels * bitDepth / 8
	out := make([]byte, 0, 44+len(payload))
	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(36+len(payload)))
	out = append(out, "WAVE"...)
	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, 16)
	out = binary.LittleEndian.AppendUint16(out, uint16(format))
	out = binary.LittleEndian.AppendUint16(out, uint16(channels))
	out = binary.LittleEndian.AppendUint32(out, uint32(rate))
	out = binary.LittleEndian.AppendUint32(out, uint32(rate*blockAlign))
	out = binary.LittleEndian.AppendUint16(out, uint16(blockAlign))
	out = binary.LittleEndian.AppendUint16(out, uint16(bitDepth))
	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(payload)))
	return append(out, payload...)
}

// wavExtensibleFixture builds a WAVE_FORMAT_EXTENSIBLE container whose
// subformat GUID starts with subFormat.
func wavExtensibleFixture(subFormat, bitDepth, channels, rate int, payload []byte) []byte {
	blockAlign := channels * bitDepth / 8
	out := make([]byte, 0, 68+len(payload))
	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(60+len(payload)))
	out = append(out, "WAVE"...)
	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, 40)
	out = binary.LittleEndian.AppendUint16(out, wavFormatExtensible)
	out = binary.LittleEndian.AppendUint16(out, uint16(channels))
	out = binary.LittleEndian.AppendUint32(out, uint32(rate))
	out = binary.LittleEndian.AppendUint32(out, uint32(rate*blockAlign))
	out = binary.LittleEndian.AppendUint16(out, uint16(blockAlign))
	out = binary.LittleEndian.AppendUint16(out, uint16(bitDepth))
	out = binary.LittleEndian.AppendUint16(out, 22)
	out = binary.LittleEndian.AppendUint16(out, uint16(bitDepth))
	out = binary.LittleEndian.AppendUint32(out, 0x4)
	out = binary.LittleEndian.AppendUint16(out, uint16(subFormat))
	out = append(out, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71)
	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(payload)))
	return append(out, payload...)
}

func TestDecodeWAVBitDepths(t *testing.T) {
	cases := []struct {
		name    string
		format  int
		depth   int
		payload []byte
		want    []float32
	}{
		{
			name:    "8-bit unsigned",
			format:  wavFormatPCM,
			depth:   8,
			payload: []byte{128, 255, 1},
			want:    []float32{0, 1, -1},
		},
		{
			name:    "16-bit",
			format:  wavFormatPCM,
			depth:   16,
			payload: binary.LittleEndian.AppendUint16(binary.LittleEndian.AppendUint16(nil, 32767), uint16(0x8001)),
			want:    []float32{1, -1},
		},
		{
			name:    "24-bit",
			format:  wavFormatPCM,
			depth:   24,
			payload: []byte{0xFF, 0xFF, 0x7F, 0x01, 0x00, 0x80},
			want:    []float32{float32(0x7FFFFF / float64(math.MaxInt32)), float32(-0x7FFFFF / float64(math.MaxInt32))},
		},
		{
			name:    "32-bit integer",
			format:  wavFormatPCM,
			depth:   32,
			payload: binary.LittleEndian.AppendUint32(nil, math.MaxInt32),
			want:    []float32{1},
		},
		{
			name:    "32-bit float",
			format:  wavFormatFloat,
			depth:   32,
			payload: binary.LittleEndian.AppendUint32(binary.LittleEndian.AppendUint32(nil, math.Float32bits(0.25)), math.Float32bits(-0.75)),
			want:    []float32{0.25, -0.75},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pcm, err := DecodeWAV(wavFixture(tc.format, tc.depth, 1, 8000, tc.payload))
			if err != nil {
				t.Fatalf("DecodeWAV failed: %v", err)
			}
			if len(pcm.Samples) != len(tc.want) {
				t.Fatalf("expected %d samples, got %d", len(tc.want), len(pcm.Samples))
			}
			for i, s := range pcm.Samples {
				if math.Abs(float64(s-tc.want[i])) > 1e-6 {
					t.Fatalf("sample %d: expected %v, got %v", i, tc.want[i], s)
				}
			}
		})
	}
}

func TestDecodeWAVExtensible(t *testing.T) {
	float := binary.LittleEndian.AppendUint32(binary.LittleEndian.AppendUint32(nil, math.Float32bits(0.25)), math.Float32bits(-0.5))
	pcm, err := DecodeWAV(wavExtensibleFixture(wavFormatFloat, 32, 1, 16000, float))
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if pcm.SampleRate != 16000 || len(pcm.Samples) != 2 || pcm.Samples[0] != 0.25 || pcm.Samples[1] != -0.5 {
		t.Fatalf("unexpected float decode %+v", pcm)
	}

	pcm16, err := DecodeWAVPCM16(wavExtensibleFixture(wavFormatFloat, 32, 1, 16000, float))
	if err != nil {
		t.Fatalf("DecodeWAVPCM16 failed: %v", err)
	}
	if pcm16.Samples[0] != FloatToInt16(0.25) || pcm16.Samples[1] != FloatToInt16(-0.5) {
		t.Fatalf("unexpected 16-bit requantisation %v", pcm16.Samples)
	}

	ints := binary.LittleEndian.AppendUint16(binary.LittleEndian.AppendUint16(nil, 16384), uint16(0x8001))
	pcm16, err = DecodeWAVPCM16(wavExtensibleFixture(wavFormatPCM, 16, 1, 16000, ints))
	if err != nil {
		t.Fatalf("DecodeWAVPCM16 failed: %v", err)
	}
	if pcm16.Samples[0] != 16384 || pcm16.Samples[1] != -32767 {
		t.Fatalf("expected integer subformat to pass through, got %v", pcm16.Samples)
	}

	if _, err := DecodeWAV(wavExtensibleFixture(0x0055, 16, 1, 16000, ints)); err == nil {
		t.Fatal("expected unknown subformat to be rejected")
	}
}

func TestLooksLikeWAV(t *testing.T) {
	if LooksLikeWAV([]byte("RIFF\x00\x00\x00\x00WAV")) {
		t.Fatal("11 bytes must not look like WAV")
	}
	if !LooksLikeWAV([]byte("RIFF\x00\x00\x00\x00WAVE")) {
		t.Fatal("expected markers to be recognised")
	}
	if LooksLikeWAV([]byte("RIFX\x00\x00\x00\x00WAVE")) {
		t.Fatal("expected wrong magic to be rejected")
	}
}

func TestDecodeStreamRejectsUnknownPayload(t *testing.T) {
	_, err := DecodeStream([]byte{0x00, 0x01, 0x02, 0x03, 0x04})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := DecodeStream(nil); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat for empty payload, got %v", err)
	}
}

func TestDecodeStreamFallsThroughWhenFFmpegMissing(t *testing.T) {
	prev := ffmpegPath
	ffmpegPath = "dictaite-missing-ffmpeg"
	t.Cleanup(func() { ffmpegPath = prev })

	mp4 := append([]byte{0, 0, 0, 0x18}, []byte("ftypM4A \x00\x00\x00\x00")...)
	_, err := DecodeStream(mp4)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDecodeStreamAcceptsWAV(t *testing.T) {
	data, err := EncodeWAV([]float32{0.5, -0.5, 0.25, -0.25}, 24000, 2)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	pcm, err := DecodeStream(data)
	if err != nil {
		t.Fatalf("DecodeStream failed: %v", err)
	}
	if pcm.SampleRate != 24000 || pcm.Channels != 2 || len(pcm.Samples) != 4 {
		t.Fatalf("unexpected pcm: %+v", pcm)
	}
}

func TestSniffers(t *testing.T) {
	if !looksLikeMP3([]byte("ID3\x04")) || !looksLikeMP3([]byte{0xFF, 0xFB, 0x90}) {
		t.Fatal("expected mp3 signatures to be recognised")
	}
	if looksLikeMP3([]byte{0xFF, 0xF1}) {
		t.Fatal("ADTS header must not be treated as mp3")
	}
	if !needsTranscode([]byte{0xFF, 0xF1, 0x50}) {
		t.Fatal("expected ADTS to require transcode")
	}
	if !needsTranscode([]byte{0x1A, 0x45, 0xDF, 0xA3, 0x01}) {
		t.Fatal("expected webm to require transcode")
	}
}

func TestPCMStreamerDuplicatesMono(t *testing.T) {
	st := newPCMStreamer(PCM{Samples: []float32{0.1, 0.2, 0.3}, SampleRate: 8000, Channels: 1})
	buf := make([][2]float64, 2)

	n, ok := st.Stream(buf)
	if n != 2 || !ok {
		t.Fatalf("expected 2 frames, got %d ok=%v", n, ok)
	}
	if buf[1][0] != buf[1][1] {
		t.Fatalf("expected mono duplicated to both channels, got %v", buf[1])
	}

	n, ok = st.Stream(buf)
	if n != 1 || !ok {
		t.Fatalf("expected final frame, got %d ok=%v", n, ok)
	}
	if _, ok := st.Stream(buf); ok {
		t.Fatal("expected exhausted streamer")
	}
}

func TestDrainKeepsLeftChannelForMono(t *testing.T) {
	src := newPCMStreamer(PCM{Samples: []float32{0.5, -0.5}, SampleRate: 16000, Channels: 1})
	pcm, err := drain(src, src.pcm.format())
	if err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if pcm.Channels != 1 || len(pcm.Samples) != 2 || pcm.Samples[1] != -0.5 {
		t.Fatalf("unexpected drain result: %+v", pcm)
	}
}

func TestPCM16BytesToSamplesRejectsOddLength(t *testing.T) {
	if _, err := PCM16BytesToSamples([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected odd length error")
	}
	got, err := PCM16BytesToSamples([]byte{0xFF, 0x7F, 0x01, 0x80})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0] != 32767 || got[1] != -32767 {
		t.Fatalf("unexpected samples: %v", got)
	}
}
