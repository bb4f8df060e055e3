package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// defaultProbeRates are the standard rates checked against each input layout.
var defaultProbeRates = []int{8000, 11025, 16000, 22050, 24000, 32000, 44100, 48000, 88200, 96000}

var (
	portaudioOnce sync.Once
	portaudioErr  error
)

// PortAudioBackend captures from the host's default input device.
type PortAudioBackend struct {
	probeRates []int
}

// NewPortAudioBackend initialises PortAudio for the life of the process.
// probeRates restricts format probing; nil uses the standard rates.
func NewPortAudioBackend(probeRates []int) (*PortAudioBackend, error) {
	portaudioOnce.Do(func() {
		portaudioErr = portaudio.Initialize()
	})
	if portaudioErr != nil {
		return nil, fmt.Errorf("initialise portaudio: %w", portaudioErr)
	}
	if len(probeRates) == 0 {
		probeRates = defaultProbeRates
	}
	return &PortAudioBackend{probeRates: probeRates}, nil
}

func (*PortAudioBackend) Close() error { return portaudio.Terminate() }

func (b *PortAudioBackend) DefaultInputDevice() (InputDevice, error) {
	info, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, err
	}
	if info == nil || info.MaxInputChannels < 1 {
		return nil, fmt.Errorf("default device has no input channels")
	}
	return &portaudioDevice{info: info, rates: b.probeRates}, nil
}

type portaudioDevice struct {
	info  *portaudio.DeviceInfo
	rates []int
}

func (d *portaudioDevice) Name() string { return d.info.Name }

// SupportedConfigs probes mono, stereo and the device maximum against the probe rates.
func (d *portaudioDevice) SupportedConfigs() ([]StreamConfig, error) {
	layouts := []int{1}
	for _, ch := range []int{2, d.info.MaxInputChannels} {
		if ch > layouts[len(layouts)-1] && ch <= d.info.MaxInputChannels {
			layouts = append(layouts, ch)
		}
	}

	var configs []StreamConfig
	for _, ch := range layouts {
		cfg := StreamConfig{Channels: ch}
		for _, rate := range d.rates {
			params := d.params(Format{SampleRate: rate, Channels: ch})
			if portaudio.IsFormatSupported(params, func([]float32) {}) == nil {
				cfg.SampleRates = append(cfg.SampleRates, rate)
			}
		}
		if len(cfg.SampleRates) == 0 && d.info.DefaultSampleRate > 0 {
			// Some hosts refuse probing but still open at the default rate.
			cfg.SampleRates = []int{int(d.info.DefaultSampleRate)}
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func (d *portaudioDevice) params(f Format) portaudio.StreamParameters {
	params := portaudio.LowLatencyParameters(d.info, nil)
	params.Input.Channels = f.Channels
	params.Output.Device = nil
	params.Output.Channels = 0
	params.SampleRate = float64(f.SampleRate)
	return params
}

func (d *portaudioDevice) OpenStream(f Format, onSamples func([]float32)) (Stream, error) {
	stream, err := portaudio.OpenStream(d.params(f), func(in []float32) {
		onSamples(in)
	})
	if err != nil {
		return nil, err
	}
	return &portaudioStream{stream: stream}, nil
}

type portaudioStream struct {
	stream *portaudio.Stream
}

func (s *portaudioStream) Start() error { return s.stream.Start() }

// Close stops the stream first; Pa_StopStream returns only after the last
// callback has completed.
func (s *portaudioStream) Close() error {
	stopErr := s.stream.Stop()
	if err := s.stream.Close(); err != nil {
		return err
	}
	return stopErr
}
