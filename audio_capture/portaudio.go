package audio_capture

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"

	"voice-gated-assistant/utterance"
)

// DeviceInfo describes one input-capable device.
type DeviceInfo struct {
	Index             int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	Default           bool
}

// PortAudioDevice is the default microphone. Init must be called before Open and
// Close once the process is done with audio.
type PortAudioDevice struct {
	mu      sync.Mutex
	running bool
	logger  *zap.Logger
}

func NewPortAudioDevice(logger *zap.Logger) *PortAudioDevice {
	if logger == nil {
		logger = zap.L().Named("portaudio")
	}

	return &PortAudioDevice{logger: logger}
}

func (p *PortAudioDevice) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return &DeviceError{Op: "initialize", Err: err}
	}

	p.running = true

	return nil
}

func (p *PortAudioDevice) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}

	p.running = false

	if err := portaudio.Terminate(); err != nil {
		return &DeviceError{Op: "terminate", Err: err}
	}

	return nil
}

func (p *PortAudioDevice) Open(cfg StreamConfig) (Stream, error) {
	in, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, err
	}

	var params portaudio.StreamParameters
	if cfg.Latency == LatencyLow {
		params = portaudio.LowLatencyParameters(in, nil)
	} else {
		params = portaudio.HighLatencyParameters(in, nil)
	}

	params.Input.Channels = cfg.Channels
	params.SampleRate = float64(cfg.SampleRate)
	params.FramesPerBuffer = cfg.FrameSize

	buf := make([]float32, cfg.FrameSize*cfg.Channels)

	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("opened input stream",
		zap.String("device", in.Name),
		zap.Int("sample_rate", cfg.SampleRate),
		zap.Int("frame_size", cfg.FrameSize),
		zap.String("latency", string(cfg.Latency)))

	return &portAudioStream{stream: stream, buf: buf}, nil
}

// ListDevices lists the devices that can record.
func (p *PortAudioDevice) ListDevices() ([]DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	var defaultName string
	if in, err := portaudio.DefaultInputDevice(); err == nil {
		defaultName = in.Name
	}

	infos := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		if d.MaxInputChannels == 0 {
			continue
		}

		infos = append(infos, DeviceInfo{
			Index:             d.Index,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			Default:           d.Name == defaultName,
		})
	}

	return infos, nil
}

type portAudioStream struct {
	stream *portaudio.Stream
	buf    []float32
}

func (s *portAudioStream) Start() error {
	return s.stream.Start()
}

func (s *portAudioStream) Read() (utterance.Frame, error) {
	var frame utterance.Frame

	if err := s.stream.Read(); err != nil {
		if !errors.Is(err, portaudio.InputOverflowed) {
			return frame, err
		}

		frame.Overflowed = true
	}

	frame.Samples = make([]float32, len(s.buf))
	copy(frame.Samples, s.buf)

	return frame, nil
}

func (s *portAudioStream) Stop() error {
	return s.stream.Stop()
}

func (s *portAudioStream) Close() error {
	return s.stream.Close()
}
