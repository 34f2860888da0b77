package audio_capture

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"voice-gated-assistant/endpoint_detection"
	"voice-gated-assistant/ring_buffer"
	"voice-gated-assistant/utterance"
)

const (
	defaultFrameDuration = 250 * time.Millisecond
	defaultPreRollFrames = 2
	defaultMaxDuration   = 30 * time.Second
	defaultQueueSize     = 8
)

type Status int

const (
	// StatusNoSpeech is a normal outcome: nothing crossed the activity
	// threshold, or too little audio was buffered to form an utterance.
	StatusNoSpeech Status = iota
	StatusUtterance
)

func (s Status) String() string {
	if s == StatusUtterance {
		return "utterance"
	}

	return "no_speech"
}

type StopReason string

const (
	StopSilence     StopReason = "silence"
	StopMaxDuration StopReason = "max_duration"
)

type Result struct {
	Status    Status
	Utterance *utterance.Utterance
	// Frames is the number of frames read from the device.
	Frames int
	// DroppedFrames counts frames the device flagged as overflowed.
	DroppedFrames int
	StopReason    StopReason
}

type Config struct {
	Device        Device
	SampleRate    int
	Channels      int
	FrameDuration time.Duration
	Latency       Latency
	Detector      endpoint_detection.Config
	// PreRollFrames of audio before the first active frame are kept.
	PreRollFrames int
	// MaxDuration caps one capture even if the speaker never pauses.
	MaxDuration time.Duration
	QueueSize   int
	Logger      *zap.Logger
}

func DefaultConfig() Config {
	return Config{
		SampleRate:    utterance.DefaultSampleRate,
		Channels:      1,
		FrameDuration: defaultFrameDuration,
		Latency:       LatencyHigh,
		Detector:      endpoint_detection.DefaultConfig(),
		PreRollFrames: defaultPreRollFrames,
		MaxDuration:   defaultMaxDuration,
		QueueSize:     defaultQueueSize,
	}
}

type captureImpl struct {
	mu            sync.Mutex
	device        Device
	stream        StreamConfig
	frameDuration time.Duration
	detector      endpoint_detection.Config
	preRollFrames int
	maxFrames     int
	stallTimeout  time.Duration
	queueSize     int
	logger        *zap.Logger
}

func New(cfg *Config) (Interface, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.Device == nil {
		return nil, fmt.Errorf("device is nil")
	}

	if cfg.Channels != 1 {
		return nil, fmt.Errorf("only mono capture is supported, got %d channels", cfg.Channels)
	}

	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", cfg.SampleRate)
	}

	frameSize := int(float64(cfg.SampleRate) * cfg.FrameDuration.Seconds())
	if frameSize <= 0 {
		return nil, fmt.Errorf("frame duration %s yields no samples", cfg.FrameDuration)
	}

	if cfg.MaxDuration < cfg.FrameDuration {
		return nil, fmt.Errorf("max duration %s is shorter than one frame", cfg.MaxDuration)
	}

	if cfg.PreRollFrames < 0 || cfg.QueueSize < 0 {
		return nil, fmt.Errorf("pre-roll frames and queue size must not be negative")
	}

	if err := cfg.Detector.Validate(); err != nil {
		return nil, fmt.Errorf("detector: %w", err)
	}

	latency := cfg.Latency
	if latency == "" {
		latency = LatencyHigh
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.L().Named("audio_capture")
	}

	return &captureImpl{
		device: cfg.Device,
		stream: StreamConfig{
			SampleRate: cfg.SampleRate,
			Channels:   cfg.Channels,
			FrameSize:  frameSize,
			Latency:    latency,
		},
		frameDuration: cfg.FrameDuration,
		detector:      cfg.Detector,
		preRollFrames: cfg.PreRollFrames,
		maxFrames:     int(math.Ceil(float64(cfg.MaxDuration) / float64(cfg.FrameDuration))),
		stallTimeout:  2 * cfg.MaxDuration,
		queueSize:     cfg.QueueSize,
		logger:        logger,
	}, nil
}

func (c *captureImpl) Capture(ctx context.Context) (*Result, error) {
	if !c.mu.TryLock() {
		return nil, ErrCaptureBusy
	}
	defer c.mu.Unlock()

	detector, err := endpoint_detection.New(&c.detector)
	if err != nil {
		return nil, err
	}

	s, err := c.open()
	if err != nil {
		return nil, err
	}
	defer s.release()

	var (
		buffer        = utterance.NewSignalBuffer(c.stream.SampleRate)
		preRoll       = ring_buffer.New(c.preRollFrames * c.stream.FrameSize)
		preRollFrames int
		heard         bool
		result        = &Result{}
	)

	stall := time.NewTimer(c.stallTimeout)
	defer stall.Stop()

	c.logger.Debug("capture started",
		zap.Int("sample_rate", c.stream.SampleRate),
		zap.Int("frame_size", c.stream.FrameSize))

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case err = <-s.errC:
			return nil, &DeviceError{Op: "read", Err: err}
		case <-stall.C:
			return nil, &DeviceError{Op: "read", Err: ErrDeviceStalled}
		case frame := <-s.frames:
			result.Frames++

			if frame.Overflowed {
				result.DroppedFrames++
				c.logger.Warn("input overflow, audio was lost before this frame",
					zap.Int("frame", result.Frames))
			}

			obs := detector.Observe(frame.Samples)

			if obs.Heard {
				// flush the audio just before speech started
				if !heard {
					heard = true
					buffer.AppendFrames(preRoll.Read(), preRollFrames)
					preRoll.Clear()
				}

				buffer.Append(frame.Samples)
			} else {
				preRoll.Add(frame.Samples)
				preRollFrames = min(preRollFrames+1, c.preRollFrames)
			}

			if detector.Done() {
				result.StopReason = StopSilence

				return c.finish(buffer, heard, result)
			}

			if result.Frames >= c.maxFrames {
				result.StopReason = StopMaxDuration

				return c.finish(buffer, heard, result)
			}
		}
	}
}

func (c *captureImpl) finish(buffer *utterance.SignalBuffer, heard bool, result *Result) (*Result, error) {
	if !heard || buffer.Frames() < c.detector.MinFrames {
		result.Status = StatusNoSpeech

		c.logger.Info("no speech detected",
			zap.Int("frames", result.Frames),
			zap.String("stop_reason", string(result.StopReason)))

		return result, nil
	}

	u, err := buffer.Finalize()
	if err != nil {
		return nil, fmt.Errorf("finalize utterance: %w", err)
	}

	result.Status = StatusUtterance
	result.Utterance = u

	c.logger.Info("utterance captured",
		zap.String("utterance_id", u.ID()),
		zap.Duration("duration", u.Duration()),
		zap.Int("frames", result.Frames),
		zap.Int("dropped_frames", result.DroppedFrames),
		zap.String("stop_reason", string(result.StopReason)))

	return result, nil
}

func (c *captureImpl) Record(ctx context.Context, duration time.Duration) (*utterance.Utterance, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("invalid record duration: %s", duration)
	}

	if !c.mu.TryLock() {
		return nil, ErrCaptureBusy
	}
	defer c.mu.Unlock()

	s, err := c.open()
	if err != nil {
		return nil, err
	}
	defer s.release()

	want := int((duration*time.Duration(c.stream.SampleRate) + time.Second - 1) / time.Second)
	samples := make([]float32, 0, want)

	stall := time.NewTimer(2*duration + c.frameDuration)
	defer stall.Stop()

	for len(samples) < want {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case err = <-s.errC:
			return nil, &DeviceError{Op: "read", Err: err}
		case <-stall.C:
			return nil, &DeviceError{Op: "read", Err: ErrDeviceStalled}
		case frame := <-s.frames:
			if frame.Overflowed {
				c.logger.Warn("input overflow while recording")
			}

			samples = append(samples, frame.Samples...)
		}
	}

	return utterance.FromFloat32(samples[:want], c.stream.SampleRate)
}

// session scopes one open device stream and its reader goroutine.
type session struct {
	stream Stream
	frames chan utterance.Frame
	errC   chan error
	done   chan struct{}
	wg     sync.WaitGroup
	grace  time.Duration
	logger *zap.Logger
}

func (c *captureImpl) open() (*session, error) {
	stream, err := c.device.Open(c.stream)
	if err != nil {
		return nil, &DeviceError{Op: "open", Err: err}
	}

	if err = stream.Start(); err != nil {
		if closeErr := stream.Close(); closeErr != nil {
			c.logger.Warn("closing stream after failed start", zap.Error(closeErr))
		}

		return nil, &DeviceError{Op: "start", Err: err}
	}

	s := &session{
		stream: stream,
		frames: make(chan utterance.Frame, c.queueSize),
		errC:   make(chan error, 1),
		done:   make(chan struct{}),
		grace:  2 * c.frameDuration,
		logger: c.logger,
	}

	s.wg.Add(1)
	go s.readLoop()

	return s, nil
}

func (s *session) readLoop() {
	defer s.wg.Done()

	for {
		if s.released() {
			return
		}

		frame, err := s.stream.Read()
		if err != nil {
			select {
			case s.errC <- err:
			default:
			}

			return
		}

		if s.released() {
			return
		}

		select {
		case s.frames <- frame:
		case <-s.done:
			return
		}
	}
}

func (s *session) released() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// release lets the reader finish its current frame, stops the stream
// (which unblocks a reader stuck on a silent device), waits for the reader
// and closes the stream.
func (s *session) release() {
	close(s.done)

	exited := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(exited)
	}()

	grace := time.NewTimer(s.grace)
	select {
	case <-exited:
	case <-grace.C:
	}
	grace.Stop()

	if err := s.stream.Stop(); err != nil {
		s.logger.Warn("stopping stream failed", zap.Error(err))
	}

	<-exited

	if err := s.stream.Close(); err != nil {
		s.logger.Warn("closing stream failed", zap.Error(err))
	}
}
