package audio_capture

import (
	"context"
	"time"

	"voice-gated-assistant/utterance"
)

type Interface interface {
	// Capture records until the speaker stops talking.
	Capture(ctx context.Context) (*Result, error)
	// Record captures a fixed duration regardless of speech activity.
	Record(ctx context.Context, duration time.Duration) (*utterance.Utterance, error)
}

// Device opens input streams. Implementations must return streams that
// deliver frames of exactly StreamConfig.FrameSize samples.
type Device interface {
	Open(cfg StreamConfig) (Stream, error)
}

// Stream is a single open device stream. Read blocks until a frame is
// available; Stop must unblock a pending Read.
type Stream interface {
	Start() error
	Read() (utterance.Frame, error)
	Stop() error
	Close() error
}

type Latency string

const (
	LatencyHigh Latency = "high"
	LatencyLow  Latency = "low"
)

type StreamConfig struct {
	SampleRate int
	Channels   int
	FrameSize  int
	Latency    Latency
}
