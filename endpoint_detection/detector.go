// Package endpoint_detection decides when a spoken utterance has ended.
//
// The detector classifies every frame on its instantaneous energy alone, with
// no smoothing beyond the consecutive silent frame counter. This is a plain
// energy gate, not a trained VAD model: quiet speech can end an utterance
// early, and steady background noise can keep it open until the capture hard
// cap is reached.
package endpoint_detection

import (
	"fmt"
	"math"
)

const (
	DefaultMinVolume       = 0.01
	DefaultMaxSilentFrames = 8
	DefaultMinFrames       = 3
)

type State int

const (
	Silent State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}

	return "silent"
}

type Config struct {
	// MinVolume is the energy a frame needs to count as speech.
	MinVolume float64 `yaml:"min_volume"`
	// MaxSilentFrames consecutive silent frames end the utterance.
	MaxSilentFrames int `yaml:"max_silent_frames"`
	// MinFrames must have been observed before the utterance can end.
	MinFrames int `yaml:"min_frames"`
}

func DefaultConfig() Config {
	return Config{
		MinVolume:       DefaultMinVolume,
		MaxSilentFrames: DefaultMaxSilentFrames,
		MinFrames:       DefaultMinFrames,
	}
}

func (c Config) Validate() error {
	if c.MinVolume <= 0 {
		return fmt.Errorf("min volume must be positive, got %v", c.MinVolume)
	}

	if c.MaxSilentFrames <= 0 {
		return fmt.Errorf("max silent frames must be positive, got %d", c.MaxSilentFrames)
	}

	if c.MinFrames < 0 {
		return fmt.Errorf("min frames must not be negative, got %d", c.MinFrames)
	}

	return nil
}

// Observation is the detector's view after one frame.
type Observation struct {
	Energy    float64
	State     State
	SilentRun int
	Frames    int
	// Heard reports whether any frame of the utterance so far was active.
	Heard bool
}

type detectorImpl struct {
	cfg       Config
	state     State
	silentRun int
	frames    int
	heard     bool
}

func New(cfg *Config) (Interface, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &detectorImpl{cfg: *cfg}, nil
}

// Energy is the L2 norm of the frame divided by its length.
func Energy(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}

	return math.Sqrt(sum) / float64(len(samples))
}

// Classify compares an energy value against MinVolume. Only a strictly
// smaller energy is silent; an energy equal to the threshold is active.
func (d *detectorImpl) Classify(energy float64) State {
	if energy < d.cfg.MinVolume {
		return Silent
	}

	return Active
}

func (d *detectorImpl) Observe(samples []float32) Observation {
	energy := Energy(samples)

	d.state = d.Classify(energy)
	d.frames++

	if d.state == Active {
		d.silentRun = 0
		d.heard = true
	} else {
		d.silentRun++
	}

	return Observation{
		Energy:    energy,
		State:     d.state,
		SilentRun: d.silentRun,
		Frames:    d.frames,
		Heard:     d.heard,
	}
}

// Done reports whether the silent run reached the cap after at least
// MinFrames frames.
func (d *detectorImpl) Done() bool {
	return d.silentRun >= d.cfg.MaxSilentFrames && d.frames >= d.cfg.MinFrames
}

func (d *detectorImpl) Reset() {
	d.state = Silent
	d.silentRun = 0
	d.frames = 0
	d.heard = false
}
