package speaker_signature

import (
	"errors"
	"fmt"
)

var (
	ErrNoSamples          = errors.New("no enrollment samples")
	ErrSampleRateMismatch = errors.New("enrollment samples have different sample rates")
	ErrEmptySample        = errors.New("enrollment sample is empty")
)

// Signature is the enrolled reference waveform of the authorized speaker.
// It is immutable once built.
type Signature struct {
	samples    []float64
	sampleRate int
}

func FromSamples(samples []float64, sampleRate int) (*Signature, error) {
	if len(samples) == 0 {
		return nil, ErrEmptySample
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}

	s := make([]float64, len(samples))
	copy(s, samples)

	return &Signature{samples: s, sampleRate: sampleRate}, nil
}

// Samples returns a copy of the reference waveform.
func (s *Signature) Samples() []float64 {
	out := make([]float64, len(s.samples))
	copy(out, s.samples)

	return out
}

func (s *Signature) Len() int {
	return len(s.samples)
}

func (s *Signature) SampleRate() int {
	return s.sampleRate
}
