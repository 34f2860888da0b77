// Package utterance holds the audio values that move through the pipeline:
// frames delivered by the capture device, the buffer they accumulate in, and
// the finalized PCM16 clip handed to transcription and verification.
package utterance

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultSampleRate = 16000

	// pcmScale maps the normalized float domain onto the int16 range.
	pcmScale = math.MaxInt16
)

// Frame is the block of samples produced by one device read.
type Frame struct {
	Samples []float32
	// Overflowed is set when the device reported lost input before this
	// frame was delivered.
	Overflowed bool
}

// Utterance is a finalized, immutable PCM16 mono clip.
type Utterance struct {
	id         string
	sampleRate int
	pcm        []byte
}

// FromPCM16 copies little-endian PCM16 mono bytes into a new Utterance.
func FromPCM16(pcm []byte, sampleRate int) (*Utterance, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}

	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("pcm16 data has odd length %d", len(pcm))
	}

	data := make([]byte, len(pcm))
	copy(data, pcm)

	return &Utterance{
		id:         uuid.NewString(),
		sampleRate: sampleRate,
		pcm:        data,
	}, nil
}

// FromFloat32 scales normalized samples to PCM16. Values outside [-1, 1] are
// clamped and the scaled value is truncated toward zero.
func FromFloat32(samples []float32, sampleRate int) (*Utterance, error) {
	pcm := make([]byte, len(samples)*2)

	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(toPCM16(float64(s))))
	}

	return FromPCM16(pcm, sampleRate)
}

// FromFloat64 is FromFloat32 for float64 input.
func FromFloat64(samples []float64, sampleRate int) (*Utterance, error) {
	pcm := make([]byte, len(samples)*2)

	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(toPCM16(s)))
	}

	return FromPCM16(pcm, sampleRate)
}

func toPCM16(s float64) int16 {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}

	return int16(s * pcmScale)
}

func (u *Utterance) ID() string {
	return u.id
}

func (u *Utterance) SampleRate() int {
	return u.sampleRate
}

// NumSamples is the number of mono samples in the clip.
func (u *Utterance) NumSamples() int {
	return len(u.pcm) / 2
}

func (u *Utterance) Duration() time.Duration {
	return time.Duration(u.NumSamples()) * time.Second / time.Duration(u.sampleRate)
}

// PCM16 returns a copy of the raw little-endian sample bytes.
func (u *Utterance) PCM16() []byte {
	data := make([]byte, len(u.pcm))
	copy(data, u.pcm)

	return data
}

// Int16s decodes the clip into signed samples.
func (u *Utterance) Int16s() []int16 {
	samples := make([]int16, u.NumSamples())

	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(u.pcm[i*2:]))
	}

	return samples
}

// Float64s decodes the clip into the normalized float domain.
func (u *Utterance) Float64s() []float64 {
	samples := make([]float64, u.NumSamples())

	for i := range samples {
		samples[i] = float64(int16(binary.LittleEndian.Uint16(u.pcm[i*2:]))) / pcmScale
	}

	return samples
}

// Float32s is Float64s for engines that take float32 input.
func (u *Utterance) Float32s() []float32 {
	samples := make([]float32, u.NumSamples())

	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(u.pcm[i*2:]))) / pcmScale
	}

	return samples
}
