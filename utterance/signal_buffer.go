package utterance

// SignalBuffer accumulates the frames of one capture session. It is owned by
// a single capture call and is not safe for concurrent use.
type SignalBuffer struct {
	sampleRate int
	samples    []float32
	frames     int
}

func NewSignalBuffer(sampleRate int) *SignalBuffer {
	return &SignalBuffer{sampleRate: sampleRate}
}

// Append copies the frame samples into the buffer.
func (b *SignalBuffer) Append(samples []float32) {
	b.samples = append(b.samples, samples...)
	b.frames++
}

// AppendFrames adds samples that span n frames, as flushed from a pre-roll.
func (b *SignalBuffer) AppendFrames(samples []float32, n int) {
	b.samples = append(b.samples, samples...)
	b.frames += n
}

func (b *SignalBuffer) Frames() int {
	return b.frames
}

func (b *SignalBuffer) Len() int {
	return len(b.samples)
}

func (b *SignalBuffer) SampleRate() int {
	return b.sampleRate
}

// Reset discards buffered audio.
func (b *SignalBuffer) Reset() {
	b.samples = nil
	b.frames = 0
}

// Finalize encodes the buffer as an immutable Utterance. The buffer can be
// reused afterwards without affecting the returned value.
func (b *SignalBuffer) Finalize() (*Utterance, error) {
	return FromFloat32(b.samples, b.sampleRate)
}
