package ring_buffer

// bufImpl keeps the most recent samples written to it. Older samples are
// overwritten once the buffer wraps.
type bufImpl struct {
	buffer []float32
	head   int
	filled int
}

func New(size int) Interface {
	if size < 0 {
		size = 0
	}

	return &bufImpl{
		buffer: make([]float32, size),
	}
}

func (r *bufImpl) Add(samples []float32) {
	if len(r.buffer) == 0 {
		return
	}

	for _, s := range samples {
		r.buffer[r.head] = s
		r.head = (r.head + 1) % len(r.buffer)

		if r.filled < len(r.buffer) {
			r.filled++
		}
	}
}

// Read returns the buffered samples oldest first. Only samples that were
// actually written are returned, so a partially filled buffer never yields
// leading zeros.
func (r *bufImpl) Read() []float32 {
	samples := make([]float32, r.filled)
	start := (r.head - r.filled + len(r.buffer)) % max(len(r.buffer), 1)

	for i := 0; i < r.filled; i++ {
		samples[i] = r.buffer[(start+i)%len(r.buffer)]
	}

	return samples
}

func (r *bufImpl) Len() int {
	return r.filled
}

func (r *bufImpl) Clear() {
	for i := 0; i < len(r.buffer); i++ {
		r.buffer[i] = 0
	}

	r.head = 0
	r.filled = 0
}
