package ring_buffer

type Interface interface {
	Add(samples []float32)
	Read() []float32
	Len() int
	Clear()
}
