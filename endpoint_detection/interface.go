package endpoint_detection

type Interface interface {
	Observe(samples []float32) Observation
	Classify(energy float64) State
	Done() bool
	Reset()
}
