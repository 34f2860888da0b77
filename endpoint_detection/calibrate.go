package endpoint_detection

const (
	DefaultCalibrationHeadroom = 1.5

	minSuggestedVolume = 1e-4
)

// Calibrate suggests a MinVolume from frames recorded while nobody speaks:
// the loudest ambient frame scaled by headroom. The result is a starting
// point for configuration and is never applied automatically.
func Calibrate(frames [][]float32, headroom float64) float64 {
	if headroom <= 0 {
		headroom = DefaultCalibrationHeadroom
	}

	var loudest float64
	for _, frame := range frames {
		if e := Energy(frame); e > loudest {
			loudest = e
		}
	}

	return max(loudest*headroom, minSuggestedVolume)
}

// SplitFrames cuts a sample sequence into frames of size samples, dropping a
// trailing partial frame.
func SplitFrames(samples []float32, size int) [][]float32 {
	if size <= 0 {
		return nil
	}

	frames := make([][]float32, 0, len(samples)/size)
	for start := 0; start+size <= len(samples); start += size {
		frames = append(frames, samples[start:start+size])
	}

	return frames
}
