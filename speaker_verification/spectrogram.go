package speaker_verification

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/spectral"
	"github.com/mjibson/go-dsp/window"
)

type SpectrogramMode string

const (
	// ModeMagnitude keeps |X| per bin.
	ModeMagnitude SpectrogramMode = "magnitude"
	// ModePSD keeps |X|^2 with the one-sided doubling of interior bins.
	ModePSD SpectrogramMode = "psd"
)

// spectrogram returns one row of window/2+1 one-sided bins per segment.
// Callers guarantee len(x) >= size.
func spectrogram(x []float64, size, overlap int, mode SpectrogramMode, detrend bool) [][]float64 {
	taper := periodicHann(size)
	segments := spectral.Segment(x, size, overlap)
	bins := size/2 + 1

	rows := make([][]float64, len(segments))
	buf := make([]float64, size)

	for i, seg := range segments {
		copy(buf, seg)

		if detrend {
			var mean float64
			for _, v := range buf {
				mean += v
			}

			mean /= float64(size)

			for j := range buf {
				buf[j] -= mean
			}
		}

		for j := range buf {
			buf[j] *= taper[j]
		}

		spectrum := fft.FFTReal(buf)

		row := make([]float64, bins)
		for k := 0; k < bins; k++ {
			mag := cmplx.Abs(spectrum[k])

			if mode == ModePSD {
				row[k] = mag * mag

				if k > 0 && !(size%2 == 0 && k == bins-1) {
					row[k] *= 2
				}
			} else {
				row[k] = mag
			}
		}

		rows[i] = row
	}

	return rows
}

// periodicHann is the DFT-even Hann taper: zero at the first sample and
// peaking at size/2, without the trailing zero of the symmetric form.
func periodicHann(size int) []float64 {
	return window.Hann(size + 1)[:size]
}

func flatten(rows [][]float64) []float64 {
	var n int
	for _, r := range rows {
		n += len(r)
	}

	out := make([]float64, 0, n)
	for _, r := range rows {
		out = append(out, r...)
	}

	return out
}
