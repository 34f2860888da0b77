package speaker_signature

import (
	"fmt"

	"voice-gated-assistant/utterance"
)

// Average builds a signature from enrollment recordings. Recordings are
// truncated to the shortest one and averaged sample by sample.
func Average(utts []*utterance.Utterance) (*Signature, error) {
	if len(utts) == 0 {
		return nil, ErrNoSamples
	}

	if utts[0] == nil {
		return nil, fmt.Errorf("sample 0: %w", ErrEmptySample)
	}

	rate := utts[0].SampleRate()
	shortest := utts[0].NumSamples()

	for i, u := range utts {
		if u == nil || u.NumSamples() == 0 {
			return nil, fmt.Errorf("sample %d: %w", i, ErrEmptySample)
		}

		if u.SampleRate() != rate {
			return nil, fmt.Errorf("sample %d at %d Hz, expected %d Hz: %w", i, u.SampleRate(), rate, ErrSampleRateMismatch)
		}

		shortest = min(shortest, u.NumSamples())
	}

	mean := make([]float64, shortest)
	for _, u := range utts {
		for i, s := range u.Float64s()[:shortest] {
			mean[i] += s
		}
	}

	n := float64(len(utts))
	for i := range mean {
		mean[i] /= n
	}

	return FromSamples(mean, rate)
}

// Enroll averages the recordings and replaces the stored signature.
func Enroll(store Store, utts []*utterance.Utterance) (*Signature, error) {
	sig, err := Average(utts)
	if err != nil {
		return nil, err
	}

	if err = store.Save(sig); err != nil {
		return nil, err
	}

	return sig, nil
}
