package speaker_verification

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"voice-gated-assistant/speaker_signature"
	"voice-gated-assistant/utterance"
)

const rate = 16000

type staticSource struct {
	sig *speaker_signature.Signature
}

func (s staticSource) Current() *speaker_signature.Signature {
	return s.sig
}

func sine(freq, amplitude float64, seconds float64) []float64 {
	out := make([]float64, int(seconds*rate))
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/rate)
	}

	return out
}

func newVerifier(t *testing.T, sig *speaker_signature.Signature, tweak ...func(*Config)) Interface {
	cfg := &Config{
		Signatures: staticSource{sig: sig},
		Threshold:  DefaultThreshold,
		Scoring:    DefaultScoringConfig(),
		Logger:     zap.NewNop(),
	}

	for _, fn := range tweak {
		fn(cfg)
	}

	v, err := New(cfg)
	require.NoError(t, err)

	return v
}

func signatureOf(t *testing.T, samples []float64, sampleRate int) *speaker_signature.Signature {
	sig, err := speaker_signature.FromSamples(samples, sampleRate)
	require.NoError(t, err)

	return sig
}

func utteranceOf(t *testing.T, samples []float64, sampleRate int) *utterance.Utterance {
	u, err := utterance.FromFloat64(samples, sampleRate)
	require.NoError(t, err)

	return u
}

func TestVerify(t *testing.T) {
	tone := sine(440, 0.8, 5)
	sig := signatureOf(t, tone, rate)

	t.Run("the enrolled waveform itself is accepted", func(t *testing.T) {
		d := newVerifier(t, sig).Verify(utteranceOf(t, tone, rate))

		assert.True(t, d.Accepted)
		assert.Equal(t, OutcomeMatch, d.Outcome)
		assert.NoError(t, d.Err)
		assert.InDelta(t, 1, d.Score.Time, 1e-3)
		assert.InDelta(t, 1, d.Score.Frequency, 1e-3)
		assert.InDelta(t, 1, d.Score.Final, 1e-3)
	})

	t.Run("uniform noise is rejected", func(t *testing.T) {
		rng := rand.New(rand.NewPCG(1, 2))

		noise := make([]float64, len(tone))
		for i := range noise {
			noise[i] = rng.Float64()*2 - 1
		}

		d := newVerifier(t, sig).Verify(utteranceOf(t, noise, rate))

		assert.False(t, d.Accepted)
		assert.Equal(t, OutcomeMismatch, d.Outcome)
		assert.Less(t, d.Score.Final, 0.3)
	})

	t.Run("a quieter noisy replay is accepted", func(t *testing.T) {
		rng := rand.New(rand.NewPCG(3, 4))

		replay := make([]float64, len(tone))
		for i, v := range tone {
			replay[i] = 0.5*v + 0.05*rng.NormFloat64()
		}

		d := newVerifier(t, sig).Verify(utteranceOf(t, replay, rate))

		assert.True(t, d.Accepted)
		assert.Greater(t, d.Score.Final, 0.5)
	})

	t.Run("the power spectral density mode also matches the enrolled waveform", func(t *testing.T) {
		d := newVerifier(t, sig, func(cfg *Config) {
			cfg.Scoring.Mode = ModePSD
		}).Verify(utteranceOf(t, tone, rate))

		assert.True(t, d.Accepted)
		assert.InDelta(t, 1, d.Score.Frequency, 1e-3)
	})

	t.Run("without a signature every utterance is accepted", func(t *testing.T) {
		d := newVerifier(t, nil).Verify(utteranceOf(t, make([]float64, 1000), rate))

		assert.True(t, d.Accepted)
		assert.Equal(t, OutcomeNoSignature, d.Outcome)
	})

	t.Run("an all zero utterance is rejected as degenerate", func(t *testing.T) {
		d := newVerifier(t, sig).Verify(utteranceOf(t, make([]float64, rate), rate))

		assert.False(t, d.Accepted)
		assert.Equal(t, OutcomeDegenerate, d.Outcome)
		assert.ErrorIs(t, d.Err, ErrDegenerateSignal)
	})

	t.Run("a constant utterance is rejected as undefined", func(t *testing.T) {
		constant := make([]float64, rate)
		for i := range constant {
			constant[i] = 0.5
		}

		d := newVerifier(t, sig).Verify(utteranceOf(t, constant, rate))

		assert.False(t, d.Accepted)
		assert.Equal(t, OutcomeUndefined, d.Outcome)
		assert.ErrorIs(t, d.Err, ErrCorrelationUndefined)
	})

	t.Run("a different sample rate is rejected", func(t *testing.T) {
		d := newVerifier(t, sig).Verify(utteranceOf(t, tone, 8000))

		assert.False(t, d.Accepted)
		assert.ErrorIs(t, d.Err, ErrSampleRateMismatch)
	})

	t.Run("an utterance shorter than one window is rejected", func(t *testing.T) {
		d := newVerifier(t, sig).Verify(utteranceOf(t, tone[:DefaultWindowSize-1], rate))

		assert.False(t, d.Accepted)
		assert.ErrorIs(t, d.Err, ErrTooShort)
	})

	t.Run("a score equal to the threshold is rejected", func(t *testing.T) {
		u := utteranceOf(t, sine(440, 0.5, 1), rate)

		score, err := Compare(u.Float64s(), sig.Samples(), DefaultScoringConfig())
		require.NoError(t, err)

		d := newVerifier(t, sig, func(cfg *Config) {
			cfg.Threshold = score.Final
		}).Verify(u)

		assert.False(t, d.Accepted)
		assert.Equal(t, score.Final, d.Score.Final)
	})

	t.Run("a nil utterance is rejected", func(t *testing.T) {
		d := newVerifier(t, sig).Verify(nil)

		assert.False(t, d.Accepted)
		assert.Error(t, d.Err)
	})
}

func TestCompare(t *testing.T) {
	tone := sine(440, 0.8, 1)

	t.Run("scores do not depend on the candidate's gain", func(t *testing.T) {
		base, err := Compare(tone, tone, DefaultScoringConfig())
		require.NoError(t, err)

		for _, k := range []float64{0.1, 1, 10} {
			scaled := make([]float64, len(tone))
			for i, v := range tone {
				scaled[i] = k * v
			}

			score, err := Compare(scaled, tone, DefaultScoringConfig())
			require.NoError(t, err)

			assert.InDelta(t, base.Time, score.Time, 1e-9, "k=%v", k)
			assert.InDelta(t, base.Frequency, score.Frequency, 1e-9, "k=%v", k)
			assert.InDelta(t, base.Final, score.Final, 1e-9, "k=%v", k)
		}
	})

	t.Run("weights shift the final score", func(t *testing.T) {
		shifted := sine(440, 0.8, 1)[37:]

		cfg := DefaultScoringConfig()
		cfg.TimeWeight = 0
		cfg.FrequencyWeight = 1

		score, err := Compare(shifted, tone, cfg)
		require.NoError(t, err)

		assert.Equal(t, score.Frequency, score.Final)
	})

	t.Run("a zero reference is degenerate", func(t *testing.T) {
		_, err := Compare(tone, make([]float64, len(tone)), DefaultScoringConfig())
		assert.ErrorIs(t, err, ErrDegenerateSignal)
	})
}

func TestNew(t *testing.T) {
	t.Run("nil config is rejected", func(t *testing.T) {
		_, err := New(nil)
		assert.Error(t, err)
	})

	t.Run("a missing signature source is rejected", func(t *testing.T) {
		_, err := New(&Config{Scoring: DefaultScoringConfig()})
		assert.Error(t, err)
	})

	t.Run("an overlap as large as the window is rejected", func(t *testing.T) {
		scoring := DefaultScoringConfig()
		scoring.Overlap = scoring.WindowSize

		_, err := New(&Config{Signatures: staticSource{}, Scoring: scoring})
		assert.Error(t, err)
	})

	t.Run("an unknown spectrogram mode is rejected", func(t *testing.T) {
		scoring := DefaultScoringConfig()
		scoring.Mode = "phase"

		_, err := New(&Config{Signatures: staticSource{}, Scoring: scoring})
		assert.Error(t, err)
	})
}

func TestSpectrogram(t *testing.T) {
	t.Run("one row of one-sided bins per segment", func(t *testing.T) {
		rows := spectrogram(sine(1000, 1, 0.1), 256, 128, ModeMagnitude, true)

		// (1600 - 256) / 128 + 1
		require.Len(t, rows, 11)
		assert.Len(t, rows[0], 129)
	})

	t.Run("a pure tone peaks at its bin", func(t *testing.T) {
		// 1 kHz at 16 kHz with 256 samples per segment lands on bin 16
		rows := spectrogram(sine(1000, 1, 0.1), 256, 128, ModeMagnitude, true)

		peak := 0
		for k, v := range rows[0] {
			if v > rows[0][peak] {
				peak = k
			}
		}

		assert.Equal(t, 16, peak)
	})
}

func TestPeriodicHann(t *testing.T) {
	taper := periodicHann(256)
	require.Len(t, taper, 256)

	assert.InDelta(t, 0, taper[0], 1e-12)
	assert.InDelta(t, 1, taper[128], 1e-12)

	// periodic: w[k] == w[N-k], so the last sample is not zero
	for k := 1; k < 256; k++ {
		assert.InDelta(t, taper[k], taper[256-k], 1e-12)
	}

	assert.InDelta(t, 0.5*(1-math.Cos(2*math.Pi*255/256)), taper[255], 1e-12)
}
