// Package speaker_verification compares an utterance against the enrolled
// signature with a time-domain and a frequency-domain Pearson correlation.
// It is a coarse similarity heuristic: it tells a replay of the enrolled
// waveform from unrelated noise, not one speaker from another.
package speaker_verification

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"voice-gated-assistant/speaker_signature"
	"voice-gated-assistant/utterance"
)

const (
	DefaultThreshold  = 0.5
	DefaultWindowSize = 256
	DefaultOverlap    = 128
)

var (
	ErrDegenerateSignal     = errors.New("signal is all zeros")
	ErrCorrelationUndefined = errors.New("correlation is undefined")
	ErrSampleRateMismatch   = errors.New("utterance and signature sample rates differ")
	ErrTooShort             = errors.New("signal is shorter than one analysis window")
	ErrScoringFailed        = errors.New("scoring failed")
)

type Outcome string

const (
	// OutcomeNoSignature accepts: without an enrollment every utterance passes.
	OutcomeNoSignature Outcome = "no_signature"
	OutcomeMatch       Outcome = "match"
	OutcomeMismatch    Outcome = "mismatch"
	OutcomeDegenerate  Outcome = "degenerate"
	OutcomeUndefined   Outcome = "undefined"
	OutcomeInvalid     Outcome = "invalid"
)

type Score struct {
	Time      float64
	Frequency float64
	Final     float64
}

type Decision struct {
	Accepted bool
	Outcome  Outcome
	Score    Score
	// Err explains a rejection that happened before a score was reached.
	Err error
}

// SignatureSource yields the current signature, or nil when none is enrolled.
type SignatureSource interface {
	Current() *speaker_signature.Signature
}

type ScoringConfig struct {
	TimeWeight      float64         `yaml:"time_weight"`
	FrequencyWeight float64         `yaml:"frequency_weight"`
	WindowSize      int             `yaml:"window_size"`
	Overlap         int             `yaml:"overlap"`
	Mode            SpectrogramMode `yaml:"mode"`
	// Detrend removes each segment's mean before the FFT.
	Detrend bool `yaml:"detrend"`
}

func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		TimeWeight:      0.5,
		FrequencyWeight: 0.5,
		WindowSize:      DefaultWindowSize,
		Overlap:         DefaultOverlap,
		Mode:            ModeMagnitude,
		Detrend:         true,
	}
}

func (c ScoringConfig) Validate() error {
	if c.TimeWeight < 0 || c.FrequencyWeight < 0 || c.TimeWeight+c.FrequencyWeight == 0 {
		return fmt.Errorf("weights must be non-negative and not both zero")
	}

	if c.WindowSize < 2 {
		return fmt.Errorf("window size must be at least 2, got %d", c.WindowSize)
	}

	if c.Overlap < 0 || c.Overlap >= c.WindowSize {
		return fmt.Errorf("overlap must be in [0, %d), got %d", c.WindowSize, c.Overlap)
	}

	if c.Mode != ModeMagnitude && c.Mode != ModePSD {
		return fmt.Errorf("unknown spectrogram mode %q", c.Mode)
	}

	return nil
}

type Config struct {
	Signatures SignatureSource
	// Threshold is exclusive: a final score equal to it is rejected.
	Threshold float64
	Scoring   ScoringConfig
	Logger    *zap.Logger
}

type verifierImpl struct {
	signatures SignatureSource
	threshold  float64
	scoring    ScoringConfig
	logger     *zap.Logger
}

func New(cfg *Config) (Interface, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.Signatures == nil {
		return nil, fmt.Errorf("signatures is nil")
	}

	if err := cfg.Scoring.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.L().Named("speaker_verification")
	}

	return &verifierImpl{
		signatures: cfg.Signatures,
		threshold:  cfg.Threshold,
		scoring:    cfg.Scoring,
		logger:     logger,
	}, nil
}

func (v *verifierImpl) Verify(u *utterance.Utterance) (decision Decision) {
	sig := v.signatures.Current()
	if sig == nil {
		v.logger.Warn("no signature enrolled, accepting utterance")

		return Decision{Accepted: true, Outcome: OutcomeNoSignature}
	}

	if u == nil {
		return Decision{Outcome: OutcomeInvalid, Err: fmt.Errorf("utterance is nil")}
	}

	logger := v.logger.With(zap.String("utterance_id", u.ID()))

	if u.SampleRate() != sig.SampleRate() {
		logger.Warn("rejecting utterance",
			zap.Int("utterance_rate", u.SampleRate()),
			zap.Int("signature_rate", sig.SampleRate()))

		return Decision{Outcome: OutcomeInvalid, Err: ErrSampleRateMismatch}
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("scoring panicked, rejecting utterance", zap.Any("panic", r))

			decision = Decision{Outcome: OutcomeInvalid, Err: fmt.Errorf("%w: %v", ErrScoringFailed, r)}
		}
	}()

	score, err := Compare(u.Float64s(), sig.Samples(), v.scoring)
	if err != nil {
		logger.Info("rejecting utterance", zap.Error(err))

		return Decision{Outcome: outcomeOf(err), Score: score, Err: err}
	}

	decision = Decision{
		Accepted: score.Final > v.threshold,
		Outcome:  OutcomeMismatch,
		Score:    score,
	}

	if decision.Accepted {
		decision.Outcome = OutcomeMatch
	}

	logger.Info("speaker verified",
		zap.Bool("accepted", decision.Accepted),
		zap.Float64("time_score", score.Time),
		zap.Float64("frequency_score", score.Frequency),
		zap.Float64("final_score", score.Final),
		zap.Float64("threshold", v.threshold))

	return decision
}

func outcomeOf(err error) Outcome {
	switch {
	case errors.Is(err, ErrDegenerateSignal):
		return OutcomeDegenerate
	case errors.Is(err, ErrCorrelationUndefined):
		return OutcomeUndefined
	default:
		return OutcomeInvalid
	}
}

// Compare scores a candidate waveform against a reference. Both are
// normalized by their own peak, correlated over their common prefix and
// over the common time frames of their spectrograms.
func Compare(candidate, reference []float64, cfg ScoringConfig) (Score, error) {
	cand, err := normalize(candidate)
	if err != nil {
		return Score{}, fmt.Errorf("candidate: %w", err)
	}

	ref, err := normalize(reference)
	if err != nil {
		return Score{}, fmt.Errorf("signature: %w", err)
	}

	if len(cand) < cfg.WindowSize || len(ref) < cfg.WindowSize {
		return Score{}, ErrTooShort
	}

	n := min(len(cand), len(ref))

	var score Score

	score.Time = stat.Correlation(cand[:n], ref[:n], nil)
	if math.IsNaN(score.Time) {
		return score, fmt.Errorf("time domain: %w", ErrCorrelationUndefined)
	}

	candSpec := spectrogram(cand, cfg.WindowSize, cfg.Overlap, cfg.Mode, cfg.Detrend)
	refSpec := spectrogram(ref, cfg.WindowSize, cfg.Overlap, cfg.Mode, cfg.Detrend)
	frames := min(len(candSpec), len(refSpec))

	score.Frequency = stat.Correlation(flatten(candSpec[:frames]), flatten(refSpec[:frames]), nil)
	if math.IsNaN(score.Frequency) {
		return score, fmt.Errorf("frequency domain: %w", ErrCorrelationUndefined)
	}

	score.Final = (cfg.TimeWeight*score.Time + cfg.FrequencyWeight*score.Frequency) /
		(cfg.TimeWeight + cfg.FrequencyWeight)

	return score, nil
}

func normalize(x []float64) ([]float64, error) {
	var peak float64
	for _, v := range x {
		peak = max(peak, math.Abs(v))
	}

	if peak == 0 {
		return nil, ErrDegenerateSignal
	}

	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v / peak
	}

	return out, nil
}
