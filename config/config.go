package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"voice-gated-assistant/endpoint_detection"
	"voice-gated-assistant/logger"
	"voice-gated-assistant/speaker_verification"
	"voice-gated-assistant/utterance"
)

const (
	EngineGoogle  = "google"
	EngineWhisper = "whisper"

	envDispatcherAPIHost   = "VGA_DISPATCHER_API_HOST"
	envSignaturePath       = "VGA_SIGNATURE_PATH"
	envLogLevel            = "VGA_LOG_LEVEL"
	envTranscriptionEngine = "VGA_TRANSCRIPTION_ENGINE"
	envMode                = "VGA_MODE"

	defaultEnvFile = ".env"
)

type Config struct {
	// Mode is "dev" for console logging next to the log file, "prod" otherwise.
	Mode          string                    `yaml:"mode"`
	Log           logger.Config             `yaml:"log"`
	Audio         AudioConfig               `yaml:"audio"`
	Endpoint      endpoint_detection.Config `yaml:"endpoint"`
	Signature     SignatureConfig           `yaml:"signature"`
	Verification  VerificationConfig        `yaml:"verification"`
	Transcription TranscriptionConfig       `yaml:"transcription"`
	Dispatcher    DispatcherConfig          `yaml:"dispatcher"`
	Pipeline      PipelineConfig            `yaml:"pipeline"`
}

type AudioConfig struct {
	SampleRate    int           `yaml:"sample_rate"`
	FrameDuration time.Duration `yaml:"frame_duration"`
	// Latency is "high" or "low".
	Latency       string        `yaml:"latency"`
	PreRollFrames int           `yaml:"pre_roll_frames"`
	MaxDuration   time.Duration `yaml:"max_duration"`
	QueueSize     int           `yaml:"queue_size"`
}

type SignatureConfig struct {
	Path       string `yaml:"path"`
	SampleRate int    `yaml:"sample_rate"`
	// Watch reloads the signature when another process re-enrolls.
	Watch          bool          `yaml:"watch"`
	EnrollSamples  int           `yaml:"enroll_samples"`
	EnrollDuration time.Duration `yaml:"enroll_duration"`
}

type VerificationConfig struct {
	Threshold float64                            `yaml:"threshold"`
	Scoring   speaker_verification.ScoringConfig `yaml:",inline"`
}

type TranscriptionConfig struct {
	Engine          string `yaml:"engine"`
	LanguageCode    string `yaml:"language_code"`
	CredentialsFile string `yaml:"credentials_file"`
	WhisperModel    string `yaml:"whisper_model"`
	WhisperLanguage string `yaml:"whisper_language"`
}

type DispatcherConfig struct {
	APIHost string        `yaml:"api_host"`
	Timeout time.Duration `yaml:"timeout"`
}

type PipelineConfig struct {
	ExitWords []string `yaml:"exit_words"`
}

func Default() *Config {
	return &Config{
		Mode: logger.ModeProd,
		Log:  logger.DefaultConfig(),
		Audio: AudioConfig{
			SampleRate:    utterance.DefaultSampleRate,
			FrameDuration: 250 * time.Millisecond,
			Latency:       "high",
			PreRollFrames: 2,
			MaxDuration:   30 * time.Second,
			QueueSize:     8,
		},
		Endpoint: endpoint_detection.DefaultConfig(),
		Signature: SignatureConfig{
			Path:           "signature.npy",
			SampleRate:     utterance.DefaultSampleRate,
			EnrollSamples:  3,
			EnrollDuration: 5 * time.Second,
		},
		Verification: VerificationConfig{
			Threshold: speaker_verification.DefaultThreshold,
			Scoring:   speaker_verification.DefaultScoringConfig(),
		},
		Transcription: TranscriptionConfig{
			Engine:       EngineGoogle,
			LanguageCode: "en-US",
		},
		Dispatcher: DispatcherConfig{
			Timeout: 30 * time.Second,
		},
		Pipeline: PipelineConfig{
			ExitWords: []string{"exit", "goodbye"},
		},
	}
}

// Load layers defaults, the YAML file at path (skipped when path is empty),
// the first existing env file (".env" when none is given) and VGA_*
// environment variables, then validates the result.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{defaultEnvFile}
	}

	for _, f := range envFiles {
		err := godotenv.Load(f)
		if err == nil {
			break
		}

		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(envDispatcherAPIHost); v != "" {
		c.Dispatcher.APIHost = v
	}

	if v := os.Getenv(envSignaturePath); v != "" {
		c.Signature.Path = v
	}

	if v := os.Getenv(envLogLevel); v != "" {
		c.Log.Level = v
	}

	if v := os.Getenv(envTranscriptionEngine); v != "" {
		c.Transcription.Engine = strings.ToLower(v)
	}

	if v := os.Getenv(envMode); v != "" {
		c.Mode = v
	}
}

func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive")
	}

	if c.Audio.FrameDuration <= 0 {
		return fmt.Errorf("audio.frame_duration must be positive")
	}

	if c.Audio.MaxDuration < c.Audio.FrameDuration {
		return fmt.Errorf("audio.max_duration must cover at least one frame")
	}

	if c.Audio.Latency != "high" && c.Audio.Latency != "low" {
		return fmt.Errorf("audio.latency must be high or low, got %q", c.Audio.Latency)
	}

	if err := c.Endpoint.Validate(); err != nil {
		return fmt.Errorf("endpoint: %w", err)
	}

	if c.Signature.Path == "" {
		return fmt.Errorf("signature.path is empty")
	}

	if c.Signature.SampleRate != c.Audio.SampleRate {
		return fmt.Errorf("signature.sample_rate %d differs from audio.sample_rate %d",
			c.Signature.SampleRate, c.Audio.SampleRate)
	}

	if c.Signature.EnrollSamples <= 0 || c.Signature.EnrollDuration <= 0 {
		return fmt.Errorf("signature enrollment needs a positive sample count and duration")
	}

	if c.Verification.Threshold < -1 || c.Verification.Threshold > 1 {
		return fmt.Errorf("verification.threshold must be within [-1, 1], got %v", c.Verification.Threshold)
	}

	if err := c.Verification.Scoring.Validate(); err != nil {
		return fmt.Errorf("verification: %w", err)
	}

	switch c.Transcription.Engine {
	case EngineGoogle:
	case EngineWhisper:
		if c.Transcription.WhisperModel == "" {
			return fmt.Errorf("transcription.whisper_model is required for the whisper engine")
		}
	default:
		return fmt.Errorf("unknown transcription engine %q", c.Transcription.Engine)
	}

	return nil
}
