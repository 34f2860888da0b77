package speech_to_text

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"go.uber.org/zap"

	"voice-gated-assistant/utterance"
)

const engineWhisper = "whisper"

type whisperImpl struct {
	model    whisper.Model
	language string
	logger   *zap.Logger
}

type WhisperConfig struct {
	Model whisper.Model
	// Language is a whisper language code such as "en"; empty keeps the
	// model default.
	Language string
	Logger   *zap.Logger
}

func NewWhisper(cfg *WhisperConfig) (Interface, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.Model == nil {
		return nil, fmt.Errorf("model is nil")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.L().Named("speech_to_text")
	}

	return &whisperImpl{
		model:    cfg.Model,
		language: cfg.Language,
		logger:   logger,
	}, nil
}

func (stt *whisperImpl) Transcribe(ctx context.Context, u *utterance.Utterance) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if u.SampleRate() != utterance.DefaultSampleRate {
		return "", &ServiceError{
			Engine: engineWhisper,
			Err:    fmt.Errorf("whisper needs %d Hz audio, got %d Hz", utterance.DefaultSampleRate, u.SampleRate()),
		}
	}

	// Create processing context
	wctx, err := stt.model.NewContext()
	if err != nil {
		return "", &ServiceError{Engine: engineWhisper, Err: err}
	}

	if stt.language != "" {
		if err = wctx.SetLanguage(stt.language); err != nil {
			return "", &ServiceError{Engine: engineWhisper, Err: err}
		}
	}

	data := u.Float32s()

	var cb whisper.SegmentCallback

	if err = wctx.Process(data, cb); err != nil {
		return "", &ServiceError{Engine: engineWhisper, Err: err}
	}

	texts, err := speechSegments(wctx)
	if err != nil {
		return "", &ServiceError{Engine: engineWhisper, Err: err}
	}

	text := strings.TrimSpace(strings.Join(texts, " "))
	if text == "" {
		return "", ErrUnrecognized
	}

	stt.logger.Debug("transcribed utterance",
		zap.String("utterance_id", u.ID()),
		zap.Int("segments", len(texts)))

	return text, nil
}

type segmentSource interface {
	NextSegment() (whisper.Segment, error)
}

// speechSegments drains the segments, skipping bracketed non-speech markers
// such as "[BLANK_AUDIO]" or "(music)" and repeated text.
func speechSegments(src segmentSource) ([]string, error) {
	seenText := make(map[string]bool)

	texts := make([]string, 0)

	for {
		segment, err := src.NextSegment()
		if err == io.EOF {
			return texts, nil
		} else if err != nil {
			return nil, err
		}

		text := strings.TrimSpace(segment.Text)

		if text == "" || text[0] == '(' || text[0] == '[' ||
			text[len(text)-1] == ')' || text[len(text)-1] == ']' {
			continue
		}

		if seenText[text] {
			continue
		}

		seenText[text] = true

		texts = append(texts, text)
	}
}
