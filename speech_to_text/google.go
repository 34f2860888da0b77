package speech_to_text

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"voice-gated-assistant/utterance"
)

const (
	engineGoogle        = "google"
	defaultLanguageCode = "en-US"
)

type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

// GoogleSTT transcribes whole utterances with the synchronous Cloud Speech
// Recognize call.
type GoogleSTT struct {
	client    *speech.Client
	recognize recognizeFunc
	language  string
	logger    *zap.Logger
}

type GoogleConfig struct {
	LanguageCode string
	// CredentialsFile is optional; application default credentials are
	// used when it is empty.
	CredentialsFile string
	Logger          *zap.Logger
}

func NewGoogle(ctx context.Context, cfg *GoogleConfig) (*GoogleSTT, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}

	s := newGoogle(cfg, func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return client.Recognize(ctx, req)
	})
	s.client = client

	return s, nil
}

func newGoogle(cfg *GoogleConfig, recognize recognizeFunc) *GoogleSTT {
	language := cfg.LanguageCode
	if language == "" {
		language = defaultLanguageCode
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.L().Named("speech_to_text")
	}

	return &GoogleSTT{
		recognize: recognize,
		language:  language,
		logger:    logger,
	}
}

func (s *GoogleSTT) Transcribe(ctx context.Context, u *utterance.Utterance) (string, error) {
	resp, err := s.recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: int32(u.SampleRate()),
			LanguageCode:    s.language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: u.PCM16()},
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		return "", &ServiceError{Engine: engineGoogle, Err: err}
	}

	text := transcriptFrom(resp)
	if text == "" {
		return "", ErrUnrecognized
	}

	s.logger.Debug("transcribed utterance",
		zap.String("utterance_id", u.ID()),
		zap.Int("results", len(resp.GetResults())))

	return text, nil
}

// transcriptFrom joins the top alternative of every result.
func transcriptFrom(resp *speechpb.RecognizeResponse) string {
	var parts []string

	for _, result := range resp.GetResults() {
		alts := result.GetAlternatives()
		if len(alts) == 0 {
			continue
		}

		if t := strings.TrimSpace(alts[0].GetTranscript()); t != "" {
			parts = append(parts, t)
		}
	}

	return strings.Join(parts, " ")
}

func (s *GoogleSTT) Close() error {
	if s.client == nil {
		return nil
	}

	return s.client.Close()
}
