package speech_to_text

import (
	"context"

	"voice-gated-assistant/utterance"
)

type Interface interface {
	// Transcribe returns ErrUnrecognized when the engine heard no words and
	// a *ServiceError when the engine itself failed.
	Transcribe(ctx context.Context, u *utterance.Utterance) (string, error)
}
