package speaker_verification

import "voice-gated-assistant/utterance"

type Interface interface {
	// Verify never fails: every problem becomes a rejecting Decision.
	Verify(u *utterance.Utterance) Decision
}
