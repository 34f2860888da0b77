package pipeline

import "context"

type Interface interface {
	// ListenOnce runs one capture through transcription, verification and
	// dispatch. Only context cancellation is returned as an error.
	ListenOnce(ctx context.Context) (*Outcome, error)
	ListenLoop(ctx context.Context) error
	ControlInterface
}

type ControlInterface interface {
	HaltListening()
	ListenForWake()
	ListenForCommand()
}
