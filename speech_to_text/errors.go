package speech_to_text

import (
	"errors"
	"fmt"
)

var ErrUnrecognized = errors.New("speech not recognized")

type ServiceError struct {
	Engine string
	Err    error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s transcription failed: %v", e.Engine, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}
