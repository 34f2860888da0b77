package audio_capture

import (
	"errors"
	"fmt"
)

var (
	// ErrDevice matches every *DeviceError.
	ErrDevice = errors.New("audio device error")
	// ErrCaptureBusy is returned when another capture is already running.
	ErrCaptureBusy = errors.New("capture already in progress")
	// ErrDeviceStalled means the device stopped delivering frames.
	ErrDeviceStalled = errors.New("device stopped delivering frames")
)

// DeviceError reports a microphone failure during one capture attempt. The
// attempt's audio is discarded; a fresh capture may succeed.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

func (e *DeviceError) Is(target error) bool {
	return target == ErrDevice
}
