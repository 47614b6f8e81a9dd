package session

import "errors"

var (
	ErrBusy              = errors.New("session is busy")
	ErrEmptyMessage      = errors.New("message is empty")
	ErrPermissionDenied  = errors.New("microphone permission denied")
	ErrEmptyRecording    = errors.New("no audio captured")
	ErrUnsupported       = errors.New("capability not supported")
	ErrNoTranscript      = errors.New("speech could not be transcribed")
	ErrUnknownTheme      = errors.New("unknown theme")
	ErrInvalidTransition = errors.New("invalid state transition")
)
