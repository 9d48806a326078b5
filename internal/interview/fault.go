package interview

import (
	"errors"
	"fmt"
)

// FaultKind is the error taxonomy of a session.
type FaultKind string

const (
	DeviceFault        FaultKind = "device"
	CaptureFault       FaultKind = "capture"
	TranscriptionFault FaultKind = "transcription"
	DialogueFault      FaultKind = "dialogue"
	PlaybackFault      FaultKind = "playback"
)

// Reason narrows a FaultKind.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonPermissionDenied Reason = "permission_denied"
	ReasonNoDevice         Reason = "no_device"
	ReasonPlatformError    Reason = "platform_error"
	ReasonNotAcquired      Reason = "not_acquired"
	ReasonAlreadyRecording Reason = "already_recording"
	ReasonTimeout          Reason = "timeout"
	ReasonInvalidSpeaker   Reason = "invalid_speaker"
	ReasonProvider         Reason = "provider"
)

// Fault is a classified session error. Message is meant for the user.
type Fault struct {
	Kind    FaultKind
	Reason  Reason
	Op      string
	Message string
	Cause   error
}

func (f *Fault) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", f.Kind, f.Op, f.Message, f.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", f.Kind, f.Op, f.Message)
}

func (f *Fault) Unwrap() error {
	return f.Cause
}

// NewFault builds a fault without a cause.
func NewFault(kind FaultKind, reason Reason, op, message string) *Fault {
	return &Fault{Kind: kind, Reason: reason, Op: op, Message: message}
}

// WrapFault classifies err. An err that already carries a Fault is returned as is.
func WrapFault(kind FaultKind, reason Reason, op string, err error) *Fault {
	if err == nil {
		return nil
	}
	var typed *Fault
	if errors.As(err, &typed) {
		return typed
	}
	return &Fault{Kind: kind, Reason: reason, Op: op, Message: err.Error(), Cause: err}
}

// IsKind reports whether err carries a Fault of the given kind.
func IsKind(err error, kind FaultKind) bool {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind == kind
	}
	return false
}

// ReasonOf returns the Reason of the Fault carried by err, if any.
func ReasonOf(err error) Reason {
	var f *Fault
	if errors.As(err, &f) {
		return f.Reason
	}
	return ReasonNone
}

// MessageOf returns the user-facing message of err.
func MessageOf(err error) string {
	var f *Fault
	if errors.As(err, &f) {
		return f.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

var (
	// ErrNotReady is returned by user actions that do not apply in the current state.
	ErrNotReady = errors.New("interview: session is busy")
	// ErrFinished is returned by user actions after the session reached a terminal state or was torn down.
	ErrFinished = errors.New("interview: session finished")
)
