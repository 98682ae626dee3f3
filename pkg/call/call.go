// Package call holds the shared vocabulary of the realtime voice call
// subsystem: call states, transcript entries, and the error taxonomy every
// component converts its failures into before they reach the controller.
package call

import (
	"strings"
	"time"
)

// State is the lifecycle state of a call session. Transitions are owned
// exclusively by the controller.
type State string

const (
	StateIdle                 State = "idle"
	StateRequestingPermission State = "requesting-permission"
	StateConnecting           State = "connecting"
	StateConnected            State = "connected"
	StateError                State = "error"
	StateEnded                State = "ended"
)

// String returns the wire/UI name of the state.
func (s State) String() string { return string(s) }

// Terminal reports whether the state ends the current call attempt.
func (s State) Terminal() bool { return s == StateError || s == StateEnded }

// CallType identifies the conversational context of a call.
type CallType string

const (
	// CallTypeScreening is a one-on-one screening conversation with the
	// interviewer persona.
	CallTypeScreening CallType = "screening"
	// CallTypePeer is a peer-to-peer call with a specific coworker persona
	// and requires a coworker id when requesting a token.
	CallTypePeer CallType = "peer"
)

// Speaker identifies which side of the conversation produced an utterance.
type Speaker string

const (
	SpeakerHuman Speaker = "human"
	SpeakerAgent Speaker = "agent"
)

// TranscriptEntry is one recognized utterance fragment. Entries are appended
// in recognition order and never rewritten.
type TranscriptEntry struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorType categorizes call subsystem failures.
type ErrorType string

const (
	// ErrPermissionDenied means microphone access was refused.
	ErrPermissionDenied ErrorType = "permission_denied"
	// ErrUnsupportedDevice means no usable capture device/backend exists.
	ErrUnsupportedDevice ErrorType = "unsupported_device"
	// ErrTokenFetch means the token-issuance endpoint failed.
	ErrTokenFetch ErrorType = "token_fetch_failed"
	// ErrSessionOpen means the realtime session failed to open.
	ErrSessionOpen ErrorType = "session_open_failed"
	// ErrProtocol means the realtime session raised an error mid-call.
	ErrProtocol ErrorType = "protocol_error"
	// ErrPersistence means the transcript could not be persisted. Never
	// changes call state; surfaced through logs only.
	ErrPersistence ErrorType = "persistence_failed"
)

// Error is the single error value exchanged between call components.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return string(e.Type) + ": " + e.Message + " (code: " + e.Code + ")"
	}
	return string(e.Type) + ": " + e.Message
}

// NewPermissionDeniedError creates a microphone permission error.
func NewPermissionDeniedError(message string) *Error {
	return &Error{Type: ErrPermissionDenied, Message: message}
}

// NewUnsupportedDeviceError creates a missing-capture-device error.
func NewUnsupportedDeviceError(message string) *Error {
	return &Error{Type: ErrUnsupportedDevice, Message: message}
}

// NewTokenFetchError creates a token-issuance failure.
func NewTokenFetchError(message string) *Error {
	return &Error{Type: ErrTokenFetch, Message: message}
}

// NewSessionOpenError creates a session-open failure.
func NewSessionOpenError(message string) *Error {
	return &Error{Type: ErrSessionOpen, Message: message}
}

// NewProtocolError creates a mid-call protocol failure.
func NewProtocolError(message, code string) *Error {
	return &Error{Type: ErrProtocol, Message: message, Code: code}
}

// NewPersistenceError creates a transcript persistence failure.
func NewPersistenceError(message string) *Error {
	return &Error{Type: ErrPersistence, Message: message}
}

// AsError converts any error into a *Error, defaulting to the given type
// when err is not already one.
func AsError(err error, fallback ErrorType) *Error {
	if err == nil {
		return nil
	}
	if ce, ok := err.(*Error); ok {
		return ce
	}
	return &Error{Type: fallback, Message: strings.TrimSpace(err.Error())}
}
