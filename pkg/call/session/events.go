package session

import "github.com/skillvee/simulator-sub001/pkg/call"

// Event is one inbound session event. The full set is closed: Opened,
// AudioFragment, TranscriptFragment, TurnComplete, Interrupted, Errored,
// Closed. Events are delivered in protocol arrival order on one channel.
type Event interface {
	sessionEventType() string
}

// OpenedEvent is emitted once when the remote service acknowledges the
// session.
type OpenedEvent struct {
	SessionID string
}

func (e OpenedEvent) sessionEventType() string { return "opened" }

// AudioFragmentEvent carries one fragment of synthesized agent speech.
type AudioFragmentEvent struct {
	Seq  int64
	Data []byte
}

func (e AudioFragmentEvent) sessionEventType() string { return "audio_fragment" }

// TranscriptFragmentEvent carries recognized text for either speaker.
type TranscriptFragmentEvent struct {
	Speaker call.Speaker
	Text    string
	Final   bool
}

func (e TranscriptFragmentEvent) sessionEventType() string { return "transcript_fragment" }

// TurnCompleteEvent signals the agent finished its turn.
type TurnCompleteEvent struct{}

func (e TurnCompleteEvent) sessionEventType() string { return "turn_complete" }

// InterruptedEvent signals the agent's in-progress turn was cut off; queued
// playback should be discarded. Not a failure.
type InterruptedEvent struct {
	Reason string
}

func (e InterruptedEvent) sessionEventType() string { return "interrupted" }

// ErroredEvent carries a terminal protocol failure.
type ErroredEvent struct {
	Err *call.Error
}

func (e ErroredEvent) sessionEventType() string { return "errored" }

// ClosedEvent is emitted when the session ends, remotely or locally.
type ClosedEvent struct {
	Reason string
}

func (e ClosedEvent) sessionEventType() string { return "closed" }
