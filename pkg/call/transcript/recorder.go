// Package transcript accumulates the conversation transcript during a call
// and flushes it to the persistence endpoint once the call ends.
package transcript

import (
	"sync"
	"time"

	"github.com/skillvee/simulator-sub001/pkg/call"
)

// Recorder is an append-only transcript accumulator. Entries are appended in
// recognition order and never rewritten; the recorder has no display side
// effect and is read once at call end.
type Recorder struct {
	mu      sync.Mutex
	entries []call.TranscriptEntry
	now     func() time.Time
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// Append records one recognized utterance fragment, stamped at capture time.
func (r *Recorder) Append(speaker call.Speaker, text string) {
	if r == nil || text == "" {
		return
	}
	r.mu.Lock()
	r.entries = append(r.entries, call.TranscriptEntry{
		Speaker:   speaker,
		Text:      text,
		Timestamp: r.now().UTC(),
	})
	r.mu.Unlock()
}

// Entries returns a copy of the transcript in recognition order.
func (r *Recorder) Entries() []call.TranscriptEntry {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call.TranscriptEntry(nil), r.entries...)
}

// Len returns the number of recorded entries.
func (r *Recorder) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
