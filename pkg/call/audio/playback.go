package audio

import (
	"log/slog"
	"sync"
)

// Player is the output device end of the playback queue. Write appends PCM
// to the device buffer; Flush discards whatever the device has buffered.
type Player interface {
	Write(p []byte)
	Flush()
}

// PlaybackQueue buffers inbound agent speech fragments and plays them in
// arrival order. A single drain loop runs at a time; fragments arriving
// mid-drain are appended, never dropped. An interruption discards every
// queued-but-unstarted fragment immediately.
type PlaybackQueue struct {
	player Player
	logger *slog.Logger

	mu       sync.Mutex
	queue    [][]byte
	busy     bool
	turnDone bool
	speaking bool
	closed   bool

	stopOnce sync.Once
}

// NewPlaybackQueue creates a queue draining into player.
func NewPlaybackQueue(player Player, logger *slog.Logger) *PlaybackQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlaybackQueue{player: player, logger: logger}
}

// Enqueue appends one fragment and starts a drain if none is running.
func (q *PlaybackQueue) Enqueue(fragment []byte) {
	if q == nil || len(fragment) == 0 {
		return
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.queue = append(q.queue, fragment)
	q.turnDone = false
	q.speaking = true
	start := !q.busy
	if start {
		q.busy = true
	}
	q.mu.Unlock()

	if start {
		go q.drain()
	}
}

func (q *PlaybackQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.queue) == 0 || q.closed {
			q.busy = false
			if q.turnDone || q.closed {
				q.speaking = false
			}
			q.mu.Unlock()
			return
		}
		fragment := q.queue[0]
		q.queue = q.queue[1:]
		q.mu.Unlock()

		q.player.Write(fragment)
	}
}

// Interrupt discards all pending fragments and drops the speaking signal.
// Audio already handed to the device is flushed as well.
func (q *PlaybackQueue) Interrupt() {
	if q == nil {
		return
	}
	q.mu.Lock()
	q.queue = nil
	q.turnDone = false
	q.speaking = false
	q.mu.Unlock()

	q.player.Flush()
}

// TurnComplete marks the agent's turn finished; the speaking signal clears
// once the queue drains to empty.
func (q *PlaybackQueue) TurnComplete() {
	if q == nil {
		return
	}
	q.mu.Lock()
	q.turnDone = true
	if !q.busy && len(q.queue) == 0 {
		q.speaking = false
	}
	q.mu.Unlock()
}

// Speaking reports whether agent audio is queued or draining.
func (q *PlaybackQueue) Speaking() bool {
	if q == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.speaking
}

// Stop discards pending audio and rejects further fragments. Idempotent.
func (q *PlaybackQueue) Stop() {
	if q == nil {
		return
	}
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.queue = nil
		q.speaking = false
		q.mu.Unlock()
		q.player.Flush()
	})
}
