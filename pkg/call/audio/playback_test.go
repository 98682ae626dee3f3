package audio

import (
	"sync"
	"testing"
	"time"
)

type fakePlayer struct {
	mu      sync.Mutex
	writes  []string
	flushes int

	// When gate is non-nil every Write blocks until a value is received.
	gate chan struct{}
}

func (p *fakePlayer) Write(data []byte) {
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	p.writes = append(p.writes, string(data))
	p.mu.Unlock()
}

func (p *fakePlayer) Flush() {
	p.mu.Lock()
	p.flushes++
	p.mu.Unlock()
}

func (p *fakePlayer) played() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.writes...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestPlaybackQueue_DrainsInArrivalOrder(t *testing.T) {
	player := &fakePlayer{}
	q := NewPlaybackQueue(player, nil)

	q.Enqueue([]byte("f1"))
	q.Enqueue([]byte("f2"))
	q.TurnComplete()

	waitFor(t, func() bool { return !q.Speaking() })

	got := player.played()
	if len(got) != 2 || got[0] != "f1" || got[1] != "f2" {
		t.Fatalf("played = %v, want [f1 f2]", got)
	}
}

func TestPlaybackQueue_SpeakingSignal(t *testing.T) {
	player := &fakePlayer{gate: make(chan struct{})}
	q := NewPlaybackQueue(player, nil)

	q.Enqueue([]byte("f1"))
	if !q.Speaking() {
		t.Fatal("Speaking() = false while fragment queued")
	}

	// Turn completion mid-drain only clears speaking once drained.
	q.TurnComplete()
	if !q.Speaking() {
		t.Fatal("Speaking() dropped before queue drained")
	}

	player.gate <- struct{}{}
	waitFor(t, func() bool { return !q.Speaking() })
}

func TestPlaybackQueue_InterruptionClearsPending(t *testing.T) {
	player := &fakePlayer{gate: make(chan struct{})}
	q := NewPlaybackQueue(player, nil)

	q.Enqueue([]byte("f1"))
	q.Enqueue([]byte("f2"))
	q.Enqueue([]byte("f3"))

	// f1 is mid-playback; interrupt before it finishes.
	q.Interrupt()
	if q.Speaking() {
		t.Fatal("Speaking() = true after interruption")
	}

	// Let the in-flight write finish.
	player.gate <- struct{}{}
	waitFor(t, func() bool { return len(player.played()) == 1 })

	// Nothing queued-but-unstarted may play after the interruption.
	time.Sleep(50 * time.Millisecond)
	got := player.played()
	if len(got) != 1 || got[0] != "f1" {
		t.Fatalf("played = %v, want only the in-flight f1", got)
	}

	player.mu.Lock()
	flushes := player.flushes
	player.mu.Unlock()
	if flushes == 0 {
		t.Fatal("interruption did not flush the device buffer")
	}
}

func TestPlaybackQueue_ArrivalsDuringDrainAreAppended(t *testing.T) {
	player := &fakePlayer{gate: make(chan struct{}, 8)}
	q := NewPlaybackQueue(player, nil)

	q.Enqueue([]byte("f1"))
	q.Enqueue([]byte("f2"))
	player.gate <- struct{}{}
	waitFor(t, func() bool { return len(player.played()) == 1 })

	// Arrives while the drain loop is still busy with f2.
	q.Enqueue([]byte("f3"))
	player.gate <- struct{}{}
	player.gate <- struct{}{}
	q.TurnComplete()

	waitFor(t, func() bool { return len(player.played()) == 3 })
	got := player.played()
	if got[0] != "f1" || got[1] != "f2" || got[2] != "f3" {
		t.Fatalf("played = %v, want [f1 f2 f3]", got)
	}
}

func TestPlaybackQueue_StopRejectsFurtherFragments(t *testing.T) {
	player := &fakePlayer{}
	q := NewPlaybackQueue(player, nil)

	q.Stop()
	q.Stop()
	q.Enqueue([]byte("late"))

	time.Sleep(20 * time.Millisecond)
	if got := player.played(); len(got) != 0 {
		t.Fatalf("played = %v after Stop, want none", got)
	}
}
