// Package controller owns the call lifecycle: it sequences the permission
// gate, the realtime session, and the audio pipelines, interprets session
// events, and exposes call state to the surrounding UI. All state mutation
// happens here; other components only raise events.
package controller

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/skillvee/simulator-sub001/pkg/call"
	"github.com/skillvee/simulator-sub001/pkg/call/audio"
	"github.com/skillvee/simulator-sub001/pkg/call/session"
	"github.com/skillvee/simulator-sub001/pkg/call/transcript"
)

// Gate checks microphone capability and acquires the device.
type Gate interface {
	Supported() bool
	Request(ctx context.Context) (audio.Microphone, error)
}

// Session is the realtime session surface the controller drives.
// session.Client implements it.
type Session interface {
	Events() <-chan session.Event
	SendAudioFrame(pcm []byte) error
	SendOpeningText(text string) error
	Hangup() error
	Close() error
}

// Dialer opens a realtime session, including token issuance.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// Store persists the finished transcript.
type Store interface {
	Flush(ctx context.Context, req transcript.FlushRequest) error
}

// Config identifies the call and shapes its pipelines. The identity fields
// are immutable for the session's lifetime.
type Config struct {
	AssessmentID string
	CallType     call.CallType
	CoworkerID   string

	// OpeningLine is the scripted utterance sent right after the audio
	// pipeline is wired, so the agent speaks first.
	OpeningLine string

	Capture audio.CaptureConfig

	// FlushTimeout bounds the transcript flush at teardown. Default 10s.
	FlushTimeout time.Duration
}

// Status is the UI-facing snapshot of the call.
type Status struct {
	State      call.State
	Speaking   bool
	Listening  bool
	Muted      bool
	ErrMessage string
}

// Controller is the call state machine. At most one call session is active
// at a time; Start is a no-op in any state other than idle or error.
type Controller struct {
	cfg    Config
	gate   Gate
	dialer Dialer
	player audio.Player
	store  Store
	logger *slog.Logger

	mu     sync.Mutex
	state  call.State
	errMsg string
	muted  bool
	active *callSession

	statusCh chan Status
}

// callSession holds every resource acquired for one call attempt. It is
// destroyed exactly once, whichever path triggers the terminal transition.
type callSession struct {
	id       string
	mic      audio.Microphone
	sess     Session
	capture  *audio.CapturePipeline
	playback *audio.PlaybackQueue
	recorder *transcript.Recorder

	teardown sync.Once
	done     chan struct{}
}

// New creates an idle controller.
func New(cfg Config, gate Gate, dialer Dialer, player audio.Player, store Store, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = 10 * time.Second
	}
	return &Controller{
		cfg:      cfg,
		gate:     gate,
		dialer:   dialer,
		player:   player,
		store:    store,
		logger:   logger,
		state:    call.StateIdle,
		statusCh: make(chan Status, 16),
	}
}

// Start runs one connection attempt: permission, token + session open, audio
// wiring. It returns nil without side effect when an attempt is already in
// flight or the call is connected; after an error the next Start re-enters
// requesting-permission. A Hangup or Close landing mid-connect wins: the
// partly built attempt is released and Start returns nil.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case call.StateIdle, call.StateError, call.StateEnded:
	default:
		c.mu.Unlock()
		return nil
	}
	cs := &callSession{
		id:       ulid.Make().String(),
		recorder: transcript.NewRecorder(),
		done:     make(chan struct{}),
	}
	c.active = cs
	c.errMsg = ""
	c.muted = false
	c.setStateLocked(call.StateRequestingPermission)
	c.mu.Unlock()

	if !c.gate.Supported() {
		return c.fail(cs, call.NewUnsupportedDeviceError("audio capture is not supported on this device"))
	}
	mic, err := c.gate.Request(ctx)
	if err != nil {
		return c.fail(cs, call.AsError(err, call.ErrPermissionDenied))
	}
	if !c.attach(cs, call.StateConnecting, func() { cs.mic = mic }) {
		_ = mic.Close()
		return nil
	}

	sess, err := c.dialer.Dial(ctx)
	if err != nil {
		return c.fail(cs, call.AsError(err, call.ErrSessionOpen))
	}
	if !c.attach(cs, "", func() { cs.sess = sess }) {
		_ = sess.Close()
		return nil
	}

	playback := audio.NewPlaybackQueue(c.player, c.logger)
	capture := audio.NewCapturePipeline(mic, sess, c.cfg.Capture, c.logger)
	if !c.attach(cs, "", func() {
		cs.playback = playback
		cs.capture = capture
	}) {
		return nil
	}
	if err := capture.Start(); err != nil {
		return c.fail(cs, call.NewSessionOpenError(err.Error()))
	}

	if !c.attach(cs, call.StateConnected, nil) {
		return nil
	}
	c.logger.Info("call connected", "call_id", cs.id, "call_type", string(c.cfg.CallType))

	if line := strings.TrimSpace(c.cfg.OpeningLine); line != "" {
		if err := sess.SendOpeningText(line); err != nil {
			c.logger.Warn("send opening line failed", "error", err)
		}
	}

	go c.eventLoop(cs)
	return nil
}

func (c *Controller) eventLoop(cs *callSession) {
	defer close(cs.done)

	for ev := range cs.sess.Events() {
		switch e := ev.(type) {
		case session.OpenedEvent:
			// Already reflected by the connected transition.
		case session.AudioFragmentEvent:
			cs.playback.Enqueue(e.Data)
		case session.TranscriptFragmentEvent:
			// Partial deltas are superseded by the final fragment; only
			// finals become transcript entries.
			if e.Final {
				cs.recorder.Append(e.Speaker, e.Text)
			}
		case session.TurnCompleteEvent:
			cs.playback.TurnComplete()
		case session.InterruptedEvent:
			cs.playback.Interrupt()
		case session.ErroredEvent:
			c.fail(cs, e.Err)
		case session.ClosedEvent:
			c.finish(cs, call.StateEnded)
		}
	}
}

// Hangup ends the call from the local side.
func (c *Controller) Hangup() {
	c.mu.Lock()
	cs := c.active
	state := c.state
	c.mu.Unlock()
	if cs == nil || state.Terminal() || state == call.StateIdle {
		return
	}

	if state == call.StateConnected && cs.sess != nil {
		if err := cs.sess.Hangup(); err != nil {
			c.logger.Warn("hangup frame failed", "error", err)
		}
	}
	c.finish(cs, call.StateEnded)
}

// Close tears down whatever the controller currently holds, e.g. on
// navigation away. Safe to call at any time, any number of times.
func (c *Controller) Close() {
	c.mu.Lock()
	cs := c.active
	if cs != nil && !c.state.Terminal() && c.state != call.StateIdle {
		c.setStateLocked(call.StateEnded)
	}
	c.mu.Unlock()
	if cs != nil {
		c.release(cs)
	}
}

// SetMuted toggles outbound audio production only. The session and the
// capture graph stay open; state remains connected.
func (c *Controller) SetMuted(muted bool) {
	c.mu.Lock()
	c.muted = muted
	cs := c.active
	c.publishLocked()
	c.mu.Unlock()

	if cs != nil && cs.capture != nil {
		cs.capture.SetMuted(muted)
	}
}

// Status returns the current UI-facing snapshot.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// State returns the current call state.
func (c *Controller) State() call.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Updates emits a status snapshot on every state transition and mute
// toggle. Slow consumers miss intermediate snapshots, never current state.
func (c *Controller) Updates() <-chan Status {
	return c.statusCh
}

// Transcript returns the entries recorded so far, in recognition order.
func (c *Controller) Transcript() []call.TranscriptEntry {
	c.mu.Lock()
	cs := c.active
	c.mu.Unlock()
	if cs == nil {
		return nil
	}
	return cs.recorder.Entries()
}

func (c *Controller) statusLocked() Status {
	s := Status{
		State:      c.state,
		Muted:      c.muted,
		ErrMessage: c.errMsg,
	}
	if cs := c.active; cs != nil && cs.playback != nil {
		s.Speaking = cs.playback.Speaking()
	}
	s.Listening = c.state == call.StateConnected && !c.muted
	return s
}

// attach binds a newly acquired resource to the call session and optionally
// advances the state. It refuses when the attempt was torn down while the
// acquisition was in flight (the session is no longer active, or a terminal
// transition happened); the caller then releases the resource itself.
func (c *Controller) attach(cs *callSession, next call.State, bind func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != cs || c.state.Terminal() {
		return false
	}
	if bind != nil {
		bind()
	}
	if next != "" {
		c.setStateLocked(next)
	}
	return true
}

// finish moves the call to a terminal state, unless a different terminal
// transition or a newer attempt already won, and releases the session.
func (c *Controller) finish(cs *callSession, s call.State) {
	c.mu.Lock()
	if c.active == cs && !c.state.Terminal() {
		c.setStateLocked(s)
	}
	c.mu.Unlock()
	c.release(cs)
}

func (c *Controller) setStateLocked(s call.State) {
	if c.state == s {
		return
	}
	c.logger.Debug("call state", "from", c.state.String(), "to", s.String())
	c.state = s
	c.publishLocked()
}

func (c *Controller) publishLocked() {
	// Drop the oldest snapshot when the consumer lags; the channel always
	// ends on the current state.
	s := c.statusLocked()
	for {
		select {
		case c.statusCh <- s:
			return
		case <-c.statusCh:
		}
	}
}

// fail moves the call to error with a human-readable message and releases
// everything acquired so far. Partial transcript is still flushed.
func (c *Controller) fail(cs *callSession, err *call.Error) error {
	c.mu.Lock()
	if c.active == cs && !c.state.Terminal() {
		c.errMsg = err.Message
		c.setStateLocked(call.StateError)
	}
	c.mu.Unlock()
	c.logger.Warn("call failed", "call_id", cs.id, "type", string(err.Type), "error", err.Message)
	c.release(cs)
	return err
}

// release destroys a call session exactly once: capture first so no frame
// lands in a closing session, then playback, then the session itself, then
// the transcript flush.
func (c *Controller) release(cs *callSession) {
	cs.teardown.Do(func() {
		if cs.capture != nil {
			cs.capture.Stop()
		} else if cs.mic != nil {
			_ = cs.mic.Close()
		}
		if cs.playback != nil {
			cs.playback.Stop()
		}
		if cs.sess != nil {
			_ = cs.sess.Close()
		}

		entries := cs.recorder.Entries()
		if len(entries) == 0 || c.store == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.FlushTimeout)
		defer cancel()
		err := c.store.Flush(ctx, transcript.FlushRequest{
			AssessmentID: c.cfg.AssessmentID,
			CoworkerID:   c.cfg.CoworkerID,
			Transcript:   entries,
		})
		if err != nil {
			// Persistence failures never change call state.
			c.logger.Warn("transcript flush failed", "call_id", cs.id, "error", err)
			return
		}
		c.logger.Info("transcript flushed", "call_id", cs.id, "entries", len(entries))
	})
}
