package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/skillvee/simulator-sub001/pkg/call"
	"github.com/skillvee/simulator-sub001/pkg/call/protocol"
)

// defaultConnectTimeout caps a connection attempt that would otherwise hang
// in connecting forever.
const defaultConnectTimeout = 15 * time.Second

// Config configures one session connect.
type Config struct {
	// RealtimeURL is the websocket endpoint of the remote conversational
	// service. http(s) schemes are converted to ws(s).
	RealtimeURL string
	// Tokens issues the ephemeral call credential before dialing.
	Tokens *TokenClient

	AssessmentID string
	CallType     call.CallType
	CoworkerID   string

	// ConnectTimeout bounds token fetch + dial + hello_ack. Default 15s.
	ConnectTimeout time.Duration
}

// Client is a live realtime session. Inbound frames are decoded by a single
// read loop and emitted in arrival order on Events().
type Client struct {
	conn      *websocket.Conn
	sessionID string
	logger    *slog.Logger

	events  chan Event
	done    chan struct{}
	closing chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
	seq       atomic.Int64

	errMu sync.Mutex
	err   error
}

// Dial issues a token, opens the websocket, and performs the hello /
// hello_ack handshake. The returned client is already emitting events.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.RealtimeURL) == "" {
		return nil, call.NewSessionOpenError("realtime endpoint is not configured")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}

	dialCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	token, err := cfg.Tokens.Issue(dialCtx, TokenRequest{
		AssessmentID: cfg.AssessmentID,
		CallType:     string(cfg.CallType),
		CoworkerID:   cfg.CoworkerID,
	})
	if err != nil {
		return nil, call.AsError(err, call.ErrTokenFetch)
	}

	wsURL, err := websocketEndpoint(cfg.RealtimeURL)
	if err != nil {
		return nil, err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, call.NewSessionOpenError(fmt.Sprintf("websocket dial failed (status %d): %v", resp.StatusCode, err))
		}
		return nil, call.NewSessionOpenError("websocket dial failed: " + err.Error())
	}

	sessionID := ulid.Make().String()
	hello := protocol.NewHello(token, sessionID, string(cfg.CallType), cfg.CoworkerID)
	if err := conn.WriteJSON(hello); err != nil {
		_ = conn.Close()
		return nil, call.NewSessionOpenError("send hello: " + err.Error())
	}

	_ = conn.SetReadDeadline(time.Now().Add(cfg.ConnectTimeout))
	messageType, payload, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, call.NewSessionOpenError("read hello_ack: " + err.Error())
	}
	_ = conn.SetReadDeadline(time.Time{})
	if messageType != websocket.TextMessage {
		_ = conn.Close()
		return nil, call.NewSessionOpenError(fmt.Sprintf("unexpected first frame type %d", messageType))
	}

	first, err := protocol.DecodeServerMessage(payload)
	if err != nil {
		_ = conn.Close()
		return nil, call.NewSessionOpenError(err.Error())
	}
	switch msg := first.(type) {
	case protocol.ServerHelloAck:
		c := &Client{
			conn:      conn,
			sessionID: msg.SessionID,
			logger:    logger,
			events:    make(chan Event, 256),
			done:      make(chan struct{}),
			closing:   make(chan struct{}),
		}
		c.emit(OpenedEvent{SessionID: msg.SessionID})
		go c.readLoop()
		return c, nil
	case protocol.ServerError:
		_ = conn.Close()
		return nil, &call.Error{Type: call.ErrSessionOpen, Message: strings.TrimSpace(msg.Message), Code: strings.TrimSpace(msg.Code)}
	default:
		_ = conn.Close()
		return nil, call.NewSessionOpenError(fmt.Sprintf("unexpected first frame %T", first))
	}
}

// SessionID returns the server-assigned session id.
func (c *Client) SessionID() string {
	if c == nil {
		return ""
	}
	return c.sessionID
}

// Events yields session events in arrival order. The channel closes when the
// session ends.
func (c *Client) Events() <-chan Event {
	if c == nil {
		return nil
	}
	return c.events
}

// SendAudioFrame sends one outbound microphone frame. Frames carry a
// monotonically increasing seq so capture order is preserved on the wire.
func (c *Client) SendAudioFrame(pcm []byte) error {
	if c == nil {
		return errors.New("session must not be nil")
	}
	frame := protocol.ClientAudioFrame{
		Type:    "audio_frame",
		Seq:     c.seq.Add(1),
		Mime:    protocol.MimePCM16k,
		DataB64: base64.StdEncoding.EncodeToString(pcm),
	}
	return c.sendJSON(frame)
}

// SendOpeningText sends the scripted opening utterance that starts the
// conversation.
func (c *Client) SendOpeningText(text string) error {
	if c == nil {
		return errors.New("session must not be nil")
	}
	return c.sendJSON(protocol.ClientText{Type: "text", Text: text})
}

// Hangup asks the remote service to end the session.
func (c *Client) Hangup() error {
	if c == nil {
		return errors.New("session must not be nil")
	}
	return c.sendJSON(protocol.ClientControl{Type: "control", Op: "hangup"})
}

func (c *Client) sendJSON(v any) error {
	if c.closed.Load() {
		return errors.New("session is closed")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// Close tears the websocket down. Idempotent; returns after the read loop
// has exited and Events() is closed.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.closing)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
	<-c.done
	return nil
}

// Err returns the terminal session error, if any, once the session ends.
func (c *Client) Err() error {
	if c == nil {
		return nil
	}
	<-c.done
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Client) setErr(err error) {
	if err == nil {
		return
	}
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.events)

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				c.emit(ClosedEvent{Reason: "local_close"})
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.emit(ClosedEvent{Reason: "remote_close"})
				return
			}
			perr := call.NewProtocolError("session read failed: "+err.Error(), "")
			c.setErr(perr)
			c.emit(ErroredEvent{Err: perr})
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		decoded, err := protocol.DecodeServerMessage(data)
		if err != nil {
			perr := call.NewProtocolError(err.Error(), "bad_frame")
			c.setErr(perr)
			c.emit(ErroredEvent{Err: perr})
			return
		}

		switch msg := decoded.(type) {
		case protocol.ServerAudioChunk:
			audio, err := base64.StdEncoding.DecodeString(msg.DataB64)
			if err != nil {
				perr := call.NewProtocolError("decode audio chunk: "+err.Error(), "bad_frame")
				c.setErr(perr)
				c.emit(ErroredEvent{Err: perr})
				return
			}
			c.emit(AudioFragmentEvent{Seq: msg.Seq, Data: audio})
		case protocol.ServerTranscriptDelta:
			c.emit(TranscriptFragmentEvent{
				Speaker: call.Speaker(msg.Speaker),
				Text:    msg.Text,
				Final:   msg.IsFinal,
			})
		case protocol.ServerTurnComplete:
			c.emit(TurnCompleteEvent{})
		case protocol.ServerInterrupted:
			c.emit(InterruptedEvent{Reason: msg.Reason})
		case protocol.ServerError:
			perr := call.NewProtocolError(strings.TrimSpace(msg.Message), strings.TrimSpace(msg.Code))
			c.setErr(perr)
			c.emit(ErroredEvent{Err: perr})
			return
		case protocol.ServerHelloAck:
			// Duplicate ack after open; ignore.
		}
	}
}

// emit preserves arrival order: it blocks until the consumer takes the event
// or the session starts closing.
func (c *Client) emit(event Event) {
	select {
	case c.events <- event:
	case <-c.closing:
	}
}

func websocketEndpoint(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", call.NewSessionOpenError("invalid realtime URL")
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", call.NewSessionOpenError("realtime URL must use http(s) or ws(s)")
	}
	return u.String(), nil
}
