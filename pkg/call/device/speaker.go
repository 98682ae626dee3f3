package device

import (
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/skillvee/simulator-sub001/pkg/call/audio"
)

// Speaker plays agent speech through the default output device. It
// implements audio.Player: Write appends PCM, Flush drops buffered audio so
// an interrupted turn goes silent immediately.
type Speaker struct {
	otoCtx *oto.Context

	mu      sync.Mutex
	cond    *sync.Cond
	player  *oto.Player
	buf     []byte
	playing bool
	closed  bool
}

// NewSpeaker opens the output device at the inbound playback rate.
func NewSpeaker() (*Speaker, error) {
	cfg := audio.Config{SampleRate: audio.PlaybackRate, Channels: 1}
	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   100 * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}
	<-ready

	s := &Speaker{
		otoCtx: otoCtx,
		buf:    make([]byte, 0, cfg.BytesPerSecond()*2),
	}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// Write buffers PCM for playback, starting the player on first data.
func (s *Speaker) Write(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.buf = append(s.buf, data...)
	if !s.playing {
		s.playing = true
		s.player = s.otoCtx.NewPlayer(s)
		s.player.Play()
	}
	s.cond.Signal()
}

// Read implements io.Reader for the oto player pull loop.
func (s *Speaker) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) == 0 && !s.closed {
		s.cond.Wait()
	}
	if s.closed && len(s.buf) == 0 {
		// Feed silence so oto drains gracefully.
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// Flush discards pending audio and resets the player so stale agent speech
// never overlaps the next turn.
func (s *Speaker) Flush() {
	s.mu.Lock()
	s.buf = s.buf[:0]
	if s.player != nil && s.playing {
		s.playing = false
		player := s.player
		s.player = nil
		s.mu.Unlock()

		player.Pause()
		player.Reset()
		_ = player.Close()
		return
	}
	s.mu.Unlock()
}

// Close stops playback permanently.
func (s *Speaker) Close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	player := s.player
	s.player = nil
	s.mu.Unlock()

	if player != nil {
		_ = player.Close()
	}
}
