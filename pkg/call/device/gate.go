// Package device provides the microphone permission gate and the real
// capture/playback devices (malgo microphone, oto speaker) behind the audio
// package's interfaces.
package device

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/skillvee/simulator-sub001/pkg/call"
	"github.com/skillvee/simulator-sub001/pkg/call/audio"
)

// Gate checks capture capability and acquires the microphone. The microphone
// is exclusive: a second Request while one handle is open fails, and access
// is requested at most once per call attempt.
type Gate struct {
	logger *slog.Logger

	mu    sync.Mutex
	ctx   *malgo.AllocatedContext
	inUse bool
}

// NewGate creates a permission gate.
func NewGate(logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{logger: logger}
}

// Supported reports whether a capture backend and at least one capture
// device exist. It has no side effect on device state.
func (g *Gate) Supported() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.initContextLocked(); err != nil {
		return false
	}
	infos, err := g.ctx.Devices(malgo.Capture)
	if err != nil {
		g.logger.Warn("capture device enumeration failed", "error", err)
		return false
	}
	return len(infos) > 0
}

// Request acquires the default capture device at the fixed 16 kHz mono
// capture format. A refused or failed device open is a permission denial.
func (g *Gate) Request(ctx context.Context) (audio.Microphone, error) {
	if err := ctx.Err(); err != nil {
		return nil, call.NewPermissionDeniedError(err.Error())
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inUse {
		return nil, call.NewPermissionDeniedError("microphone is already held by an active call")
	}
	if err := g.initContextLocked(); err != nil {
		return nil, call.NewUnsupportedDeviceError("audio capture backend unavailable: " + err.Error())
	}

	mic, err := openMicrophone(g.ctx.Context, audio.Config{SampleRate: audio.CaptureRate, Channels: 1}, g.release)
	if err != nil {
		return nil, call.NewPermissionDeniedError("microphone access failed: " + err.Error())
	}
	g.inUse = true
	return mic, nil
}

func (g *Gate) release() {
	g.mu.Lock()
	g.inUse = false
	g.mu.Unlock()
}

func (g *Gate) initContextLocked() error {
	if g.ctx != nil {
		return nil
	}
	cfg := malgo.ContextConfig{}
	cfg.ThreadPriority = malgo.ThreadPriorityRealtime
	ctx, err := malgo.InitContext(nil, cfg, nil)
	if err != nil {
		return err
	}
	g.ctx = ctx
	return nil
}

// Close releases the capture backend.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ctx != nil {
		_ = g.ctx.Uninit()
		g.ctx.Free()
		g.ctx = nil
	}
}
