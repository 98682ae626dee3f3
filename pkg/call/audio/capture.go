package audio

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Microphone is a live capture device handle. Read blocks until samples are
// available and returns an error once the device is closed. SetEnabled
// toggles the underlying track without tearing the device down.
type Microphone interface {
	Read(p []byte) (int, error)
	SetEnabled(enabled bool)
	Close() error
}

// FrameSink receives outbound frames in capture order.
type FrameSink interface {
	SendAudioFrame(pcm []byte) error
}

// CaptureConfig shapes the capture pipeline.
type CaptureConfig struct {
	// Native is the device capture format. Frames are resampled from this
	// rate to the fixed 16 kHz outbound rate.
	Native Config
	// FrameDuration is the length of one outbound frame. Default: 20ms.
	FrameDuration time.Duration
}

func (c CaptureConfig) withDefaults() CaptureConfig {
	if c.Native.SampleRate <= 0 {
		c.Native.SampleRate = CaptureRate
	}
	if c.Native.Channels <= 0 {
		c.Native.Channels = 1
	}
	if c.FrameDuration <= 0 {
		c.FrameDuration = 20 * time.Millisecond
	}
	return c
}

// CapturePipeline turns a microphone into an ordered sequence of outbound
// PCM frames pushed into the active session. Muting stops frame production
// without rebuilding the pipeline or re-requesting the device.
type CapturePipeline struct {
	cfg    CaptureConfig
	mic    Microphone
	sink   FrameSink
	logger *slog.Logger

	muted   atomic.Bool
	started atomic.Bool

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewCapturePipeline wires a microphone to a frame sink.
func NewCapturePipeline(mic Microphone, sink FrameSink, cfg CaptureConfig, logger *slog.Logger) *CapturePipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &CapturePipeline{
		cfg:    cfg.withDefaults(),
		mic:    mic,
		sink:   sink,
		logger: logger,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start begins producing frames. Calling Start twice is an error.
func (p *CapturePipeline) Start() error {
	if p == nil || p.mic == nil || p.sink == nil {
		return errors.New("capture pipeline is not initialized")
	}
	if !p.started.CompareAndSwap(false, true) {
		return errors.New("capture pipeline already started")
	}
	go p.run()
	return nil
}

func (p *CapturePipeline) run() {
	defer close(p.done)

	frameBytes := p.cfg.Native.BytesForDuration(p.cfg.FrameDuration)
	if frameBytes < 2 {
		frameBytes = 2
	}
	buf := make([]byte, frameBytes)
	pending := make([]byte, 0, frameBytes*2)

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		n, err := p.mic.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.logger.Warn("capture read failed", "error", err)
			}
			return
		}
		pending = append(pending, buf[:n]...)

		for len(pending) >= frameBytes {
			frame := pending[:frameBytes:frameBytes]
			pending = pending[frameBytes:]

			select {
			case <-p.stopCh:
				return
			default:
			}
			if p.muted.Load() {
				continue
			}

			out := Resample(frame, p.cfg.Native.SampleRate, CaptureRate)
			if err := p.sink.SendAudioFrame(out); err != nil {
				// The session raises its own error event; just stop producing.
				p.logger.Warn("send audio frame failed", "error", err)
				return
			}
		}
	}
}

// SetMuted disables or re-enables the underlying track. The capture graph
// stays intact, so unmuting needs no new permission request.
func (p *CapturePipeline) SetMuted(muted bool) {
	if p == nil {
		return
	}
	p.muted.Store(muted)
	p.mic.SetEnabled(!muted)
}

// Muted reports whether outbound frames are currently suppressed.
func (p *CapturePipeline) Muted() bool {
	return p != nil && p.muted.Load()
}

// Stop tears the pipeline down: frame production stops first, then the track
// is disabled, then the device is closed. Safe to call more than once.
func (p *CapturePipeline) Stop() {
	if p == nil {
		return
	}
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.mic.SetEnabled(false)
		_ = p.mic.Close()
		if p.started.Load() {
			<-p.done
		}
	})
}
