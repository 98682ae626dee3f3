package device

import (
	"io"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/skillvee/simulator-sub001/pkg/call/audio"
)

// microphone is a malgo capture device implementing audio.Microphone.
// Samples arrive on the device callback and are drained by Read through a
// condition variable. Disabling drops samples without stopping the device.
type microphone struct {
	device  *malgo.Device
	release func()

	mu      sync.Mutex
	cond    *sync.Cond
	buf     []byte
	enabled bool
	closed  bool
}

func openMicrophone(ctx malgo.Context, cfg audio.Config, release func()) (*microphone, error) {
	m := &microphone{
		buf:     make([]byte, 0, cfg.BytesPerSecond()),
		enabled: true,
		release: release,
	}
	m.cond = sync.NewCond(&m.mu)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInputSamples []byte, _ uint32) {
			m.mu.Lock()
			if m.enabled && !m.closed {
				m.buf = append(m.buf, pInputSamples...)
			}
			m.mu.Unlock()
			m.cond.Signal()
		},
	}

	device, err := malgo.InitDevice(ctx, deviceConfig, callbacks)
	if err != nil {
		return nil, err
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, err
	}
	m.device = device
	return m, nil
}

func (m *microphone) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for len(m.buf) == 0 && !m.closed {
		m.cond.Wait()
	}
	if m.closed && len(m.buf) == 0 {
		return 0, io.EOF
	}

	n := copy(p, m.buf)
	m.buf = m.buf[n:]
	return n, nil
}

func (m *microphone) SetEnabled(enabled bool) {
	m.mu.Lock()
	m.enabled = enabled
	if !enabled {
		m.buf = m.buf[:0]
	}
	m.mu.Unlock()
}

func (m *microphone) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()

	if m.device != nil {
		_ = m.device.Stop()
		m.device.Uninit()
	}
	if m.release != nil {
		m.release()
	}
	return nil
}
