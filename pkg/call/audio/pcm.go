// Package audio implements the two audio pipelines of a call: microphone
// capture to ordered outbound frames, and buffered playback of inbound agent
// speech fragments. All PCM is 16-bit signed little-endian.
package audio

import "time"

// CaptureRate is the fixed outbound sample rate. The capture pipeline
// resamples from the device's native rate to this rate.
const CaptureRate = 16000

// PlaybackRate is the sample rate of inbound agent speech.
const PlaybackRate = 24000

// Config describes a PCM stream shape.
type Config struct {
	SampleRate int
	Channels   int
}

// BytesPerSecond returns the byte rate of the stream.
func (c Config) BytesPerSecond() int {
	return c.SampleRate * c.Channels * 2
}

// BytesForDuration returns the buffer size holding d of audio, rounded down
// to a whole sample.
func (c Config) BytesForDuration(d time.Duration) int {
	n := int(int64(c.BytesPerSecond()) * int64(d) / int64(time.Second))
	return n - n%(c.Channels*2)
}

// Duration returns how much audio n bytes represent.
func (c Config) Duration(n int) time.Duration {
	bps := c.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(bps))
}

// Resample converts mono 16-bit PCM from one sample rate to another using
// linear interpolation. It returns the input unchanged when the rates match.
func Resample(pcm []byte, fromRate, toRate int) []byte {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 {
		return pcm
	}
	in := len(pcm) / 2
	if in == 0 {
		return nil
	}
	out := int(int64(in) * int64(toRate) / int64(fromRate))
	if out == 0 {
		return nil
	}

	result := make([]byte, out*2)
	for i := 0; i < out; i++ {
		// Source position in sample space.
		pos := float64(i) * float64(fromRate) / float64(toRate)
		idx := int(pos)
		frac := pos - float64(idx)

		s0 := sampleAt(pcm, idx)
		s1 := s0
		if idx+1 < in {
			s1 = sampleAt(pcm, idx+1)
		}
		v := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		result[i*2] = byte(v)
		result[i*2+1] = byte(v >> 8)
	}
	return result
}

func sampleAt(pcm []byte, idx int) int16 {
	return int16(pcm[idx*2]) | int16(pcm[idx*2+1])<<8
}
