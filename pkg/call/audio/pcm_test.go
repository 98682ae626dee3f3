package audio

import (
	"testing"
	"time"
)

func TestConfig_BytesForDuration(t *testing.T) {
	cfg := Config{SampleRate: 16000, Channels: 1}
	if got := cfg.BytesForDuration(20 * time.Millisecond); got != 640 {
		t.Fatalf("BytesForDuration(20ms) = %d, want 640", got)
	}
	if got := cfg.Duration(640); got != 20*time.Millisecond {
		t.Fatalf("Duration(640) = %v, want 20ms", got)
	}
}

func TestResample_Identity(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0}
	got := Resample(pcm, 16000, 16000)
	if len(got) != len(pcm) {
		t.Fatalf("len = %d, want %d", len(got), len(pcm))
	}
	for i := range pcm {
		if got[i] != pcm[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], pcm[i])
		}
	}
}

func TestResample_Downsample(t *testing.T) {
	// 48 kHz -> 16 kHz keeps every third sample of a ramp.
	in := make([]byte, 48*2)
	for i := 0; i < 48; i++ {
		v := int16(i * 100)
		in[i*2] = byte(v)
		in[i*2+1] = byte(v >> 8)
	}

	out := Resample(in, 48000, 16000)
	if len(out) != 16*2 {
		t.Fatalf("len = %d, want %d", len(out), 16*2)
	}
	for i := 0; i < 16; i++ {
		got := int16(out[i*2]) | int16(out[i*2+1])<<8
		want := int16(i * 3 * 100)
		if got != want {
			t.Fatalf("sample %d = %d, want %d", i, got, want)
		}
	}
}

func TestResample_PreservesOrderUpsampling(t *testing.T) {
	in := make([]byte, 8*2)
	for i := 0; i < 8; i++ {
		v := int16(i * 1000)
		in[i*2] = byte(v)
		in[i*2+1] = byte(v >> 8)
	}

	out := Resample(in, 16000, 24000)
	if len(out) != 12*2 {
		t.Fatalf("len = %d, want %d", len(out), 12*2)
	}
	prev := int16(-1)
	for i := 0; i < 12; i++ {
		got := int16(out[i*2]) | int16(out[i*2+1])<<8
		if got < prev {
			t.Fatalf("sample %d = %d decreased below %d", i, got, prev)
		}
		prev = got
	}
}
