package config

import (
	"testing"
	"time"

	"github.com/skillvee/simulator-sub001/pkg/call"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SIMCALL_TOKEN_URL", "https://platform.example/api/call-token")
	t.Setenv("SIMCALL_TRANSCRIPT_URL", "https://platform.example/api/transcript")
	t.Setenv("SIMCALL_REALTIME_URL", "wss://realtime.example/session")
	t.Setenv("SIMCALL_ASSESSMENT_ID", "asmt-1")
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.CallType != call.CallTypeScreening {
		t.Fatalf("CallType = %s, want screening", cfg.CallType)
	}
	if cfg.ConnectTimeout != 15*time.Second {
		t.Fatalf("ConnectTimeout = %s, want 15s", cfg.ConnectTimeout)
	}
	if cfg.FrameDuration != 20*time.Millisecond {
		t.Fatalf("FrameDuration = %s, want 20ms", cfg.FrameDuration)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SIMCALL_CALL_TYPE", "peer")
	t.Setenv("SIMCALL_COWORKER_ID", "cw-7")
	t.Setenv("SIMCALL_CONNECT_TIMEOUT", "5s")
	t.Setenv("SIMCALL_OPENING_LINE", "Hey, got a minute?")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.CallType != call.CallTypePeer || cfg.CoworkerID != "cw-7" {
		t.Fatalf("call identity = %s/%s", cfg.CallType, cfg.CoworkerID)
	}
	if cfg.ConnectTimeout != 5*time.Second {
		t.Fatalf("ConnectTimeout = %s, want 5s", cfg.ConnectTimeout)
	}
	if cfg.OpeningLine != "Hey, got a minute?" {
		t.Fatalf("OpeningLine = %q", cfg.OpeningLine)
	}
}

func TestLoadFromEnv_Validation(t *testing.T) {
	cases := []struct {
		name string
		mut  func(t *testing.T)
	}{
		{"missing token url", func(t *testing.T) { t.Setenv("SIMCALL_TOKEN_URL", "") }},
		{"missing assessment", func(t *testing.T) { t.Setenv("SIMCALL_ASSESSMENT_ID", "") }},
		{"bad call type", func(t *testing.T) { t.Setenv("SIMCALL_CALL_TYPE", "group") }},
		{"peer without coworker", func(t *testing.T) { t.Setenv("SIMCALL_CALL_TYPE", "peer") }},
		{"malformed connect timeout", func(t *testing.T) { t.Setenv("SIMCALL_CONNECT_TIMEOUT", "soon") }},
		{"malformed frame duration", func(t *testing.T) { t.Setenv("SIMCALL_FRAME_DURATION", "20") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			tc.mut(t)
			if _, err := LoadFromEnv(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
