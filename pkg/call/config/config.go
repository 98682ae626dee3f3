// Package config loads call configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/skillvee/simulator-sub001/pkg/call"
)

// Config carries everything a call needs: the platform endpoints, the call
// identity, and pipeline tuning. Identity fields are fixed for the lifetime
// of a session.
type Config struct {
	// Platform endpoints.
	TokenURL      string
	TranscriptURL string
	RealtimeURL   string

	// Call identity.
	AssessmentID string
	CallType     call.CallType
	CoworkerID   string

	// OpeningLine is sent once the session connects so the agent speaks
	// first. Empty means the agent waits for the candidate.
	OpeningLine string

	ConnectTimeout time.Duration
	FlushTimeout   time.Duration
	FrameDuration  time.Duration
}

// LoadFromEnv reads SIMCALL_* variables and validates the result.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		TokenURL:      envOr("SIMCALL_TOKEN_URL", ""),
		TranscriptURL: envOr("SIMCALL_TRANSCRIPT_URL", ""),
		RealtimeURL:   envOr("SIMCALL_REALTIME_URL", ""),
		AssessmentID:  envOr("SIMCALL_ASSESSMENT_ID", ""),
		CallType:      call.CallType(envOr("SIMCALL_CALL_TYPE", string(call.CallTypeScreening))),
		CoworkerID:    envOr("SIMCALL_COWORKER_ID", ""),
		OpeningLine:   strings.TrimSpace(os.Getenv("SIMCALL_OPENING_LINE")),
	}

	var err error
	if cfg.ConnectTimeout, err = envDuration("SIMCALL_CONNECT_TIMEOUT", 15*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.FlushTimeout, err = envDuration("SIMCALL_FLUSH_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.FrameDuration, err = envDuration("SIMCALL_FRAME_DURATION", 20*time.Millisecond); err != nil {
		return Config{}, err
	}

	if cfg.TokenURL == "" {
		return Config{}, fmt.Errorf("SIMCALL_TOKEN_URL must be set")
	}
	if cfg.TranscriptURL == "" {
		return Config{}, fmt.Errorf("SIMCALL_TRANSCRIPT_URL must be set")
	}
	if cfg.RealtimeURL == "" {
		return Config{}, fmt.Errorf("SIMCALL_REALTIME_URL must be set")
	}
	if cfg.AssessmentID == "" {
		return Config{}, fmt.Errorf("SIMCALL_ASSESSMENT_ID must be set")
	}
	switch cfg.CallType {
	case call.CallTypeScreening, call.CallTypePeer:
	default:
		return Config{}, fmt.Errorf("SIMCALL_CALL_TYPE must be one of screening|peer")
	}
	if cfg.CallType == call.CallTypePeer && cfg.CoworkerID == "" {
		return Config{}, fmt.Errorf("SIMCALL_COWORKER_ID must be set when SIMCALL_CALL_TYPE=peer")
	}
	if cfg.ConnectTimeout <= 0 {
		return Config{}, fmt.Errorf("SIMCALL_CONNECT_TIMEOUT must be > 0")
	}
	if cfg.FlushTimeout <= 0 {
		return Config{}, fmt.Errorf("SIMCALL_FLUSH_TIMEOUT must be > 0")
	}
	if cfg.FrameDuration <= 0 {
		return Config{}, fmt.Errorf("SIMCALL_FRAME_DURATION must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 15s or 20ms, got %q", key, raw)
	}
	return d, nil
}
