// Command simcall runs a realtime assessment call from the terminal.
//
// Usage:
//
//	go run ./cmd/simcall
//
// Environment variables (a local .env file is honored):
//
//	SIMCALL_TOKEN_URL       - Call-token endpoint of the platform
//	SIMCALL_TRANSCRIPT_URL  - Transcript persistence endpoint
//	SIMCALL_REALTIME_URL    - Realtime conversational service endpoint
//	SIMCALL_ASSESSMENT_ID   - Assessment the call belongs to
//	SIMCALL_CALL_TYPE       - screening (default) or peer
//	SIMCALL_COWORKER_ID     - Coworker persona, required for peer calls
//
// Controls:
//
//	m - Toggle mute
//	r - Retry after an error
//	q - Hang up and quit
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/skillvee/simulator-sub001/internal/dotenv"
	"github.com/skillvee/simulator-sub001/pkg/call"
	"github.com/skillvee/simulator-sub001/pkg/call/audio"
	"github.com/skillvee/simulator-sub001/pkg/call/config"
	"github.com/skillvee/simulator-sub001/pkg/call/controller"
	"github.com/skillvee/simulator-sub001/pkg/call/device"
	"github.com/skillvee/simulator-sub001/pkg/call/session"
	"github.com/skillvee/simulator-sub001/pkg/call/transcript"
)

// sessionDialer binds the session package's Dial to the controller's Dialer
// interface with a fixed config.
type sessionDialer struct {
	cfg    session.Config
	logger *slog.Logger
}

func (d sessionDialer) Dial(ctx context.Context) (controller.Session, error) {
	return session.Dial(ctx, d.cfg, d.logger)
}

func main() {
	if err := dotenv.Load(".env", ".env.local"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	speaker, err := device.NewSpeaker()
	if err != nil {
		logger.Error("output device unavailable", "error", err)
		os.Exit(1)
	}
	defer speaker.Close()

	gate := device.NewGate(logger)
	defer gate.Close()

	dialer := sessionDialer{
		cfg: session.Config{
			RealtimeURL:    cfg.RealtimeURL,
			Tokens:         session.NewTokenClient(cfg.TokenURL, nil),
			AssessmentID:   cfg.AssessmentID,
			CallType:       cfg.CallType,
			CoworkerID:     cfg.CoworkerID,
			ConnectTimeout: cfg.ConnectTimeout,
		},
		logger: logger,
	}

	ctrl := controller.New(controller.Config{
		AssessmentID: cfg.AssessmentID,
		CallType:     cfg.CallType,
		CoworkerID:   cfg.CoworkerID,
		OpeningLine:  cfg.OpeningLine,
		Capture:      audio.CaptureConfig{FrameDuration: cfg.FrameDuration},
		FlushTimeout: cfg.FlushTimeout,
	}, gate, dialer, speaker, transcript.NewStore(cfg.TranscriptURL, nil), logger)
	defer ctrl.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nHanging up...")
		ctrl.Hangup()
		cancel()
	}()

	go func() {
		for status := range ctrl.Updates() {
			switch status.State {
			case call.StateError:
				fmt.Printf("[CALL] error: %s (press r to retry)\n", status.ErrMessage)
			default:
				fmt.Printf("[CALL] %s\n", status.State)
			}
		}
	}()

	fmt.Printf("Starting %s call for assessment %s...\n", cfg.CallType, cfg.AssessmentID)
	if err := ctrl.Start(ctx); err != nil {
		logger.Warn("call did not connect", "error", err)
	}

	fmt.Println("Controls: m = mute/unmute, r = retry, q = quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "":
			continue
		case "m":
			muted := !ctrl.Status().Muted
			ctrl.SetMuted(muted)
			if muted {
				fmt.Println("[CALL] muted")
			} else {
				fmt.Println("[CALL] live")
			}
		case "r":
			if err := ctrl.Start(ctx); err != nil {
				logger.Warn("retry failed", "error", err)
			}
		case "q":
			ctrl.Hangup()
			return
		default:
			fmt.Println("[INFO] Controls: m = mute/unmute, r = retry, q = quit")
		}
	}
}
