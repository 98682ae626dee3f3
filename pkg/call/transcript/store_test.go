package transcript

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skillvee/simulator-sub001/pkg/call"
)

func TestStore_FlushSendsFullTranscript(t *testing.T) {
	t.Parallel()

	var got FlushRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	store := NewStore(server.URL, nil)
	req := FlushRequest{
		AssessmentID: "asmt-1",
		CoworkerID:   "cw-7",
		Transcript: []call.TranscriptEntry{
			{Speaker: call.SpeakerHuman, Text: "hello", Timestamp: time.Unix(1700000000, 0).UTC()},
			{Speaker: call.SpeakerAgent, Text: "hi!", Timestamp: time.Unix(1700000001, 0).UTC()},
		},
	}
	if err := store.Flush(context.Background(), req); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if got.AssessmentID != "asmt-1" || got.CoworkerID != "cw-7" {
		t.Fatalf("request ids = %+v", got)
	}
	if len(got.Transcript) != 2 || got.Transcript[0].Text != "hello" || got.Transcript[1].Text != "hi!" {
		t.Fatalf("transcript = %+v", got.Transcript)
	}
}

func TestStore_FlushRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := NewStore(server.URL, nil)
	store.backoff = time.Millisecond
	if err := store.Flush(context.Background(), FlushRequest{AssessmentID: "a"}); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestStore_FlushReturnsTypedErrorOnRejection(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer server.Close()

	store := NewStore(server.URL, nil)
	err := store.Flush(context.Background(), FlushRequest{AssessmentID: "a"})
	if err == nil {
		t.Fatal("expected error")
	}
	if ce := call.AsError(err, call.ErrProtocol); ce.Type != call.ErrPersistence {
		t.Fatalf("error type = %s, want %s", ce.Type, call.ErrPersistence)
	}
}
