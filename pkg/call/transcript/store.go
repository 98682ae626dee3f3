package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/skillvee/simulator-sub001/pkg/call"
)

// FlushRequest is the payload sent to the transcript-persistence endpoint.
type FlushRequest struct {
	AssessmentID string                 `json:"assessment_id"`
	CoworkerID   string                 `json:"coworker_id,omitempty"`
	Transcript   []call.TranscriptEntry `json:"transcript"`
}

// Store posts the finished transcript to the persistence collaborator.
// Transient failures are retried with exponential backoff; a terminal
// failure is returned as ErrPersistence for the caller to log — it never
// changes call state.
type Store struct {
	url        string
	httpClient *http.Client
	maxRetries uint64
	backoff    time.Duration
}

// NewStore creates a persistence client.
func NewStore(url string, httpClient *http.Client) *Store {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Store{
		url:        strings.TrimSpace(url),
		httpClient: httpClient,
		maxRetries: 2,
		backoff:    200 * time.Millisecond,
	}
}

// Flush persists the transcript.
func (s *Store) Flush(ctx context.Context, req FlushRequest) error {
	if s == nil || s.url == "" {
		return call.NewPersistenceError("transcript endpoint is not configured")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return call.NewPersistenceError(err.Error())
	}

	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(httpReq)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
			return retry.RetryableError(fmt.Errorf("transcript endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
			return fmt.Errorf("transcript endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		}
		return nil
	})
	if err != nil {
		return call.NewPersistenceError(err.Error())
	}
	return nil
}
