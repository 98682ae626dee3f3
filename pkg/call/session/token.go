// Package session negotiates the ephemeral call credential and maintains the
// realtime websocket session with the remote conversational service,
// translating inbound protocol frames into a closed set of typed events on a
// single ordered channel.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/skillvee/simulator-sub001/pkg/call"
)

// TokenRequest parameterizes token issuance. CoworkerID is required for
// peer-to-peer calls only.
type TokenRequest struct {
	AssessmentID string `json:"assessment_id"`
	CallType     string `json:"call_type"`
	CoworkerID   string `json:"coworker_id,omitempty"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// TokenClient obtains ephemeral, call-scoped credentials from the
// token-issuance endpoint. Tokens are never reused across connects.
type TokenClient struct {
	url        string
	httpClient *http.Client
}

// NewTokenClient creates a client for the token-issuance endpoint.
func NewTokenClient(url string, httpClient *http.Client) *TokenClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &TokenClient{url: strings.TrimSpace(url), httpClient: httpClient}
}

// Issue requests one token. Any transport or non-2xx failure is an
// ErrTokenFetch.
func (c *TokenClient) Issue(ctx context.Context, req TokenRequest) (string, error) {
	if c == nil || c.url == "" {
		return "", call.NewTokenFetchError("token endpoint is not configured")
	}
	if strings.TrimSpace(req.AssessmentID) == "" {
		return "", call.NewTokenFetchError("assessment_id is required")
	}
	if req.CallType == string(call.CallTypePeer) && strings.TrimSpace(req.CoworkerID) == "" {
		return "", call.NewTokenFetchError("coworker_id is required for peer calls")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", call.NewTokenFetchError(err.Error())
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", call.NewTokenFetchError(err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", call.NewTokenFetchError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", call.NewTokenFetchError(fmt.Sprintf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	var decoded tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", call.NewTokenFetchError("decode token response: " + err.Error())
	}
	if strings.TrimSpace(decoded.Token) == "" {
		return "", call.NewTokenFetchError("token endpoint returned an empty token")
	}
	return decoded.Token, nil
}
