// Package clientlib implements the worker side of the distributed search:
// an HTTP client for the coordination service and the claim/process/submit
// pipeline that drives it.
package clientlib

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wasabipesto/niceengine/pkg/models"
)

// APIClient wraps the coordination service's REST API: a base URL, a
// shared *http.Client, and one typed wrapper method per remote operation.
type APIClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Config holds connection settings for the coordination service.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

func NewAPIClient(cfg Config) *APIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &APIClient{
		BaseURL:    cfg.BaseURL,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Claim requests a field to work on for the given mode and selection
// policy. An empty policy lets the server pick its default.
func (c *APIClient) Claim(ctx context.Context, mode models.Mode, policy string) (models.ClaimResponse, error) {
	url := fmt.Sprintf("%s/api/v1/claim/%s", c.BaseURL, mode)
	if policy != "" {
		url += "?policy=" + policy
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return models.ClaimResponse{}, fmt.Errorf("claim: build request: %v", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return models.ClaimResponse{}, fmt.Errorf("claim: request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return models.ClaimResponse{}, ErrNoFieldAvailable
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return models.ClaimResponse{}, &StatusError{Op: "claim", Code: resp.StatusCode, Body: string(body)}
	}

	var claim models.ClaimResponse
	if err := json.NewDecoder(resp.Body).Decode(&claim); err != nil {
		return models.ClaimResponse{}, fmt.Errorf("claim: decode response: %v", err)
	}
	return claim, nil
}

// Submit posts a completed field's results back to the coordination
// service.
func (c *APIClient) Submit(ctx context.Context, req models.SubmitRequest) (bool, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return false, fmt.Errorf("submit: encode request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/submit", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("submit: build request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return false, fmt.Errorf("submit: request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return false, &StatusError{Op: "submit", Code: resp.StatusCode, Body: string(respBody)}
	}

	var result struct {
		Disqualified bool `json:"disqualified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("submit: decode response: %v", err)
	}
	return !result.Disqualified, nil
}

// GetCanonSubmission fetches the current canonical submission for a field,
// used by validation-mode workers to cross-check their own result against
// the server's before submitting. Returns ErrNoCanonSubmission if the field
// has not yet been promoted to a canon result (nothing to compare against).
func (c *APIClient) GetCanonSubmission(ctx context.Context, fieldID int64) (models.Submission, error) {
	url := fmt.Sprintf("%s/api/v1/submission?field_id=%d&canon=true", c.BaseURL, fieldID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.Submission{}, fmt.Errorf("get submission: build request: %v", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return models.Submission{}, fmt.Errorf("get submission: request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return models.Submission{}, ErrNoCanonSubmission
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return models.Submission{}, &StatusError{Op: "get submission", Code: resp.StatusCode, Body: string(body)}
	}

	var sub models.Submission
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return models.Submission{}, fmt.Errorf("get submission: decode response: %v", err)
	}
	return sub, nil
}

// StatusError wraps a non-2xx HTTP response so callers (the retry loop in
// pipeline.go) can tell a permanent protocol failure (4xx: malformed
// request) from a transient one (5xx, connection errors) without parsing
// the error string.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Code, e.Body)
}

// Permanent reports whether retrying this error is pointless: 4xx responses
// indicate a malformed request, not a transient server/network condition.
func (e *StatusError) Permanent() bool {
	return e.Code >= 400 && e.Code < 500
}

// ErrNoFieldAvailable is returned by Claim when the coordination service has
// no eligible field to hand out right now.
var ErrNoFieldAvailable = fmt.Errorf("no field available")

// ErrNoCanonSubmission is returned by GetCanonSubmission when the field has
// no canonical submission yet.
var ErrNoCanonSubmission = fmt.Errorf("field has no canonical submission yet")
