package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultReasonerTimeout = 20 * time.Second

// HTTPReasoner calls the qualification backend over HTTP.
type HTTPReasoner struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPReasoner creates a reasoner client for the given backend base URL.
func NewHTTPReasoner(baseURL, apiKey string, timeout time.Duration) *HTTPReasoner {
	if strings.TrimSpace(baseURL) == "" {
		panic("conversation: reasoner base URL cannot be empty")
	}
	if timeout <= 0 {
		timeout = defaultReasonerTimeout
	}
	return &HTTPReasoner{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Assess posts the turn context to the backend and decodes its verdict.
func (r *HTTPReasoner) Assess(ctx context.Context, req AssessRequest) (Assessment, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Assessment{}, fmt.Errorf("conversation: failed to encode assess request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/qualify", bytes.NewReader(body))
	if err != nil {
		return Assessment{}, fmt.Errorf("conversation: failed to build assess request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return Assessment{}, fmt.Errorf("conversation: assess call failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Assessment{}, fmt.Errorf("conversation: assess call returned status %d", resp.StatusCode)
	}

	var out Assessment
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Assessment{}, fmt.Errorf("conversation: failed to decode assessment: %w", err)
	}
	return out, nil
}
