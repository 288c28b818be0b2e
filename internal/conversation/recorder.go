package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Snapshot is what gets handed to the persistence collaborator: the full
// transcript plus qualification fields, incrementally after each assistant
// turn and finally with the ended flag set.
type Snapshot struct {
	SessionID      string             `json:"session_id"`
	IdempotencyKey string             `json:"idempotency_key"`
	Transcript     []Turn             `json:"transcript"`
	State          QualificationState `json:"qualification_state"`
	Ended          bool               `json:"ended"`
	Metadata       map[string]string  `json:"metadata,omitempty"`
}

// Recorder receives best-effort snapshots. Implementations must be safe for
// concurrent use; a snapshot may be delivered more than once, so consumers
// should upsert on the idempotency key.
type Recorder interface {
	Record(ctx context.Context, snap Snapshot) error
}

// NopRecorder discards snapshots. Used in demo mode and tests.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Snapshot) error { return nil }

// HTTPRecorder posts snapshots to the backend persistence endpoint.
type HTTPRecorder struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRecorder creates a recorder for the given backend base URL.
func NewHTTPRecorder(baseURL string, timeout time.Duration) *HTTPRecorder {
	if strings.TrimSpace(baseURL) == "" {
		panic("conversation: recorder base URL cannot be empty")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPRecorder{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Record posts one snapshot. Callers treat failures as best-effort.
func (r *HTTPRecorder) Record(ctx context.Context, snap Snapshot) error {
	if snap.IdempotencyKey == "" {
		snap.IdempotencyKey = uuid.NewString()
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("conversation: failed to encode snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/conversations/snapshots", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("conversation: failed to build snapshot request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", snap.IdempotencyKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("conversation: snapshot call failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("conversation: snapshot call returned status %d", resp.StatusCode)
	}
	return nil
}
