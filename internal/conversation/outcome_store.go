package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the outcome store needs.
type PgxPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// OutcomeRecord is one persisted terminal outcome.
type OutcomeRecord struct {
	SessionID string              `json:"session_id"`
	OrgID     string              `json:"org_id"`
	Outcome   ConversationOutcome `json:"outcome"`
	CreatedAt time.Time           `json:"created_at"`
}

// OutcomeStore persists compiled conversation outcomes. Writes are keyed by
// session, so replaying a terminal snapshot is a no-op rather than a
// duplicate row.
type OutcomeStore struct {
	pool PgxPool
}

func NewOutcomeStore(pool PgxPool) *OutcomeStore {
	return &OutcomeStore{pool: pool}
}

func (s *OutcomeStore) Save(ctx context.Context, sessionID, orgID string, outcome ConversationOutcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("conversation: failed to marshal outcome: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO conversation_outcomes (session_id, org_id, is_qualified, score, urgency, meeting_accepted, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id) DO NOTHING`,
		sessionID, orgID, outcome.IsQualified, outcome.Score, string(outcome.Urgency), outcome.MeetingAccepted, payload, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("conversation: failed to persist outcome: %w", err)
	}
	return nil
}

func (s *OutcomeStore) Get(ctx context.Context, sessionID string) (*OutcomeRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT session_id, org_id, payload, created_at
		FROM conversation_outcomes
		WHERE session_id = $1`,
		sessionID,
	)

	rec, err := scanOutcome(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("conversation: failed to load outcome: %w", err)
	}
	return rec, nil
}

func (s *OutcomeStore) ListByOrg(ctx context.Context, orgID string, limit int) ([]OutcomeRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT session_id, org_id, payload, created_at
		FROM conversation_outcomes
		WHERE org_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		orgID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to list outcomes: %w", err)
	}
	defer rows.Close()

	var out []OutcomeRecord
	for rows.Next() {
		rec, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("conversation: failed to scan outcome: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: failed to list outcomes: %w", err)
	}
	return out, nil
}

func scanOutcome(row pgx.Row) (*OutcomeRecord, error) {
	var (
		rec     OutcomeRecord
		payload []byte
	)
	if err := row.Scan(&rec.SessionID, &rec.OrgID, &payload, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &rec.Outcome); err != nil {
		return nil, err
	}
	return &rec, nil
}
