package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the repository needs. Narrowed to an
// interface so tests can use pgxmock.
type PgxPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresRepository stores criteria in the relational database.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("rules: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

// Add inserts a new empty-text criterion row.
func (r *PostgresRepository) Add(ctx context.Context, orgID string, t CriterionType) (*Criterion, error) {
	if !t.Valid() {
		return nil, ErrUnknownType
	}

	id := uuid.New()
	query := `
		INSERT INTO qualification_criteria (id, org_id, criterion_type, criterion_text)
		VALUES ($1, $2, $3, '')
		RETURNING created_at
	`
	var createdAt time.Time
	if err := r.pool.QueryRow(ctx, query, id, orgID, string(t)).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("rules: insert failed: %w", err)
	}

	return &Criterion{
		ID:        id.String(),
		OrgID:     orgID,
		Type:      t,
		CreatedAt: createdAt,
	}, nil
}

// Update replaces a criterion's text, scoped to the org.
func (r *PostgresRepository) Update(ctx context.Context, orgID, id, text string) error {
	query := `
		UPDATE qualification_criteria
		SET criterion_text = $1
		WHERE id = $2 AND org_id = $3
	`
	tag, err := r.pool.Exec(ctx, query, text, id, orgID)
	if err != nil {
		return fmt.Errorf("rules: update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCriterionNotFound
	}
	return nil
}

// Remove deletes a criterion, scoped to the org.
func (r *PostgresRepository) Remove(ctx context.Context, orgID, id string) error {
	query := `DELETE FROM qualification_criteria WHERE id = $1 AND org_id = $2`
	tag, err := r.pool.Exec(ctx, query, id, orgID)
	if err != nil {
		return fmt.Errorf("rules: delete failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCriterionNotFound
	}
	return nil
}

// List fetches the org's criteria in insertion order.
func (r *PostgresRepository) List(ctx context.Context, orgID string) ([]Criterion, error) {
	query := `
		SELECT id, org_id, criterion_type, criterion_text, created_at
		FROM qualification_criteria
		WHERE org_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("rules: select failed: %w", err)
	}
	defer rows.Close()

	var out []Criterion
	for rows.Next() {
		var c Criterion
		var ctype string
		if err := rows.Scan(&c.ID, &c.OrgID, &ctype, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("rules: scan failed: %w", err)
		}
		c.Type = CriterionType(ctype)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rules: rows failed: %w", err)
	}
	return out, nil
}
