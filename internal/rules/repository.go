package rules

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for criterion storage
type Repository interface {
	Add(ctx context.Context, orgID string, t CriterionType) (*Criterion, error)
	Update(ctx context.Context, orgID, id, text string) error
	Remove(ctx context.Context, orgID, id string) error
	List(ctx context.Context, orgID string) ([]Criterion, error)
}

// InMemoryRepository is a Repository backed by an in-memory slice per org.
type InMemoryRepository struct {
	mu       sync.RWMutex
	criteria map[string][]Criterion // orgID -> ordered criteria
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		criteria: make(map[string][]Criterion),
	}
}

// Add appends a new empty-text criterion for the org.
func (r *InMemoryRepository) Add(ctx context.Context, orgID string, t CriterionType) (*Criterion, error) {
	if !t.Valid() {
		return nil, ErrUnknownType
	}

	c := Criterion{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		Type:      t,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.criteria[orgID] = append(r.criteria[orgID], c)
	r.mu.Unlock()

	return &c, nil
}

// Update replaces the text of a criterion in place.
func (r *InMemoryRepository) Update(ctx context.Context, orgID, id, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.criteria[orgID]
	for i := range list {
		if list[i].ID == id {
			list[i].Text = text
			return nil
		}
	}
	return ErrCriterionNotFound
}

// Remove deletes a criterion.
func (r *InMemoryRepository) Remove(ctx context.Context, orgID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.criteria[orgID]
	for i := range list {
		if list[i].ID == id {
			r.criteria[orgID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrCriterionNotFound
}

// List returns the org's criteria in insertion order.
func (r *InMemoryRepository) List(ctx context.Context, orgID string) ([]Criterion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.criteria[orgID]
	out := make([]Criterion, len(list))
	copy(out, list)
	return out, nil
}
