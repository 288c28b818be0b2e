package rules

import (
	"strings"
	"time"
)

// CriterionType classifies how a criterion weighs on qualification.
type CriterionType string

const (
	TypeMustHave    CriterionType = "must_have"
	TypeNiceToHave  CriterionType = "nice_to_have"
	TypeDealBreaker CriterionType = "deal_breaker"
)

// Valid reports whether the type is one of the three known categories.
func (t CriterionType) Valid() bool {
	switch t {
	case TypeMustHave, TypeNiceToHave, TypeDealBreaker:
		return true
	}
	return false
}

// Criterion is one user-authored qualification rule. Text may be empty while
// the rule is being edited; empty criteria are skipped at compile time.
type Criterion struct {
	ID        string        `json:"id"`
	OrgID     string        `json:"org_id,omitempty"`
	Type      CriterionType `json:"type"`
	Text      string        `json:"text"`
	CreatedAt time.Time     `json:"created_at,omitempty"`
}

// Policy is the compiled form of a rule set, ready for inclusion in a
// qualification prompt. Each list keeps insertion order.
type Policy struct {
	MustHave    []string `json:"must_have"`
	DealBreaker []string `json:"deal_breaker"`
	NiceToHave  []string `json:"nice_to_have"`
}

// Empty reports whether the policy carries no usable criteria.
func (p Policy) Empty() bool {
	return len(p.MustHave) == 0 && len(p.DealBreaker) == 0 && len(p.NiceToHave) == 0
}

// UpdateCriterionRequest is the body for editing a criterion's text.
type UpdateCriterionRequest struct {
	Text string `json:"text"`
}

// AddCriterionRequest is the body for appending a new empty criterion.
type AddCriterionRequest struct {
	Type CriterionType `json:"type"`
}

// Validate checks the add request.
func (r *AddCriterionRequest) Validate() error {
	if strings.TrimSpace(string(r.Type)) == "" {
		return ErrMissingType
	}
	if !r.Type.Valid() {
		return ErrUnknownType
	}
	return nil
}
