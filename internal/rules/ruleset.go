package rules

import (
	"strings"

	"github.com/google/uuid"
)

// RuleSet holds the working list of criteria for one organization. All
// operations are total: Update and Remove are no-ops for unknown ids, and
// Compile silently drops in-progress (empty-text) criteria. The RuleSet is
// not safe for concurrent use; callers own synchronization.
type RuleSet struct {
	criteria []Criterion
}

// NewRuleSet builds a rule set from existing criteria, preserving order.
func NewRuleSet(criteria []Criterion) *RuleSet {
	rs := &RuleSet{criteria: make([]Criterion, len(criteria))}
	copy(rs.criteria, criteria)
	return rs
}

// Add appends a new criterion with empty text and a fresh id.
func (rs *RuleSet) Add(t CriterionType) Criterion {
	c := Criterion{
		ID:   uuid.NewString(),
		Type: t,
	}
	rs.criteria = append(rs.criteria, c)
	return c
}

// Update replaces the text of the criterion with the matching id.
// Unknown ids are ignored.
func (rs *RuleSet) Update(id, text string) {
	for i := range rs.criteria {
		if rs.criteria[i].ID == id {
			rs.criteria[i].Text = text
			return
		}
	}
}

// Remove deletes the criterion with the matching id. Unknown ids are ignored.
func (rs *RuleSet) Remove(id string) {
	for i := range rs.criteria {
		if rs.criteria[i].ID == id {
			rs.criteria = append(rs.criteria[:i], rs.criteria[i+1:]...)
			return
		}
	}
}

// Criteria returns a copy of the current list in insertion order.
func (rs *RuleSet) Criteria() []Criterion {
	out := make([]Criterion, len(rs.criteria))
	copy(out, rs.criteria)
	return out
}

// Compile produces the policy lists in insertion order, skipping criteria
// whose text is empty or whitespace-only.
func (rs *RuleSet) Compile() Policy {
	var p Policy
	for _, c := range rs.criteria {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		switch c.Type {
		case TypeMustHave:
			p.MustHave = append(p.MustHave, text)
		case TypeDealBreaker:
			p.DealBreaker = append(p.DealBreaker, text)
		case TypeNiceToHave:
			p.NiceToHave = append(p.NiceToHave, text)
		}
	}
	return p
}
