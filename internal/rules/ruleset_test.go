package rules

import (
	"testing"
)

func TestRuleSetAddAssignsUniqueIDs(t *testing.T) {
	rs := NewRuleSet(nil)
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		c := rs.Add(TypeMustHave)
		if c.Text != "" {
			t.Fatalf("new criterion should have empty text, got %q", c.Text)
		}
		if seen[c.ID] {
			t.Fatalf("duplicate criterion id %s", c.ID)
		}
		seen[c.ID] = true
	}
}

func TestRuleSetUpdateAndRemoveUnknownIDsAreNoOps(t *testing.T) {
	rs := NewRuleSet(nil)
	c := rs.Add(TypeNiceToHave)
	rs.Update("missing", "ignored")
	rs.Remove("missing")

	got := rs.Criteria()
	if len(got) != 1 || got[0].ID != c.ID || got[0].Text != "" {
		t.Fatalf("unexpected criteria after no-op operations: %+v", got)
	}
}

func TestRuleSetCompileFiltersEmptyText(t *testing.T) {
	rs := NewRuleSet(nil)
	must := rs.Add(TypeMustHave)
	rs.Update(must.ID, "budget over 10k")
	blank := rs.Add(TypeMustHave)
	_ = blank // in-progress edit, stays empty
	spaces := rs.Add(TypeDealBreaker)
	rs.Update(spaces.ID, "   \t ")
	breaker := rs.Add(TypeDealBreaker)
	rs.Update(breaker.ID, "competitor employee")
	nice := rs.Add(TypeNiceToHave)
	rs.Update(nice.ID, "already uses a CRM")

	p := rs.Compile()
	if len(p.MustHave) != 1 || p.MustHave[0] != "budget over 10k" {
		t.Errorf("unexpected must-have list: %v", p.MustHave)
	}
	if len(p.DealBreaker) != 1 || p.DealBreaker[0] != "competitor employee" {
		t.Errorf("unexpected deal-breaker list: %v", p.DealBreaker)
	}
	if len(p.NiceToHave) != 1 || p.NiceToHave[0] != "already uses a CRM" {
		t.Errorf("unexpected nice-to-have list: %v", p.NiceToHave)
	}
}

func TestRuleSetCompileKeepsInsertionOrder(t *testing.T) {
	rs := NewRuleSet(nil)
	texts := []string{"first", "second", "third"}
	for _, text := range texts {
		c := rs.Add(TypeMustHave)
		rs.Update(c.ID, text)
	}

	p := rs.Compile()
	if len(p.MustHave) != len(texts) {
		t.Fatalf("expected %d must-have entries, got %d", len(texts), len(p.MustHave))
	}
	for i, text := range texts {
		if p.MustHave[i] != text {
			t.Errorf("position %d: expected %q, got %q", i, text, p.MustHave[i])
		}
	}
}

func TestRuleSetCompileNeverIncludesBlank(t *testing.T) {
	// Property from the product contract: no sequence of add/update/remove
	// may leak an empty or whitespace-only criterion into the policy.
	rs := NewRuleSet(nil)
	ops := []func(){
		func() { rs.Add(TypeMustHave) },
		func() { rs.Add(TypeDealBreaker) },
		func() {
			c := rs.Add(TypeNiceToHave)
			rs.Update(c.ID, " ")
		},
		func() {
			c := rs.Add(TypeMustHave)
			rs.Update(c.ID, "real rule")
			rs.Update(c.ID, "")
		},
		func() {
			c := rs.Add(TypeDealBreaker)
			rs.Remove(c.ID)
		},
	}
	for _, op := range ops {
		op()
		p := rs.Compile()
		for _, list := range [][]string{p.MustHave, p.DealBreaker, p.NiceToHave} {
			for _, text := range list {
				if text == "" {
					t.Fatal("compile leaked a blank criterion")
				}
			}
		}
	}
}

func TestCriterionTypeValid(t *testing.T) {
	tests := []struct {
		name string
		t    CriterionType
		want bool
	}{
		{"must have", TypeMustHave, true},
		{"nice to have", TypeNiceToHave, true},
		{"deal breaker", TypeDealBreaker, true},
		{"empty", CriterionType(""), false},
		{"unknown", CriterionType("blocker"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.t.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}
