package conversation

import (
	"time"

	"github.com/smartcaller/qualification-engine/internal/scheduling"
)

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// Turn is one message in a conversation transcript. Turns are append-only
// and strictly ordered by timestamp.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// State identifies where the conversation state machine currently is.
type State string

const (
	StateAwaitingOpening         State = "awaiting_opening"
	StateOpen                    State = "open"
	StateAwaitingMeetingResponse State = "awaiting_meeting_response"
	StateAwaitingFollowupChannel State = "awaiting_followup_channel"
	StateEnded                   State = "ended"
)

// Urgency grades how pressing the prospect's need is.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Valid reports whether the urgency is one of the three known grades.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	}
	return false
}

// QualificationState is the mutable accumulator for one conversation. It is
// created with defaults at conversation start, mutated only by the engine,
// and frozen once the conversation ends.
type QualificationState struct {
	IsQualified     bool                     `json:"is_qualified"`
	Score           *int                     `json:"score,omitempty"` // 0-100, nil until the reasoner supplies one
	Reasons         []string                 `json:"reasons,omitempty"`
	NeedDetected    string                   `json:"need_detected,omitempty"`
	Urgency         Urgency                  `json:"urgency,omitempty"`
	MeetingProposed bool                     `json:"meeting_proposed"`
	MeetingAccepted bool                     `json:"meeting_accepted"`
	MeetingSlot     *scheduling.MeetingSlot  `json:"meeting_slot,omitempty"`
}

// QualificationPatch is the strongly-typed partial update a reasoner may
// return for a turn. Nil fields leave the state untouched; a non-nil Reasons
// replaces the list.
type QualificationPatch struct {
	IsQualified  *bool    `json:"is_qualified,omitempty"`
	Score        *int     `json:"score,omitempty"`
	Urgency      *Urgency `json:"urgency,omitempty"`
	NeedDetected *string  `json:"need_detected,omitempty"`
	Reasons      []string `json:"reasons,omitempty"`
}

// Validate rejects out-of-range scores and unknown urgency grades before the
// patch reaches the state.
func (p QualificationPatch) Validate() error {
	if p.Score != nil && (*p.Score < 0 || *p.Score > 100) {
		return ErrInvalidPatch
	}
	if p.Urgency != nil && !p.Urgency.Valid() {
		return ErrInvalidPatch
	}
	return nil
}

// Apply merges the patch into the state. The caller validates first.
func (s *QualificationState) Apply(p QualificationPatch) {
	if p.IsQualified != nil {
		s.IsQualified = *p.IsQualified
	}
	if p.Score != nil {
		score := *p.Score
		s.Score = &score
	}
	if p.Urgency != nil {
		s.Urgency = *p.Urgency
	}
	if p.NeedDetected != nil {
		s.NeedDetected = *p.NeedDetected
	}
	if p.Reasons != nil {
		s.Reasons = append([]string(nil), p.Reasons...)
	}
}
