package conversation

import (
	"context"

	"github.com/smartcaller/qualification-engine/internal/rules"
)

// AssessRequest carries one user utterance plus the full context the
// reasoner needs to judge the prospect.
type AssessRequest struct {
	Utterance  string             `json:"utterance"`
	Transcript []Turn             `json:"transcript"`
	State      QualificationState `json:"qualification_state"`
	Policy     rules.Policy       `json:"policy"`
}

// Assessment is the reasoner's verdict for one turn.
type Assessment struct {
	Reply           string             `json:"response_utterance"`
	Patch           QualificationPatch `json:"qualification_patch"`
	ProposeMeeting  bool               `json:"propose_meeting"`
	EndConversation bool               `json:"end_conversation"`
}

// Reasoner is the external reasoning dependency that interprets user
// utterances and proposes qualification updates.
type Reasoner interface {
	Assess(ctx context.Context, req AssessRequest) (Assessment, error)
}
