package conversation

import "context"

// DemoReasoner is a canned reasoner for demo deployments with no backend.
// It asks a fixed series of discovery questions and then proposes a meeting,
// so the full funnel can be exercised offline.
type DemoReasoner struct {
	questions []string
}

// NewDemoReasoner returns a reasoner scripted for the demo flow.
func NewDemoReasoner() *DemoReasoner {
	return &DemoReasoner{
		questions: []string{
			"Merci ! Et quel est votre budget approximatif pour ce type de solution ?",
			"Très clair. À quelle échéance souhaitez-vous mettre cela en place ?",
		},
	}
}

// Assess counts the user turns already in the transcript to decide which
// canned question comes next. Once the script is exhausted it proposes a
// meeting and marks the prospect qualified with a demo score.
func (d *DemoReasoner) Assess(_ context.Context, req AssessRequest) (Assessment, error) {
	userTurns := 0
	for _, turn := range req.Transcript {
		if turn.Role == ChatRoleUser {
			userTurns++
		}
	}

	// The first user turn is answered by questions[0], and so on.
	idx := userTurns - 1
	if idx >= 0 && idx < len(d.questions) {
		return Assessment{Reply: d.questions[idx]}, nil
	}

	qualified := true
	score := 75
	urgency := UrgencyMedium
	need := req.State.NeedDetected
	if need == "" {
		need = "découverte commerciale"
	}
	return Assessment{
		Reply: "Parfait, je pense qu'un échange avec un commercial serait utile. Souhaitez-vous planifier un rendez-vous ?",
		Patch: QualificationPatch{
			IsQualified:  &qualified,
			Score:        &score,
			Urgency:      &urgency,
			NeedDetected: &need,
			Reasons:      []string{"Besoin exprimé clairement", "Budget évoqué", "Échéance compatible"},
		},
		ProposeMeeting: true,
	}, nil
}
