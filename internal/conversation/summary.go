package conversation

import "github.com/smartcaller/qualification-engine/internal/scheduling"

// Fallback scores when the reasoner never supplied one.
const (
	defaultQualifiedScore   = 75
	defaultUnqualifiedScore = 35
)

// ConversationOutcome is the terminal summary of a conversation, derived
// deterministically from the final qualification state and transcript.
type ConversationOutcome struct {
	IsQualified     bool                    `json:"is_qualified"`
	Score           int                     `json:"score"`
	Reasons         []string                `json:"reasons"`
	NeedDetected    string                  `json:"need_detected,omitempty"`
	Urgency         Urgency                 `json:"urgency"`
	UrgencyLabel    string                  `json:"urgency_label"`
	UrgencyIcon     string                  `json:"urgency_icon"`
	MeetingProposed bool                    `json:"meeting_proposed"`
	MeetingAccepted bool                    `json:"meeting_accepted"`
	MeetingSlot     *scheduling.MeetingSlot `json:"meeting_slot,omitempty"`
	MessageCount    int                     `json:"message_count"`
	Actions         []string                `json:"actions"`
}

// Display fallbacks when the reasoner never supplied reasons.
var (
	defaultQualifiedReasons = []string{
		"Besoin clairement exprimé",
		"Interlocuteur impliqué dans la décision",
		"Intérêt confirmé pour un échange commercial",
	}
	defaultUnqualifiedReasons = []string{
		"Besoin insuffisamment qualifié",
		"Pas de projet concret à court terme",
		"Budget non confirmé",
	}
)

type urgencyDisplay struct {
	label string
	icon  string
}

var urgencyTable = map[Urgency]urgencyDisplay{
	UrgencyHigh:   {label: "Élevée", icon: "🔴"},
	UrgencyMedium: {label: "Moyenne", icon: "🟠"},
	UrgencyLow:    {label: "Faible", icon: "🟢"},
}

// CompileOutcome maps a terminal qualification state and transcript into the
// outcome record handed to downstream systems. It is pure: no randomness, no
// side effects, identical output for identical input. The action list is
// illustrative copy describing what a downstream CRM would do; nothing is
// executed here.
func CompileOutcome(state QualificationState, transcript []Turn) ConversationOutcome {
	score := defaultUnqualifiedScore
	if state.IsQualified {
		score = defaultQualifiedScore
	}
	if state.Score != nil {
		score = *state.Score
	}

	reasons := state.Reasons
	if len(reasons) == 0 {
		if state.IsQualified {
			reasons = defaultQualifiedReasons
		} else {
			reasons = defaultUnqualifiedReasons
		}
	}

	urgency := state.Urgency
	display, ok := urgencyTable[urgency]
	if !ok {
		urgency = UrgencyLow
		display = urgencyTable[UrgencyLow]
	}

	return ConversationOutcome{
		IsQualified:     state.IsQualified,
		Score:           score,
		Reasons:         append([]string(nil), reasons...),
		NeedDetected:    state.NeedDetected,
		Urgency:         urgency,
		UrgencyLabel:    display.label,
		UrgencyIcon:     display.icon,
		MeetingProposed: state.MeetingProposed,
		MeetingAccepted: state.MeetingAccepted,
		MeetingSlot:     state.MeetingSlot,
		MessageCount:    len(transcript),
		Actions:         outcomeActions(state.IsQualified, state.MeetingAccepted),
	}
}

// outcomeActions is branchless over anything but the two booleans.
func outcomeActions(qualified, meetingAccepted bool) []string {
	if !qualified {
		return []string{
			"Lead archivé avec motif de non-qualification",
			"Ajouté à la liste de nurturing",
		}
	}
	actions := []string{
		"Fiche lead créée dans le CRM",
		"Commercial notifié de la qualification",
	}
	if meetingAccepted {
		actions = append(actions, "Rendez-vous ajouté au calendrier")
	}
	actions = append(actions, "Transcription de la conversation enregistrée")
	return actions
}
