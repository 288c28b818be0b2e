package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smartcaller/qualification-engine/internal/observability/metrics"
	"github.com/smartcaller/qualification-engine/internal/rules"
	"github.com/smartcaller/qualification-engine/internal/scheduling"
	"github.com/smartcaller/qualification-engine/pkg/logging"
)

// Assistant copy. The product surface is French.
const (
	openingMessage = "Bonjour ! Je suis l'assistant Smart Caller. Pour commencer, pouvez-vous me parler de votre activité et de ce qui vous amène ?"

	fallbackMessage = "Je n'ai pas bien saisi. Pouvez-vous m'en dire plus sur votre contexte professionnel ?"

	meetingRepromptMessage = "Désolé, je n'ai pas compris. Souhaitez-vous planifier un échange avec un commercial ? (oui / non)"

	followupChoiceMessage = "Très bien ! Préférez-vous réserver un créneau maintenant, ou laisser votre email pour qu'un commercial vous recontacte ?"

	bookingHandoffMessage = "Parfait, la réservation se poursuit sur notre agenda. À très vite !"

	emailClosingMessage = "Merci ! Un commercial vous recontactera à cette adresse très rapidement."

	repromptCapMessage = "Je comprends, je ne vais pas insister. Merci pour cet échange et à bientôt !"
)

// externalHandoffSlot marks a booking completed outside the conversation
// (the prospect was routed to the real agenda, not the demo picker).
var externalHandoffSlot = scheduling.MeetingSlot{DayLabel: "réservation externe"}

// EngineConfig tunes one conversation engine.
type EngineConfig struct {
	// OpeningDelay and ReplyDelay are cosmetic typing pauses. Zero server-side.
	OpeningDelay time.Duration
	ReplyDelay   time.Duration

	// MaxMeetingReprompts caps how often an ambiguous yes/no reply gets
	// re-asked. Zero keeps the original retry-forever behavior.
	MaxMeetingReprompts int

	Metadata map[string]string
}

// EngineDeps are the collaborators an engine runs against.
type EngineDeps struct {
	Reasoner   Reasoner
	Classifier IntentClassifier
	Recorder   Recorder
	Logger     *logging.Logger
	Metrics    *metrics.ConversationMetrics
	Clock      func() time.Time
}

// TurnResult is what one engine operation hands back to the caller.
type TurnResult struct {
	Reply   Turn                 `json:"reply"`
	State   State                `json:"state"`
	Ended   bool                 `json:"ended"`
	Intent  Intent               `json:"intent,omitempty"`
	Outcome *ConversationOutcome `json:"outcome,omitempty"`
}

// Engine drives one qualification conversation from the opening message to a
// terminal outcome. A conversation is strictly sequential: the mutex admits
// exactly one in-flight turn, and each turn fully resolves (reasoner reply
// or fallback) before the next is accepted. Engines share no mutable state
// with each other.
type Engine struct {
	mu sync.Mutex

	id     string
	policy rules.Policy
	cfg    EngineConfig

	reasoner   Reasoner
	classifier IntentClassifier
	recorder   Recorder
	logger     *logging.Logger
	metrics    *metrics.ConversationMetrics
	clock      func() time.Time

	state      State
	transcript []Turn
	qual       QualificationState
	reprompts  int
}

// NewEngine creates an engine in the AwaitingOpening state.
func NewEngine(id string, policy rules.Policy, cfg EngineConfig, deps EngineDeps) *Engine {
	if deps.Reasoner == nil {
		panic("conversation: reasoner cannot be nil")
	}
	if id == "" {
		id = uuid.NewString()
	}
	if deps.Classifier == nil {
		deps.Classifier = NewRegexClassifier()
	}
	if deps.Recorder == nil {
		deps.Recorder = NopRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	return &Engine{
		id:         id,
		policy:     policy,
		cfg:        cfg,
		reasoner:   deps.Reasoner,
		classifier: deps.Classifier,
		recorder:   deps.Recorder,
		logger:     deps.Logger.With("session_id", id),
		metrics:    deps.Metrics,
		clock:      deps.Clock,
		state:      StateAwaitingOpening,
	}
}

// RestoreEngine rebuilds an engine from a persisted session record, so a
// conversation can continue across process restarts.
func RestoreEngine(rec SessionRecord, policy rules.Policy, cfg EngineConfig, deps EngineDeps) *Engine {
	e := NewEngine(rec.SessionID, policy, cfg, deps)
	e.state = rec.State
	e.transcript = append([]Turn(nil), rec.Transcript...)
	e.qual = rec.Qual
	e.reprompts = rec.Reprompts
	return e
}

// ID returns the session id.
func (e *Engine) ID() string { return e.id }

// Reprompts returns how many ambiguous meeting replies have been re-asked.
func (e *Engine) Reprompts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reprompts
}

// CurrentState returns the machine's position.
func (e *Engine) CurrentState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Transcript returns a copy of the turns so far.
func (e *Engine) Transcript() []Turn {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Turn, len(e.transcript))
	copy(out, e.transcript)
	return out
}

// Qualification returns a copy of the current accumulator.
func (e *Engine) Qualification() QualificationState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.qual
}

// Start sends the opening assistant message and moves the machine to Open.
func (e *Engine) Start(ctx context.Context) (*TurnResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateAwaitingOpening {
		return nil, ErrInvalidAction
	}
	if err := e.pause(ctx, e.cfg.OpeningDelay); err != nil {
		return nil, err
	}

	reply := e.appendAssistant(openingMessage)
	e.state = StateOpen
	e.snapshot(false)

	return &TurnResult{Reply: reply, State: e.state}, nil
}

// HandleUserTurn ingests one user utterance and resolves the next machine
// action. Exactly one turn is in flight at a time.
func (e *Engine) HandleUserTurn(ctx context.Context, text string) (*TurnResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.clock()
	switch e.state {
	case StateAwaitingOpening:
		return nil, ErrNotStarted
	case StateEnded:
		return nil, ErrConversationEnded
	case StateOpen:
		res, err := e.handleOpenTurn(ctx, text)
		e.observeTurn(StateOpen, res, err, start)
		return res, err
	case StateAwaitingMeetingResponse:
		res, err := e.handleMeetingResponse(ctx, text)
		e.observeTurn(StateAwaitingMeetingResponse, res, err, start)
		return res, err
	case StateAwaitingFollowupChannel:
		// Free text is not expected here; the two explicit actions are
		// ChooseBooking and SubmitEmail. Re-surface the choice.
		e.appendUser(text)
		reply := e.appendAssistant(followupChoiceMessage)
		e.snapshot(false)
		return &TurnResult{Reply: reply, State: e.state}, nil
	default:
		return nil, ErrInvalidAction
	}
}

func (e *Engine) handleOpenTurn(ctx context.Context, text string) (*TurnResult, error) {
	e.appendUser(text)

	req := AssessRequest{
		Utterance:  text,
		Transcript: append([]Turn(nil), e.transcript...),
		State:      e.qual,
		Policy:     e.policy,
	}
	assessment, err := e.reasoner.Assess(ctx, req)
	if err != nil {
		// Degrade gracefully: one fixed fallback utterance, no state or
		// qualification change, no retry.
		e.logger.Warn("reasoner unavailable, sending fallback", "error", err)
		e.metrics.ObserveReasonerFailure()
		reply := e.appendAssistant(fallbackMessage)
		e.snapshot(false)
		return &TurnResult{Reply: reply, State: e.state}, nil
	}

	if err := assessment.Patch.Validate(); err != nil {
		e.logger.Warn("reasoner patch rejected", "error", err)
	} else {
		e.qual.Apply(assessment.Patch)
	}

	if err := e.pause(ctx, e.cfg.ReplyDelay); err != nil {
		return nil, err
	}

	replyText := strings.TrimSpace(assessment.Reply)
	if replyText == "" {
		replyText = fallbackMessage
	}

	switch {
	case assessment.ProposeMeeting:
		e.qual.MeetingProposed = true
		e.qual.IsQualified = true
		reply := e.appendAssistant(replyText)
		e.state = StateAwaitingMeetingResponse
		e.snapshot(false)
		return &TurnResult{Reply: reply, State: e.state}, nil
	case assessment.EndConversation:
		reply := e.appendAssistant(replyText)
		outcome := e.endLocked()
		return &TurnResult{Reply: reply, State: e.state, Ended: true, Outcome: outcome}, nil
	default:
		reply := e.appendAssistant(replyText)
		e.snapshot(false)
		return &TurnResult{Reply: reply, State: e.state}, nil
	}
}

func (e *Engine) handleMeetingResponse(ctx context.Context, text string) (*TurnResult, error) {
	e.appendUser(text)

	// Classified locally, not via the reasoner. Positive and negative both
	// route to the follow-up choice; the distinction is only recorded.
	intent := e.classifier.Classify(text)
	if intent == IntentNeither {
		e.reprompts++
		if e.cfg.MaxMeetingReprompts > 0 && e.reprompts >= e.cfg.MaxMeetingReprompts {
			reply := e.appendAssistant(repromptCapMessage)
			outcome := e.endLocked()
			return &TurnResult{Reply: reply, State: e.state, Ended: true, Intent: intent, Outcome: outcome}, nil
		}
		reply := e.appendAssistant(meetingRepromptMessage)
		e.snapshot(false)
		return &TurnResult{Reply: reply, State: e.state, Intent: intent}, nil
	}

	if err := e.pause(ctx, e.cfg.ReplyDelay); err != nil {
		return nil, err
	}

	e.state = StateAwaitingFollowupChannel
	reply := e.appendAssistant(followupChoiceMessage)
	e.snapshot(false)
	return &TurnResult{Reply: reply, State: e.state, Intent: intent}, nil
}

// ChooseBooking routes the prospect to the external agenda. The real booking
// happens outside the conversation, so the slot is a handoff placeholder.
func (e *Engine) ChooseBooking(ctx context.Context) (*TurnResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateAwaitingFollowupChannel {
		return nil, ErrInvalidAction
	}

	slot := externalHandoffSlot
	e.qual.MeetingAccepted = true
	e.qual.MeetingSlot = &slot
	reply := e.appendAssistant(bookingHandoffMessage)
	outcome := e.endLocked()
	return &TurnResult{Reply: reply, State: e.state, Ended: true, Outcome: outcome}, nil
}

// AcceptSlot finalizes a meeting on a concrete picker slot.
func (e *Engine) AcceptSlot(ctx context.Context, slot scheduling.MeetingSlot) (*TurnResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateAwaitingMeetingResponse && e.state != StateAwaitingFollowupChannel {
		return nil, ErrInvalidAction
	}

	e.qual.MeetingAccepted = true
	e.qual.MeetingSlot = &slot
	reply := e.appendAssistant("C'est noté : rendez-vous " + slot.DayLabel + " à " + slot.Time + ". À très vite !")
	outcome := e.endLocked()
	return &TurnResult{Reply: reply, State: e.state, Ended: true, Outcome: outcome}, nil
}

// SubmitEmail captures a follow-up address instead of a booking. The only
// user-visible validation failure in the whole machine: the address must
// contain an @ and the state does not advance until it does.
func (e *Engine) SubmitEmail(ctx context.Context, email string) (*TurnResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateAwaitingFollowupChannel {
		return nil, ErrInvalidAction
	}
	if !strings.Contains(email, "@") {
		return nil, ErrMalformedEmail
	}

	e.qual.MeetingAccepted = true
	e.qual.MeetingSlot = nil
	reply := e.appendAssistant(emailClosingMessage)
	outcome := e.endLocked()
	return &TurnResult{Reply: reply, State: e.state, Ended: true, Outcome: outcome}, nil
}

// BackToBooking re-surfaces the booking choice without moving the machine.
func (e *Engine) BackToBooking() (*TurnResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateAwaitingFollowupChannel {
		return nil, ErrInvalidAction
	}
	return &TurnResult{
		Reply: Turn{Role: ChatRoleAssistant, Content: followupChoiceMessage, Timestamp: e.clock().UTC()},
		State: e.state,
	}, nil
}

// Outcome compiles the terminal summary. Only valid once the conversation
// has ended.
func (e *Engine) Outcome() (*ConversationOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateEnded {
		return nil, ErrInvalidAction
	}
	out := CompileOutcome(e.qual, e.transcript)
	return &out, nil
}

// ---------- internals (callers hold e.mu) ----------

func (e *Engine) appendUser(text string) Turn {
	turn := Turn{Role: ChatRoleUser, Content: text, Timestamp: e.clock().UTC()}
	e.transcript = append(e.transcript, turn)
	return turn
}

func (e *Engine) appendAssistant(text string) Turn {
	turn := Turn{Role: ChatRoleAssistant, Content: text, Timestamp: e.clock().UTC()}
	e.transcript = append(e.transcript, turn)
	return turn
}

// endLocked freezes the conversation and emits the terminal snapshot.
func (e *Engine) endLocked() *ConversationOutcome {
	e.state = StateEnded
	e.snapshot(true)
	e.metrics.ObserveOutcome(e.qual.IsQualified, e.qual.MeetingAccepted)
	out := CompileOutcome(e.qual, e.transcript)
	return &out
}

// snapshot hands the current transcript and state to the persistence
// collaborator. Fire-and-forget: a failure is logged and counted, never
// surfaced, and never blocks the turn.
func (e *Engine) snapshot(ended bool) {
	snap := Snapshot{
		SessionID:      e.id,
		IdempotencyKey: uuid.NewString(),
		Transcript:     append([]Turn(nil), e.transcript...),
		State:          e.qual,
		Ended:          ended,
		Metadata:       e.cfg.Metadata,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.recorder.Record(ctx, snap); err != nil {
			e.logger.Warn("snapshot save failed", "error", err, "ended", ended)
			e.metrics.ObserveRecorderFailure()
		}
	}()
}

func (e *Engine) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *Engine) observeTurn(state State, res *TurnResult, err error, start time.Time) {
	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case res != nil && res.Ended:
		status = "ended"
	}
	e.metrics.ObserveTurn(string(state), status, e.clock().Sub(start).Seconds())
}
