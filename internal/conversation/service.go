package conversation

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smartcaller/qualification-engine/internal/observability/metrics"
	"github.com/smartcaller/qualification-engine/internal/rules"
	"github.com/smartcaller/qualification-engine/internal/scheduling"
	"github.com/smartcaller/qualification-engine/pkg/logging"
)

// ManagerConfig wires a session manager.
type ManagerConfig struct {
	Engine   EngineConfig
	DemoMode bool
}

// ManagerDeps are the manager's collaborators. History and Outcomes may be
// nil; sessions then live only in process memory.
type ManagerDeps struct {
	Rules      rules.Repository
	Reasoner   Reasoner
	Classifier IntentClassifier
	Recorder   Recorder
	History    *HistoryStore
	Outcomes   *OutcomeStore
	Logger     *logging.Logger
	Metrics    *metrics.ConversationMetrics
}

type session struct {
	mu     sync.Mutex
	engine *Engine
	picker *scheduling.Picker
	orgID  string

	pickerAnchor time.Time
	pickerSeed   int64
}

// Manager owns the live conversation sessions. Each session gets its own
// engine and slot picker; the manager routes operations by session id and
// keeps redis and postgres in sync best-effort.
type Manager struct {
	cfg  ManagerConfig
	deps ManagerDeps

	sessions sync.Map // session id -> *session
}

func NewManager(cfg ManagerConfig, deps ManagerDeps) *Manager {
	if deps.Reasoner == nil {
		panic("conversation: reasoner cannot be nil")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	return &Manager{cfg: cfg, deps: deps}
}

// StartResult is the reply to a session-start request.
type StartResult struct {
	SessionID string `json:"session_id"`
	TurnResult
}

// StartSession creates a conversation, sends the opening message and offers
// the engine to subsequent turns.
func (m *Manager) StartSession(ctx context.Context, orgID string) (*StartResult, error) {
	id := uuid.NewString()
	policy := m.loadPolicy(ctx, orgID)

	sess := m.newSession(id, orgID, policy, time.Now())
	res, err := sess.engine.Start(ctx)
	if err != nil {
		return nil, err
	}
	m.sessions.Store(id, sess)
	m.persistSession(ctx, sess)

	return &StartResult{SessionID: id, TurnResult: *res}, nil
}

// HandleTurn routes one user utterance to its session.
func (m *Manager) HandleTurn(ctx context.Context, sessionID, text string) (*TurnResult, error) {
	sess, err := m.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	res, err := sess.engine.HandleUserTurn(ctx, text)
	if err != nil {
		return nil, err
	}
	m.afterTurn(ctx, sess, res)
	return res, nil
}

// ChooseBooking hands the prospect off to the external agenda.
func (m *Manager) ChooseBooking(ctx context.Context, sessionID string) (*TurnResult, error) {
	sess, err := m.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	res, err := sess.engine.ChooseBooking(ctx)
	if err != nil {
		return nil, err
	}
	m.afterTurn(ctx, sess, res)
	return res, nil
}

// SubmitEmail records a follow-up address and closes the conversation.
func (m *Manager) SubmitEmail(ctx context.Context, sessionID, email string) (*TurnResult, error) {
	sess, err := m.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	res, err := sess.engine.SubmitEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	m.afterTurn(ctx, sess, res)
	return res, nil
}

// BackToBooking re-surfaces the follow-up choice.
func (m *Manager) BackToBooking(ctx context.Context, sessionID string) (*TurnResult, error) {
	sess, err := m.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.engine.BackToBooking()
}

// SlotDays lists the offerable business days for the session's picker.
func (m *Manager) SlotDays(ctx context.Context, sessionID string) ([]scheduling.Day, error) {
	sess, err := m.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.picker.Days(), nil
}

// SelectDay picks a day and returns its time grid. An unknown day is a
// silent no-op and the previous grid is returned.
func (m *Manager) SelectDay(ctx context.Context, sessionID, iso string) ([]scheduling.TimeOption, error) {
	sess, err := m.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	sess.picker.SelectDay(iso)
	times := sess.picker.Times()
	sess.mu.Unlock()

	m.persistPicker(ctx, sess)
	return times, nil
}

// SelectTime picks a time on the selected day. Booked and off-grid labels
// are silent no-ops.
func (m *Manager) SelectTime(ctx context.Context, sessionID, label string) error {
	sess, err := m.getSession(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	sess.picker.SelectTime(label)
	sess.mu.Unlock()

	m.persistPicker(ctx, sess)
	return nil
}

// ConfirmSlot finalizes the picker selection and ends the conversation with
// an accepted meeting.
func (m *Manager) ConfirmSlot(ctx context.Context, sessionID string) (*TurnResult, error) {
	sess, err := m.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	slot, err := sess.picker.Confirm()
	sess.mu.Unlock()
	if err != nil {
		return nil, err
	}

	res, err := sess.engine.AcceptSlot(ctx, slot)
	if err != nil {
		return nil, err
	}
	m.afterTurn(ctx, sess, res)
	return res, nil
}

// Outcome returns the compiled summary for an ended conversation. Sessions
// evicted from memory fall back to the outcome store.
func (m *Manager) Outcome(ctx context.Context, sessionID string) (*ConversationOutcome, error) {
	if v, ok := m.sessions.Load(sessionID); ok {
		return v.(*session).engine.Outcome()
	}
	if m.deps.Outcomes != nil {
		rec, err := m.deps.Outcomes.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return &rec.Outcome, nil
	}
	return nil, ErrSessionNotFound
}

// Transcript returns the turns of a live session.
func (m *Manager) Transcript(ctx context.Context, sessionID string) ([]Turn, error) {
	sess, err := m.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.engine.Transcript(), nil
}

// ---------- internals ----------

func (m *Manager) newSession(id, orgID string, policy rules.Policy, now time.Time) *session {
	seed := now.UnixNano()
	return &session{
		engine: NewEngine(id, policy, m.cfg.Engine, EngineDeps{
			Reasoner:   m.deps.Reasoner,
			Classifier: m.deps.Classifier,
			Recorder:   m.deps.Recorder,
			Logger:     m.deps.Logger,
			Metrics:    m.deps.Metrics,
		}),
		picker:       scheduling.NewPicker(now, rand.New(rand.NewSource(seed))),
		orgID:        orgID,
		pickerAnchor: now,
		pickerSeed:   seed,
	}
}

// loadPolicy compiles the org's criteria. A repository failure degrades to
// an empty policy so the conversation can still run.
func (m *Manager) loadPolicy(ctx context.Context, orgID string) rules.Policy {
	if m.deps.Rules == nil {
		return rules.Policy{}
	}
	criteria, err := m.deps.Rules.List(ctx, orgID)
	if err != nil {
		m.deps.Logger.Warn("failed to load qualification criteria, using empty policy", "org_id", orgID, "error", err)
		return rules.Policy{}
	}
	return rules.NewRuleSet(criteria).Compile()
}

// getSession finds a live session, reviving it from redis if the process
// restarted since the last turn.
func (m *Manager) getSession(ctx context.Context, sessionID string) (*session, error) {
	if v, ok := m.sessions.Load(sessionID); ok {
		return v.(*session), nil
	}
	if m.deps.History == nil {
		return nil, ErrSessionNotFound
	}

	rec, err := m.deps.History.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	policy := m.loadPolicy(ctx, rec.OrgID)
	sess := &session{
		engine: RestoreEngine(*rec, policy, m.cfg.Engine, EngineDeps{
			Reasoner:   m.deps.Reasoner,
			Classifier: m.deps.Classifier,
			Recorder:   m.deps.Recorder,
			Logger:     m.deps.Logger,
			Metrics:    m.deps.Metrics,
		}),
		orgID: rec.OrgID,
	}
	m.restorePicker(ctx, sess, sessionID)

	actual, _ := m.sessions.LoadOrStore(sessionID, sess)
	return actual.(*session), nil
}

func (m *Manager) restorePicker(ctx context.Context, sess *session, sessionID string) {
	var prec *SlotPickerRecord
	if m.deps.History != nil {
		var err error
		prec, err = m.deps.History.LoadSlotPicker(ctx, sessionID)
		if err != nil {
			m.deps.Logger.Warn("failed to load slot picker state", "session_id", sessionID, "error", err)
		}
	}
	if prec == nil {
		now := time.Now()
		sess.pickerAnchor = now
		sess.pickerSeed = now.UnixNano()
		sess.picker = scheduling.NewPicker(now, rand.New(rand.NewSource(sess.pickerSeed)))
		return
	}

	// Same anchor and seed regenerate the same day list and booked subset.
	sess.pickerAnchor = prec.Anchor
	sess.pickerSeed = prec.Seed
	sess.picker = scheduling.NewPicker(prec.Anchor, rand.New(rand.NewSource(prec.Seed)))
	if prec.SelectedDay != nil {
		sess.picker.SelectDay(prec.SelectedDay.ISO)
	}
	if prec.Selected != nil {
		sess.picker.SelectTime(prec.Selected.Time)
	}
}

// afterTurn syncs the stores once a turn resolved. Failures are logged and
// never surfaced to the prospect.
func (m *Manager) afterTurn(ctx context.Context, sess *session, res *TurnResult) {
	m.persistSession(ctx, sess)

	if !res.Ended {
		return
	}
	if m.deps.Outcomes != nil && res.Outcome != nil {
		if err := m.deps.Outcomes.Save(ctx, sess.engine.ID(), sess.orgID, *res.Outcome); err != nil {
			m.deps.Logger.Error("failed to persist outcome", "session_id", sess.engine.ID(), "error", err)
		}
	}
	if m.deps.History != nil {
		if err := m.deps.History.DeleteSession(ctx, sess.engine.ID()); err != nil {
			m.deps.Logger.Warn("failed to clear ended session", "session_id", sess.engine.ID(), "error", err)
		}
	}
}

func (m *Manager) persistSession(ctx context.Context, sess *session) {
	if m.deps.History == nil {
		return
	}
	rec := SessionRecord{
		SessionID:  sess.engine.ID(),
		OrgID:      sess.orgID,
		State:      sess.engine.CurrentState(),
		Transcript: sess.engine.Transcript(),
		Qual:       sess.engine.Qualification(),
		Reprompts:  sess.engine.Reprompts(),
		UpdatedAt:  time.Now().UTC(),
	}
	if rec.State == StateEnded {
		return
	}
	if err := m.deps.History.SaveSession(ctx, rec); err != nil {
		m.deps.Logger.Warn("failed to persist session", "session_id", rec.SessionID, "error", err)
	}
}

func (m *Manager) persistPicker(ctx context.Context, sess *session) {
	if m.deps.History == nil {
		return
	}
	sess.mu.Lock()
	rec := &SlotPickerRecord{
		Anchor: sess.pickerAnchor,
		Seed:   sess.pickerSeed,
	}
	if day, slot := sess.picker.Selection(); day != nil {
		rec.SelectedDay = day
		rec.Selected = slot
	}
	sess.mu.Unlock()

	if err := m.deps.History.SaveSlotPicker(ctx, sess.engine.ID(), rec); err != nil {
		m.deps.Logger.Warn("failed to persist slot picker state", "session_id", sess.engine.ID(), "error", err)
	}
}
