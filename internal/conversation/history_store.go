package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/smartcaller/qualification-engine/internal/scheduling"
)

const defaultSessionTTL = 24 * time.Hour

// SessionRecord is the durable image of one conversation, written after
// every assistant turn so a session survives a process restart.
type SessionRecord struct {
	SessionID  string             `json:"session_id"`
	OrgID      string             `json:"org_id,omitempty"`
	State      State              `json:"state"`
	Transcript []Turn             `json:"transcript"`
	Qual       QualificationState `json:"qualification"`
	Reprompts  int                `json:"reprompts,omitempty"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// HistoryStore persists per-session state in redis with a sliding TTL.
type HistoryStore struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

func NewHistoryStore(rdb *redis.Client, tracer trace.Tracer, ttl time.Duration) *HistoryStore {
	if rdb == nil {
		panic("conversation: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("smartcaller.internal.conversation.history")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &HistoryStore{
		redis:  rdb,
		tracer: tracer,
		ttl:    ttl,
	}
}

func (s *HistoryStore) SaveSession(ctx context.Context, rec SessionRecord) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_session")
	defer span.End()

	data, err := json.Marshal(rec)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(rec.SessionID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist session: %w", err)
	}
	return nil
}

func (s *HistoryStore) LoadSession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_session")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		span.RecordError(err)
		if err == redis.Nil {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("conversation: failed to load session: %w", err)
	}

	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode session: %w", err)
	}
	return &rec, nil
}

func (s *HistoryStore) DeleteSession(ctx context.Context, sessionID string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.delete_session")
	defer span.End()

	if err := s.redis.Del(ctx, sessionKey(sessionID), slotPickerKey(sessionID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to delete session: %w", err)
	}
	return nil
}

// SlotPickerRecord snapshots the picker so a reloaded session keeps its
// booked set and partial selection.
type SlotPickerRecord struct {
	Anchor      time.Time                 `json:"anchor"`
	Seed        int64                     `json:"seed"`
	SelectedDay *scheduling.Day           `json:"selected_day,omitempty"`
	Selected    *scheduling.MeetingSlot   `json:"selected,omitempty"`
}

func (s *HistoryStore) SaveSlotPicker(ctx context.Context, sessionID string, rec *SlotPickerRecord) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_slot_picker")
	defer span.End()

	if rec == nil {
		if err := s.redis.Del(ctx, slotPickerKey(sessionID)).Err(); err != nil {
			span.RecordError(err)
			return fmt.Errorf("conversation: failed to delete slot picker state: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(rec)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal slot picker state: %w", err)
	}
	if err := s.redis.Set(ctx, slotPickerKey(sessionID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist slot picker state: %w", err)
	}
	return nil
}

func (s *HistoryStore) LoadSlotPicker(ctx context.Context, sessionID string) (*SlotPickerRecord, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_slot_picker")
	defer span.End()

	data, err := s.redis.Get(ctx, slotPickerKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load slot picker state: %w", err)
	}

	var rec SlotPickerRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode slot picker state: %w", err)
	}
	return &rec, nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

func slotPickerKey(id string) string {
	return fmt.Sprintf("slot_picker:%s", id)
}
