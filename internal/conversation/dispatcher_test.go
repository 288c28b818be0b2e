package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, reasoner Reasoner) *Dispatcher {
	t.Helper()
	manager := NewManager(ManagerConfig{}, ManagerDeps{Reasoner: reasoner})
	d := NewDispatcher(
		manager,
		NewMemoryQueue(32),
		nil,
		WithWorkerCount(1),
		WithReceiveBatchSize(1),
		WithReceiveWaitSeconds(0),
	)
	t.Cleanup(func() {
		_ = d.Shutdown(context.Background())
	})
	return d
}

func TestDispatcherStartSession(t *testing.T) {
	d := newTestDispatcher(t, &scriptReasoner{})

	res, err := d.StartSession(context.Background(), "org-1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, StateOpen, res.State)
}

func TestDispatcherFullExchange(t *testing.T) {
	reasoner := &scriptReasoner{steps: []scriptStep{{
		assessment: Assessment{Reply: "On planifie ?", ProposeMeeting: true},
	}}}
	d := newTestDispatcher(t, reasoner)

	start, err := d.StartSession(context.Background(), "org-1")
	require.NoError(t, err)

	turn, err := d.HandleTurn(context.Background(), start.SessionID, "budget validé")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingMeetingResponse, turn.State)

	turn, err = d.HandleTurn(context.Background(), start.SessionID, "oui")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingFollowupChannel, turn.State)

	turn, err = d.HandleFollowup(context.Background(), start.SessionID, FollowupEmail, "lead@example.com")
	require.NoError(t, err)
	assert.True(t, turn.Ended)
}

func TestDispatcherSurfacesDomainErrors(t *testing.T) {
	d := newTestDispatcher(t, &scriptReasoner{})

	_, err := d.HandleTurn(context.Background(), "missing", "bonjour")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDispatcherUnknownFollowupAction(t *testing.T) {
	reasoner := &scriptReasoner{steps: []scriptStep{{
		assessment: Assessment{Reply: "On planifie ?", ProposeMeeting: true},
	}}}
	d := newTestDispatcher(t, reasoner)

	start, err := d.StartSession(context.Background(), "org-1")
	require.NoError(t, err)

	_, err = d.HandleFollowup(context.Background(), start.SessionID, FollowupAction("call"), "")
	assert.Error(t, err)
}

func TestDispatcherContextCancellation(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	reasoner := reasonerFunc(func(ctx context.Context, _ AssessRequest) (Assessment, error) {
		select {
		case <-ctx.Done():
			return Assessment{}, ctx.Err()
		case <-block:
			return Assessment{Reply: "ok"}, nil
		}
	})
	d := newTestDispatcher(t, reasoner)

	start, err := d.StartSession(context.Background(), "org-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = d.HandleTurn(ctx, start.SessionID, "allo")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type reasonerFunc func(ctx context.Context, req AssessRequest) (Assessment, error)

func (f reasonerFunc) Assess(ctx context.Context, req AssessRequest) (Assessment, error) {
	return f(ctx, req)
}
