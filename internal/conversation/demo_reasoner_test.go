package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcaller/qualification-engine/internal/rules"
)

func TestDemoReasonerWalksFullFunnel(t *testing.T) {
	e := NewEngine("demo", rules.Policy{}, EngineConfig{}, EngineDeps{
		Reasoner: NewDemoReasoner(),
	})

	_, err := e.Start(context.Background())
	require.NoError(t, err)

	res, err := e.HandleUserTurn(context.Background(), "on cherche un outil de prospection")
	require.NoError(t, err)
	assert.Contains(t, res.Reply.Content, "budget")
	assert.Equal(t, StateOpen, res.State)

	res, err = e.HandleUserTurn(context.Background(), "environ 50k par an")
	require.NoError(t, err)
	assert.Contains(t, res.Reply.Content, "échéance")
	assert.Equal(t, StateOpen, res.State)

	res, err = e.HandleUserTurn(context.Background(), "d'ici la fin du trimestre")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingMeetingResponse, res.State)

	qual := e.Qualification()
	assert.True(t, qual.IsQualified)
	require.NotNil(t, qual.Score)
	assert.Equal(t, 75, *qual.Score)
	assert.Len(t, qual.Reasons, 3)
}
