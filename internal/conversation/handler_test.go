package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConversationRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/conversations", h.StartSession)
	r.Post("/conversations/{id}/messages", h.HandleMessage)
	r.Post("/conversations/{id}/followup/book", h.ChooseBooking)
	r.Post("/conversations/{id}/followup/email", h.SubmitEmail)
	r.Post("/conversations/{id}/followup/back", h.BackToBooking)
	r.Get("/conversations/{id}/slots/days", h.SlotDays)
	r.Post("/conversations/{id}/slots/day", h.SelectDay)
	r.Post("/conversations/{id}/slots/time", h.SelectTime)
	r.Post("/conversations/{id}/slots/confirm", h.ConfirmSlot)
	r.Get("/conversations/{id}/outcome", h.Outcome)
	r.Get("/conversations/{id}/transcript", h.Transcript)
	return r
}

func newTestHandler(t *testing.T, reasoner Reasoner) (*Handler, http.Handler) {
	t.Helper()
	manager := NewManager(ManagerConfig{}, ManagerDeps{Reasoner: reasoner})
	d := NewDispatcher(manager, NewMemoryQueue(32), nil, WithWorkerCount(1), WithReceiveWaitSeconds(0))
	t.Cleanup(func() { _ = d.Shutdown(context.Background()) })
	h := NewHandler(d, manager, nil)
	return h, newConversationRouter(h)
}

func postJSON(t *testing.T, router http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandlerStartSession(t *testing.T) {
	_, router := newTestHandler(t, &scriptReasoner{})

	w := postJSON(t, router, "/conversations", StartSessionRequest{OrgID: "org-1"})
	require.Equal(t, http.StatusCreated, w.Code)

	var res StartResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, StateOpen, res.State)
	assert.Equal(t, openingMessage, res.Reply.Content)
}

func TestHandlerMessageUnknownSession(t *testing.T) {
	_, router := newTestHandler(t, &scriptReasoner{})

	w := postJSON(t, router, "/conversations/missing/messages", MessageRequest{Text: "bonjour"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerMessageRequiresText(t *testing.T) {
	_, router := newTestHandler(t, &scriptReasoner{})

	w := postJSON(t, router, "/conversations/any/messages", MessageRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerMalformedEmail(t *testing.T) {
	reasoner := &scriptReasoner{steps: []scriptStep{{
		assessment: Assessment{Reply: "On planifie ?", ProposeMeeting: true},
	}}}
	_, router := newTestHandler(t, reasoner)

	sessionID := driveToFollowup(t, router)

	w := postJSON(t, router, "/conversations/"+sessionID+"/followup/email", SubmitEmailRequest{Email: "nope"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// The session is still waiting for a valid channel choice.
	w = postJSON(t, router, "/conversations/"+sessionID+"/followup/email", SubmitEmailRequest{Email: "lead@example.com"})
	require.Equal(t, http.StatusOK, w.Code)

	var res TurnResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.True(t, res.Ended)
	assert.Nil(t, res.Outcome.MeetingSlot)
}

func TestHandlerSlotFlow(t *testing.T) {
	reasoner := &scriptReasoner{steps: []scriptStep{{
		assessment: Assessment{Reply: "On planifie ?", ProposeMeeting: true},
	}}}
	_, router := newTestHandler(t, reasoner)

	sessionID := driveToFollowup(t, router)

	req := httptest.NewRequest(http.MethodGet, "/conversations/"+sessionID+"/slots/days", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var daysResp struct {
		Days []struct {
			Label string `json:"label"`
			ISO   string `json:"iso"`
		} `json:"days"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&daysResp))
	require.Len(t, daysResp.Days, 5)

	// Confirming before selecting anything is a conflict.
	w = postJSON(t, router, "/conversations/"+sessionID+"/slots/confirm", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = postJSON(t, router, "/conversations/"+sessionID+"/slots/day", SelectDayRequest{ISO: daysResp.Days[0].ISO})
	require.Equal(t, http.StatusOK, w.Code)

	var timesResp struct {
		Times []struct {
			Time      string `json:"time"`
			Available bool   `json:"available"`
		} `json:"times"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&timesResp))

	var free string
	for _, opt := range timesResp.Times {
		if opt.Available {
			free = opt.Time
			break
		}
	}
	require.NotEmpty(t, free)

	w = postJSON(t, router, "/conversations/"+sessionID+"/slots/time", SelectTimeRequest{Time: free})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = postJSON(t, router, "/conversations/"+sessionID+"/slots/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var res TurnResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.True(t, res.Ended)
	require.NotNil(t, res.Outcome)
	require.NotNil(t, res.Outcome.MeetingSlot)
	assert.Equal(t, free, res.Outcome.MeetingSlot.Time)

	// Outcome stays readable after the conversation ended.
	req = httptest.NewRequest(http.MethodGet, "/conversations/"+sessionID+"/outcome", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandlerMessageAfterEndConflicts(t *testing.T) {
	reasoner := &scriptReasoner{steps: []scriptStep{{
		assessment: Assessment{Reply: "Au revoir", EndConversation: true},
	}}}
	_, router := newTestHandler(t, reasoner)

	w := postJSON(t, router, "/conversations", StartSessionRequest{OrgID: "org-1"})
	require.Equal(t, http.StatusCreated, w.Code)
	var start StartResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&start))

	w = postJSON(t, router, "/conversations/"+start.SessionID+"/messages", MessageRequest{Text: "aucun budget"})
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, router, "/conversations/"+start.SessionID+"/messages", MessageRequest{Text: "encore là ?"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

// driveToFollowup starts a session and walks it to the channel choice.
func driveToFollowup(t *testing.T, router http.Handler) string {
	t.Helper()

	w := postJSON(t, router, "/conversations", StartSessionRequest{OrgID: "org-1"})
	require.Equal(t, http.StatusCreated, w.Code)
	var start StartResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&start))

	w = postJSON(t, router, "/conversations/"+start.SessionID+"/messages", MessageRequest{Text: "budget validé"})
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, router, "/conversations/"+start.SessionID+"/messages", MessageRequest{Text: "oui"})
	require.Equal(t, http.StatusOK, w.Code)

	var res TurnResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	require.Equal(t, StateAwaitingFollowupChannel, res.State)

	return start.SessionID
}
