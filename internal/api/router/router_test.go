package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/smartcaller/qualification-engine/internal/conversation"
	"github.com/smartcaller/qualification-engine/internal/rules"
	"github.com/smartcaller/qualification-engine/pkg/logging"
)

type fixedReasoner struct{}

func (fixedReasoner) Assess(context.Context, conversation.AssessRequest) (conversation.Assessment, error) {
	return conversation.Assessment{Reply: "Dites-m'en plus."}, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	manager := conversation.NewManager(conversation.ManagerConfig{}, conversation.ManagerDeps{
		Reasoner: fixedReasoner{},
	})
	dispatcher := conversation.NewDispatcher(
		manager,
		conversation.NewMemoryQueue(32),
		nil,
		conversation.WithWorkerCount(1),
		conversation.WithReceiveWaitSeconds(0),
	)
	t.Cleanup(func() { _ = dispatcher.Shutdown(context.Background()) })

	return New(&Config{
		Logger:              logging.Default(),
		ConversationHandler: conversation.NewHandler(dispatcher, manager, nil),
		RulesHandler:        rules.NewHandler(rules.NewInMemoryRepository(), logging.Default()),
		AdminAuthSecret:     "secret",
	})
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestConversationRoutesArePublic(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/conversations/", bytes.NewBufferString(`{"org_id":"org-1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var start conversation.StartResult
	if err := json.NewDecoder(rec.Body).Decode(&start); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if start.SessionID == "" {
		t.Fatal("expected a session id")
	}

	body, _ := json.Marshal(conversation.MessageRequest{Text: "bonjour"})
	req = httptest.NewRequest(http.MethodPost, "/conversations/"+start.SessionID+"/messages", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestAdminRoutesRequireJWT(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/rules/criteria", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestAdminRoutesRequireOrgHeader(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/rules/criteria", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "secret"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestAdminRulesRoundTrip(t *testing.T) {
	router := newTestRouter(t)

	body, _ := json.Marshal(rules.AddCriterionRequest{Type: rules.TypeMustHave})
	req := httptest.NewRequest(http.MethodPost, "/admin/rules/criteria", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "secret"))
	req.Header.Set("X-Org-Id", "org-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/rules/policy", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "secret"))
	req.Header.Set("X-Org-Id", "org-1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func adminToken(t *testing.T, secret string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "admin-user",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
