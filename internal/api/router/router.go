package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/smartcaller/qualification-engine/internal/conversation"
	httpmiddleware "github.com/smartcaller/qualification-engine/internal/http/middleware"
	"github.com/smartcaller/qualification-engine/internal/rules"
	"github.com/smartcaller/qualification-engine/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	RulesHandler        *rules.Handler
	AdminAuthSecret     string
	MetricsHandler      http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints: the conversation surface the widget talks to.
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}

		if cfg.ConversationHandler != nil {
			public.Route("/conversations", func(c chi.Router) {
				c.Post("/", cfg.ConversationHandler.StartSession)
				c.Route("/{id}", func(s chi.Router) {
					s.Post("/messages", cfg.ConversationHandler.HandleMessage)
					s.Post("/followup/book", cfg.ConversationHandler.ChooseBooking)
					s.Post("/followup/email", cfg.ConversationHandler.SubmitEmail)
					s.Post("/followup/back", cfg.ConversationHandler.BackToBooking)
					s.Get("/slots/days", cfg.ConversationHandler.SlotDays)
					s.Post("/slots/day", cfg.ConversationHandler.SelectDay)
					s.Post("/slots/time", cfg.ConversationHandler.SelectTime)
					s.Post("/slots/confirm", cfg.ConversationHandler.ConfirmSlot)
					s.Get("/outcome", cfg.ConversationHandler.Outcome)
					s.Get("/transcript", cfg.ConversationHandler.Transcript)
				})
			})
		}
	})

	// Admin routes: rule-set management, protected by JWT and scoped to an org.
	if cfg.AdminAuthSecret != "" && cfg.RulesHandler != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Use(requireOrgID)

			admin.Route("/rules", func(rr chi.Router) {
				rr.Post("/criteria", cfg.RulesHandler.AddCriterion)
				rr.Get("/criteria", cfg.RulesHandler.ListCriteria)
				rr.Put("/criteria/{id}", cfg.RulesHandler.UpdateCriterion)
				rr.Delete("/criteria/{id}", cfg.RulesHandler.RemoveCriterion)
				rr.Get("/policy", cfg.RulesHandler.CompilePolicy)
			})
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
