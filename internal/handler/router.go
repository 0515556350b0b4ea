package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/mana-voice/backend/internal/config"
	"github.com/zhouzirui/mana-voice/backend/internal/handler/health"
	"github.com/zhouzirui/mana-voice/backend/internal/handler/session"
	"github.com/zhouzirui/mana-voice/backend/internal/handler/speech"
	middlewarePkg "github.com/zhouzirui/mana-voice/backend/internal/middleware"
	"github.com/zhouzirui/mana-voice/backend/internal/service/orchestrator"
	speechService "github.com/zhouzirui/mana-voice/backend/internal/service/speech"
)

// Services are the collaborators the HTTP surface exposes. Speech may be nil.
type Services struct {
	Orchestrator *orchestrator.Service
	Speech       *speechService.Service
	// LLM names the reply model provider; empty when replies are disabled.
	LLM string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg config.ServerConfig, svcs Services) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.AccessLog)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(cfg.AllowedOrigins))

	var speechSvc speech.SpeechService
	var providers health.Providers
	if svcs.Speech != nil {
		speechSvc = svcs.Speech
		providers = svcs.Speech
	}

	health.New(svcs.Orchestrator, providers, svcs.LLM).RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		session.New(svcs.Orchestrator).RegisterRoutes(api)
		speech.NewWebSocketHandler(svcs.Orchestrator, originChecker(cfg.AllowedOrigins)).RegisterWebSocketRoutes(api)
		speech.New(speechSvc).RegisterRoutes(api)
	})

	return r
}

// originChecker mirrors the CORS allowlist for websocket upgrades. No list, or a "*"
// entry, accepts everything.
func originChecker(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 {
		return nil
	}
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			return nil
		}
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
