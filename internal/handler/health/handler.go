package health

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/mana-voice/backend/internal/analysis/language"
	"github.com/zhouzirui/mana-voice/backend/internal/analysis/safety"
	"github.com/zhouzirui/mana-voice/backend/pkg/utils"
)

// Sessions reports how many sessions are open.
type Sessions interface {
	ActiveSessions() int
}

// Providers reports the configured speech vendors by direction ("stt", "tts").
type Providers interface {
	Providers() map[string][]language.Backend
}

// Status is the /health body.
type Status struct {
	Status         string                        `json:"status"`
	ActiveSessions int                           `json:"activeSessions"`
	LLM            string                        `json:"llm"`
	Speech         map[string][]language.Backend `json:"speech"`
	Helplines      []safety.Helpline             `json:"helplines"`
}

// Handler serves /health.
type Handler struct {
	sessions  Sessions
	providers Providers
	llm       string
}

// New creates the health handler. providers may be nil when speech is disabled; llm
// names the chat model provider or is empty when replies are disabled.
func New(sessions Sessions, providers Providers, llm string) *Handler {
	return &Handler{sessions: sessions, providers: providers, llm: llm}
}

// RegisterRoutes mounts /health.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := Status{
		Status:    "ok",
		LLM:       h.llm,
		Speech:    map[string][]language.Backend{},
		Helplines: safety.Helplines(),
	}
	if h.sessions != nil {
		status.ActiveSessions = h.sessions.ActiveSessions()
	}
	if h.providers != nil {
		status.Speech = h.providers.Providers()
	}
	if status.LLM == "" {
		status.Status = "degraded"
	}
	utils.RespondJSON(w, http.StatusOK, status)
}
