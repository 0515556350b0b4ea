package speech

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/mana-voice/backend/internal/analysis/emotion"
	"github.com/zhouzirui/mana-voice/backend/internal/analysis/language"
	"github.com/zhouzirui/mana-voice/backend/internal/model/speech"
	"github.com/zhouzirui/mana-voice/backend/pkg/errorsx"
	"github.com/zhouzirui/mana-voice/backend/pkg/log"
	"github.com/zhouzirui/mana-voice/backend/pkg/utils"
)

const maxMultipartMemory = 32 << 20

// SpeechService is the routed STT/TTS pair the handler exposes.
type SpeechService interface {
	Transcribe(ctx context.Context, req *speech.TranscribeRequest) (*speech.Transcript, error)
	Synthesize(ctx context.Context, req *speech.SynthesizeRequest) (*speech.Audio, error)
}

// Handler serves the standalone speech endpoints.
type Handler struct {
	speechSvc SpeechService
}

// New creates a speech handler. A nil service makes every route answer 501.
func New(speechSvc SpeechService) *Handler {
	return &Handler{speechSvc: speechSvc}
}

// RegisterRoutes mounts /speech/transcribe and /speech/synthesize.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/speech", func(sr chi.Router) {
		if h.speechSvc == nil {
			sr.HandleFunc("/*", func(w http.ResponseWriter, r *http.Request) {
				utils.RespondError(w, http.StatusNotImplemented, "speech service not configured")
			})
			return
		}
		sr.Post("/transcribe", h.handleTranscribe)
		sr.Post("/synthesize", h.handleSynthesize)
	})
}

// transcribeResponse adds the supported tag the vendor language maps to, if any.
type transcribeResponse struct {
	*speech.Transcript
	Tag language.Tag `json:"tag,omitempty"`
}

func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		utils.RespondKindError(w, errorsx.New(errorsx.KindInvalidInput, "invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondKindError(w, errorsx.New(errorsx.KindInvalidInput, "audio file is required"))
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		utils.RespondKindError(w, errorsx.New(errorsx.KindInvalidInput, "failed to read audio"))
		return
	}

	var hint language.Tag
	if raw := strings.TrimSpace(r.FormValue("language")); raw != "" {
		tag, ok := language.ParseTag(raw)
		if !ok {
			utils.RespondKindError(w, errorsx.New(errorsx.KindInvalidInput, "unsupported language"))
			return
		}
		hint = tag
	}

	transcript, err := h.speechSvc.Transcribe(r.Context(), &speech.TranscribeRequest{
		SessionID: r.FormValue("sessionId"),
		Audio:     audio,
		Format:    speech.DetectFormat(r.FormValue("format"), header.Filename, header.Header.Get("Content-Type")),
		Filename:  header.Filename,
		Hint:      hint,
	})
	if err != nil {
		log.Warnw("standalone transcription failed", "error", err)
		utils.RespondKindError(w, err)
		return
	}

	resp := transcribeResponse{Transcript: transcript}
	if tag, ok := language.ParseTag(transcript.Language); ok {
		resp.Tag = tag
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"sessionId"`
		Text      string `json:"text"`
		Language  string `json:"language"`
		Emotion   string `json:"emotion"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondKindError(w, errorsx.New(errorsx.KindInvalidInput, "invalid request body"))
		return
	}
	if strings.TrimSpace(payload.Text) == "" {
		utils.RespondKindError(w, errorsx.New(errorsx.KindInvalidInput, "text is required"))
		return
	}

	tag := language.English
	if payload.Language != "" {
		parsed, ok := language.ParseTag(payload.Language)
		if !ok {
			utils.RespondKindError(w, errorsx.New(errorsx.KindInvalidInput, "unsupported language"))
			return
		}
		tag = parsed
	}
	label := emotion.Label(strings.ToLower(strings.TrimSpace(payload.Emotion)))
	if !label.Valid() {
		label = ""
	}

	audio, err := h.speechSvc.Synthesize(r.Context(), &speech.SynthesizeRequest{
		SessionID: payload.SessionID,
		Text:      payload.Text,
		Language:  tag,
		Emotion:   label,
	})
	if err != nil {
		log.Warnw("standalone synthesis failed", "error", err)
		utils.RespondKindError(w, err)
		return
	}
	writeAudio(w, audio)
}

func writeAudio(w http.ResponseWriter, audio *speech.Audio) {
	contentType := audio.ContentType
	if contentType == "" {
		contentType = speech.ContentType(audio.Format)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(audio.Data)))
	w.Header().Set("Content-Disposition", "attachment; filename="+speech.Filename("", audio.Format))
	w.Header().Set("X-Speech-Provider", string(audio.Provider))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(audio.Data); err != nil {
		log.Warnw("failed to write audio response", "error", err)
	}
}
