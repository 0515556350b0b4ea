package session

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/mana-voice/backend/internal/model/speech"
	"github.com/zhouzirui/mana-voice/backend/internal/service/orchestrator"
	"github.com/zhouzirui/mana-voice/backend/pkg/errorsx"
	"github.com/zhouzirui/mana-voice/backend/pkg/utils"
)

const maxMultipartMemory = 32 << 20

// Handler serves the session lifecycle and turn endpoints.
type Handler struct {
	svc *orchestrator.Service
}

// New creates the session handler.
func New(svc *orchestrator.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the session routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreateSession)
	r.Get("/sessions/{sessionID}", h.handleGetSession)
	r.Post("/sessions/{sessionID}/turns", h.handleSubmitTurn)
	r.Post("/sessions/{sessionID}/close", h.handleCloseSession)
	r.Get("/sessions/{sessionID}/silence", h.handleSilence)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondKindError(w, errorsx.New(errorsx.KindInvalidInput, "invalid request body"))
		return
	}

	result, err := h.svc.CreateSession(r.Context(), payload.Language)
	if err != nil {
		utils.RespondKindError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondKindError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.CloseSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondKindError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleSilence(w http.ResponseWriter, r *http.Request) {
	seconds, err := strconv.Atoi(r.URL.Query().Get("seconds"))
	if err != nil {
		utils.RespondKindError(w, errorsx.New(errorsx.KindInvalidInput, "seconds query parameter must be an integer"))
		return
	}

	prompt, err := h.svc.SilencePrompt(r.Context(), chi.URLParam(r, "sessionID"), seconds)
	if err != nil {
		utils.RespondKindError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, prompt)
}

// turnPayload is the JSON form of a turn. Audio travels base64 encoded.
type turnPayload struct {
	Text        string `json:"text"`
	AudioBase64 string `json:"audioBase64"`
	AudioFormat string `json:"audioFormat"`
	Language    string `json:"language"`
	Speak       bool   `json:"speak"`
}

// TurnResponse is a turn result with its reply audio inlined.
type TurnResponse struct {
	*orchestrator.TurnResult
	AudioBase64 string `json:"audioBase64,omitempty"`
}

func (h *Handler) handleSubmitTurn(w http.ResponseWriter, r *http.Request) {
	req, err := decodeTurn(r)
	if err != nil {
		utils.RespondKindError(w, errorsx.Wrap(err, errorsx.KindInvalidInput))
		return
	}
	req.SessionID = chi.URLParam(r, "sessionID")

	result, err := h.svc.SubmitTurn(r.Context(), req)
	if err != nil {
		utils.RespondKindError(w, err)
		return
	}

	resp := TurnResponse{TurnResult: result}
	if len(result.Audio) > 0 {
		resp.AudioBase64 = base64.StdEncoding.EncodeToString(result.Audio)
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

// decodeTurn reads a turn from either a JSON body or a multipart form with an "audio"
// file part.
func decodeTurn(r *http.Request) (orchestrator.TurnRequest, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		return decodeMultipartTurn(r)
	}

	var payload turnPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return orchestrator.TurnRequest{}, errors.New("invalid request body")
	}

	req := orchestrator.TurnRequest{
		Text:        payload.Text,
		AudioFormat: payload.AudioFormat,
		Language:    payload.Language,
		Speak:       payload.Speak,
	}
	if payload.AudioBase64 != "" {
		audio, err := base64.StdEncoding.DecodeString(payload.AudioBase64)
		if err != nil {
			return orchestrator.TurnRequest{}, errors.New("audioBase64 is not valid base64")
		}
		req.Audio = audio
	}
	return req, nil
}

func decodeMultipartTurn(r *http.Request) (orchestrator.TurnRequest, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return orchestrator.TurnRequest{}, errors.New("invalid multipart form")
	}

	req := orchestrator.TurnRequest{
		Text:     r.FormValue("text"),
		Language: r.FormValue("language"),
	}
	req.Speak, _ = strconv.ParseBool(r.FormValue("speak"))

	file, header, err := r.FormFile("audio")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return req, nil
	case err != nil:
		return orchestrator.TurnRequest{}, errors.New("invalid audio part")
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		return orchestrator.TurnRequest{}, errors.New("failed to read audio")
	}
	req.Audio = audio
	req.Filename = header.Filename
	req.AudioFormat = speech.DetectFormat(r.FormValue("format"), header.Filename, header.Header.Get("Content-Type"))
	return req, nil
}
