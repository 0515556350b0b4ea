package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/mana-voice/backend/internal/analysis/language"
	"github.com/zhouzirui/mana-voice/backend/internal/service/orchestrator"
	"github.com/zhouzirui/mana-voice/backend/pkg/errorsx"
	"github.com/zhouzirui/mana-voice/backend/pkg/log"
	"github.com/zhouzirui/mana-voice/backend/pkg/utils"
)

const (
	readTimeout    = 60 * time.Second
	pingInterval   = 54 * time.Second
	writeTimeout   = 10 * time.Second
	maxBufferBytes = 25 << 20
)

// TurnService is the part of the orchestrator the websocket channel drives.
type TurnService interface {
	GetSession(ctx context.Context, id string) (*orchestrator.SessionView, error)
	SubmitTurn(ctx context.Context, req orchestrator.TurnRequest) (*orchestrator.TurnResult, error)
}

// WebSocketHandler runs turns over a websocket bound to one session.
type WebSocketHandler struct {
	turns    TurnService
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates the websocket turn channel. checkOrigin may be nil to
// accept every origin.
func NewWebSocketHandler(turns TurnService, checkOrigin func(r *http.Request) bool) *WebSocketHandler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &WebSocketHandler{
		turns: turns,
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterWebSocketRoutes mounts /sessions/{sessionID}/ws.
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/sessions/{sessionID}/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// AudioMessage carries a chunk of recorded audio. AudioData is base64 in JSON.
type AudioMessage struct {
	AudioData  []byte `json:"audioData"`
	Format     string `json:"format"`
	Language   string `json:"language"`
	IsFinal    bool   `json:"isFinal"`
	ChunkIndex int    `json:"chunkIndex"`
}

// TextMessage is a typed utterance.
type TextMessage struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// ConfigMessage updates per-connection settings. Nil fields are left unchanged.
type ConfigMessage struct {
	Language   *string `json:"language,omitempty"`
	ASREnabled *bool   `json:"asrEnabled,omitempty"`
	TTSEnabled *bool   `json:"ttsEnabled,omitempty"`
	StreamMode *bool   `json:"streamMode,omitempty"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type connectionState struct {
	sessionID string
	// language is the per-connection override; empty lets the router decide.
	language    string
	asrEnabled  bool
	ttsEnabled  bool
	streamMode  bool
	audioFormat string
	// audioLanguage is the hint carried by the utterance being buffered. It applies to
	// that utterance only.
	audioLanguage string
	buffer        bytes.Buffer
}

func newConnectionState(sessionID string) *connectionState {
	return &connectionState{
		sessionID:  sessionID,
		asrEnabled: true,
		ttsEnabled: true,
		streamMode: true,
	}
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	view, err := h.turns.GetSession(r.Context(), sessionID)
	if err != nil {
		utils.RespondKindError(w, err)
		return
	}
	if view.Session.Closed {
		utils.RespondKindError(w, errorsx.New(errorsx.KindSessionAlreadyClosed, "session already closed"))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnw("websocket upgrade failed", "session", sessionID, "error", err)
		return
	}
	defer conn.Close()

	state := newConnectionState(sessionID)
	log.Infow("websocket connected", "session", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(maxBufferBytes * 2)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go pingLoop(ctx, conn)

	h.sendResult(conn, sessionID, map[string]any{
		"type":     "connected",
		"language": view.Session.Language,
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnw("websocket read failed", "session", sessionID, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		if msg.SessionID != "" && msg.SessionID != sessionID {
			h.sendError(conn, "session mismatch", errorsx.KindInvalidInput)
			continue
		}
		h.handleMessage(ctx, conn, state, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, msg *inboundMessage) {
	switch msg.Type {
	case "audio":
		h.handleAudioMessage(ctx, conn, state, msg.Data)
	case "text":
		h.handleTextMessage(ctx, conn, state, msg.Data)
	case "config":
		h.handleConfigMessage(conn, state, msg.Data)
	default:
		h.sendError(conn, "unsupported message type: "+msg.Type, errorsx.KindInvalidInput)
	}
}

func (h *WebSocketHandler) handleAudioMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, raw json.RawMessage) {
	if !state.asrEnabled {
		h.sendResult(conn, state.sessionID, map[string]any{"type": "asr", "enabled": false})
		return
	}

	var audio AudioMessage
	if err := json.Unmarshal(raw, &audio); err != nil {
		h.sendError(conn, "invalid audio payload", errorsx.KindInvalidInput)
		return
	}

	if state.buffer.Len()+len(audio.AudioData) > maxBufferBytes {
		state.buffer.Reset()
		state.audioLanguage = ""
		h.sendError(conn, "audio too large", errorsx.KindInvalidInput)
		return
	}
	state.buffer.Write(audio.AudioData)
	if audio.Format != "" {
		state.audioFormat = audio.Format
	}
	if audio.Language != "" {
		state.audioLanguage = audio.Language
	}

	if audio.IsFinal || !state.streamMode {
		audioBytes := append([]byte(nil), state.buffer.Bytes()...)
		hint := state.audioLanguage
		state.buffer.Reset()
		state.audioLanguage = ""
		if len(audioBytes) == 0 {
			return
		}
		h.runTurn(ctx, conn, state, orchestrator.TurnRequest{
			Audio:       audioBytes,
			AudioFormat: state.audioFormat,
			Language:    hint,
		})
	}
}

func (h *WebSocketHandler) handleTextMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, raw json.RawMessage) {
	var text TextMessage
	if err := json.Unmarshal(raw, &text); err != nil {
		h.sendError(conn, "invalid text payload", errorsx.KindInvalidInput)
		return
	}
	if strings.TrimSpace(text.Text) == "" {
		return
	}
	h.runTurn(ctx, conn, state, orchestrator.TurnRequest{Text: text.Text, Language: text.Language})
}

func (h *WebSocketHandler) runTurn(ctx context.Context, conn *websocket.Conn, state *connectionState, req orchestrator.TurnRequest) {
	req.SessionID = state.sessionID
	if req.Language == "" {
		req.Language = state.language
	}
	req.Speak = state.ttsEnabled

	result, err := h.turns.SubmitTurn(ctx, req)
	if err != nil {
		h.sendError(conn, err.Error(), errorsx.KindOf(err))
		return
	}

	if result.Transcript != "" {
		h.sendResult(conn, state.sessionID, map[string]any{
			"type":    "asr",
			"text":    result.Transcript,
			"isFinal": true,
		})
	}

	reply := map[string]any{
		"type":     "reply",
		"text":     result.Reply,
		"language": result.Language,
		"emotion":  result.Emotion,
		"crisis":   result.Crisis,
		"safety":   result.Safety,
		"isFinal":  true,
	}
	if len(result.Helplines) > 0 {
		reply["helplines"] = result.Helplines
	}
	h.sendResult(conn, state.sessionID, reply)

	switch {
	case len(result.Audio) > 0:
		h.sendResult(conn, state.sessionID, map[string]any{
			"type":      "tts",
			"audioData": base64.StdEncoding.EncodeToString(result.Audio),
			"format":    result.AudioFormat,
			"provider":  result.SpeechProvider,
			"isFinal":   true,
		})
	case result.SpeechError != "":
		h.sendResult(conn, state.sessionID, map[string]any{
			"type":  "tts",
			"error": "synthesis failed",
			"kind":  result.SpeechErrorKind,
		})
	}
}

func (h *WebSocketHandler) handleConfigMessage(conn *websocket.Conn, state *connectionState, raw json.RawMessage) {
	var cfg ConfigMessage
	if err := json.Unmarshal(raw, &cfg); err != nil {
		h.sendError(conn, "invalid config payload", errorsx.KindInvalidInput)
		return
	}
	if err := applyConfig(state, cfg); err != nil {
		h.sendError(conn, err.Error(), errorsx.KindOf(err))
		return
	}

	log.Debugw("websocket config applied", "session", state.sessionID, "language", state.language)
	h.sendResult(conn, state.sessionID, map[string]any{
		"type":       "config",
		"language":   state.language,
		"asr":        state.asrEnabled,
		"tts":        state.ttsEnabled,
		"streamMode": state.streamMode,
	})
}

// applyConfig updates state from cfg. An empty language clears the override.
func applyConfig(state *connectionState, cfg ConfigMessage) error {
	if cfg.Language != nil {
		raw := strings.TrimSpace(*cfg.Language)
		if raw == "" {
			state.language = ""
		} else {
			tag, ok := language.ParseTag(raw)
			if !ok {
				return errorsx.New(errorsx.KindInvalidInput, "unsupported language "+raw)
			}
			state.language = string(tag)
		}
	}
	if cfg.ASREnabled != nil {
		state.asrEnabled = *cfg.ASREnabled
	}
	if cfg.TTSEnabled != nil {
		state.ttsEnabled = *cfg.TTSEnabled
	}
	if cfg.StreamMode != nil {
		state.streamMode = *cfg.StreamMode
	}
	return nil
}

func (h *WebSocketHandler) sendResult(conn *websocket.Conn, sessionID string, data map[string]any) {
	h.write(conn, outgoingMessage{
		Type:      "result",
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

func (h *WebSocketHandler) sendError(conn *websocket.Conn, message string, kind errorsx.Kind) {
	h.write(conn, outgoingMessage{
		Type:      "error",
		Data:      map[string]string{"message": message, "kind": string(kind)},
		Timestamp: time.Now().Unix(),
	})
}

func (h *WebSocketHandler) write(conn *websocket.Conn, msg outgoingMessage) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		log.Warnw("websocket write failed", "type", msg.Type, "error", err)
	}
}

// pingLoop keeps the connection alive. WriteControl is safe alongside WriteJSON.
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
