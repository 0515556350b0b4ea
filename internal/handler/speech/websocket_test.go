package speech

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/mana-voice/backend/internal/analysis/emotion"
	"github.com/zhouzirui/mana-voice/backend/internal/analysis/language"
	"github.com/zhouzirui/mana-voice/backend/internal/analysis/safety"
	"github.com/zhouzirui/mana-voice/backend/internal/model/session"
	"github.com/zhouzirui/mana-voice/backend/internal/service/orchestrator"
	"github.com/zhouzirui/mana-voice/backend/pkg/errorsx"
)

func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }

type fakeTurns struct {
	mu        sync.Mutex
	closed    bool
	ttsFailed bool
	requests  []orchestrator.TurnRequest
}

func (f *fakeTurns) GetSession(_ context.Context, id string) (*orchestrator.SessionView, error) {
	if id != "s1" {
		return nil, errorsx.New(errorsx.KindSessionNotFound, "session not found")
	}
	return &orchestrator.SessionView{Session: session.Session{ID: id, Language: language.English, Closed: f.closed}}, nil
}

func (f *fakeTurns) SubmitTurn(_ context.Context, req orchestrator.TurnRequest) (*orchestrator.TurnResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	res := &orchestrator.TurnResult{
		SessionID: req.SessionID,
		Reply:     "I'm here. What happened today?",
		Language:  language.Resolution{Tag: language.English, Source: language.SourceHeuristic},
		Emotion:   emotion.Sad,
		Safety:    safety.LevelNone,
	}
	if len(req.Audio) > 0 {
		res.Transcript = "I had a bad day"
	}
	switch {
	case req.Speak && f.ttsFailed:
		res.SpeechError = "sarvam: status 503"
		res.SpeechErrorKind = errorsx.KindExternalServiceUnavailable
	case req.Speak:
		res.Audio = []byte("MP3")
		res.AudioFormat = "mp3"
	}
	return res, nil
}

func (f *fakeTurns) last() orchestrator.TurnRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func dial(t *testing.T, turns *fakeTurns) *websocket.Conn {
	t.Helper()
	r := chi.NewRouter()
	NewWebSocketHandler(turns, nil).RegisterWebSocketRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/s1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	if got := readData(t, conn)["type"]; got != "connected" {
		t.Fatalf("expected connected, got %v", got)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteJSON(inboundMessage{Type: typ, Data: raw}); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func readData(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	msg := readMessage(t, conn)
	data, _ := msg["data"].(map[string]any)
	return data
}

func TestWebSocketTextTurn(t *testing.T) {
	turns := &fakeTurns{}
	conn := dial(t, turns)

	send(t, conn, "text", TextMessage{Text: "I feel low"})

	reply := readData(t, conn)
	if reply["type"] != "reply" || reply["text"] != "I'm here. What happened today?" {
		t.Fatalf("unexpected reply %v", reply)
	}
	tts := readData(t, conn)
	if tts["type"] != "tts" || tts["audioData"] == "" {
		t.Fatalf("unexpected tts %v", tts)
	}
	if got := turns.last(); got.SessionID != "s1" || !got.Speak {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestWebSocketBufferedAudio(t *testing.T) {
	turns := &fakeTurns{}
	conn := dial(t, turns)

	send(t, conn, "config", ConfigMessage{TTSEnabled: boolPtr(false), Language: strPtr("hinglish")})
	if cfg := readData(t, conn); cfg["type"] != "config" || cfg["language"] != "hi-en" {
		t.Fatalf("unexpected config ack %v", cfg)
	}

	send(t, conn, "audio", AudioMessage{AudioData: []byte("ab"), Format: "webm"})
	send(t, conn, "audio", AudioMessage{AudioData: []byte("cd"), IsFinal: true})

	if asr := readData(t, conn); asr["type"] != "asr" || asr["text"] != "I had a bad day" {
		t.Fatalf("unexpected asr %v", asr)
	}
	if reply := readData(t, conn); reply["type"] != "reply" {
		t.Fatalf("unexpected reply %v", reply)
	}

	got := turns.last()
	if string(got.Audio) != "abcd" || got.AudioFormat != "webm" {
		t.Fatalf("unexpected audio request %+v", got)
	}
	if got.Speak || got.Language != "hi-en" {
		t.Fatalf("config not applied: %+v", got)
	}
}

func TestWebSocketAudioLanguageAppliesToOneUtterance(t *testing.T) {
	turns := &fakeTurns{}
	conn := dial(t, turns)

	send(t, conn, "config", ConfigMessage{TTSEnabled: boolPtr(false)})
	readData(t, conn)

	send(t, conn, "audio", AudioMessage{AudioData: []byte("ab"), Language: "fr", IsFinal: true})
	readData(t, conn) // asr
	readData(t, conn) // reply
	if got := turns.last(); got.Language != "fr" {
		t.Fatalf("expected audio hint on its own turn, got %q", got.Language)
	}

	send(t, conn, "text", TextMessage{Text: "still here"})
	if reply := readData(t, conn); reply["type"] != "reply" {
		t.Fatalf("unexpected reply %v", reply)
	}
	if got := turns.last(); got.Language != "" {
		t.Fatalf("audio hint leaked into the next turn: %q", got.Language)
	}
}

func TestWebSocketSynthesisFailureCarriesKind(t *testing.T) {
	conn := dial(t, &fakeTurns{ttsFailed: true})

	send(t, conn, "text", TextMessage{Text: "I feel low"})
	readData(t, conn) // reply
	tts := readData(t, conn)
	if tts["type"] != "tts" || tts["kind"] != string(errorsx.KindExternalServiceUnavailable) {
		t.Fatalf("unexpected tts frame %v", tts)
	}
}

func TestWebSocketRejectsUnknownType(t *testing.T) {
	conn := dial(t, &fakeTurns{})

	send(t, conn, "video", map[string]string{})
	msg := readMessage(t, conn)
	if msg["type"] != "error" {
		t.Fatalf("expected error, got %v", msg)
	}
}

func TestWebSocketRequiresOpenSession(t *testing.T) {
	r := chi.NewRouter()
	NewWebSocketHandler(&fakeTurns{closed: true}, nil).RegisterWebSocketRoutes(r)

	for path, want := range map[string]int{
		"/sessions/s1/ws":      http.StatusConflict,
		"/sessions/missing/ws": http.StatusNotFound,
	} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != want {
			t.Fatalf("%s: expected %d, got %d", path, want, rr.Code)
		}
	}
}

func TestApplyConfigUpdatesState(t *testing.T) {
	state := newConnectionState("session")

	err := applyConfig(state, ConfigMessage{
		Language:   strPtr("English"),
		ASREnabled: boolPtr(false),
		StreamMode: boolPtr(false),
	})
	if err != nil {
		t.Fatalf("applyConfig err: %v", err)
	}
	if state.language != "en" {
		t.Fatalf("expected language en, got %s", state.language)
	}
	if state.asrEnabled || state.streamMode || !state.ttsEnabled {
		t.Fatalf("unexpected flags %+v", state)
	}

	if err := applyConfig(state, ConfigMessage{Language: strPtr("klingon")}); !errorsx.Is(err, errorsx.KindInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if err := applyConfig(state, ConfigMessage{Language: strPtr("")}); err != nil || state.language != "" {
		t.Fatalf("expected override cleared, got %q %v", state.language, err)
	}
}
