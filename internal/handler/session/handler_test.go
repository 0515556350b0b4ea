package session

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/mana-voice/backend/internal/analysis/language"
	"github.com/zhouzirui/mana-voice/backend/internal/model/speech"
	"github.com/zhouzirui/mana-voice/backend/internal/service/ai"
	"github.com/zhouzirui/mana-voice/backend/internal/service/orchestrator"
	sessionstore "github.com/zhouzirui/mana-voice/backend/internal/service/session"
	"github.com/zhouzirui/mana-voice/backend/pkg/errorsx"
	"github.com/zhouzirui/mana-voice/backend/pkg/utils"
)

type stubResponder struct{ reply string }

func (s stubResponder) GenerateReply(context.Context, ai.Request) (string, error) {
	return s.reply, nil
}

type stubSpeech struct {
	lastFormat string
}

func (s *stubSpeech) Transcribe(_ context.Context, req *speech.TranscribeRequest) (*speech.Transcript, error) {
	s.lastFormat = req.Format
	return &speech.Transcript{Text: "I can't sleep before exams", Language: "english", Provider: language.BackendOpenAI}, nil
}

func (s *stubSpeech) Synthesize(context.Context, *speech.SynthesizeRequest) (*speech.Audio, error) {
	return &speech.Audio{Data: []byte("MP3"), Format: "mp3", ContentType: "audio/mpeg", Provider: language.BackendOpenAI}, nil
}

func setupRouter(t *testing.T) (*chi.Mux, *stubSpeech) {
	t.Helper()
	sp := &stubSpeech{}
	svc, err := orchestrator.NewService(orchestrator.Deps{
		Store:       sessionstore.NewStore(),
		Responder:   stubResponder{reply: "That sounds exhausting. What keeps you up?"},
		Transcriber: sp,
		Synthesizer: sp,
	}, orchestrator.Config{DefaultLanguage: language.Hindi})
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}

	r := chi.NewRouter()
	New(svc).RegisterRoutes(r)
	return r, sp
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func createSession(t *testing.T, r http.Handler, lang string) string {
	t.Helper()
	rr := doJSON(t, r, http.MethodPost, "/sessions", map[string]string{"language": lang})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created orchestrator.CreateResult
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Greeting == "" {
		t.Fatalf("expected greeting")
	}
	return created.Session.ID
}

func TestCreateSessionDefaultsLanguage(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/sessions", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	var created orchestrator.CreateResult
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Session.Language != language.Hindi {
		t.Fatalf("expected default hindi, got %s", created.Session.Language)
	}
}

func TestCreateSessionRejectsUnknownLanguage(t *testing.T) {
	r, _ := setupRouter(t)
	rr := doJSON(t, r, http.MethodPost, "/sessions", map[string]string{"language": "fr"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestTextTurnAndSummary(t *testing.T) {
	r, _ := setupRouter(t)
	id := createSession(t, r, "en")

	rr := doJSON(t, r, http.MethodPost, "/sessions/"+id+"/turns", map[string]any{"text": "I feel so anxious about my exams"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var turn TurnResponse
	if err := json.NewDecoder(rr.Body).Decode(&turn); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if turn.Reply == "" || turn.Crisis {
		t.Fatalf("unexpected turn: %+v", turn.TurnResult)
	}

	rr = doJSON(t, r, http.MethodGet, "/sessions/"+id, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var view orchestrator.SessionView
	if err := json.NewDecoder(rr.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Summary.TurnCount != 2 {
		t.Fatalf("expected 2 turns, got %d", view.Summary.TurnCount)
	}
}

func TestCrisisTurnReturnsHelplines(t *testing.T) {
	r, _ := setupRouter(t)
	id := createSession(t, r, "en")

	rr := doJSON(t, r, http.MethodPost, "/sessions/"+id+"/turns", map[string]any{"text": "I want to kill myself"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var turn TurnResponse
	if err := json.NewDecoder(rr.Body).Decode(&turn); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !turn.Crisis || len(turn.Helplines) == 0 {
		t.Fatalf("expected crisis turn with helplines: %+v", turn.TurnResult)
	}
	if !strings.Contains(turn.Reply, "9152987821") {
		t.Fatalf("expected safety script, got %q", turn.Reply)
	}
}

func TestTurnSpeakInlinesAudio(t *testing.T) {
	r, _ := setupRouter(t)
	id := createSession(t, r, "en")

	rr := doJSON(t, r, http.MethodPost, "/sessions/"+id+"/turns", map[string]any{"text": "rough day", "speak": true})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var turn TurnResponse
	if err := json.NewDecoder(rr.Body).Decode(&turn); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if turn.AudioBase64 != base64.StdEncoding.EncodeToString([]byte("MP3")) {
		t.Fatalf("unexpected audio %q", turn.AudioBase64)
	}
	if turn.AudioFormat != "mp3" {
		t.Fatalf("unexpected format %q", turn.AudioFormat)
	}
}

func TestMultipartVoiceTurn(t *testing.T) {
	r, sp := setupRouter(t)
	id := createSession(t, r, "hi")

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("audio", "clip.webm")
	if err != nil {
		t.Fatalf("CreateFormFile err: %v", err)
	}
	if _, err := part.Write([]byte("audio")); err != nil {
		t.Fatalf("write audio err: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("writer.Close err: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/turns", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var turn TurnResponse
	if err := json.NewDecoder(rr.Body).Decode(&turn); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if turn.Transcript == "" {
		t.Fatalf("expected transcript")
	}
	if turn.Language.Tag != language.English {
		t.Fatalf("expected STT tag to win, got %s", turn.Language.Tag)
	}
	if sp.lastFormat != "webm" {
		t.Fatalf("expected webm, got %q", sp.lastFormat)
	}
}

func TestTurnErrors(t *testing.T) {
	r, _ := setupRouter(t)
	id := createSession(t, r, "en")

	tests := []struct {
		name string
		path string
		body any
		want int
		kind errorsx.Kind
	}{
		{"unknown session", "/sessions/missing/turns", map[string]any{"text": "hi"}, http.StatusNotFound, errorsx.KindSessionNotFound},
		{"empty turn", "/sessions/" + id + "/turns", map[string]any{}, http.StatusBadRequest, errorsx.KindInvalidInput},
		{"bad base64", "/sessions/" + id + "/turns", map[string]any{"audioBase64": "%%%"}, http.StatusBadRequest, errorsx.KindInvalidInput},
		{"bad override", "/sessions/" + id + "/turns", map[string]any{"text": "hi", "language": "tamil"}, http.StatusBadRequest, errorsx.KindInvalidInput},
		{"malformed body", "/sessions/" + id + "/turns", "{not json", http.StatusBadRequest, errorsx.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, r, http.MethodPost, tt.path, tt.body)
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rr.Code, rr.Body.String())
			}
			assertKind(t, rr, tt.kind)
		})
	}
}

func TestMalformedRequestsCarryKind(t *testing.T) {
	r, _ := setupRouter(t)
	id := createSession(t, r, "en")

	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	assertKind(t, rr, errorsx.KindInvalidInput)

	rr = doJSON(t, r, http.MethodGet, "/sessions/"+id+"/silence?seconds=abc", nil)
	assertKind(t, rr, errorsx.KindInvalidInput)
}

func assertKind(t *testing.T, rr *httptest.ResponseRecorder, want errorsx.Kind) {
	t.Helper()
	var body utils.ErrorBody
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Kind != want {
		t.Fatalf("expected kind %s, got %q (%s)", want, body.Kind, body.Error)
	}
}

func TestCloseSession(t *testing.T) {
	r, _ := setupRouter(t)
	id := createSession(t, r, "en")

	rr := doJSON(t, r, http.MethodPost, "/sessions/"+id+"/close", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = doJSON(t, r, http.MethodPost, "/sessions/"+id+"/turns", map[string]any{"text": "hello?"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 after close, got %d", rr.Code)
	}
}

func TestSilencePrompt(t *testing.T) {
	r, _ := setupRouter(t)
	id := createSession(t, r, "en")

	rr := doJSON(t, r, http.MethodGet, "/sessions/"+id+"/silence?seconds=12", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var prompt orchestrator.SilencePrompt
	if err := json.NewDecoder(rr.Body).Decode(&prompt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if prompt.Text != "It's okay if you don't want to talk right now." {
		t.Fatalf("unexpected prompt %q", prompt.Text)
	}

	rr = doJSON(t, r, http.MethodGet, "/sessions/"+id+"/silence?seconds=abc", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
