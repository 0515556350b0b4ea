package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zhouzirui/mana-voice/backend/internal/analysis/emotion"
	"github.com/zhouzirui/mana-voice/backend/internal/analysis/language"
	"github.com/zhouzirui/mana-voice/backend/internal/analysis/safety"
	"github.com/zhouzirui/mana-voice/backend/internal/model/session"
	"github.com/zhouzirui/mana-voice/backend/internal/model/speech"
	"github.com/zhouzirui/mana-voice/backend/internal/service/ai"
	emotionservice "github.com/zhouzirui/mana-voice/backend/internal/service/emotion"
	"github.com/zhouzirui/mana-voice/backend/pkg/errorsx"
	"github.com/zhouzirui/mana-voice/backend/pkg/log"
)

// SessionStore is the session state the orchestrator drives.
type SessionStore interface {
	Create(ctx context.Context, lang language.Tag) (session.Session, error)
	Acquire(ctx context.Context, id string) (func(), error)
	Append(ctx context.Context, id string, turn session.Turn) (session.Turn, error)
	Get(ctx context.Context, id string) (session.Session, error)
	Summary(ctx context.Context, id string) (session.Summary, error)
	Close(ctx context.Context, id string) (session.Summary, error)
	ActiveCount() int
}

// Responder generates companion replies.
type Responder interface {
	GenerateReply(ctx context.Context, req ai.Request) (string, error)
}

// GuidanceProvider turns a classified label into tone guidance.
type GuidanceProvider interface {
	Analyze(ctx context.Context, history []session.Turn, utterance string, label emotion.Label, tag language.Tag) emotionservice.Guidance
}

// Transcriber is speech-to-text.
type Transcriber interface {
	Transcribe(ctx context.Context, req *speech.TranscribeRequest) (*speech.Transcript, error)
}

// Synthesizer is text-to-speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, req *speech.SynthesizeRequest) (*speech.Audio, error)
}

// Config bounds a turn.
type Config struct {
	DefaultLanguage   language.Tag
	MaxUtteranceRunes int
	MaxAudioBytes     int
	// TurnTimeout caps a whole turn including vendor calls; zero means no cap.
	TurnTimeout time.Duration
}

// Deps are the collaborators. Responder, Guidance, Transcriber and Synthesizer may be
// nil; the corresponding steps then fail with ExternalServiceUnavailable (or, for
// guidance, fall back to no guidance).
type Deps struct {
	Store       SessionStore
	Responder   Responder
	Guidance    GuidanceProvider
	Transcriber Transcriber
	Synthesizer Synthesizer
}

// Service runs the per-turn pipeline: transcribe, scan, route, classify, reply, speak.
type Service struct {
	store       SessionStore
	responder   Responder
	guidance    GuidanceProvider
	transcriber Transcriber
	synthesizer Synthesizer
	router      *language.Router
	cfg         Config
}

// NewService creates the orchestrator.
func NewService(deps Deps, cfg Config) (*Service, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if !cfg.DefaultLanguage.Valid() {
		cfg.DefaultLanguage = language.Hindi
	}
	if cfg.MaxUtteranceRunes <= 0 {
		cfg.MaxUtteranceRunes = 2000
	}
	if cfg.MaxAudioBytes <= 0 {
		cfg.MaxAudioBytes = 25 << 20
	}

	return &Service{
		store:       deps.Store,
		responder:   deps.Responder,
		guidance:    deps.Guidance,
		transcriber: deps.Transcriber,
		synthesizer: deps.Synthesizer,
		router:      language.NewRouter(cfg.DefaultLanguage),
		cfg:         cfg,
	}, nil
}

// CreateResult is a new session plus its opening greeting.
type CreateResult struct {
	Session  session.Session `json:"session"`
	Greeting string          `json:"greeting"`
}

// CreateSession opens a session. An empty lang selects the configured default.
func (s *Service) CreateSession(ctx context.Context, lang string) (*CreateResult, error) {
	tag := s.cfg.DefaultLanguage
	if strings.TrimSpace(lang) != "" {
		parsed, ok := language.ParseTag(lang)
		if !ok {
			return nil, errorsx.New(errorsx.KindInvalidInput, fmt.Sprintf("unsupported language %q", lang))
		}
		tag = parsed
	}

	sess, err := s.store.Create(ctx, tag)
	if err != nil {
		return nil, err
	}
	log.Infow("session created", "session", sess.ID, "language", tag)
	return &CreateResult{Session: sess, Greeting: ai.OpeningScript(tag)}, nil
}

// SessionView is a session with its running summary.
type SessionView struct {
	Session session.Session `json:"session"`
	Summary session.Summary `json:"summary"`
}

// GetSession returns a snapshot of the session.
func (s *Service) GetSession(ctx context.Context, id string) (*SessionView, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	summary, err := s.store.Summary(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SessionView{Session: sess, Summary: summary}, nil
}

// CloseSession closes the session, waiting for an in-flight turn, and returns its summary.
func (s *Service) CloseSession(ctx context.Context, id string) (*session.Summary, error) {
	summary, err := s.store.Close(ctx, id)
	if err != nil {
		return nil, err
	}
	log.Infow("session closed",
		"session", id,
		"turns", summary.TurnCount,
		"dominant_emotion", summary.DominantEmotion,
		"crisis_count", summary.CrisisCount,
	)
	return &summary, nil
}

// ActiveSessions reports the number of open sessions.
func (s *Service) ActiveSessions() int {
	return s.store.ActiveCount()
}

// TurnRequest is one user utterance, typed or spoken. Exactly one of Text and Audio
// must be set.
type TurnRequest struct {
	SessionID   string
	Text        string
	Audio       []byte
	AudioFormat string
	Filename    string
	// Language overrides routing for this turn when non-empty.
	Language string
	// Speak asks for the reply as audio too.
	Speak bool
}

// TurnResult is the outcome of a committed turn.
type TurnResult struct {
	SessionID     string              `json:"sessionId"`
	Reply         string              `json:"reply"`
	Language      language.Resolution `json:"language"`
	Emotion       emotion.Label       `json:"emotion"`
	Crisis        bool                `json:"crisis"`
	Safety        safety.Level        `json:"safety"`
	Transcript    string              `json:"transcript,omitempty"`
	UserTurn      session.Turn        `json:"userTurn"`
	AssistantTurn session.Turn        `json:"assistantTurn"`
	Helplines     []safety.Helpline   `json:"helplines,omitempty"`

	Audio          []byte           `json:"-"`
	AudioFormat    string           `json:"audioFormat,omitempty"`
	ContentType    string           `json:"contentType,omitempty"`
	SpeechProvider language.Backend `json:"speechProvider,omitempty"`
	// SpeechError is set when audio was requested but could not be produced. The turn
	// itself is still committed.
	SpeechError string `json:"speechError,omitempty"`
	// SpeechErrorKind classifies SpeechError.
	SpeechErrorKind errorsx.Kind `json:"speechErrorKind,omitempty"`
}

// SubmitTurn processes one user utterance end to end. At most one turn per session is
// in flight; a concurrent call waits for the session's turn lock or for ctx.
func (s *Service) SubmitTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	override, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	if s.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TurnTimeout)
		defer cancel()
	}

	release, err := s.store.Acquire(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	sess, err := s.store.Get(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	hint := sess.Language
	if override != "" {
		hint = override
	}

	text := strings.TrimSpace(req.Text)
	var transcript *speech.Transcript
	if len(req.Audio) > 0 {
		transcript, err = s.transcribe(ctx, req, hint)
		if err != nil {
			return nil, err
		}
		text = transcript.Text
	}

	verdict := safety.Scan(text, hint)

	routeInput := language.Input{Override: override, Text: text, Session: sess.Language}
	if transcript != nil {
		routeInput.STT = transcript.Language
	}
	resolution := s.router.Route(routeInput)
	if !resolution.Tag.Valid() {
		return nil, errorsx.New(errorsx.KindUnrecognizedLanguage, fmt.Sprintf("router produced %q", resolution.Tag))
	}

	label := emotion.Classify(text, sess.UserLabels())
	if verdict.Crisis {
		label = emotion.Crisis
	}

	userTurn, err := s.store.Append(ctx, req.SessionID, session.Turn{
		Role:     session.RoleUser,
		Content:  text,
		Language: resolution.Tag,
		Emotion:  label,
		Crisis:   verdict.Crisis,
		Safety:   verdict.Level,
	})
	if err != nil {
		return nil, err
	}

	var reply string
	if verdict.Crisis {
		reply = safety.Script(resolution.Tag)
		log.Warnw("crisis language detected, safety script sent",
			"session", req.SessionID,
			"language", resolution.Tag,
			"list", verdict.List,
		)
	} else {
		reply, err = s.generate(ctx, sess, text, label, resolution.Tag, verdict)
		if err != nil {
			log.Errorw("reply generation failed, user turn kept",
				"session", req.SessionID,
				"language", resolution.Tag,
				"error", err,
			)
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	assistantTurn, err := s.store.Append(ctx, req.SessionID, session.Turn{
		Role:     session.RoleAssistant,
		Content:  reply,
		Language: resolution.Tag,
		Emotion:  label,
		Crisis:   verdict.Crisis,
		Safety:   verdict.Level,
	})
	if err != nil {
		return nil, err
	}

	result := &TurnResult{
		SessionID:     req.SessionID,
		Reply:         reply,
		Language:      resolution,
		Emotion:       label,
		Crisis:        verdict.Crisis,
		Safety:        verdict.Level,
		UserTurn:      userTurn,
		AssistantTurn: assistantTurn,
	}
	if transcript != nil {
		result.Transcript = transcript.Text
	}
	if verdict.Level != safety.LevelNone {
		result.Helplines = safety.Helplines()
	}
	if req.Speak {
		s.speak(ctx, result)
	}

	log.Infow("turn completed",
		"session", req.SessionID,
		"language", resolution.Tag,
		"language_source", resolution.Source,
		"emotion", label,
		"safety", verdict.Level,
		"voice", transcript != nil,
		"reply_chars", utf8.RuneCountInString(reply),
	)
	return result, nil
}

func (s *Service) validate(req TurnRequest) (language.Tag, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return "", errorsx.New(errorsx.KindInvalidInput, "session id is required")
	}

	hasText := strings.TrimSpace(req.Text) != ""
	hasAudio := len(req.Audio) > 0
	switch {
	case !hasText && !hasAudio:
		return "", errorsx.New(errorsx.KindInvalidInput, "text or audio is required")
	case hasText && hasAudio:
		return "", errorsx.New(errorsx.KindInvalidInput, "send either text or audio, not both")
	case hasText && utf8.RuneCountInString(strings.TrimSpace(req.Text)) > s.cfg.MaxUtteranceRunes:
		return "", errorsx.New(errorsx.KindInvalidInput, fmt.Sprintf("text exceeds %d characters", s.cfg.MaxUtteranceRunes))
	case hasAudio && len(req.Audio) > s.cfg.MaxAudioBytes:
		return "", errorsx.New(errorsx.KindInvalidInput, fmt.Sprintf("audio exceeds %d bytes", s.cfg.MaxAudioBytes))
	}

	if strings.TrimSpace(req.Language) == "" {
		return "", nil
	}
	tag, ok := language.ParseTag(req.Language)
	if !ok {
		return "", errorsx.New(errorsx.KindInvalidInput, fmt.Sprintf("unsupported language %q", req.Language))
	}
	return tag, nil
}

func (s *Service) transcribe(ctx context.Context, req TurnRequest, hint language.Tag) (*speech.Transcript, error) {
	if s.transcriber == nil {
		return nil, errorsx.New(errorsx.KindExternalServiceUnavailable, "speech-to-text is not configured")
	}

	transcript, err := s.transcriber.Transcribe(ctx, &speech.TranscribeRequest{
		SessionID: req.SessionID,
		Audio:     req.Audio,
		Format:    speech.DetectFormat(req.AudioFormat, req.Filename, ""),
		Filename:  req.Filename,
		Hint:      hint,
	})
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.KindExternalServiceUnavailable)
	}
	if strings.TrimSpace(transcript.Text) == "" {
		return nil, errorsx.New(errorsx.KindInvalidInput, "no speech detected in audio")
	}
	if utf8.RuneCountInString(transcript.Text) > s.cfg.MaxUtteranceRunes {
		return nil, errorsx.New(errorsx.KindInvalidInput, "transcript is too long")
	}
	return transcript, nil
}

func (s *Service) generate(ctx context.Context, sess session.Session, text string, label emotion.Label, tag language.Tag, verdict safety.Verdict) (string, error) {
	if s.responder == nil {
		return "", errorsx.New(errorsx.KindExternalServiceUnavailable, "reply model is not configured")
	}

	var guidance *emotionservice.Guidance
	if s.guidance != nil {
		g := s.guidance.Analyze(ctx, sess.Turns, text, label, tag)
		guidance = &g
	}

	return s.responder.GenerateReply(ctx, ai.Request{
		SessionID: sess.ID,
		Utterance: text,
		Language:  tag,
		Emotion:   label,
		Guidance:  guidance,
		Warning:   verdict.Level == safety.LevelWarning,
		FirstTurn: sess.UserTurnCount() == 0,
		History:   sess.Turns,
	})
}

func (s *Service) speak(ctx context.Context, result *TurnResult) {
	if s.synthesizer == nil {
		result.SpeechError = "text-to-speech is not configured"
		result.SpeechErrorKind = errorsx.KindExternalServiceUnavailable
		return
	}

	audio, err := s.synthesizer.Synthesize(ctx, &speech.SynthesizeRequest{
		SessionID: result.SessionID,
		Text:      result.Reply,
		Language:  result.Language.Tag,
		Emotion:   result.Emotion,
	})
	if err != nil {
		log.Warnw("reply audio failed, returning text only", "session", result.SessionID, "error", err)
		result.SpeechError = err.Error()
		result.SpeechErrorKind = errorsx.KindOf(errorsx.Wrap(err, errorsx.KindExternalServiceUnavailable))
		return
	}

	result.Audio = audio.Data
	result.AudioFormat = audio.Format
	result.ContentType = audio.ContentType
	result.SpeechProvider = audio.Provider
}
