package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zhouzirui/mana-voice/backend/internal/analysis/language"
	"github.com/zhouzirui/mana-voice/backend/internal/config"
	"github.com/zhouzirui/mana-voice/backend/internal/model/speech"
	"github.com/zhouzirui/mana-voice/backend/pkg/errorsx"
	"github.com/zhouzirui/mana-voice/backend/pkg/log"
)

// Recognizer is a speech-to-text vendor.
type Recognizer interface {
	Name() language.Backend
	Transcribe(ctx context.Context, req *speech.TranscribeRequest) (*speech.Transcript, error)
}

// Synthesizer is a text-to-speech vendor.
type Synthesizer interface {
	Name() language.Backend
	Synthesize(ctx context.Context, req *speech.SynthesizeRequest) (*speech.Audio, error)
}

// Service routes speech requests to a vendor by language and falls back to the other
// vendor when the first one fails.
type Service struct {
	recognizers  map[language.Backend]Recognizer
	synthesizers map[language.Backend]Synthesizer
}

// NewService wires every vendor that has credentials in cfg.
func NewService(cfg config.SpeechConfig) *Service {
	var recognizers []Recognizer
	var synthesizers []Synthesizer

	if cfg.OpenAI.Enabled() {
		p := NewOpenAIProvider(cfg.OpenAI, cfg.Timeout)
		recognizers = append(recognizers, p)
		synthesizers = append(synthesizers, p)
	}
	if cfg.Sarvam.Enabled() {
		p := NewSarvamProvider(cfg.Sarvam, cfg.Timeout)
		recognizers = append(recognizers, p)
		synthesizers = append(synthesizers, p)
	}
	return NewServiceWithProviders(recognizers, synthesizers)
}

// NewServiceWithProviders builds a service from explicit vendors.
func NewServiceWithProviders(recognizers []Recognizer, synthesizers []Synthesizer) *Service {
	s := &Service{
		recognizers:  make(map[language.Backend]Recognizer),
		synthesizers: make(map[language.Backend]Synthesizer),
	}
	for _, r := range recognizers {
		s.recognizers[r.Name()] = r
	}
	for _, syn := range synthesizers {
		s.synthesizers[syn.Name()] = syn
	}
	return s
}

// Providers lists the configured vendors per direction, for health reporting.
func (s *Service) Providers() map[string][]language.Backend {
	out := map[string][]language.Backend{"stt": {}, "tts": {}}
	for _, b := range []language.Backend{language.BackendOpenAI, language.BackendSarvam} {
		if _, ok := s.recognizers[b]; ok {
			out["stt"] = append(out["stt"], b)
		}
		if _, ok := s.synthesizers[b]; ok {
			out["tts"] = append(out["tts"], b)
		}
	}
	return out
}

// CanTranscribe reports whether any recognizer is configured.
func (s *Service) CanTranscribe() bool {
	return len(s.recognizers) > 0
}

// CanSynthesize reports whether any synthesizer is configured.
func (s *Service) CanSynthesize() bool {
	return len(s.synthesizers) > 0
}

func candidates(primary language.Backend) []language.Backend {
	if primary == language.BackendSarvam {
		return []language.Backend{language.BackendSarvam, language.BackendOpenAI}
	}
	return []language.Backend{language.BackendOpenAI, language.BackendSarvam}
}

// Transcribe converts audio to text. A Hindi or Hinglish hint goes to Sarvam; anything
// else goes to Whisper and is re-run through Sarvam when Whisper hears Hindi.
func (s *Service) Transcribe(ctx context.Context, req *speech.TranscribeRequest) (*speech.Transcript, error) {
	if req == nil || len(req.Audio) == 0 {
		return nil, errorsx.New(errorsx.KindInvalidInput, "audio is empty")
	}

	primary := language.BackendOpenAI
	if req.Hint.UsesHindiScripts() {
		primary = language.BackendSarvam
	}

	var errs []error
	for _, backend := range candidates(primary) {
		recognizer, ok := s.recognizers[backend]
		if !ok {
			continue
		}

		transcript, err := recognizer.Transcribe(ctx, req)
		if err != nil {
			log.Warnw("speech-to-text failed", "provider", backend, "session", req.SessionID, "error", err)
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if backend == language.BackendOpenAI {
			transcript = s.rerouteHindi(ctx, req, transcript)
		}
		log.Infow("transcribed audio",
			"provider", transcript.Provider,
			"session", req.SessionID,
			"language", transcript.Language,
			"chars", len([]rune(transcript.Text)),
		)
		return transcript, nil
	}

	return nil, unavailable("speech-to-text", errs)
}

// rerouteHindi retries Whisper output that was detected as Hindi with Sarvam, keeping
// the Whisper transcript when Sarvam fails or returns nothing.
func (s *Service) rerouteHindi(ctx context.Context, req *speech.TranscribeRequest, whisper *speech.Transcript) *speech.Transcript {
	tag, ok := language.ParseTag(whisper.Language)
	if !ok || !tag.UsesHindiScripts() || strings.TrimSpace(whisper.Text) == "" {
		return whisper
	}
	sarvam, ok := s.recognizers[language.BackendSarvam]
	if !ok {
		return whisper
	}

	better, err := sarvam.Transcribe(ctx, req)
	if err != nil {
		log.Warnw("sarvam re-transcription failed, keeping whisper output", "session", req.SessionID, "error", err)
		return whisper
	}
	if strings.TrimSpace(better.Text) == "" {
		return whisper
	}
	return better
}

// Synthesize renders text through the vendor that serves req.Language.
func (s *Service) Synthesize(ctx context.Context, req *speech.SynthesizeRequest) (*speech.Audio, error) {
	if req == nil || strings.TrimSpace(req.Text) == "" {
		return nil, errorsx.New(errorsx.KindInvalidInput, "text is empty")
	}

	var errs []error
	for _, backend := range candidates(req.Language.SpeechBackend()) {
		synthesizer, ok := s.synthesizers[backend]
		if !ok {
			continue
		}

		audio, err := synthesizer.Synthesize(ctx, req)
		if err != nil {
			log.Warnw("text-to-speech failed", "provider", backend, "session", req.SessionID, "error", err)
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return audio, nil
	}

	return nil, unavailable("text-to-speech", errs)
}

func unavailable(what string, errs []error) error {
	if len(errs) == 0 {
		return errorsx.New(errorsx.KindExternalServiceUnavailable, "no "+what+" provider configured")
	}
	return errorsx.Wrap(fmt.Errorf("%s failed: %w", what, errors.Join(errs...)), errorsx.KindExternalServiceUnavailable)
}
