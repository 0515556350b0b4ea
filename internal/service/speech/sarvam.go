package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zhouzirui/mana-voice/backend/internal/analysis/language"
	"github.com/zhouzirui/mana-voice/backend/internal/config"
	"github.com/zhouzirui/mana-voice/backend/internal/model/speech"
	"github.com/zhouzirui/mana-voice/backend/pkg/redact"
)

const (
	sarvamSTTPath    = "/speech-to-text-translate"
	sarvamTTSPath    = "/text-to-speech"
	sarvamAuthHeader = "API-Subscription-Key"
)

// SarvamProvider calls Sarvam's REST speech APIs for Hindi and Hinglish.
type SarvamProvider struct {
	cfg    config.SarvamConfig
	client *http.Client
}

// NewSarvamProvider creates a Sarvam client. A zero timeout means 30 seconds.
func NewSarvamProvider(cfg config.SarvamConfig, timeout time.Duration) *SarvamProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.sarvam.ai"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "hi-IN"
	}
	return &SarvamProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// Name implements Recognizer and Synthesizer.
func (p *SarvamProvider) Name() language.Backend {
	return language.BackendSarvam
}

type sarvamSTTRequest struct {
	Input          string `json:"input"`
	LanguageCode   string `json:"language_code"`
	Model          string `json:"model"`
	WithTimestamps bool   `json:"with_timestamps"`
}

type sarvamSTTResponse struct {
	Transcript   string `json:"transcript"`
	LanguageCode string `json:"language_code"`
}

// Transcribe posts base64 audio to speech-to-text-translate.
func (p *SarvamProvider) Transcribe(ctx context.Context, req *speech.TranscribeRequest) (*speech.Transcript, error) {
	payload := sarvamSTTRequest{
		Input:        base64.StdEncoding.EncodeToString(req.Audio),
		LanguageCode: p.cfg.LanguageCode,
		Model:        p.cfg.STTModel,
	}

	start := time.Now()
	var out sarvamSTTResponse
	if err := p.post(ctx, sarvamSTTPath, payload, &out); err != nil {
		return nil, fmt.Errorf("sarvam transcription: %w", err)
	}

	lang := strings.TrimSpace(out.LanguageCode)
	if lang == "" {
		lang = string(language.Hindi)
	}
	return &speech.Transcript{
		Text:     strings.TrimSpace(out.Transcript),
		Language: lang,
		Provider: language.BackendSarvam,
		Duration: time.Since(start),
	}, nil
}

type sarvamTTSRequest struct {
	Inputs              []string `json:"inputs"`
	TargetLanguageCode  string   `json:"target_language_code"`
	Speaker             string   `json:"speaker"`
	Model               string   `json:"model"`
	Pitch               float64  `json:"pitch"`
	Pace                float64  `json:"pace"`
	Loudness            float64  `json:"loudness"`
	SpeechSampleRate    int      `json:"speech_sample_rate"`
	EnablePreprocessing bool     `json:"enable_preprocessing"`
}

type sarvamTTSResponse struct {
	Audios []string `json:"audios"`
}

// Synthesize renders WAV speech with the configured speaker.
func (p *SarvamProvider) Synthesize(ctx context.Context, req *speech.SynthesizeRequest) (*speech.Audio, error) {
	payload := sarvamTTSRequest{
		Inputs:              []string{req.Text},
		TargetLanguageCode:  p.cfg.LanguageCode,
		Speaker:             p.cfg.Speaker,
		Model:               p.cfg.TTSModel,
		Pitch:               p.cfg.Pitch,
		Pace:                ComputePace(p.cfg.Pace, req.Emotion),
		Loudness:            p.cfg.Loudness,
		SpeechSampleRate:    p.cfg.SampleRate,
		EnablePreprocessing: true,
	}

	var out sarvamTTSResponse
	if err := p.post(ctx, sarvamTTSPath, payload, &out); err != nil {
		return nil, fmt.Errorf("sarvam speech: %w", err)
	}
	if len(out.Audios) == 0 || out.Audios[0] == "" {
		return nil, fmt.Errorf("sarvam speech returned no audio")
	}

	data, err := base64.StdEncoding.DecodeString(out.Audios[0])
	if err != nil {
		return nil, fmt.Errorf("decode sarvam audio: %w", err)
	}
	return &speech.Audio{
		Data:        data,
		Format:      "wav",
		ContentType: speech.ContentType("wav"),
		Provider:    language.BackendSarvam,
	}, nil
}

func (p *SarvamProvider) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(sarvamAuthHeader, p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, redact.Snippet(string(snippet), 200))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
