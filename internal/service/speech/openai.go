package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/zhouzirui/mana-voice/backend/internal/analysis/language"
	"github.com/zhouzirui/mana-voice/backend/internal/config"
	"github.com/zhouzirui/mana-voice/backend/internal/model/speech"
)

// OpenAIProvider serves Whisper transcription and OpenAI TTS.
type OpenAIProvider struct {
	client openai.Client
	cfg    config.OpenAISpeechConfig
}

// NewOpenAIProvider creates the OpenAI speech client.
func NewOpenAIProvider(cfg config.OpenAISpeechConfig, timeout time.Duration) *OpenAIProvider {
	options := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(1),
	}
	if cfg.BaseURL != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}
	if timeout > 0 {
		options = append(options, option.WithRequestTimeout(timeout))
	}
	if cfg.STTModel == "" {
		cfg.STTModel = string(openai.AudioModelWhisper1)
	}
	if cfg.TTSModel == "" {
		cfg.TTSModel = string(openai.SpeechModelTTS1)
	}
	if cfg.Voice == "" {
		cfg.Voice = "nova"
	}
	return &OpenAIProvider{client: openai.NewClient(options...), cfg: cfg}
}

// Name implements Recognizer and Synthesizer.
func (p *OpenAIProvider) Name() language.Backend {
	return language.BackendOpenAI
}

// Transcribe sends the audio to Whisper with a verbose JSON response so the detected
// language is available.
func (p *OpenAIProvider) Transcribe(ctx context.Context, req *speech.TranscribeRequest) (*speech.Transcript, error) {
	format := speech.NormalizeFormat(req.Format)
	params := openai.AudioTranscriptionNewParams{
		File:           openai.File(bytes.NewReader(req.Audio), speech.Filename(req.Filename, format), speech.ContentType(format)),
		Model:          openai.AudioModel(p.cfg.STTModel),
		ResponseFormat: openai.AudioResponseFormatVerboseJSON,
	}
	if req.Hint == language.English {
		params.Language = openai.String("en")
	}

	start := time.Now()
	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("whisper transcription: %w", err)
	}

	return &speech.Transcript{
		Text:     strings.TrimSpace(resp.Text),
		Language: whisperLanguage(resp.RawJSON()),
		Provider: language.BackendOpenAI,
		Duration: time.Since(start),
	}, nil
}

// whisperLanguage reads the detected language ("english", "hindi") out of a verbose
// transcription payload.
func whisperLanguage(raw string) string {
	var payload struct {
		Language string `json:"language"`
	}
	if raw == "" || json.Unmarshal([]byte(raw), &payload) != nil {
		return ""
	}
	return strings.TrimSpace(payload.Language)
}

// Synthesize renders MP3 speech with the configured voice.
func (p *OpenAIProvider) Synthesize(ctx context.Context, req *speech.SynthesizeRequest) (*speech.Audio, error) {
	resp, err := p.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          req.Text,
		Model:          openai.SpeechModel(p.cfg.TTSModel),
		Voice:          openai.AudioSpeechNewParamsVoice(p.cfg.Voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
		Speed:          openai.Float(ComputePace(p.cfg.Speed, req.Emotion)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read openai speech body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("openai speech returned no audio")
	}

	return &speech.Audio{
		Data:        data,
		Format:      "mp3",
		ContentType: speech.ContentType("mp3"),
		Provider:    language.BackendOpenAI,
	}, nil
}
