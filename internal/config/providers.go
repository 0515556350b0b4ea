package config

import "time"

// Chat model providers.
const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"
	ProviderGemini = "gemini"
)

// AIConfig describes the reply model.
type AIConfig struct {
	Provider            string       `mapstructure:"provider"`
	Model               string       `mapstructure:"model"`
	Temperature         float64      `mapstructure:"temperature"`
	TopP                float64      `mapstructure:"top_p"`
	MaxTokens           int          `mapstructure:"max_tokens"`
	HistoryWindow       int          `mapstructure:"history_window"`
	EmotionLLMEnabled   bool         `mapstructure:"emotion_llm_enabled"`
	EmotionHistoryLimit int          `mapstructure:"emotion_history_limit"`
	OpenAI              OpenAIConfig `mapstructure:"openai"`
	Ark                 ArkConfig    `mapstructure:"ark"`
	Gemini              GeminiConfig `mapstructure:"gemini"`
}

// OpenAIConfig holds OpenAI credentials.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// ArkConfig holds Volcengine Ark credentials: an API key or an AK/SK pair.
type ArkConfig struct {
	APIKey    string `mapstructure:"api_key"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	BaseURL   string `mapstructure:"base_url"`
	Region    string `mapstructure:"region"`
}

// GeminiConfig holds Google Gemini credentials.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// Enabled reports whether the selected provider has credentials and a model.
func (c AIConfig) Enabled() bool {
	if c.Model == "" {
		return false
	}
	switch c.Provider {
	case ProviderOpenAI:
		return c.OpenAI.APIKey != ""
	case ProviderArk:
		return c.Ark.APIKey != "" || (c.Ark.AccessKey != "" && c.Ark.SecretKey != "")
	case ProviderGemini:
		return c.Gemini.APIKey != ""
	default:
		return false
	}
}

// SpeechConfig describes the STT/TTS vendors.
type SpeechConfig struct {
	Timeout       time.Duration      `mapstructure:"timeout"`
	MaxAudioBytes int                `mapstructure:"max_audio_bytes"`
	OpenAI        OpenAISpeechConfig `mapstructure:"openai"`
	Sarvam        SarvamConfig       `mapstructure:"sarvam"`
}

// OpenAISpeechConfig configures Whisper and OpenAI TTS.
type OpenAISpeechConfig struct {
	APIKey   string  `mapstructure:"api_key"`
	BaseURL  string  `mapstructure:"base_url"`
	STTModel string  `mapstructure:"stt_model"`
	TTSModel string  `mapstructure:"tts_model"`
	Voice    string  `mapstructure:"voice"`
	Speed    float64 `mapstructure:"speed"`
}

func (c *OpenAISpeechConfig) inherit(ai OpenAIConfig) {
	if c.APIKey == "" {
		c.APIKey = ai.APIKey
	}
	if c.BaseURL == "" {
		c.BaseURL = ai.BaseURL
	}
}

// Enabled reports whether OpenAI speech can be used.
func (c OpenAISpeechConfig) Enabled() bool {
	return c.APIKey != ""
}

// SarvamConfig configures Sarvam speech-to-text-translate and text-to-speech.
type SarvamConfig struct {
	APIKey       string  `mapstructure:"api_key"`
	BaseURL      string  `mapstructure:"base_url"`
	STTModel     string  `mapstructure:"stt_model"`
	TTSModel     string  `mapstructure:"tts_model"`
	Speaker      string  `mapstructure:"speaker"`
	LanguageCode string  `mapstructure:"language_code"`
	Pitch        float64 `mapstructure:"pitch"`
	Pace         float64 `mapstructure:"pace"`
	Loudness     float64 `mapstructure:"loudness"`
	SampleRate   int     `mapstructure:"sample_rate"`
}

// Enabled reports whether Sarvam can be used.
func (c SarvamConfig) Enabled() bool {
	return c.APIKey != ""
}
