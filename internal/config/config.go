package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/zhouzirui/mana-voice/backend/internal/analysis/language"
)

// Config aggregates every setting of the service.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Session SessionConfig `mapstructure:"session"`
	AI      AIConfig      `mapstructure:"ai"`
	Speech  SpeechConfig  `mapstructure:"speech"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	// Port accepts "8000", ":8000" or "127.0.0.1:8000".
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	Banner          bool          `mapstructure:"banner"`
}

// Addr normalises Port into a listen address.
func (c ServerConfig) Addr() (string, error) {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8000"
	}
	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid server port %q", port)
	}
	if strings.Contains(port, ":") {
		return port, nil
	}
	return ":" + port, nil
}

// LogConfig mirrors pkg/log.Init.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
	Redact     bool   `mapstructure:"redact"`
}

// SessionConfig bounds sessions and turns.
type SessionConfig struct {
	DefaultLanguage   string        `mapstructure:"default_language"`
	MaxIdle           time.Duration `mapstructure:"max_idle"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	MaxUtteranceRunes int           `mapstructure:"max_utterance_runes"`
	TurnTimeout       time.Duration `mapstructure:"turn_timeout"`
}

// DefaultTag parses DefaultLanguage.
func (c SessionConfig) DefaultTag() language.Tag {
	if tag, ok := language.ParseTag(c.DefaultLanguage); ok {
		return tag
	}
	return language.Hindi
}

// Load reads configuration from defaults, an optional config file and the environment.
// path may be empty, in which case config.yaml is looked up in . and ./configs.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("MANA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindVendorEnv(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Speech.OpenAI.inherit(cfg.AI.OpenAI)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.banner", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")
	v.SetDefault("log.redact", true)

	v.SetDefault("session.default_language", string(language.Hindi))
	v.SetDefault("session.max_idle", 30*time.Minute)
	v.SetDefault("session.sweep_interval", 5*time.Minute)
	v.SetDefault("session.max_utterance_runes", 2000)
	v.SetDefault("session.turn_timeout", 30*time.Second)

	v.SetDefault("ai.provider", ProviderOpenAI)
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.top_p", 0.9)
	v.SetDefault("ai.max_tokens", 300)
	v.SetDefault("ai.history_window", 20)
	v.SetDefault("ai.emotion_llm_enabled", false)
	v.SetDefault("ai.emotion_history_limit", 6)
	v.SetDefault("ai.openai.api_key", "")
	v.SetDefault("ai.openai.base_url", "")
	v.SetDefault("ai.ark.api_key", "")
	v.SetDefault("ai.ark.access_key", "")
	v.SetDefault("ai.ark.secret_key", "")
	v.SetDefault("ai.ark.base_url", "https://ark.cn-beijing.volces.com/api/v3")
	v.SetDefault("ai.ark.region", "cn-beijing")
	v.SetDefault("ai.gemini.api_key", "")

	v.SetDefault("speech.timeout", 30*time.Second)
	v.SetDefault("speech.max_audio_bytes", 25<<20)
	v.SetDefault("speech.openai.api_key", "")
	v.SetDefault("speech.openai.base_url", "")
	v.SetDefault("speech.openai.stt_model", "whisper-1")
	v.SetDefault("speech.openai.tts_model", "tts-1")
	v.SetDefault("speech.openai.voice", "nova")
	v.SetDefault("speech.openai.speed", 0.95)
	v.SetDefault("speech.sarvam.api_key", "")
	v.SetDefault("speech.sarvam.base_url", "https://api.sarvam.ai")
	v.SetDefault("speech.sarvam.stt_model", "saaras:v2")
	v.SetDefault("speech.sarvam.tts_model", "bulbul:v2")
	v.SetDefault("speech.sarvam.speaker", "anushka")
	v.SetDefault("speech.sarvam.language_code", "hi-IN")
	v.SetDefault("speech.sarvam.pitch", 0.0)
	v.SetDefault("speech.sarvam.pace", 1.1)
	v.SetDefault("speech.sarvam.loudness", 1.5)
	v.SetDefault("speech.sarvam.sample_rate", 22050)
}

// Vendor-conventional variable names, accepted alongside MANA_* keys.
var vendorEnv = map[string][]string{
	"server.port":           {"MANA_SERVER_PORT", "PORT"},
	"ai.openai.api_key":     {"MANA_AI_OPENAI_API_KEY", "OPENAI_API_KEY"},
	"ai.ark.api_key":        {"MANA_AI_ARK_API_KEY", "ARK_API_KEY"},
	"ai.ark.access_key":     {"MANA_AI_ARK_ACCESS_KEY", "ARK_ACCESS_KEY"},
	"ai.ark.secret_key":     {"MANA_AI_ARK_SECRET_KEY", "ARK_SECRET_KEY"},
	"ai.gemini.api_key":     {"MANA_AI_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"speech.sarvam.api_key": {"MANA_SPEECH_SARVAM_API_KEY", "SARVAM_API_KEY"},
}

func bindVendorEnv(v *viper.Viper) error {
	for key, names := range vendorEnv {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if _, err := c.Server.Addr(); err != nil {
		return err
	}
	if _, ok := language.ParseTag(c.Session.DefaultLanguage); !ok {
		return fmt.Errorf("invalid session.default_language %q", c.Session.DefaultLanguage)
	}
	if c.Session.MaxUtteranceRunes <= 0 {
		return fmt.Errorf("session.max_utterance_runes must be positive")
	}
	if c.AI.HistoryWindow <= 0 {
		return fmt.Errorf("ai.history_window must be positive")
	}
	switch c.AI.Provider {
	case ProviderOpenAI, ProviderArk, ProviderGemini:
	default:
		return fmt.Errorf("unsupported ai.provider %q", c.AI.Provider)
	}
	if c.Speech.MaxAudioBytes <= 0 {
		return fmt.Errorf("speech.max_audio_bytes must be positive")
	}
	return nil
}
