package speech

import (
	"time"

	"github.com/zhouzirui/mana-voice/backend/internal/analysis/language"
)

// Transcript is the result of speech-to-text.
type Transcript struct {
	Text string `json:"text"`
	// Language is the vendor's raw language tag ("en", "hindi", "hi-IN"); empty when
	// the vendor reported none.
	Language string           `json:"language,omitempty"`
	Provider language.Backend `json:"provider"`
	Duration time.Duration    `json:"durationNs"`
}

// Audio is synthesized speech.
type Audio struct {
	Data        []byte           `json:"-"`
	Format      string           `json:"format"`
	ContentType string           `json:"contentType"`
	Provider    language.Backend `json:"provider"`
}
