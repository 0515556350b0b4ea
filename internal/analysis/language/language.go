// Package language resolves the language variant of a turn and the speech backend
// that serves it.
package language

import (
	"strings"
)

// Tag is the closed set of language variants a turn can resolve to.
type Tag string

const (
	// Hindi is the primary language.
	Hindi Tag = "hi"
	// English is the secondary language.
	English Tag = "en"
	// Hinglish is the code-mixed variant.
	Hinglish Tag = "hi-en"
)

// Tags lists every valid tag.
var Tags = []Tag{Hindi, English, Hinglish}

// Valid reports whether t is one of the closed set.
func (t Tag) Valid() bool {
	switch t {
	case Hindi, English, Hinglish:
		return true
	default:
		return false
	}
}

// Name returns a human readable label used in prompts.
func (t Tag) Name() string {
	switch t {
	case Hindi:
		return "Hindi"
	case English:
		return "English"
	case Hinglish:
		return "Hinglish"
	default:
		return string(t)
	}
}

// UsesHindiScripts reports whether replies for t are written in Hindi (either script).
func (t Tag) UsesHindiScripts() bool {
	return t == Hindi || t == Hinglish
}

// Backend identifies an external speech vendor.
type Backend string

const (
	BackendOpenAI Backend = "openai"
	BackendSarvam Backend = "sarvam"
)

// SpeechBackend returns the STT/TTS vendor that serves t.
func (t Tag) SpeechBackend() Backend {
	if t == English {
		return BackendOpenAI
	}
	return BackendSarvam
}

var aliases = map[string]Tag{
	"en":       English,
	"eng":      English,
	"english":  English,
	"hi":       Hindi,
	"hin":      Hindi,
	"hindi":    Hindi,
	"hi-en":    Hinglish,
	"en-hi":    Hinglish,
	"hi-eng":   Hinglish,
	"hinglish": Hinglish,
}

// ParseTag maps vendor and user supplied language codes ("en-US", "hindi", "hi_IN",
// "hinglish") onto a Tag.
func ParseTag(raw string) (Tag, bool) {
	code := strings.ToLower(strings.TrimSpace(raw))
	code = strings.ReplaceAll(code, "_", "-")
	if code == "" {
		return "", false
	}
	if tag, ok := aliases[code]; ok {
		return tag, true
	}

	// Region-qualified codes: en-in, hi-in, en-us.
	primary, _, _ := strings.Cut(code, "-")
	switch primary {
	case "en":
		return English, true
	case "hi":
		return Hindi, true
	}
	return "", false
}
