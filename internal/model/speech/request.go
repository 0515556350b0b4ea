package speech

import (
	"github.com/zhouzirui/mana-voice/backend/internal/analysis/emotion"
	"github.com/zhouzirui/mana-voice/backend/internal/analysis/language"
)

// TranscribeRequest is one utterance of recorded audio.
type TranscribeRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	Audio     []byte `json:"-"`
	Format    string `json:"format"` // wav, mp3, webm, ogg, m4a
	Filename  string `json:"filename,omitempty"`
	// Hint is the expected language; empty means unknown.
	Hint language.Tag `json:"hint,omitempty"`
}

// SynthesizeRequest asks for a spoken rendition of Text.
type SynthesizeRequest struct {
	SessionID string       `json:"sessionId,omitempty"`
	Text      string       `json:"text"`
	Language  language.Tag `json:"language"`
	// Emotion of the user turn being answered; it slows the voice for distressed users.
	Emotion emotion.Label `json:"emotion,omitempty"`
}
