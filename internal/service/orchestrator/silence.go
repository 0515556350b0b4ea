package orchestrator

import (
	"context"
	"fmt"

	"github.com/zhouzirui/mana-voice/backend/internal/analysis/language"
	"github.com/zhouzirui/mana-voice/backend/pkg/errorsx"
)

type silenceTier struct {
	upTo    int
	english string
	hindi   string
}

// silenceTiers are ordered by threshold in seconds. Anything past the last one gets the
// last one's farewell.
var silenceTiers = []silenceTier{
	{upTo: 5, english: "Take your time. I'm right here.", hindi: "Koi jaldi nahi. Main yahan hoon."},
	{upTo: 10, english: "No rush at all. We can just sit here.", hindi: "Bilkul theek hai. Baat na karein toh bhi."},
	{upTo: 15, english: "It's okay if you don't want to talk right now.", hindi: "Koi baat nahi agar abhi baat nahi karni."},
	{upTo: 20, english: "Take care. Come back anytime you'd like.", hindi: "Apna khayal rakhein. Jab chahein aayein."},
}

// SilencePrompt is the nudge for a stretch of user silence.
type SilencePrompt struct {
	SessionID string       `json:"sessionId"`
	Seconds   int          `json:"seconds"`
	Text      string       `json:"text"`
	Language  language.Tag `json:"language"`
	// Farewell marks the last tier; clients usually close the session after it.
	Farewell bool `json:"farewell"`
}

// SilencePrompt returns the graded nudge for seconds of silence, in the session's
// language. Hindi and Hinglish sessions get the romanized Hindi text.
func (s *Service) SilencePrompt(ctx context.Context, id string, seconds int) (*SilencePrompt, error) {
	if seconds < 0 {
		return nil, errorsx.New(errorsx.KindInvalidInput, fmt.Sprintf("seconds must not be negative, got %d", seconds))
	}

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Closed {
		return nil, errorsx.New(errorsx.KindSessionAlreadyClosed, "session already closed")
	}

	idx := len(silenceTiers) - 1
	for i, tier := range silenceTiers {
		if seconds <= tier.upTo {
			idx = i
			break
		}
	}
	tier := silenceTiers[idx]

	text := tier.english
	if sess.Language.UsesHindiScripts() {
		text = tier.hindi
	}
	return &SilencePrompt{
		SessionID: id,
		Seconds:   seconds,
		Text:      text,
		Language:  sess.Language,
		Farewell:  idx == len(silenceTiers)-1,
	}, nil
}
