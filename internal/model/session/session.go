package session

import (
	"time"

	"github.com/zhouzirui/mana-voice/backend/internal/analysis/emotion"
	"github.com/zhouzirui/mana-voice/backend/internal/analysis/language"
	"github.com/zhouzirui/mana-voice/backend/internal/analysis/safety"
)

// Session captures a transient anonymous conversation. It lives only in memory.
type Session struct {
	ID           string       `json:"id"`
	Language     language.Tag `json:"language"`
	Turns        []Turn       `json:"turns"`
	CreatedAt    time.Time    `json:"createdAt"`
	LastActiveAt time.Time    `json:"lastActiveAt"`
	Closed       bool         `json:"closed"`
	ClosedAt     *time.Time   `json:"closedAt,omitempty"`
}

// Clone returns a deep copy safe to hand to callers.
func (s Session) Clone() Session {
	out := s
	out.Turns = make([]Turn, len(s.Turns))
	copy(out.Turns, s.Turns)
	if s.ClosedAt != nil {
		closedAt := *s.ClosedAt
		out.ClosedAt = &closedAt
	}
	return out
}

// UserLabels returns the emotion labels of the user turns, oldest first.
func (s Session) UserLabels() []emotion.Label {
	labels := make([]emotion.Label, 0, len(s.Turns)/2+1)
	for _, turn := range s.Turns {
		if turn.Role == RoleUser {
			labels = append(labels, turn.Emotion)
		}
	}
	return labels
}

// UserTurnCount counts turns spoken by the user.
func (s Session) UserTurnCount() int {
	n := 0
	for _, turn := range s.Turns {
		if turn.Role == RoleUser {
			n++
		}
	}
	return n
}

// Recent returns at most limit trailing turns.
func (s Session) Recent(limit int) []Turn {
	if limit <= 0 || len(s.Turns) <= limit {
		return s.Turns
	}
	return s.Turns[len(s.Turns)-limit:]
}

// Role identifies the speaker of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance in a session. Turns are immutable once appended.
type Turn struct {
	ID        string        `json:"id"`
	Role      Role          `json:"role"`
	Content   string        `json:"content"`
	Language  language.Tag  `json:"language"`
	Emotion   emotion.Label `json:"emotion"`
	Crisis    bool          `json:"crisis"`
	Safety    safety.Level  `json:"safety"`
	CreatedAt time.Time     `json:"createdAt"`
}
