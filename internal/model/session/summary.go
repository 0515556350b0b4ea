package session

import (
	"time"

	"github.com/zhouzirui/mana-voice/backend/internal/analysis/emotion"
	"github.com/zhouzirui/mana-voice/backend/internal/analysis/language"
	"github.com/zhouzirui/mana-voice/backend/internal/analysis/safety"
)

const trajectoryLength = 5

// Trajectory notes describe how the last few user turns have moved.
const (
	NoteFeelingBetter          = "feeling better"
	NoteStabilizing            = "stabilizing"
	NoteConsistentlyDistressed = "consistently distressed"
)

// Summary aggregates a session for close-session and get-session.
type Summary struct {
	SessionID       string          `json:"sessionId"`
	TurnCount       int             `json:"turnCount"`
	UserTurns       int             `json:"userTurns"`
	AssistantTurns  int             `json:"assistantTurns"`
	DominantEmotion emotion.Label   `json:"dominantEmotion"`
	Trajectory      []emotion.Label `json:"trajectory"`
	TrajectoryNote  string          `json:"trajectoryNote,omitempty"`
	CrisisCount     int             `json:"crisisCount"`
	WarningCount    int             `json:"warningCount"`
	Language        language.Tag    `json:"language"`
	Duration        time.Duration   `json:"durationNs"`
	Closed          bool            `json:"closed"`
}

// Summarize computes the summary of s as of now.
func Summarize(s Session, now time.Time) Summary {
	summary := Summary{
		SessionID:       s.ID,
		TurnCount:       len(s.Turns),
		DominantEmotion: emotion.Neutral,
		Language:        s.Language,
		Closed:          s.Closed,
	}

	end := now
	if s.ClosedAt != nil {
		end = *s.ClosedAt
	}
	if !s.CreatedAt.IsZero() && end.After(s.CreatedAt) {
		summary.Duration = end.Sub(s.CreatedAt)
	}

	counts := make(map[emotion.Label]int)
	lastSeen := make(map[emotion.Label]int)
	var labels []emotion.Label

	for i, turn := range s.Turns {
		if turn.Role == RoleAssistant {
			summary.AssistantTurns++
			continue
		}

		summary.UserTurns++
		summary.Language = turn.Language
		labels = append(labels, turn.Emotion)

		if turn.Crisis {
			summary.CrisisCount++
		} else if turn.Safety == safety.LevelWarning {
			summary.WarningCount++
		}

		if turn.Emotion != emotion.Neutral && turn.Emotion != "" {
			counts[turn.Emotion]++
			lastSeen[turn.Emotion] = i
		}
	}

	best := 0
	for label, n := range counts {
		if n > best || (n == best && lastSeen[label] > lastSeen[summary.DominantEmotion]) {
			best = n
			summary.DominantEmotion = label
		}
	}

	start := len(labels) - trajectoryLength
	if start < 0 {
		start = 0
	}
	summary.Trajectory = append([]emotion.Label{}, labels[start:]...)
	summary.TrajectoryNote = TrajectoryNote(labels)
	return summary
}

// TrajectoryNote reads the last three user labels.
func TrajectoryNote(labels []emotion.Label) string {
	if len(labels) < 2 {
		return ""
	}
	start := len(labels) - 3
	if start < 0 {
		start = 0
	}
	recent := labels[start:]
	last := recent[len(recent)-1]

	switch {
	case last == emotion.Positive:
		return NoteFeelingBetter
	case last == emotion.Neutral:
		if recent[len(recent)-2].Distressed() {
			return NoteStabilizing
		}
		return ""
	default:
		for _, l := range recent {
			if !l.Distressed() {
				return ""
			}
		}
		return NoteConsistentlyDistressed
	}
}
