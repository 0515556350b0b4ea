package speech

import (
	"github.com/zhouzirui/mana-voice/backend/internal/analysis/emotion"
)

// paceByEmotion scales the configured speaking rate. Distressed users get a slower,
// calmer voice.
var paceByEmotion = map[emotion.Label]float64{
	emotion.Crisis:     0.9,
	emotion.Anxious:    0.92,
	emotion.Sad:        0.92,
	emotion.Angry:      0.95,
	emotion.Frustrated: 0.97,
}

const (
	minPace = 0.5
	maxPace = 2.0
)

// ComputePace returns the speaking rate for base adjusted to label, clamped to the
// range both vendors accept.
func ComputePace(base float64, label emotion.Label) float64 {
	if base <= 0 {
		base = 1
	}
	pace := base
	if factor, ok := paceByEmotion[label]; ok {
		pace = base * factor
	}
	switch {
	case pace < minPace:
		return minPace
	case pace > maxPace:
		return maxPace
	default:
		return pace
	}
}
