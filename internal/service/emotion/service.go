package emotion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	analysis "github.com/zhouzirui/mana-voice/backend/internal/analysis/emotion"
	"github.com/zhouzirui/mana-voice/backend/internal/analysis/language"
	"github.com/zhouzirui/mana-voice/backend/internal/model/session"
	"github.com/zhouzirui/mana-voice/backend/pkg/log"
	"github.com/zhouzirui/mana-voice/backend/pkg/redact"
)

// Config controls the guidance service.
type Config struct {
	// LLMEnabled lets the chat model refine the reply style. The emotion label itself
	// always comes from the keyword classifier.
	LLMEnabled   bool
	HistoryLimit int
}

// Guidance tells the reply generator how to sound for the current turn.
type Guidance struct {
	Label          analysis.Label `json:"label"`
	Style          string         `json:"style"`
	TrajectoryNote string         `json:"trajectoryNote,omitempty"`
	Confidence     float32        `json:"confidence"`
	Reason         string         `json:"reason,omitempty"`
}

// Service derives reply guidance from the classified label and, optionally, a chat model.
type Service struct {
	enabled      bool
	refiner      compose.Runnable[map[string]any, *schema.Message]
	historyLimit int
}

// NewService creates the guidance service. chatModel may be nil, in which case only the
// static style table is used.
func NewService(ctx context.Context, chatModel model.ChatModel, cfg Config) (*Service, error) {
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 6
	}

	svc := &Service{
		enabled:      cfg.LLMEnabled && chatModel != nil,
		historyLimit: historyLimit,
	}
	if !svc.enabled {
		return svc, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(refinerSystemPrompt),
		schema.UserMessage(refinerUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile emotion guidance chain: %w", err)
	}

	svc.refiner = runnable
	return svc, nil
}

// Enabled reports whether model refinement is active.
func (s *Service) Enabled() bool {
	return s != nil && s.enabled && s.refiner != nil
}

// Analyze builds guidance for a turn. label is the classifier's result for utterance;
// history holds the turns before it.
func (s *Service) Analyze(ctx context.Context, history []session.Turn, utterance string, label analysis.Label, tag language.Tag) Guidance {
	base := s.fallbackGuidance(history, label)
	if !s.Enabled() {
		return base
	}

	input := map[string]any{
		"language":     tag.Name(),
		"label":        string(label),
		"trajectory":   base.TrajectoryNote,
		"history":      formatHistory(history, s.historyLimit),
		"user_message": strings.TrimSpace(utterance),
	}

	msg, err := s.refiner.Invoke(ctx, input)
	if err != nil {
		log.Warnw("emotion guidance refine failed, using static style", "error", err)
		return base
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return base
	}

	result, err := parseRefinerOutput(msg.Content)
	if err != nil {
		log.Warnw("emotion guidance output unparseable, using static style", "error", err)
		return base
	}

	if style := strings.TrimSpace(result.Style); style != "" {
		base.Style = style
	}
	base.Reason = strings.TrimSpace(result.Reason)
	base.Confidence = clampConfidence(result.Confidence)
	return base
}

func (s *Service) fallbackGuidance(history []session.Turn, label analysis.Label) Guidance {
	style := defaultStyleByEmotion[label]
	if style == "" {
		style = defaultStyleByEmotion[analysis.Neutral]
	}

	labels := make([]analysis.Label, 0, len(history)/2+1)
	for _, turn := range history {
		if turn.Role == session.RoleUser {
			labels = append(labels, turn.Emotion)
		}
	}
	labels = append(labels, label)

	return Guidance{
		Label:          label,
		Style:          style,
		TrajectoryNote: session.TrajectoryNote(labels),
		Confidence:     0.5,
		Reason:         "keyword",
	}
}

func parseRefinerOutput(content string) (*refinerPayload, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("missing json object")
	}

	payload := &refinerPayload{}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func formatHistory(turns []session.Turn, limit int) string {
	if len(turns) == 0 {
		return "(no earlier turns)"
	}
	if limit < 1 {
		limit = 1
	}
	start := len(turns) - limit
	if start < 0 {
		start = 0
	}

	var builder strings.Builder
	for _, turn := range turns[start:] {
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		role := "User"
		if turn.Role == session.RoleAssistant {
			role = "Companion"
		}
		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		fmt.Fprintf(&builder, "%s [%s]: %s", role, turn.Emotion, redact.Text(content))
	}
	if builder.Len() == 0 {
		return "(no earlier turns)"
	}
	return builder.String()
}

func clampConfidence(val float32) float32 {
	switch {
	case val <= 0:
		return 0.6
	case val > 1:
		return 1
	default:
		return val
	}
}

type refinerPayload struct {
	Style      string  `json:"style"`
	Confidence float32 `json:"confidence"`
	Reason     string  `json:"reason"`
}

const refinerSystemPrompt = "You advise a warm, non-clinical mental health companion on tone. " +
	"The user's emotion has already been labelled by a keyword classifier; do not relabel it. " +
	"Read the recent conversation and suggest, in one sentence, how the next reply should sound. " +
	"Return only a JSON object with the fields style (one sentence), confidence (0 to 1) and reason (short). " +
	"No other text."

const refinerUserPrompt = "Reply language: {language}\nEmotion label: {label}\nTrajectory: {trajectory}\n\n" +
	"Recent conversation:\n{history}\n\nLatest user message:\n{user_message}"

var defaultStyleByEmotion = map[analysis.Label]string{
	analysis.Neutral:    "Stay warm and curious, invite them to share more at their own pace.",
	analysis.Anxious:    "Slow the pace, be grounding and reassuring, offer one small calming step.",
	analysis.Sad:        "Be gentle and validating, sit with the feeling before suggesting anything.",
	analysis.Angry:      "Stay calm and steady, acknowledge the anger as valid without arguing.",
	analysis.Frustrated: "Acknowledge how heavy it feels, break things into one manageable next step.",
	analysis.Positive:   "Reflect the progress back warmly and reinforce what helped.",
	analysis.Crisis:     "Prioritise safety, stay present and point to immediate human help.",
}
