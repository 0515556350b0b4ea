package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/mana-voice/backend/internal/analysis/emotion"
	"github.com/zhouzirui/mana-voice/backend/internal/analysis/language"
	"github.com/zhouzirui/mana-voice/backend/internal/config"
	"github.com/zhouzirui/mana-voice/backend/internal/model/session"
	emotionservice "github.com/zhouzirui/mana-voice/backend/internal/service/emotion"
	"github.com/zhouzirui/mana-voice/backend/pkg/errorsx"
	"github.com/zhouzirui/mana-voice/backend/pkg/log"
)

// Request carries everything the reply generator needs for one turn.
type Request struct {
	SessionID string
	Utterance string
	Language  language.Tag
	Emotion   emotion.Label
	Guidance  *emotionservice.Guidance
	// Warning marks a warning-level safety verdict.
	Warning bool
	// FirstTurn is set on the session's first user turn; the opening script is then
	// prepended to the history.
	FirstTurn bool
	// History holds the turns before Utterance, oldest first.
	History []session.Turn
}

// Service generates companion replies through an eino prompt chain.
type Service struct {
	chatModel     model.ChatModel
	historyWindow int
	chain         compose.Runnable[map[string]any, *schema.Message]
}

// NewService builds the chat model selected by cfg and wraps it in a reply chain.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, cfg.HistoryWindow)
}

// NewServiceWithModel wraps an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.ChatModel, historyWindow int) (*Service, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	if historyWindow <= 0 {
		historyWindow = 20
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile reply chain: %w", err)
	}

	return &Service{
		chatModel:     chatModel,
		historyWindow: historyWindow,
		chain:         runnable,
	}, nil
}

// GetChatModel returns the underlying chat model so other services can share it.
func (s *Service) GetChatModel() model.ChatModel {
	return s.chatModel
}

// GenerateReply produces the assistant reply for req. Every failure, including an empty
// reply, is reported as ExternalServiceUnavailable.
func (s *Service) GenerateReply(ctx context.Context, req Request) (string, error) {
	response, err := s.chain.Invoke(ctx, s.buildChainInput(req))
	if err != nil {
		return "", errorsx.Wrap(fmt.Errorf("reply model failed: %w", err), errorsx.KindExternalServiceUnavailable)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return "", errorsx.New(errorsx.KindExternalServiceUnavailable, "reply model returned no content")
	}

	reply := strings.TrimSpace(response.Content)
	log.Infow("generated reply",
		"session", req.SessionID,
		"language", req.Language,
		"emotion", req.Emotion,
		"length", len(reply),
	)
	return reply, nil
}

func (s *Service) buildChainInput(req Request) map[string]any {
	return map[string]any{
		"system":  buildSystemPrompt(req),
		"history": s.buildHistoryMessages(req),
		"query":   req.Utterance,
	}
}

func (s *Service) buildHistoryMessages(req Request) []*schema.Message {
	turns := req.History
	if len(turns) > s.historyWindow {
		turns = turns[len(turns)-s.historyWindow:]
	}

	history := make([]*schema.Message, 0, len(turns)+1)
	if req.FirstTurn {
		history = append(history, schema.AssistantMessage(OpeningScript(req.Language), nil))
	}
	for _, turn := range turns {
		switch turn.Role {
		case session.RoleUser:
			history = append(history, schema.UserMessage(turn.Content))
		case session.RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}
	return history
}
