package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/mana-voice/backend/internal/analysis/emotion"
	"github.com/zhouzirui/mana-voice/backend/internal/analysis/language"
	"github.com/zhouzirui/mana-voice/backend/internal/config"
	"github.com/zhouzirui/mana-voice/backend/internal/model/session"
	emotionservice "github.com/zhouzirui/mana-voice/backend/internal/service/emotion"
	"github.com/zhouzirui/mana-voice/backend/pkg/errorsx"
)

type stubChatModel struct {
	reply string
	err   error
	input []*schema.Message
}

func (m *stubChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.input = input
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *stubChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *stubChatModel) BindTools(_ []*schema.ToolInfo) error { return nil }

func turns(n int) []session.Turn {
	out := make([]session.Turn, 0, n)
	for i := 0; i < n; i++ {
		role := session.RoleUser
		if i%2 == 1 {
			role = session.RoleAssistant
		}
		out = append(out, session.Turn{Role: role, Content: fmt.Sprintf("turn-%d", i)})
	}
	return out
}

func TestGenerateReplyBuildsPrompt(t *testing.T) {
	stub := &stubChatModel{reply: "  I hear you. What feels heaviest?  "}
	svc, err := NewServiceWithModel(context.Background(), stub, 4)
	require.NoError(t, err)

	reply, err := svc.GenerateReply(context.Background(), Request{
		SessionID: "s1",
		Utterance: "mujhe bahut gussa aa raha hai",
		Language:  language.Hinglish,
		Emotion:   emotion.Angry,
		Guidance:  &emotionservice.Guidance{Label: emotion.Angry, Style: "Stay calm and steady."},
		History:   turns(6),
	})
	require.NoError(t, err)
	assert.Equal(t, "I hear you. What feels heaviest?", reply)

	require.Len(t, stub.input, 1+4+1)
	assert.Equal(t, schema.System, stub.input[0].Role)
	assert.Contains(t, stub.input[0].Content, "Hinglish")
	assert.Contains(t, stub.input[0].Content, "Stay calm and steady.")
	assert.Contains(t, stub.input[0].Content, "angry")
	assert.NotContains(t, stub.input[0].Content, "SAFETY NOTE")
	assert.Equal(t, "turn-2", stub.input[1].Content, "history is windowed to the latest turns")
	last := stub.input[len(stub.input)-1]
	assert.Equal(t, schema.User, last.Role)
	assert.Equal(t, "mujhe bahut gussa aa raha hai", last.Content)
}

func TestGenerateReplyFirstTurnAndWarning(t *testing.T) {
	stub := &stubChatModel{reply: "ok"}
	svc, err := NewServiceWithModel(context.Background(), stub, 0)
	require.NoError(t, err)

	_, err = svc.GenerateReply(context.Background(), Request{
		Utterance: "I feel hopeless about everything {really}",
		Language:  language.English,
		Emotion:   emotion.Sad,
		Warning:   true,
		FirstTurn: true,
	})
	require.NoError(t, err)

	require.Len(t, stub.input, 3)
	assert.Contains(t, stub.input[0].Content, "SAFETY NOTE")
	assert.Contains(t, stub.input[0].Content, "first message")
	assert.Equal(t, schema.Assistant, stub.input[1].Role)
	assert.Equal(t, OpeningScript(language.English), stub.input[1].Content)
	assert.Equal(t, "I feel hopeless about everything {really}", stub.input[2].Content)
}

func TestGenerateReplyErrorsAreUnavailable(t *testing.T) {
	cases := map[string]*stubChatModel{
		"model error": {err: errors.New("timeout")},
		"empty reply": {reply: "   "},
	}
	for name, stub := range cases {
		t.Run(name, func(t *testing.T) {
			svc, err := NewServiceWithModel(context.Background(), stub, 10)
			require.NoError(t, err)

			_, err = svc.GenerateReply(context.Background(), Request{Utterance: "hi", Language: language.English})
			require.Error(t, err)
			assert.Equal(t, errorsx.KindExternalServiceUnavailable, errorsx.KindOf(err))
		})
	}
}

func TestNewServiceWithModelRequiresModel(t *testing.T) {
	_, err := NewServiceWithModel(context.Background(), nil, 10)
	assert.Error(t, err)
}

func TestNewChatModelRequiresCredentials(t *testing.T) {
	_, err := NewChatModel(context.Background(), config.AIConfig{Provider: config.ProviderOpenAI, Model: "gpt-4o-mini"})
	assert.Error(t, err)
}

func TestOpeningScripts(t *testing.T) {
	for _, tag := range language.Tags {
		assert.Contains(t, OpeningScript(tag), BotName)
	}
	assert.Equal(t, OpeningScript(language.English), OpeningScript(language.Tag("fr")))
}

func TestOpenAIChatModelAgainstServer(t *testing.T) {
	var got struct {
		Model     string  `json:"model"`
		MaxTokens int     `json:"max_tokens"`
		TopP      float64 `json:"top_p"`
		Messages  []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Main yahan hoon."}}]}`))
	}))
	defer srv.Close()

	chatModel, err := NewChatModel(context.Background(), config.AIConfig{
		Provider:    config.ProviderOpenAI,
		Model:       "gpt-4o-mini",
		Temperature: 0.7,
		TopP:        0.9,
		MaxTokens:   300,
		OpenAI:      config.OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL},
	})
	require.NoError(t, err)

	svc, err := NewServiceWithModel(context.Background(), chatModel, 20)
	require.NoError(t, err)

	reply, err := svc.GenerateReply(context.Background(), Request{Utterance: "hello", Language: language.Hindi})
	require.NoError(t, err)
	assert.Equal(t, "Main yahan hoon.", reply)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, 300, got.MaxTokens)
	assert.InDelta(t, 0.9, got.TopP, 0.001)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
}

func TestNewChatModelBuildsEveryProvider(t *testing.T) {
	for _, cfg := range []config.AIConfig{
		{Provider: config.ProviderOpenAI, Model: "gpt-4o-mini", OpenAI: config.OpenAIConfig{APIKey: "sk-test"}},
		{Provider: config.ProviderGemini, Model: "gemini-2.0-flash", Gemini: config.GeminiConfig{APIKey: "g-test"}},
	} {
		chatModel, err := NewChatModel(context.Background(), cfg)
		require.NoError(t, err, cfg.Provider)
		assert.NotNil(t, chatModel, cfg.Provider)
	}
}
