package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/mana-voice/backend/pkg/errorsx"
)

func TestSilencePrompt(t *testing.T) {
	f := newFixture(t)
	en := f.create(t, "en")
	hi := f.create(t, "hi-en")

	tests := []struct {
		id       string
		seconds  int
		want     string
		farewell bool
	}{
		{en, 0, "Take your time. I'm right here.", false},
		{en, 5, "Take your time. I'm right here.", false},
		{en, 6, "No rush at all. We can just sit here.", false},
		{en, 15, "It's okay if you don't want to talk right now.", false},
		{en, 18, "Take care. Come back anytime you'd like.", true},
		{en, 90, "Take care. Come back anytime you'd like.", true},
		{hi, 8, "Bilkul theek hai. Baat na karein toh bhi.", false},
		{hi, 25, "Apna khayal rakhein. Jab chahein aayein.", true},
	}
	for _, tt := range tests {
		got, err := f.svc.SilencePrompt(context.Background(), tt.id, tt.seconds)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got.Text, "seconds=%d", tt.seconds)
		assert.Equal(t, tt.farewell, got.Farewell, "seconds=%d", tt.seconds)
	}
}

func TestSilencePromptErrors(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "en")

	_, err := f.svc.SilencePrompt(context.Background(), id, -1)
	assert.True(t, errorsx.Is(err, errorsx.KindInvalidInput))

	_, err = f.svc.SilencePrompt(context.Background(), "nope", 5)
	assert.True(t, errorsx.Is(err, errorsx.KindSessionNotFound))

	_, err = f.svc.CloseSession(context.Background(), id)
	require.NoError(t, err)
	_, err = f.svc.SilencePrompt(context.Background(), id, 5)
	assert.True(t, errorsx.Is(err, errorsx.KindSessionAlreadyClosed))
}
