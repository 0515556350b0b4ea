package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutePrecedence(t *testing.T) {
	router := NewRouter(Hindi)

	tests := []struct {
		name   string
		in     Input
		tag    Tag
		source Source
	}{
		{
			name:   "override beats stt and text",
			in:     Input{Override: English, STT: "hi-IN", Text: "mujhe bahut gussa aa raha hai", Session: Hindi},
			tag:    English,
			source: SourceOverride,
		},
		{
			name:   "stt beats heuristic and session",
			in:     Input{STT: "hindi", Text: "I am feeling low today", Session: English},
			tag:    Hindi,
			source: SourceSTT,
		},
		{
			name:   "unknown stt falls through to heuristic",
			in:     Input{STT: "fr", Text: "I am feeling low today", Session: Hindi},
			tag:    English,
			source: SourceHeuristic,
		},
		{
			name:   "romanised hindi resolves code-mixed",
			in:     Input{Text: "mujhe bahut gussa aa raha hai", Session: English},
			tag:    Hinglish,
			source: SourceHeuristic,
		},
		{
			name:   "unrecognised text falls back to session",
			in:     Input{Text: "zxq blorf wibble", Session: English},
			tag:    English,
			source: SourceSession,
		},
		{
			name:   "empty text uses session",
			in:     Input{Session: Hinglish},
			tag:    Hinglish,
			source: SourceSession,
		},
		{
			name:   "invalid session uses router fallback",
			in:     Input{Session: Tag("fr")},
			tag:    Hindi,
			source: SourceFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := router.Route(tt.in)
			assert.Equal(t, tt.tag, got.Tag)
			assert.Equal(t, tt.source, got.Source)
			assert.True(t, got.Tag.Valid())
		})
	}
}

func TestDetect(t *testing.T) {
	router := NewRouter(Hindi)

	tests := []struct {
		text string
		tag  Tag
		ok   bool
	}{
		{"I want to end my life", English, true},
		{"मैं बहुत परेशान हूँ", Hindi, true},
		{"आज office में बहुत stress है, I can't handle it", Hinglish, true},
		{"yaar I am so done with this", Hinglish, true},
		{"kal office mein bohot stressed tha", Hinglish, true},
		{"I feel like kuch theek nahi hai", Hinglish, true},
		{"मुझे office में problem है", Hinglish, true},
		{"मुझे anxiety हो रही है", Hinglish, true},
		{"मैं बहुत stressed हूँ", Hinglish, true},
		{"12345 !!!", "", false},
		{"zxq blorf wibble", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			tag, ok := router.Detect(tt.text)
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.tag, tag)
		})
	}
}

func TestParseTag(t *testing.T) {
	tests := map[string]Tag{
		"en":       English,
		"en-US":    English,
		"english":  English,
		"hi_IN":    Hindi,
		"Hindi":    Hindi,
		"hi-en":    Hinglish,
		"hinglish": Hinglish,
	}
	for raw, want := range tests {
		got, ok := ParseTag(raw)
		require.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}

	for _, raw := range []string{"", "fr", "zh-CN"} {
		_, ok := ParseTag(raw)
		assert.False(t, ok, raw)
	}
}

func TestSpeechBackend(t *testing.T) {
	assert.Equal(t, BackendOpenAI, English.SpeechBackend())
	assert.Equal(t, BackendSarvam, Hindi.SpeechBackend())
	assert.Equal(t, BackendSarvam, Hinglish.SpeechBackend())
}
