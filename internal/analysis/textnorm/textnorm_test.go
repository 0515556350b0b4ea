package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokens(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"punctuation splits", "I can't, really... go on!", []string{"i", "can't", "really", "go", "on"}},
		{"curly apostrophe folded", "I don’t want", []string{"i", "don't", "want"}},
		{"hyphen splits", "self-harm", []string{"self", "harm"}},
		{"devanagari keeps matras", "मैं जीना नहीं चाहता।", []string{"मैं", "जीना", "नहीं", "चाहता"}},
		{"empty", "  ...  ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokens(tt.in)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContainsPhraseRespectsWordBoundaries(t *testing.T) {
	norm := Normalize("The weekend it all went fine")
	assert.False(t, ContainsPhrase(norm, Phrase("end it all")))
	assert.True(t, ContainsPhrase(norm, Phrase("weekend")))

	norm = Normalize("I just want to END IT ALL.")
	assert.True(t, ContainsPhrase(norm, Phrase("end it all")))
}

func TestContainsPhraseEmpty(t *testing.T) {
	assert.False(t, ContainsPhrase("", "x"))
	assert.False(t, ContainsPhrase(" x ", ""))
}
