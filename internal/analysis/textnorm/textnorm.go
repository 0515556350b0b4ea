// Package textnorm turns free text into space-separated word tokens so phrase tables
// can be matched on word boundaries in any script.
package textnorm

import (
	"strings"
	"unicode"
)

var apostrophes = strings.NewReplacer("’", "'", "‘", "'", "`", "'")

// Tokens lower-cases text and splits it into words. Letters, digits, combining marks
// (Devanagari matras) and inner apostrophes are kept; everything else separates words.
func Tokens(text string) []string {
	text = apostrophes.Replace(strings.ToLower(text))

	var (
		tokens  []string
		current strings.Builder
	)
	flush := func() {
		if current.Len() == 0 {
			return
		}
		tokens = append(tokens, strings.Trim(current.String(), "'"))
		current.Reset()
	}

	for _, r := range text {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsMark(r), r == '\'':
			current.WriteRune(r)
		default:
			flush()
		}
	}
	flush()

	out := tokens[:0]
	for _, tok := range tokens {
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// Normalize returns the tokens joined by single spaces and padded with one space on
// each side, ready for ContainsPhrase.
func Normalize(text string) string {
	tokens := Tokens(text)
	if len(tokens) == 0 {
		return ""
	}
	return " " + strings.Join(tokens, " ") + " "
}

// Phrase normalises a table entry the same way as input text, without padding.
func Phrase(p string) string {
	return strings.Join(Tokens(p), " ")
}

// ContainsPhrase reports whether normalized (output of Normalize) contains phrase
// (output of Phrase) on word boundaries.
func ContainsPhrase(normalized, phrase string) bool {
	if normalized == "" || phrase == "" {
		return false
	}
	return strings.Contains(normalized, " "+phrase+" ")
}
