// Package safety screens user utterances for crisis language and holds the fixed
// safety scripts that replace model output when it is found.
package safety

import (
	"github.com/zhouzirui/mana-voice/backend/internal/analysis/language"
	"github.com/zhouzirui/mana-voice/backend/internal/analysis/textnorm"
)

// Level grades a verdict.
type Level string

const (
	LevelNone    Level = "none"
	LevelWarning Level = "warning"
	LevelCrisis  Level = "crisis"
)

// Verdict is the outcome of scanning one utterance.
type Verdict struct {
	Crisis bool  `json:"crisis"`
	Level  Level `json:"level"`
	// Matched is the table phrase that fired, empty when nothing matched.
	Matched string `json:"matched,omitempty"`
	// List is the language of the table the phrase came from.
	List language.Tag `json:"list,omitempty"`
}

type phraseTable struct {
	lang    language.Tag
	phrases []string
}

func compile(lang language.Tag, raw []string) phraseTable {
	table := phraseTable{lang: lang, phrases: make([]string, 0, len(raw))}
	for _, p := range raw {
		if norm := textnorm.Phrase(p); norm != "" {
			table.phrases = append(table.phrases, norm)
		}
	}
	return table
}

func (t phraseTable) match(normalized string) (string, bool) {
	for _, phrase := range t.phrases {
		if textnorm.ContainsPhrase(normalized, phrase) {
			return phrase, true
		}
	}
	return "", false
}

var (
	crisisTables = []phraseTable{
		compile(language.English, crisisEnglish),
		compile(language.Hindi, crisisHindi),
	}
	warningTables = []phraseTable{
		compile(language.English, warningEnglish),
		compile(language.Hindi, warningHindi),
	}
)

// Scan checks text against the crisis tables of both languages, then the warning
// tables. hint only decides which language's table is consulted first so the reported
// evidence prefers the expected language; it never skips a table.
func Scan(text string, hint language.Tag) Verdict {
	normalized := textnorm.Normalize(text)
	if normalized == "" {
		return Verdict{Level: LevelNone}
	}

	for _, table := range ordered(crisisTables, hint) {
		if phrase, ok := table.match(normalized); ok {
			return Verdict{Crisis: true, Level: LevelCrisis, Matched: phrase, List: table.lang}
		}
	}
	for _, table := range ordered(warningTables, hint) {
		if phrase, ok := table.match(normalized); ok {
			return Verdict{Level: LevelWarning, Matched: phrase, List: table.lang}
		}
	}
	return Verdict{Level: LevelNone}
}

func ordered(tables []phraseTable, hint language.Tag) []phraseTable {
	if !hint.UsesHindiScripts() {
		return tables
	}
	out := make([]phraseTable, 0, len(tables))
	for _, t := range tables {
		if t.lang == language.Hindi {
			out = append(out, t)
		}
	}
	for _, t := range tables {
		if t.lang != language.Hindi {
			out = append(out, t)
		}
	}
	return out
}

// CrisisPhrases returns the normalised crisis phrases of both languages.
func CrisisPhrases() []string {
	var out []string
	for _, table := range crisisTables {
		out = append(out, table.phrases...)
	}
	return out
}
