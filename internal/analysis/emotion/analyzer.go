package emotion

import (
	"strings"

	"github.com/zhouzirui/mana-voice/backend/internal/analysis/safety"
	"github.com/zhouzirui/mana-voice/backend/internal/analysis/textnorm"
)

// Label is the closed set of emotions attached to user turns.
type Label string

const (
	Neutral    Label = "neutral"
	Anxious    Label = "anxious"
	Sad        Label = "sad"
	Angry      Label = "angry"
	Frustrated Label = "frustrated"
	Positive   Label = "positive"
	Crisis     Label = "crisis"
)

// Labels lists every label in tie-break priority order, highest first.
var Labels = []Label{Crisis, Angry, Anxious, Sad, Frustrated, Positive, Neutral}

// Valid reports whether l belongs to the closed set.
func (l Label) Valid() bool {
	for _, known := range Labels {
		if l == known {
			return true
		}
	}
	return false
}

// Distressed reports whether l is one of the heavy labels used by trajectory notes.
func (l Label) Distressed() bool {
	return l == Sad || l == Anxious
}

// Decision explains a classification.
type Decision struct {
	Label   Label    `json:"label"`
	Score   int      `json:"score"`
	Matched []string `json:"matched,omitempty"`
}

const (
	keywordWeight  = 3
	momentumWeight = 1
	momentumWindow = 3
)

var rawBuckets = map[Label][]string{
	Anxious: {
		"worried", "worry", "anxious", "anxiety", "nervous", "panic", "panicking", "overthinking",
		"can't stop thinking", "scared", "afraid", "tension", "thinking too much",
		"dar", "dar lag raha", "ghabra", "ghabrahat", "chinta", "bohot tension", "bahut tension",
		"डर", "घबराहट", "चिंता", "टेंशन",
	},
	Sad: {
		"sad", "lonely", "alone", "crying", "cry", "depressed", "hopeless", "empty", "lost", "miss",
		"grief", "heartbroken", "dukhi", "udaas", "akela", "akeli", "rona", "aansu", "kuch nahi hoga",
		"bohot bura", "mann nahi", "tanha",
		"दुखी", "उदास", "अकेला", "अकेली", "रोना", "आंसू", "आँसू",
	},
	Angry: {
		"angry", "furious", "hate", "sick of", "fed up", "pissed", "mad at", "annoyed",
		"gussa", "nafrat", "tang aa gaya", "tang aa gayi", "bardasht nahi", "chid",
		"गुस्सा", "नफरत", "नफ़रत",
	},
	Frustrated: {
		"stuck", "overwhelmed", "can't do this", "nothing works", "frustrated", "burnout", "burnt out",
		"exhausted", "giving up", "thak gaya", "thak gayi", "kuch nahi ho raha", "haar", "majboor",
		"pareshan",
		"परेशान", "थक गया", "थक गई", "मजबूर",
	},
	Positive: {
		"better", "good", "happy", "hopeful", "grateful", "thank", "thanks", "relieved", "calm",
		"peaceful", "achha", "accha", "behtar", "khushi", "khush", "shukriya", "theek", "achha lag raha",
		"अच्छा", "बेहतर", "खुश", "शुक्रिया",
	},
}

// keywordBuckets holds every table normalised once at start-up. The crisis bucket is the
// crisis scanner's own table so both layers agree on what crisis language is.
var keywordBuckets = buildBuckets()

func buildBuckets() map[Label][]string {
	buckets := make(map[Label][]string, len(rawBuckets)+1)
	for label, words := range rawBuckets {
		for _, w := range words {
			if norm := textnorm.Phrase(w); norm != "" {
				buckets[label] = append(buckets[label], norm)
			}
		}
	}
	buckets[Crisis] = safety.CrisisPhrases()
	return buckets
}

// Classify returns exactly one label for text. history holds the labels of earlier user
// turns, oldest first; it only nudges labels that already scored on the current text.
func Classify(text string, history []Label) Label {
	return Analyze(text, history).Label
}

// Analyze scores text against every bucket and resolves ties by priority.
func Analyze(text string, history []Label) Decision {
	scores, matched := score(text)
	if scores[Crisis] > 0 {
		// Crisis language wins outright, whatever else scored.
		return Decision{Label: Crisis, Score: scores[Crisis], Matched: matched[Crisis]}
	}

	if len(history) > 0 {
		start := len(history) - momentumWindow
		if start < 0 {
			start = 0
		}
		for _, past := range history[start:] {
			if scores[past] > 0 {
				scores[past] += momentumWeight
			}
		}
	}

	best := Neutral
	bestScore := 0
	for _, label := range Labels {
		if scores[label] > bestScore {
			best = label
			bestScore = scores[label]
		}
	}
	if bestScore == 0 {
		return Decision{Label: Neutral}
	}
	return Decision{Label: best, Score: bestScore, Matched: matched[best]}
}

// Score is Analyze without history.
func Score(text string) Decision {
	return Analyze(text, nil)
}

func score(text string) (map[Label]int, map[Label][]string) {
	scores := make(map[Label]int)
	matched := make(map[Label][]string)

	normalized := textnorm.Normalize(text)
	if normalized == "" {
		return scores, matched
	}

	for label, phrases := range keywordBuckets {
		for _, phrase := range phrases {
			if !textnorm.ContainsPhrase(normalized, phrase) {
				continue
			}
			if label == Positive && !affirmed(normalized, phrase) {
				continue
			}
			scores[label] += keywordWeight
			matched[label] = append(matched[label], phrase)
		}
	}
	return scores, matched
}

// negators flip a positive phrase when they appear up to negationWindow tokens before it.
var negators = map[string]struct{}{
	"not": {}, "never": {}, "don't": {}, "dont": {}, "isn't": {}, "isnt": {}, "wasn't": {},
	"wasnt": {}, "aren't": {}, "can't": {}, "cant": {}, "nahi": {}, "nahin": {}, "nhi": {},
	"na": {}, "mat": {}, "नहीं": {}, "ना": {},
}

// trailingNegators negate the phrase right before them, as in "theek nahi".
var trailingNegators = map[string]struct{}{
	"nahi": {}, "nahin": {}, "nhi": {}, "नहीं": {},
}

const negationWindow = 2

// affirmed reports whether at least one occurrence of phrase in normalized is free of
// a nearby negator.
func affirmed(normalized, phrase string) bool {
	needle := " " + phrase + " "
	for offset := 0; ; {
		i := strings.Index(normalized[offset:], needle)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(needle) - 1
		if !isNegated(strings.Fields(normalized[:start+1]), strings.Fields(normalized[end:])) {
			return true
		}
		offset = end
	}
}

func isNegated(before, after []string) bool {
	from := len(before) - negationWindow
	if from < 0 {
		from = 0
	}
	for _, tok := range before[from:] {
		if _, ok := negators[tok]; ok {
			return true
		}
	}
	if len(after) > 0 {
		if _, ok := trailingNegators[after[0]]; ok {
			return true
		}
	}
	return false
}
