package language

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/zhouzirui/mana-voice/backend/internal/analysis/textnorm"
)

// Source records which routing step produced a tag.
type Source string

const (
	SourceOverride  Source = "override"
	SourceSTT       Source = "stt"
	SourceHeuristic Source = "heuristic"
	SourceSession   Source = "session"
	SourceFallback  Source = "fallback"
)

// Input gathers every signal available for one turn.
type Input struct {
	// Override is an explicit per-turn choice by the caller. Empty when absent.
	Override Tag
	// STT is the raw language code reported by speech-to-text. Empty for text turns.
	STT string
	// Text is the user utterance (typed or transcribed).
	Text string
	// Session is the session's declared default.
	Session Tag
}

// Resolution is the routing outcome for one turn.
type Resolution struct {
	Tag    Tag    `json:"tag"`
	Source Source `json:"source"`
}

// Router resolves a turn's language. The zero value is not usable; see NewRouter.
type Router struct {
	fallback Tag
	// minRecognizedShare is the fraction of Latin tokens that must appear in one of
	// the word tables before the heuristic is trusted.
	minRecognizedShare float64
	// minHindiShare is the share of recognised tokens that must be transliterated Hindi
	// for a Latin-script utterance to count as code-mixed.
	minHindiShare float64
}

// NewRouter returns a router that falls back to fallback when the session default is
// itself invalid.
func NewRouter(fallback Tag) *Router {
	if !fallback.Valid() {
		fallback = Hindi
	}
	return &Router{
		fallback:           fallback,
		minRecognizedShare: 0.3,
		minHindiShare:      0.25,
	}
}

// Route applies override > STT tag > text heuristics > session default.
func (r *Router) Route(in Input) Resolution {
	if in.Override.Valid() {
		return Resolution{Tag: in.Override, Source: SourceOverride}
	}
	if tag, ok := ParseTag(in.STT); ok {
		return Resolution{Tag: tag, Source: SourceSTT}
	}
	if tag, ok := r.Detect(in.Text); ok {
		return Resolution{Tag: tag, Source: SourceHeuristic}
	}
	if in.Session.Valid() {
		return Resolution{Tag: in.Session, Source: SourceSession}
	}
	return Resolution{Tag: r.fallback, Source: SourceFallback}
}

var codeSwitchPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(yaar|bhai|dude)\b.*\b(is|am|was|the|but|and)\b`),
	regexp.MustCompile(`\b(is|am|was|the|but|and)\b.*\b(yaar|bhai|hai|nahi)\b`),
	regexp.MustCompile(`\b(feel|stressed|anxiety|work)\b.*\b(hai|hoon|raha|rahi)\b`),
	regexp.MustCompile(`\b(bohot|bahut|kuch)\b.*\b(stressed|tired|done|busy)\b`),
}

// Detect guesses the tag from the text alone. ok is false when the text carries too
// little recognisable signal.
func (r *Router) Detect(text string) (Tag, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}

	tokens := textnorm.Tokens(text)
	var devanagari, latin []string
	for _, tok := range tokens {
		switch {
		case hasDevanagari(tok):
			devanagari = append(devanagari, tok)
		case hasLatin(tok):
			latin = append(latin, tok)
		}
	}

	if len(devanagari) > 0 {
		// Mixed scripts are code-mixed regardless of vocabulary.
		if len(latin) > 0 {
			return Hinglish, true
		}
		return Hindi, true
	}
	if len(latin) == 0 {
		return "", false
	}

	lowered := strings.ToLower(text)
	for _, pattern := range codeSwitchPatterns {
		if pattern.MatchString(lowered) {
			return Hinglish, true
		}
	}

	hindiCount := countKnown(latin, hindiWords)
	englishCount := countKnown(latin, englishWords)
	recognized := hindiCount + englishCount
	if float64(recognized)/float64(len(latin)) < r.minRecognizedShare {
		return "", false
	}
	if float64(hindiCount)/float64(recognized) >= r.minHindiShare {
		return Hinglish, true
	}
	return English, true
}

func hasDevanagari(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Devanagari, r) {
			return true
		}
	}
	return false
}

func hasLatin(s string) bool {
	for _, r := range s {
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func countKnown(tokens []string, table map[string]struct{}) int {
	n := 0
	for _, tok := range tokens {
		if _, ok := table[tok]; ok {
			n++
		}
	}
	return n
}

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Transliterated Hindi function and high-frequency words. Entries that are also common
// English words ("main", "to", "me", "hi") are deliberately absent.
var hindiWords = wordSet(
	"hai", "hain", "hoon", "hun", "ho", "tha", "thi", "thay",
	"nahi", "nahin", "nhi", "mat", "na", "haan", "ji",
	"kya", "kyun", "kyon", "kyu", "kaise", "kaisa", "kaisi", "kab", "kahan", "kaun", "kitna", "kitni",
	"kuch", "kuchh", "bahut", "bohot", "bahot", "zyada", "jyada", "thoda", "thodi", "itna", "itni",
	"mujhe", "mujhko", "mera", "meri", "mere", "tera", "teri", "tere", "tum", "tumhe", "tumhara",
	"aap", "aapka", "aapko", "aapki", "hum", "humein", "hamara", "woh", "wo", "voh", "yeh", "ye",
	"isko", "usko", "unko", "unka", "uska", "iska", "apna", "apni", "apne", "khud",
	"mein", "aur", "lekin", "magar", "toh", "bhi", "sab", "sabko", "koi", "kisi", "kyunki", "agar", "phir",
	"abhi", "kal", "aaj", "jab", "tab", "sirf", "saath", "bas", "bilkul",
	"raha", "rahi", "rahe", "gaya", "gayi", "gaye", "karna", "karta", "karti", "karte", "kar", "karo",
	"kiya", "hota", "hoti", "hote", "hua", "hui", "lag", "laga", "lagta", "lagti", "aa", "aaya", "aayi",
	"ja", "jao", "jaana", "jana", "chahiye", "chahta", "chahti", "sakta", "sakti", "sakte", "wala", "wali",
	"ke", "ka", "ki", "ko", "se", "ne", "pe", "tak",
	"yaar", "bhai", "accha", "achha", "acha", "theek", "thik", "sach", "sahi", "galat",
	"samajh", "pata", "baat", "log", "ghar", "kaam", "pyaar", "dost", "zindagi", "dil", "mann",
	"dukh", "khush", "pareshan", "gussa", "dar", "chinta", "akela", "akeli", "udaas", "rona",
	"soch", "sochta", "sochti", "dekho", "dekha", "chalo", "bolo", "suno",
)

var englishWords = wordSet(
	"i", "i'm", "im", "i've", "i'll", "me", "my", "myself", "you", "your", "we", "our", "they", "them",
	"he", "she", "it", "it's", "is", "am", "are", "was", "were", "be", "been", "being",
	"the", "a", "an", "and", "but", "or", "so", "because", "to", "of", "in", "on", "at", "for", "with",
	"about", "from", "into", "not", "no", "don't", "dont", "can't", "cant", "cannot", "won't", "didn't",
	"do", "does", "did", "have", "has", "had", "can", "could", "would", "should", "will",
	"feel", "feeling", "felt", "want", "need", "think", "know", "really", "very", "just", "too",
	"today", "work", "life", "anymore", "what", "why", "how", "when", "where", "who",
	"this", "that", "there", "here", "all", "anything", "nothing", "everything", "something",
	"like", "good", "bad", "sad", "tired", "stressed", "anxious", "angry", "happy", "help",
	"please", "thanks", "thank", "sorry", "okay", "ok", "going", "get", "got", "go",
	"end", "die", "better", "much", "more", "lot", "time", "day", "night", "sleep",
	"people", "friends", "family", "alone", "lonely", "hello", "hi", "hey", "yes", "yeah",
	"if", "then", "than", "out", "up", "down", "again", "still", "always", "never", "even",
	"some", "any", "every", "one", "right", "now", "well", "mind", "worried", "scared",
)
