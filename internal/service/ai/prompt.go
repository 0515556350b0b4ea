package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/mana-voice/backend/internal/analysis/language"
	"github.com/zhouzirui/mana-voice/backend/internal/analysis/safety"
	"github.com/zhouzirui/mana-voice/backend/internal/model/session"
)

// BotName is the companion's name in every script.
const BotName = "Mana"

const basePrompt = `You are Mana, a warm and empathetic voice companion offering first-line emotional support.
You are NOT a therapist, counsellor or medical professional. You are a caring, non-judgmental listener
who helps working adults process everyday stress, anxiety, loneliness and burnout.
You speak English, Hindi and Hinglish (code-mixed Hindi and English).

Every reply follows VARA. Parts may blend naturally but all four must be present:
- Validate: acknowledge the feeling without judgment.
- Ask: ask ONE focused follow-up question.
- Reflect: mirror back the key themes you heard.
- Advance: gently offer one small next step, or offer to keep listening.

Tone:
- Sound like a caring friend, not a doctor or a chatbot. Use contractions in English, casual forms in Hindi.
- Be curious, not interrogating. Be supportive, not prescriptive ("some people find..." rather than "you should...").
- Be honest rather than falsely positive.
- Keep replies SHORT: two or three sentences, because they are spoken aloud.

Coping ideas you may offer when it fits: box breathing (4-4-4-4), 5-4-3-2-1 grounding,
a journaling question, a ten-minute walk, one small task, reaching out to a friend or family member.

Edge cases:
- One-word replies ("okay", "fine", "theek hai", "pata nahi"): do not repeat the same question; explore what
  "fine" feels like today. After three one-word answers switch to gentle reflections.
- Exhausted users ("nothing helps", "kuch nahi hoga"): validate only, no solutions, no forced positivity.
- Angry users: never defensive, never over-apologetic. After two hostile replies gently offer a break.
- Topic switches: never force the user back; acknowledge the connection.

Hard limits:
1. Never claim to be a therapist or professional. Never diagnose.
2. Never recommend, discuss or ask about medication or treatment. Never ask clinical questions.
3. Never minimise feelings or use manipulative language to extend the conversation.
4. Never withhold crisis resources when safety signals appear, and never discourage professional help.
5. Encourage real-world connection, and end with warmth and an open door.`

var openingScripts = map[language.Tag]string{
	language.English: "Hi there! I'm " + BotName + ", your friendly companion for a moment of calm. " +
		"I'm here to listen, not judge. Is it okay if we talk for a bit?",
	language.Hindi: "Namaste! Main " + BotName + " hoon, aapki baat sunne ke liye yahan hoon. " +
		"Koi judgment nahi, bas sunna. Kya hum thodi der baat kar sakte hain?",
	language.Hinglish: "Hey! Main " + BotName + " hoon. I'm here to listen, koi judgment nahi. " +
		"Kya aap thoda share karna chahenge?",
}

// OpeningScript returns the session greeting for tag. Unknown tags get English.
func OpeningScript(tag language.Tag) string {
	if s, ok := openingScripts[tag]; ok {
		return s
	}
	return openingScripts[language.English]
}

func languageInstruction(tag language.Tag) string {
	switch tag {
	case language.Hindi:
		return "The user is speaking Hindi. Reply in simple, warm Hindi. Romanized Hindi is fine when the user writes that way."
	case language.Hinglish:
		return "The user is mixing Hindi and English. Reply in the same natural Hinglish, in Roman script."
	default:
		return "The user is speaking English. Reply in warm, conversational English with natural contractions."
	}
}

// buildSystemPrompt assembles the per-turn system message.
func buildSystemPrompt(req Request) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	b.WriteString("\n\n# LANGUAGE\n")
	b.WriteString(languageInstruction(req.Language))

	b.WriteString("\n\n# SESSION CONTEXT\n")
	b.WriteString(contextSummary(req))

	if g := req.Guidance; g != nil && g.Style != "" {
		b.WriteString("\n\n# TONE FOR THIS TURN\n")
		b.WriteString(g.Style)
	}

	if req.Warning {
		b.WriteString("\n\n")
		b.WriteString(safety.WarningNote(req.Language))
	}

	if req.FirstTurn {
		b.WriteString("\n\nThis is the user's first message. You have already greeted them; do not jump straight into heavy questions.")
	}
	return b.String()
}

func contextSummary(req Request) string {
	userTurns, crisis := 0, false
	for _, t := range req.History {
		if t.Role != session.RoleUser {
			continue
		}
		userTurns++
		crisis = crisis || t.Crisis
	}

	parts := []string{
		fmt.Sprintf("Earlier user turns: %d.", userTurns),
		fmt.Sprintf("Detected emotion now: %s.", req.Emotion),
	}
	if g := req.Guidance; g != nil && g.TrajectoryNote != "" {
		parts = append(parts, "Trend: "+g.TrajectoryNote+".")
	}
	if crisis {
		parts = append(parts, "Safety keywords were detected earlier in this session; keep helpline resources in mind.")
	}
	return strings.Join(parts, " ")
}
