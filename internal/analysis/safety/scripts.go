package safety

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/mana-voice/backend/internal/analysis/language"
)

// Helpline is a crisis support line listed in every safety script.
type Helpline struct {
	Name   string `json:"name"`
	Number string `json:"number"`
	Hours  string `json:"hours,omitempty"`
}

var helplines = []Helpline{
	{Name: "iCall", Number: "9152987821", Hours: "Mon-Sat, 10am-8pm"},
	{Name: "Vandrevala Foundation", Number: "1860-2662-345", Hours: "24x7"},
	{Name: "iMind", Number: "040-39246955"},
}

// Helplines returns a copy of the helpline table.
func Helplines() []Helpline {
	out := make([]Helpline, len(helplines))
	copy(out, helplines)
	return out
}

func helplineLines() string {
	var b strings.Builder
	for _, h := range helplines {
		b.WriteString("- ")
		b.WriteString(h.Name)
		b.WriteString(": ")
		b.WriteString(h.Number)
		if h.Hours != "" {
			fmt.Fprintf(&b, " (%s)", h.Hours)
		}
		b.WriteString("\n")
	}
	return b.String()
}

var scripts = map[language.Tag]string{
	language.English: "I'm really glad you told me this. What you are feeling matters, and you deserve support right now.\n" +
		"Please reach out to someone who can help you immediately:\n" +
		helplineLines() +
		"If you are in immediate danger, please call 112 or go to the nearest hospital.\n" +
		"I'm here with you. Would you be willing to call one of these numbers right now?",
	language.Hinglish: "Mujhe bahut achha laga ki aapne mujhe yeh bataya. Aap jo mehsoos kar rahe hain woh matter karta hai, aur aapko abhi support milna chahiye.\n" +
		"Please abhi kisi se baat kijiye jo madad kar sake:\n" +
		helplineLines() +
		"Agar aap turant khatre mein hain, toh 112 par call kijiye ya nazdeeki hospital jaiye.\n" +
		"Main yahan aapke saath hoon. Kya aap abhi inmein se kisi number par call kar sakte hain?",
	language.Hindi: "मुझे अच्छा लगा कि आपने मुझे यह बताया। आप जो महसूस कर रहे हैं वह मायने रखता है, और आपको अभी सहारा मिलना चाहिए।\n" +
		"कृपया अभी किसी ऐसे व्यक्ति से बात करें जो मदद कर सके:\n" +
		helplineLines() +
		"अगर आप तुरंत खतरे में हैं, तो 112 पर कॉल करें या नज़दीकी अस्पताल जाएँ।\n" +
		"मैं यहाँ आपके साथ हूँ। क्या आप अभी इनमें से किसी नंबर पर कॉल कर सकते हैं?",
}

// Script returns the fixed crisis reply for the resolved language. Unknown tags get the
// English script.
func Script(tag language.Tag) string {
	if s, ok := scripts[tag]; ok {
		return s
	}
	return scripts[language.English]
}

// WarningNote is appended to the model's system prompt on warning-level turns.
func WarningNote(tag language.Tag) string {
	var b strings.Builder
	b.WriteString("SAFETY NOTE: the user shows signs of hopelessness. Stay warm and validating, ")
	b.WriteString("do not lecture, and gently mention that trained counsellors are available:\n")
	for _, h := range helplines[:2] {
		fmt.Fprintf(&b, "- %s: %s\n", h.Name, h.Number)
	}
	fmt.Fprintf(&b, "Mention them in %s.", tag.Name())
	return b.String()
}
