package safety

// Crisis phrases: explicit suicidal ideation, self-harm or a stated plan. A single hit
// forces the safety script.
var crisisEnglish = []string{
	"kill myself", "killing myself", "want to die", "wanna die", "end my life", "end it all",
	"suicide", "suicidal", "self harm", "self-harm", "hurt myself", "hurting myself",
	"cut myself", "cutting myself", "no reason to live", "better off dead",
	"don't want to be alive", "can't go on", "nothing left to live for",
	"wish i was dead", "wish i were dead", "want to disappear", "not worth living",
	"wrote a note", "written a note", "saying goodbye", "giving away my things",
	"have a plan", "know how to end it", "wouldn't mind dying", "hope i don't wake up",
	"if i didn't exist", "world without me", "take my own life", "overdose",
}

var crisisHindi = []string{
	// Romanised.
	"khud ko hurt karna", "khud ko maarna", "khud ko marna", "khudkushi", "aatmhatya", "atmahatya",
	"suicide karna", "mar jaana chahta", "mar jaana chahti", "mar jana chahta", "mar jana chahti",
	"jeena nahi chahta", "jeena nahi chahti", "jina nahi chahta", "jina nahi chahti",
	"sab khatam karna hai", "sab khatam kar dena", "koi faayda nahi", "koi fayda nahi",
	"jeene ka mann nahi", "jine ka mann nahi", "zindagi se tang", "zindagi se thak gaya",
	"zindagi se thak gayi", "plan banaya hai", "soch liya hai", "faisla kar liya",
	"life end karna", "khud ko khatam", "apne aap ko hurt", "apni life khatam",
	"mujhe nahi jeena", "main nahi reh sakta", "main nahi reh sakti",
	// Devanagari.
	"आत्महत्या", "खुदकुशी", "ख़ुदकुशी", "खुद को मारना", "ख़ुद को मारना", "मर जाना चाहता", "मर जाना चाहती",
	"जीना नहीं चाहता", "जीना नहीं चाहती", "सब खत्म कर", "सब ख़त्म कर", "अपनी जान ले",
	"जीने का मन नहीं", "मुझे नहीं जीना", "खुद को खत्म",
}

// Warning phrases: passive hopelessness. They do not trigger the script but make the
// reply mention helplines.
var warningEnglish = []string{
	"don't want to be here", "can't take it anymore", "so done with everything",
	"tired of living", "nothing matters", "what's the point", "nobody cares",
	"no one would miss me", "burden to everyone", "done with life", "give up on everything",
}

var warningHindi = []string{
	"thak gaya hoon sab se", "thak gayi hoon sab se", "kuch nahi hoga", "kisi ko fark nahi padta",
	"sab bekar hai", "main bojh hoon", "haar maan li", "haar man li", "koi matlab nahi",
	"khatam ho gaya sab",
	"कुछ नहीं होगा", "किसी को फर्क नहीं पड़ता", "सब बेकार है", "मैं बोझ हूँ", "हार मान ली",
}
