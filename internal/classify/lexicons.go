package classify

var sexualContextLexicon = []string{
	"sex", "sexual", "naked", "nude", "fuck", "fucking", "horny", "kiss",
	"make out", "bed", "bedroom", "touch me", "turn me on",
}

var minorAgeLexicon = []string{
	"minor", "teen", "teenager", "high school", "middle school", "underage",
	"13 years old", "14 years old", "15 years old", "16 years old", "17 years old",
	"i'm 13", "i'm 14", "i'm 15", "i'm 16", "i'm 17", "im 13", "im 14", "im 15", "im 16", "im 17",
}

var nonConsentLexicon = []string{
	"forced", "force me", "against my will", "without consent", "non-consensual",
	"nonconsensual", "can't say no", "cant say no", "make her", "make him", "resist",
}

var explicitLexicon = []string{
	"sex", "have sex", "sex with you", "fuck", "fucking", "cock", "dick",
	"pussy", "vagina", "penis", "cum", "orgasm", "blowjob", "handjob",
	"anal", "fuck you", "make love", "thrust", "moan",
}

var fetishLexicon = []string{
	"bondage", "bdsm", "spank", "dominatrix", "submissive", "latex",
	"foot fetish", "choke me", "collar and leash", "roleplay as a pet",
}

var clinicalLexicon = []string{
	"doctor", "physician", "symptom", "diagnosis", "medical", "clinic",
	"std test", "sti test", "biopsy", "gynecologist", "urologist",
}

var suggestiveLexicon = []string{
	"flirt", "cute", "wink", "crush", "you're hot", "youre hot", "tease",
	"date night", "romantic", "cuddle",
}
