// Package preferences recognizes communication-preference statements in a
// user message and turns them into a partial domain.Preferences patch. It
// is pattern-based, not LLM-based, so a message with no recognizable
// preference signal produces a zero-value patch rather than a call that
// could fail.
package preferences

import (
	"strings"

	"clone-llm/internal/domain"
)

// Extractor recognizes preference statements. A zero value is ready to
// use; it holds no state between calls.
type Extractor struct{}

// Extract scans message for preference-setting language and returns a
// patch suitable for domain.Preferences.Merge. Fields the message says
// nothing about are left at their zero value. Extract never errors: a
// message with no recognizable signal yields patch.IsZero() == true.
func (Extractor) Extract(message string) domain.Preferences {
	norm := normalize(message)

	var patch domain.Preferences

	switch {
	case containsAny(norm, []string{"be more formal", "speak formally", "more professional", "use formal language"}):
		patch.Formality = domain.FormalityFormal
	case containsAny(norm, []string{"be casual", "talk casually", "relax the tone", "informal"}):
		patch.Formality = domain.FormalityCasual
	case containsAny(norm, []string{"keep it professional", "professional tone"}):
		patch.Formality = domain.FormalityProfessional
	}

	switch {
	case containsAny(norm, []string{"be more enthusiastic", "sound excited", "more upbeat"}):
		patch.Tone = domain.ToneEnthusiastic
	case containsAny(norm, []string{"stay calm", "calmer tone", "keep it calm"}):
		patch.Tone = domain.ToneCalm
	case containsAny(norm, []string{"be friendlier", "sound friendlier", "more friendly"}):
		patch.Tone = domain.ToneFriendly
	case containsAny(norm, []string{"be neutral", "neutral tone", "stop being so emotional"}):
		patch.Tone = domain.ToneNeutral
	}

	switch {
	case containsAny(norm, []string{"no emojis", "stop using emojis", "don't use emojis", "skip the emojis"}):
		f := false
		patch.EmojiUsage = &f
	case containsAny(norm, []string{"use emojis", "add emojis", "more emojis", "love emojis"}):
		t := true
		patch.EmojiUsage = &t
	}

	switch {
	case containsAny(norm, []string{"keep it short", "be brief", "shorter answers", "less verbose", "too long"}):
		patch.ResponseLength = domain.ResponseLengthBrief
	case containsAny(norm, []string{"more detail", "go deeper", "be thorough", "longer answers", "more detailed"}):
		patch.ResponseLength = domain.ResponseLengthDetailed
	case containsAny(norm, []string{"balanced answers", "not too short not too long"}):
		patch.ResponseLength = domain.ResponseLengthBalanced
	}

	switch {
	case containsAny(norm, []string{"explain like i'm five", "explain simply", "keep it simple", "in simple terms"}):
		patch.ExplanationStyle = domain.ExplanationSimple
	case containsAny(norm, []string{"be more technical", "technical explanation", "give me the technical details"}):
		patch.ExplanationStyle = domain.ExplanationTechnical
	case containsAny(norm, []string{"use an analogy", "explain with analogies", "give me an analogy"}):
		patch.ExplanationStyle = domain.ExplanationAnalogies
	}

	if lang, ok := detectLanguageSwitch(norm); ok {
		patch.Language = lang
	}

	return patch
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

var languageSwitchPhrases = map[string]string{
	"speak to me in spanish":  "es",
	"reply in spanish":        "es",
	"switch to spanish":       "es",
	"speak to me in french":   "fr",
	"reply in french":         "fr",
	"switch to french":        "fr",
	"speak to me in english":  "en",
	"reply in english":        "en",
	"switch to english":       "en",
	"speak to me in german":   "de",
	"reply in german":         "de",
	"switch to german":        "de",
	"speak to me in portuguese": "pt",
	"reply in portuguese":       "pt",
	"switch to portuguese":      "pt",
}

func detectLanguageSwitch(norm string) (string, bool) {
	for phrase, code := range languageSwitchPhrases {
		if strings.Contains(norm, phrase) {
			return code, true
		}
	}
	return "", false
}
