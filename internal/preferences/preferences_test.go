package preferences

import "testing"

func TestExtractRecognizesFormalityAndTone(t *testing.T) {
	e := Extractor{}
	p := e.Extract("Please be more formal from now on")
	if p.Formality != "formal" {
		t.Fatalf("expected formality=formal, got %q", p.Formality)
	}
}

func TestExtractRecognizesEmojiToggle(t *testing.T) {
	e := Extractor{}
	p := e.Extract("Please, no emojis in your replies")
	if p.EmojiUsage == nil || *p.EmojiUsage != false {
		t.Fatalf("expected emoji_usage=false, got %+v", p.EmojiUsage)
	}

	p2 := e.Extract("I love emojis, use more emojis")
	if p2.EmojiUsage == nil || *p2.EmojiUsage != true {
		t.Fatalf("expected emoji_usage=true, got %+v", p2.EmojiUsage)
	}
}

func TestExtractIsSideEffectFreeOnNoMatch(t *testing.T) {
	e := Extractor{}
	p := e.Extract("What's the weather like today?")
	if !p.IsZero() {
		t.Fatalf("expected zero-value patch for unrelated message, got %+v", p)
	}
}

func TestExtractRecognizesResponseLength(t *testing.T) {
	e := Extractor{}
	p := e.Extract("Can you keep it short please")
	if p.ResponseLength != "brief" {
		t.Fatalf("expected response_length=brief, got %q", p.ResponseLength)
	}
}

func TestExtractRecognizesLanguageSwitch(t *testing.T) {
	e := Extractor{}
	p := e.Extract("Please reply in spanish from now on")
	if p.Language != "es" {
		t.Fatalf("expected language=es, got %q", p.Language)
	}
}
