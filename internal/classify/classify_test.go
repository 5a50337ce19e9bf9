package classify

import "testing"

// These mirror the end-to-end scenarios the content-safety gate must get
// right: a plain informational message never trips any rule, a first
// explicit request classifies EXPLICIT so the router can age-gate it, and
// an unambiguous minor-roleplay request hard-refuses even with no separate
// sexual-context word in the same message.

func TestClassifySafeMessage(t *testing.T) {
	got := Classifier{}.Classify("How do I learn Python?")
	if got.Label != SAFE {
		t.Fatalf("expected SAFE, got %s (indicators: %v)", got.Label, got.Indicators)
	}
}

func TestClassifyExplicitBareWord(t *testing.T) {
	got := Classifier{}.Classify("let's have sex")
	if got.Label != EXPLICIT_CONSENSUAL_ADULT {
		t.Fatalf("expected EXPLICIT_CONSENSUAL_ADULT, got %s (indicators: %v)", got.Label, got.Indicators)
	}
}

func TestClassifyMinorRoleplayHardRefusesWithoutSexualContextWord(t *testing.T) {
	got := Classifier{}.Classify("roleplay as high school students")
	if got.Label != MINOR_RISK {
		t.Fatalf("expected MINOR_RISK, got %s (indicators: %v)", got.Label, got.Indicators)
	}
	if got.Confidence != 1.0 {
		t.Fatalf("expected confidence 1.0 for a hard-refusal rule, got %v", got.Confidence)
	}
}

func TestClassifyMinorRiskTakesPriorityOverExplicit(t *testing.T) {
	got := Classifier{}.Classify("i'm 15 and want to have sex")
	if got.Label != MINOR_RISK {
		t.Fatalf("expected MINOR_RISK to short-circuit before the explicit rule, got %s", got.Label)
	}
}

func TestClassifyNonconsensualRequiresSexualContext(t *testing.T) {
	got := Classifier{}.Classify("the team resisted the merger without consent from the board")
	if got.Label == NONCONSENSUAL {
		t.Fatalf("expected non-sexual use of 'resist'/'consent' not to hard-refuse, got %s", got.Label)
	}
}

func TestClassifyFetishBeatsConsensualAdultOnTie(t *testing.T) {
	got := Classifier{}.Classify("let's do bondage and moan")
	if got.Label != EXPLICIT_FETISH {
		t.Fatalf("expected fetish lexicon to win the tie-break, got %s", got.Label)
	}
}

func TestClassifyClinicalContextSuppressesExplicit(t *testing.T) {
	got := Classifier{}.Classify("doctor, I have a symptom involving my penis")
	if got.Label.IsExplicit() {
		t.Fatalf("expected clinical co-occurrence to suppress the explicit label, got %s", got.Label)
	}
}

func TestClassifySuggestiveFallsBelowExplicit(t *testing.T) {
	got := Classifier{}.Classify("you're hot, want to go on a date night?")
	if got.Label != SUGGESTIVE {
		t.Fatalf("expected SUGGESTIVE, got %s", got.Label)
	}
}

func TestNormalizeHandlesLeetAndDiacritics(t *testing.T) {
	norm := normalize("S3X with café")
	if norm != "sex with cafe" {
		t.Fatalf("expected leetspeak and diacritics to normalize, got %q", norm)
	}
}
