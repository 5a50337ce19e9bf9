package domain

import "time"

// User is lazily created on first authenticated request; it has no
// password or credential fields because authentication is an external
// collaborator to this service.
type User struct {
	ID           string         `json:"id"`
	ExternalID   string         `json:"external_id"`
	DisplayName  string         `json:"display_name,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	LastActiveAt time.Time      `json:"last_active_at"`
}

// Preferences are communication preferences merged from natural-language
// detection. Zero-value fields mean "unset", not "default", so merging
// never clobbers a previously detected value with an empty one.
type Preferences struct {
	Language         string    `json:"language,omitempty"`
	Formality        string    `json:"formality,omitempty"`         // casual | formal | professional
	Tone             string    `json:"tone,omitempty"`              // enthusiastic | calm | friendly | neutral
	EmojiUsage       *bool     `json:"emoji_usage,omitempty"`
	ResponseLength   string    `json:"response_length,omitempty"`   // brief | balanced | detailed
	ExplanationStyle string    `json:"explanation_style,omitempty"` // simple | technical | analogies
	LastUpdated      time.Time `json:"last_updated"`
}

const (
	FormalityCasual       = "casual"
	FormalityFormal       = "formal"
	FormalityProfessional = "professional"

	ToneEnthusiastic = "enthusiastic"
	ToneCalm         = "calm"
	ToneFriendly     = "friendly"
	ToneNeutral      = "neutral"

	ResponseLengthBrief    = "brief"
	ResponseLengthBalanced = "balanced"
	ResponseLengthDetailed = "detailed"

	ExplanationSimple    = "simple"
	ExplanationTechnical = "technical"
	ExplanationAnalogies = "analogies"
)

// Merge applies the non-zero fields of patch onto p, returning a new
// record stamped with now. The zero value of p is a valid starting point
// (a user with no preferences yet).
func (p Preferences) Merge(patch Preferences, now time.Time) Preferences {
	merged := p
	if patch.Language != "" {
		merged.Language = patch.Language
	}
	if patch.Formality != "" {
		merged.Formality = patch.Formality
	}
	if patch.Tone != "" {
		merged.Tone = patch.Tone
	}
	if patch.EmojiUsage != nil {
		merged.EmojiUsage = patch.EmojiUsage
	}
	if patch.ResponseLength != "" {
		merged.ResponseLength = patch.ResponseLength
	}
	if patch.ExplanationStyle != "" {
		merged.ExplanationStyle = patch.ExplanationStyle
	}
	merged.LastUpdated = now
	return merged
}

// IsZero reports whether no preference field has ever been set.
func (p Preferences) IsZero() bool {
	return p.Language == "" && p.Formality == "" && p.Tone == "" &&
		p.EmojiUsage == nil && p.ResponseLength == "" && p.ExplanationStyle == ""
}
