package domain

import "time"

// Conversation groups messages and memories under one user and one
// persona. The persona is fixed after the first exchanged message.
type Conversation struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	PersonaID   string    `json:"persona_id,omitempty"`
	Title       string    `json:"title,omitempty"`
	LastSummary string    `json:"last_summary,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
