package domain

import (
	"time"

	pgvector "github.com/pgvector/pgvector-go"
)

const (
	MemoryKindFact       = "fact"
	MemoryKindPreference = "preference"
	MemoryKindEvent      = "event"
	MemoryKindContext    = "context"
)

// Memory is a durable, never-mutated fact about a user within one
// persona's memory universe. Superseding a memory means inserting a new
// row, not updating this one.
type Memory struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	UserID         string          `json:"user_id"` // denormalized for the authorization filter
	PersonaID      string          `json:"persona_id,omitempty"`
	Content        string          `json:"content"`
	Embedding      pgvector.Vector `json:"-"`
	Kind           string          `json:"kind"`
	Importance     float64         `json:"importance"` // [0,1]
	Metadata       map[string]any  `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ScoredMemory pairs a retrieved Memory with its blended retrieval score.
type ScoredMemory struct {
	Memory
	Similarity float64 `json:"similarity"`
	Score      float64 `json:"score"`
}

// AuditEntry is an append-only record of one classification decision.
type AuditEntry struct {
	Timestamp      time.Time `json:"timestamp"`
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	Label          string    `json:"label"`
	Confidence     float64   `json:"confidence"`
	Indicators     []string  `json:"indicators"`
	Route          Route     `json:"route"`
	Action         string    `json:"action"` // generate | refuse | age_verify
	MessageDigest  string    `json:"message_digest"`
}

const (
	AuditActionGenerate  = "generate"
	AuditActionRefuse    = "refuse"
	AuditActionAgeVerify = "age_verify"
)
