package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"clone-llm/internal/domain"
	"clone-llm/internal/embedding"
	"clone-llm/internal/llm"
	"clone-llm/internal/llmjson"
	"clone-llm/internal/repository"
)

// DedupThreshold is the default cosine-similarity cutoff above which a
// candidate memory is considered a restatement of an existing one and
// dropped rather than persisted.
const DedupThreshold = 0.92

const extractionSystemPrompt = `You extract durable memories from one exchange between a user and an assistant.
Return a JSON object of the form {"memories":[{"kind":"fact|preference|event|context","content":"...","importance":0.0}]}.
Only include things the user stated about themselves, first person, declarative. Importance is 0 to 1.
If nothing durable was said, return {"memories":[]}.`

type candidateMemory struct {
	Kind       string  `json:"kind"`
	Content    string  `json:"content"`
	Importance float64 `json:"importance"`
}

type extractionPayload struct {
	Memories []candidateMemory `json:"memories"`
}

// Extractor turns a closed (user, assistant) turn into zero or more
// persisted Memory rows, deduplicated against the existing corpus. It runs
// off the client's critical path — the orchestrator schedules it on the
// worker pool and never waits on its result.
type Extractor struct {
	repo       repository.MemoryRepository
	embedder   embedding.Provider
	dispatcher llm.Dispatcher
	model      string
	threshold  float64
}

func NewExtractor(repo repository.MemoryRepository, embedder embedding.Provider, dispatcher llm.Dispatcher, model string, threshold float64) *Extractor {
	if threshold <= 0 {
		threshold = DedupThreshold
	}
	return &Extractor{repo: repo, embedder: embedder, dispatcher: dispatcher, model: model, threshold: threshold}
}

// Extract generates candidate memories from one turn, embeds and dedups
// each against NearestByKind, and persists the survivors. A generation or
// parse failure yields zero candidates rather than an error the caller
// must handle — a missed extraction is not worth failing the turn over.
func (e *Extractor) Extract(ctx context.Context, userID, personaID, conversationID, userMessage, assistantMessage string, now time.Time) ([]domain.Memory, error) {
	candidates, err := e.generate(ctx, userMessage, assistantMessage)
	if err != nil || len(candidates) == 0 {
		return nil, err
	}

	var persisted []domain.Memory
	for _, c := range candidates {
		content := strings.TrimSpace(c.Content)
		if content == "" {
			continue
		}
		kind := normalizeKind(c.Kind)
		importance := clamp01(c.Importance)

		vec, err := e.embedder.Embed(ctx, content)
		if err != nil {
			continue
		}

		if existing, found, err := e.repo.NearestByKind(ctx, userID, personaID, kind, vec); err == nil && found {
			if existing.Similarity >= e.threshold {
				continue // restates an existing memory, drop
			}
		}

		m := domain.Memory{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			UserID:         userID,
			PersonaID:      personaID,
			Content:        content,
			Embedding:      vec,
			Kind:           kind,
			Importance:     importance,
			CreatedAt:      now,
		}
		if err := e.repo.Create(ctx, m); err != nil {
			return persisted, fmt.Errorf("persist memory: %w", err)
		}
		persisted = append(persisted, m)
	}
	return persisted, nil
}

func (e *Extractor) generate(ctx context.Context, userMessage, assistantMessage string) ([]candidateMemory, error) {
	messages := []llm.ChatMessage{
		{Role: "system", Content: extractionSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("User: %s\nAssistant: %s", userMessage, assistantMessage)},
	}
	resp, err := e.dispatcher.Chat(ctx, messages, llm.ChatParams{Model: e.model, Temperature: 0})
	if err != nil {
		return nil, nil // generation failure: no candidates, not an extraction-blocking error
	}

	obj := llmjson.CleanAndExtract(resp.Content)
	if obj == "" {
		return nil, nil
	}
	var payload extractionPayload
	if err := json.Unmarshal([]byte(obj), &payload); err != nil {
		return nil, nil
	}
	return payload.Memories, nil
}

func normalizeKind(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case domain.MemoryKindPreference:
		return domain.MemoryKindPreference
	case domain.MemoryKindEvent:
		return domain.MemoryKindEvent
	case domain.MemoryKindContext:
		return domain.MemoryKindContext
	default:
		return domain.MemoryKindFact
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
