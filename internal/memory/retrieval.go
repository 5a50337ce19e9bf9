// Package memory implements the Long-Term Memory component: similarity ×
// importance retrieval scoped by (user, persona), and background
// extraction of new memories from closed turns.
package memory

import (
	"context"
	"fmt"
	"sort"

	"clone-llm/internal/domain"
	"clone-llm/internal/embedding"
	"clone-llm/internal/repository"
)

// Weights configures the retrieval scoring formula; both are tunable per
// deployment, not hardcoded constants.
type Weights struct {
	Similarity float64
	Importance float64
	Floor      float64
}

// DefaultWeights matches the documented defaults: 0.7 similarity, 0.3
// importance, a 0.15 similarity floor.
var DefaultWeights = Weights{Similarity: 0.7, Importance: 0.3, Floor: 0.15}

// Retriever answers the "what should the prompt composer see" question.
type Retriever struct {
	repo     repository.MemoryRepository
	embedder embedding.Provider
	weights  Weights
}

func NewRetriever(repo repository.MemoryRepository, embedder embedding.Provider, weights Weights) *Retriever {
	return &Retriever{repo: repo, embedder: embedder, weights: weights}
}

// Retrieve returns at most k memories for exactly (userID, personaID),
// ranked by score = similarityWeight*cosine_similarity + importanceWeight*importance,
// filtered by cosine_similarity >= floor, ties broken by recency.
// Persona isolation and the user_id filter are enforced by the repository
// query itself, not re-checked here — but every returned row is asserted
// against the caller's scope as a defense against a repository bug ever
// leaking a memory outside the invariant.
func (r *Retriever) Retrieve(ctx context.Context, userID, personaID, queryText string, k int) ([]domain.ScoredMemory, error) {
	if k <= 0 {
		k = 5
	}
	if personaID == "" {
		return nil, nil
	}

	queryEmbedding, err := r.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// Over-fetch candidates by raw vector distance, then re-rank by the
	// blended score in Go: SQL orders by distance alone, the spec's
	// formula also weighs importance.
	candidates, err := r.repo.Search(ctx, userID, personaID, queryEmbedding, k*4)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}

	floor := r.weights.Floor
	var kept []domain.ScoredMemory
	for _, c := range candidates {
		if c.UserID != userID || c.PersonaID != personaID {
			continue // persona/user isolation invariant, defense in depth
		}
		if c.Similarity < floor {
			continue
		}
		c.Score = r.weights.Similarity*c.Similarity + r.weights.Importance*c.Importance
		kept = append(kept, c)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].CreatedAt.After(kept[j].CreatedAt)
	})

	if len(kept) > k {
		kept = kept[:k]
	}
	return kept, nil
}
