package memory

import (
	"context"
	"testing"
	"time"

	pgvector "github.com/pgvector/pgvector-go"

	"clone-llm/internal/domain"
)

type fakeMemoryRepo struct {
	searchResult []domain.ScoredMemory
	nearest      domain.ScoredMemory
	nearestFound bool
	created      []domain.Memory
}

func (f *fakeMemoryRepo) Create(_ context.Context, m domain.Memory) error {
	f.created = append(f.created, m)
	return nil
}

func (f *fakeMemoryRepo) Search(_ context.Context, _, _ string, _ pgvector.Vector, _ int) ([]domain.ScoredMemory, error) {
	return f.searchResult, nil
}

func (f *fakeMemoryRepo) NearestByKind(_ context.Context, _, _, _ string, _ pgvector.Vector) (domain.ScoredMemory, bool, error) {
	return f.nearest, f.nearestFound, nil
}

func (f *fakeMemoryRepo) DeleteByConversation(_ context.Context, _, _ string) error { return nil }

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, _ string) (pgvector.Vector, error) {
	return pgvector.NewVector(make([]float32, 4)), nil
}

func scoredMem(id string, userID, personaID string, similarity, importance float64, createdAt time.Time) domain.ScoredMemory {
	return domain.ScoredMemory{
		Memory: domain.Memory{
			ID:        id,
			UserID:    userID,
			PersonaID: personaID,
			Content:   "content-" + id,
			CreatedAt: createdAt,
		},
		Similarity: similarity,
		Importance: importance,
	}
}

func TestRetrieveFiltersBelowFloorAndRanksByBlendedScore(t *testing.T) {
	now := time.Now()
	repo := &fakeMemoryRepo{searchResult: []domain.ScoredMemory{
		scoredMem("below-floor", "u1", "p1", 0.10, 1.0, now),
		scoredMem("low-score", "u1", "p1", 0.20, 0.1, now.Add(-time.Hour)),
		scoredMem("high-score", "u1", "p1", 0.90, 0.9, now.Add(-2*time.Hour)),
	}}
	r := NewRetriever(repo, fakeEmbedder{}, DefaultWeights)

	got, err := r.Retrieve(context.Background(), "u1", "p1", "query", 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results above the floor, got %d", len(got))
	}
	if got[0].ID != "high-score" {
		t.Fatalf("expected high-score first, got %s", got[0].ID)
	}
}

func TestRetrieveEnforcesPersonaIsolation(t *testing.T) {
	repo := &fakeMemoryRepo{searchResult: []domain.ScoredMemory{
		scoredMem("wrong-persona", "u1", "other-persona", 0.99, 1.0, time.Now()),
	}}
	r := NewRetriever(repo, fakeEmbedder{}, DefaultWeights)

	got, err := r.Retrieve(context.Background(), "u1", "p1", "query", 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected cross-persona memory to be filtered out, got %d results", len(got))
	}
}

func TestRetrieveTiesBreakByRecency(t *testing.T) {
	now := time.Now()
	repo := &fakeMemoryRepo{searchResult: []domain.ScoredMemory{
		scoredMem("older", "u1", "p1", 0.5, 0.5, now.Add(-time.Hour)),
		scoredMem("newer", "u1", "p1", 0.5, 0.5, now),
	}}
	r := NewRetriever(repo, fakeEmbedder{}, DefaultWeights)

	got, err := r.Retrieve(context.Background(), "u1", "p1", "query", 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 2 || got[0].ID != "newer" {
		t.Fatalf("expected newer memory to rank first on a tie, got %+v", got)
	}
}

func TestRetrieveRequiresPersonaID(t *testing.T) {
	r := NewRetriever(&fakeMemoryRepo{}, fakeEmbedder{}, DefaultWeights)
	got, err := r.Retrieve(context.Background(), "u1", "", "query", 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil result with no persona scope, got %+v", got)
	}
}
