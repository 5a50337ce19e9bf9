package http

import (
	"context"
	"sync"
	"time"

	pgvector "github.com/pgvector/pgvector-go"

	"clone-llm/internal/domain"
	"clone-llm/internal/repository"
)

type fakeUsers struct {
	mu    sync.Mutex
	byExt map[string]domain.User
	prefs map[string]domain.Preferences
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byExt: map[string]domain.User{}, prefs: map[string]domain.Preferences{}}
}

func (f *fakeUsers) GetOrCreateByExternalID(_ context.Context, externalID string, now time.Time) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byExt[externalID]; ok {
		return u, nil
	}
	u := domain.User{ID: "user-" + externalID, ExternalID: externalID, CreatedAt: now, LastActiveAt: now}
	f.byExt[externalID] = u
	return u, nil
}
func (f *fakeUsers) GetByID(_ context.Context, id string) (domain.User, error) { return domain.User{ID: id}, nil }
func (f *fakeUsers) TouchLastActive(_ context.Context, _ string, _ time.Time) error { return nil }
func (f *fakeUsers) GetPreferences(_ context.Context, id string) (domain.Preferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prefs[id], nil
}
func (f *fakeUsers) SetPreferences(_ context.Context, id string, p domain.Preferences) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefs[id] = p
	return nil
}

type fakePersonas struct{ persona domain.Persona }

func (f *fakePersonas) Upsert(_ context.Context, _ domain.Persona) error { return nil }
func (f *fakePersonas) GetByName(_ context.Context, _ string) (domain.Persona, error) {
	return f.persona, nil
}
func (f *fakePersonas) GetByID(_ context.Context, _ string) (domain.Persona, error) { return f.persona, nil }
func (f *fakePersonas) List(_ context.Context) ([]domain.Persona, error)            { return []domain.Persona{f.persona}, nil }

type fakeConversations struct {
	mu   sync.Mutex
	byID map[string]domain.Conversation
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{byID: map[string]domain.Conversation{}}
}
func (f *fakeConversations) Create(_ context.Context, c domain.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[c.ID] = c
	return nil
}
func (f *fakeConversations) GetByID(_ context.Context, id string) (domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return domain.Conversation{}, repository.ErrNotFound
	}
	return c, nil
}
func (f *fakeConversations) ListByUser(_ context.Context, userID string) ([]domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Conversation
	for _, c := range f.byID {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}
func (f *fakeConversations) StampPersonaIfUnset(_ context.Context, id, personaID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.byID[id]
	if c.PersonaID == "" {
		c.PersonaID = personaID
		f.byID[id] = c
	}
	return nil
}
func (f *fakeConversations) UpdateSummary(_ context.Context, id, summary string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.byID[id]
	c.LastSummary = summary
	c.UpdatedAt = at
	f.byID[id] = c
	return nil
}
func (f *fakeConversations) Touch(_ context.Context, _ string, _ time.Time) error { return nil }

type fakeSessionStates struct {
	mu     sync.Mutex
	states map[string]domain.SessionState
}

func newFakeSessionStates() *fakeSessionStates {
	return &fakeSessionStates{states: map[string]domain.SessionState{}}
}
func (f *fakeSessionStates) Get(_ context.Context, id string) (domain.SessionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[id]
	if !ok {
		return domain.SessionState{}, repository.ErrNotFound
	}
	return s, nil
}
func (f *fakeSessionStates) Upsert(_ context.Context, s domain.SessionState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[s.ConversationID] = s
	return nil
}

type fakeMemories struct {
	mu      sync.Mutex
	deleted []string
}

func (f *fakeMemories) Create(_ context.Context, _ domain.Memory) error { return nil }
func (f *fakeMemories) Search(_ context.Context, _, _ string, _ pgvector.Vector, _ int) ([]domain.ScoredMemory, error) {
	return nil, nil
}
func (f *fakeMemories) NearestByKind(_ context.Context, _, _, _ string, _ pgvector.Vector) (domain.ScoredMemory, bool, error) {
	return domain.ScoredMemory{}, false, nil
}
func (f *fakeMemories) DeleteByConversation(_ context.Context, _, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, conversationID)
	return nil
}
