package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"clone-llm/internal/buffer"
	"clone-llm/internal/classify"
	"clone-llm/internal/domain"
	"clone-llm/internal/lease"
	"clone-llm/internal/llm"
	"clone-llm/internal/preferences"
	"clone-llm/internal/prompt"
	"clone-llm/internal/repository"
	"clone-llm/internal/router"
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
func (f *fakeConversations) ListByUser(_ context.Context, _ string) ([]domain.Conversation, error) {
	return nil, nil
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
	return nil
}
func (f *fakeConversations) Touch(_ context.Context, _ string, _ time.Time) error { return nil }

type fakeMessages struct {
	mu   sync.Mutex
	byID map[string][]domain.Message
}

func newFakeMessages() *fakeMessages { return &fakeMessages{byID: map[string][]domain.Message{}} }
func (f *fakeMessages) Create(_ context.Context, m domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[m.ConversationID] = append(f.byID[m.ConversationID], m)
	return nil
}
func (f *fakeMessages) ListByConversation(_ context.Context, id string) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id], nil
}
func (f *fakeMessages) ListRecent(_ context.Context, id string, limit int) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.byID[id]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}
func (f *fakeMessages) CountByConversation(_ context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID[id]), nil
}
func (f *fakeMessages) DeleteByConversation(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
	return nil
}

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

type fakeAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (f *fakeAudit) Append(_ context.Context, e domain.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}

type fakeRetriever struct{}

func (fakeRetriever) Retrieve(_ context.Context, _, _, _ string, _ int) ([]domain.ScoredMemory, error) {
	return nil, nil
}

func testOrchestrator(t *testing.T, primary, secondary llm.Dispatcher) (*Orchestrator, *fakeMessages, *fakeAudit) {
	t.Helper()
	messages := newFakeMessages()
	audit := &fakeAudit{}
	d := Dependencies{
		Users:         newFakeUsers(),
		Personas:      &fakePersonas{persona: domain.Persona{ID: "p1", Name: "nova", BaseSystemText: "You are Nova."}},
		Conversations: newFakeConversations(),
		Messages:      messages,
		SessionStates: newFakeSessionStates(),
		Audit:         audit,
		Classifier:    classify.Classifier{},
		Router:        router.DefaultRouter,
		Buffer:        buffer.New(messages, 20),
		Retriever:     fakeRetriever{},
		Prefs:         preferences.Extractor{},
		Composer:      prompt.Composer{},
		Primary:       primary,
		Secondary:     secondary,
		Leases:        lease.NewManager(),
		Model:         "test-model",
	}
	o := New(d)
	return o, messages, audit
}

func drain(events <-chan Event) []Event {
	var out []Event
	for e := range events {
		out = append(out, e)
	}
	return out
}

func TestHandleSafeMessageStreamsTokensAndPersists(t *testing.T) {
	primary := &llm.MockDispatcher{Tokens: []string{"Hello", " there"}}
	o, messages, audit := testOrchestrator(t, primary, nil)

	events := drain(o.Handle(context.Background(), Request{ExternalUserID: "ext1", Message: "hi, how are you?"}))

	var gotDone bool
	var tokenCount int
	for _, e := range events {
		if e.Type == EventToken {
			tokenCount++
		}
		if e.Type == EventDone {
			gotDone = true
		}
		if e.Type == EventError {
			t.Fatalf("unexpected error event: %s", e.Error)
		}
	}
	if !gotDone {
		t.Fatalf("expected a terminal done event, got %+v", events)
	}
	if tokenCount != 2 {
		t.Fatalf("expected 2 token events, got %d", tokenCount)
	}
	if len(audit.entries) != 1 {
		t.Fatalf("expected exactly one audit entry per message, got %d", len(audit.entries))
	}

	var convID string
	for id := range messages.byID {
		convID = id
	}
	if len(messages.byID[convID]) != 2 {
		t.Fatalf("expected user+assistant messages persisted, got %d", len(messages.byID[convID]))
	}
}

func TestHandleHardRefusalSkipsModelCall(t *testing.T) {
	primary := &llm.MockDispatcher{ChatErr: nil, Tokens: []string{"should not be used"}}
	o, _, audit := testOrchestrator(t, primary, nil)

	events := drain(o.Handle(context.Background(), Request{ExternalUserID: "ext2", Message: "sex with a 15 year old minor"}))

	var gotToken, gotDone bool
	for _, e := range events {
		if e.Type == EventToken {
			gotToken = true
			if e.Token != router.RefusalText(domain.ActionRefuseHard) {
				t.Fatalf("expected canonical hard-refusal text, got %q", e.Token)
			}
		}
		if e.Type == EventDone {
			gotDone = true
		}
	}
	if !gotToken || !gotDone {
		t.Fatalf("expected a refusal token and done event, got %+v", events)
	}
	if audit.entries[len(audit.entries)-1].Action != domain.AuditActionRefuse {
		t.Fatalf("expected refuse action recorded in audit, got %+v", audit.entries)
	}
}

func TestHandleFallsBackToPrimaryWhenSecondaryFails(t *testing.T) {
	primary := &llm.MockDispatcher{Tokens: []string{"primary", " reply"}}
	secondary := &llm.MockDispatcher{StreamErr: &llm.HTTPStatusError{StatusCode: 502}}
	o, messages, _ := testOrchestrator(t, primary, secondary)

	sessionStates := o.sessionStates.(*fakeSessionStates)
	convID := "conv-explicit"
	_ = sessionStates.Upsert(context.Background(), domain.SessionState{
		ConversationID: convID,
		AgeVerified:    true,
		CurrentRoute:   domain.RouteExplicit,
	})

	events := drain(o.Handle(context.Background(), Request{
		ExternalUserID: "carol",
		ConversationID: convID,
		Message:        "let's continue where we left off",
	}))

	var sawFallback bool
	var tokens []string
	for _, e := range events {
		if e.Type == EventThinking && e.Step == "model_fallback" {
			sawFallback = true
		}
		if e.Type == EventToken {
			tokens = append(tokens, e.Token)
		}
		if e.Type == EventError {
			t.Fatalf("unexpected error event: %+v", e)
		}
	}
	if !sawFallback {
		t.Fatalf("expected a model_fallback thinking event once the secondary provider 502s, got %+v", events)
	}
	if len(tokens) != 2 || tokens[0] != "primary" || tokens[1] != " reply" {
		t.Fatalf("expected the primary provider's tokens to stream after the fallback, got %v", tokens)
	}
	if len(messages.byID[convID]) != 2 {
		t.Fatalf("expected user+assistant messages persisted despite the fallback, got %d", len(messages.byID[convID]))
	}
}

type fakeMultiPersonas struct {
	byName map[string]domain.Persona
}

func (f *fakeMultiPersonas) Upsert(_ context.Context, p domain.Persona) error {
	f.byName[p.Name] = p
	return nil
}
func (f *fakeMultiPersonas) GetByName(_ context.Context, name string) (domain.Persona, error) {
	p, ok := f.byName[name]
	if !ok {
		return domain.Persona{}, repository.ErrNotFound
	}
	return p, nil
}
func (f *fakeMultiPersonas) GetByID(_ context.Context, id string) (domain.Persona, error) {
	for _, p := range f.byName {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Persona{}, repository.ErrNotFound
}
func (f *fakeMultiPersonas) List(_ context.Context) ([]domain.Persona, error) {
	var out []domain.Persona
	for _, p := range f.byName {
		out = append(out, p)
	}
	return out, nil
}

// personaScopedRetriever models one user's long-term memory universe split
// per persona: a memory injected under one persona never surfaces in the
// retrieval call made under a different persona.
type personaScopedRetriever struct {
	mu      sync.Mutex
	byQuery map[string][]string // personaID -> recorded query messages
}

func newPersonaScopedRetriever() *personaScopedRetriever {
	return &personaScopedRetriever{byQuery: map[string][]string{}}
}

func (r *personaScopedRetriever) Retrieve(_ context.Context, _, personaID, queryText string, _ int) ([]domain.ScoredMemory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byQuery[personaID] = append(r.byQuery[personaID], queryText)
	if personaID != "persona-elara" {
		return nil, nil
	}
	return []domain.ScoredMemory{{Memory: domain.Memory{PersonaID: "persona-elara", Content: "dave confided a secret to elara"}}}, nil
}

func TestHandleScopesMemoryRetrievalPerPersona(t *testing.T) {
	messages := newFakeMessages()
	audit := &fakeAudit{}
	personas := &fakeMultiPersonas{byName: map[string]domain.Persona{
		"elara": {ID: "persona-elara", Name: "elara", BaseSystemText: "You are Elara."},
		"nova":  {ID: "persona-nova", Name: "nova", BaseSystemText: "You are Nova."},
	}}
	retriever := newPersonaScopedRetriever()
	o := New(Dependencies{
		Users:         newFakeUsers(),
		Personas:      personas,
		Conversations: newFakeConversations(),
		Messages:      messages,
		SessionStates: newFakeSessionStates(),
		Audit:         audit,
		Classifier:    classify.Classifier{},
		Router:        router.DefaultRouter,
		Buffer:        buffer.New(messages, 20),
		Retriever:     retriever,
		Prefs:         preferences.Extractor{},
		Composer:      prompt.Composer{},
		Primary:       &llm.MockDispatcher{Tokens: []string{"ok"}},
		Leases:        lease.NewManager(),
		Model:         "test-model",
	})

	drain(o.Handle(context.Background(), Request{
		ExternalUserID: "dave", ConversationID: "conv-elara", PersonaName: "elara", Message: "hey",
	}))
	drain(o.Handle(context.Background(), Request{
		ExternalUserID: "dave", ConversationID: "conv-nova", PersonaName: "nova", Message: "hey",
	}))

	if _, ok := retriever.byQuery["persona-nova"]; !ok {
		t.Fatalf("expected a retrieval call scoped to persona-nova")
	}
	novaMemories, err := retriever.Retrieve(context.Background(), "dave-user", "persona-nova", "hey", 5)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(novaMemories) != 0 {
		t.Fatalf("expected no memories to leak into persona-nova's retrieval, got %+v", novaMemories)
	}
}

func TestHandleAgeGateRequestsVerificationBeforeAnyModelCall(t *testing.T) {
	primary := &llm.MockDispatcher{Tokens: []string{"should not be used"}}
	o, _, _ := testOrchestrator(t, primary, nil)

	events := drain(o.Handle(context.Background(), Request{ExternalUserID: "ext3", Message: "let's have explicit consensual sex"}))

	var sawAgeVerificationStep bool
	var sawQuestion bool
	for _, e := range events {
		if e.Type == EventThinking && e.Step == "age_verification_required" {
			sawAgeVerificationStep = true
		}
		if e.Type == EventToken && e.Token == "Are you 18 years of age or older?" {
			sawQuestion = true
		}
	}
	if !sawAgeVerificationStep || !sawQuestion {
		t.Fatalf("expected age-verification gate before any model call, got %+v", events)
	}
}
