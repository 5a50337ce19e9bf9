// Package orchestrator runs the chat request lifecycle: classify, gate,
// retrieve, compose, dispatch, stream, extract. It is the one place that
// wires every other component together.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clone-llm/internal/buffer"
	"clone-llm/internal/cache"
	"clone-llm/internal/classify"
	"clone-llm/internal/domain"
	"clone-llm/internal/email"
	"clone-llm/internal/lease"
	"clone-llm/internal/llm"
	"clone-llm/internal/preferences"
	"clone-llm/internal/prompt"
	"clone-llm/internal/repository"
	"clone-llm/internal/router"
	"clone-llm/internal/worker"
)

// EventType is the wire discriminator for one streamed chat event.
type EventType string

const (
	EventThinking EventType = "thinking"
	EventToken    EventType = "token"
	EventDone     EventType = "done"
	EventError    EventType = "error"
)

// Event is one line of the NDJSON stream the HTTP layer forwards to the
// client verbatim.
type Event struct {
	Type           EventType `json:"type"`
	Step           string    `json:"step,omitempty"`
	Route          string    `json:"route,omitempty"`
	Token          string    `json:"token,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	MessageID      string    `json:"message_id,omitempty"`
	ErrorKind      string    `json:"error_kind,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// MarshalJSON renders the wire shape the client contract defines per event
// type rather than the internal field layout above.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventThinking:
		wire := struct {
			Type EventType      `json:"type"`
			Step string         `json:"step"`
			Data map[string]any `json:"data,omitempty"`
		}{Type: e.Type, Step: e.Step}
		if e.Route != "" {
			wire.Data = map[string]any{"route": e.Route}
		}
		return json.Marshal(wire)
	case EventToken:
		wire := struct {
			Type    EventType `json:"type"`
			Content string    `json:"content"`
		}{Type: e.Type, Content: e.Token}
		return json.Marshal(wire)
	case EventDone:
		wire := struct {
			Type           EventType `json:"type"`
			ConversationID string    `json:"conversation_id"`
			MessageID      string    `json:"message_id"`
		}{Type: e.Type, ConversationID: e.ConversationID, MessageID: e.MessageID}
		return json.Marshal(wire)
	case EventError:
		kind := e.ErrorKind
		if kind == "" {
			kind = "internal"
		}
		wire := struct {
			Type    EventType `json:"type"`
			Kind    string    `json:"kind"`
			Message string    `json:"message"`
		}{Type: e.Type, Kind: kind, Message: e.Error}
		return json.Marshal(wire)
	default:
		type alias Event
		return json.Marshal(alias(e))
	}
}

// Request is one inbound chat turn.
type Request struct {
	ExternalUserID     string
	ConversationID     string // empty creates a new conversation
	PersonaName        string // empty uses the deployment default
	CustomSystemPrompt string // replaces step 1 of the composer only
	Message            string
}

const personaCacheTTL = 5 * time.Minute

// MemoryRetriever is the narrow view of the Long-Term Memory component the
// orchestrator needs; satisfied by *memory.Retriever.
type MemoryRetriever interface {
	Retrieve(ctx context.Context, userID, personaID, queryText string, k int) ([]domain.ScoredMemory, error)
}

// MemoryExtractor is the narrow view of the background extraction
// component the orchestrator needs; satisfied by *memory.Extractor.
type MemoryExtractor interface {
	Extract(ctx context.Context, userID, personaID, conversationID, userMessage, assistantMessage string, now time.Time) ([]domain.Memory, error)
}

// Orchestrator owns no business rule itself; every decision is delegated
// to the component that owns it (Classifier, Router, Buffer, Retriever,
// Composer, Dispatcher). It only sequences the calls and persists results.
type Orchestrator struct {
	logger *zap.Logger

	users         repository.UserRepository
	personas      repository.PersonaRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	sessionStates repository.SessionStateRepository
	audit         repository.AuditRepository
	notifier      email.Notifier

	personaCache cache.Cache

	classifier classify.Classifier
	router     router.Router
	buffer     *buffer.Buffer
	retriever  MemoryRetriever
	extractor  MemoryExtractor
	prefs      preferences.Extractor
	composer   prompt.Composer

	primary   llm.Dispatcher
	secondary llm.Dispatcher

	leases *lease.Manager
	pool   *worker.Pool

	defaultPersonaName string
	retrievalK         int
	model              string
	temperature        float64
}

type Dependencies struct {
	Logger *zap.Logger

	Users         repository.UserRepository
	Personas      repository.PersonaRepository
	Conversations repository.ConversationRepository
	Messages      repository.MessageRepository
	SessionStates repository.SessionStateRepository
	Audit         repository.AuditRepository
	Notifier      email.Notifier

	PersonaCache cache.Cache

	Classifier classify.Classifier
	Router     router.Router
	Buffer     *buffer.Buffer
	Retriever  MemoryRetriever
	Extractor  MemoryExtractor
	Prefs      preferences.Extractor
	Composer   prompt.Composer

	Primary   llm.Dispatcher
	Secondary llm.Dispatcher

	Leases *lease.Manager
	Pool   *worker.Pool

	DefaultPersonaName string
	RetrievalK         int
	Model              string
	Temperature        float64
}

func New(d Dependencies) *Orchestrator {
	if d.RetrievalK <= 0 {
		d.RetrievalK = 5
	}
	if d.DefaultPersonaName == "" {
		d.DefaultPersonaName = "default"
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Orchestrator{
		logger:             d.Logger,
		users:              d.Users,
		personas:           d.Personas,
		conversations:      d.Conversations,
		messages:           d.Messages,
		sessionStates:      d.SessionStates,
		audit:              d.Audit,
		notifier:           d.Notifier,
		personaCache:       d.PersonaCache,
		classifier:         d.Classifier,
		router:             d.Router,
		buffer:             d.Buffer,
		retriever:          d.Retriever,
		extractor:          d.Extractor,
		prefs:              d.Prefs,
		composer:           d.Composer,
		primary:            d.Primary,
		secondary:          d.Secondary,
		leases:             d.Leases,
		pool:               d.Pool,
		defaultPersonaName: d.DefaultPersonaName,
		retrievalK:         d.RetrievalK,
		model:              d.Model,
		temperature:        d.Temperature,
	}
}

// Handle runs one chat turn and returns a channel of events. The channel
// is closed once a terminal done or error event has been sent. The caller
// cancelling ctx propagates to the in-flight provider call and closes the
// channel early.
func (o *Orchestrator) Handle(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event, 8)
	go func() {
		defer close(events)
		o.run(ctx, req, events)
	}()
	return events
}

func (o *Orchestrator) run(ctx context.Context, req Request, events chan<- Event) {
	now := time.Now().UTC()

	user, err := o.users.GetOrCreateByExternalID(ctx, req.ExternalUserID, now)
	if err != nil {
		o.emitError(events, fmt.Errorf("resolve user: %w", err))
		return
	}

	personaName := strings.ToLower(strings.TrimSpace(req.PersonaName))
	if personaName == "" {
		personaName = o.defaultPersonaName
	}
	persona, err := o.resolvePersona(ctx, personaName)
	if err != nil {
		o.emitError(events, fmt.Errorf("resolve persona: %w", err))
		return
	}

	conversation, err := o.resolveConversation(ctx, user.ID, req.ConversationID, now)
	if err != nil {
		o.emitError(events, fmt.Errorf("resolve conversation: %w", err))
		return
	}
	if conversation.PersonaID == "" {
		if err := o.conversations.StampPersonaIfUnset(ctx, conversation.ID, persona.ID); err != nil {
			o.emitError(events, fmt.Errorf("stamp conversation persona: %w", err))
			return
		}
		conversation.PersonaID = persona.ID
	}

	release := o.leases.Acquire(conversation.ID)
	defer release()

	userMessage := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversation.ID,
		Role:           domain.RoleUser,
		Content:        req.Message,
		Timestamp:      now,
	}
	if err := o.messages.Create(ctx, userMessage); err != nil {
		o.emitError(events, fmt.Errorf("persist user message: %w", err))
		return
	}

	messageIndex, err := o.messages.CountByConversation(ctx, conversation.ID)
	if err != nil {
		o.emitError(events, fmt.Errorf("count messages: %w", err))
		return
	}

	result := o.classifier.Classify(req.Message)

	state, err := o.sessionStates.Get(ctx, conversation.ID)
	if err != nil {
		if err != repository.ErrNotFound {
			o.emitError(events, fmt.Errorf("load session state: %w", err))
			return
		}
		state = repository.NewState(conversation.ID, now)
	}

	decision := o.router.Decide(state, result.Label, messageIndex, now)
	if err := o.sessionStates.Upsert(ctx, decision.NextState); err != nil {
		o.emitError(events, fmt.Errorf("persist session state: %w", err))
		return
	}

	o.appendAudit(ctx, user.ID, conversation.ID, result, decision, req.Message)

	switch decision.Action {
	case domain.ActionRefuseHard, domain.ActionRefuseSoft:
		o.terminalAssistantMessage(ctx, events, conversation.ID, router.RefusalText(decision.Action))
		return
	case domain.ActionRequestAgeVerify:
		events <- Event{Type: EventThinking, Step: "age_verification_required"}
		o.terminalAssistantMessage(ctx, events, conversation.ID, router.RefusalText(decision.Action))
		return
	}

	events <- Event{Type: EventThinking, Step: "content_routed", Route: string(decision.NextState.CurrentRoute)}

	window, err := o.buffer.Load(ctx, conversation.ID)
	if err != nil {
		o.emitError(events, fmt.Errorf("load buffer: %w", err))
		return
	}

	var memories []domain.ScoredMemory
	if persona.ID != "" {
		memories, err = o.retriever.Retrieve(ctx, user.ID, persona.ID, req.Message, o.retrievalK)
		if err != nil {
			o.logger.Warn("memory retrieval failed", zap.Error(err))
		}
	}

	prefs, err := o.users.GetPreferences(ctx, user.ID)
	if err != nil {
		o.logger.Warn("load preferences failed", zap.Error(err))
	}

	systemPrompt := o.composer.Compose(prompt.Input{
		PersonaBaseText:     req.CustomSystemPrompt,
		Persona:             persona,
		Memories:            memories,
		ConversationSummary: conversation.LastSummary,
		Preferences:         prefs,
	})

	chatMessages := []llm.ChatMessage{{Role: "system", Content: systemPrompt}}
	for _, m := range window.Messages {
		role := "user"
		if m.Role == domain.RoleAssistant {
			role = "assistant"
		}
		chatMessages = append(chatMessages, llm.ChatMessage{Role: role, Content: m.Content})
	}
	chatMessages = append(chatMessages, llm.ChatMessage{Role: "user", Content: req.Message})

	chosen, fallback, fallbackAllowed := o.providersForRoute(decision.NextState.CurrentRoute)

	assistantID := uuid.NewString()
	fullText, tokensSent, streamErr := o.stream(ctx, events, chosen, chatMessages, systemPrompt)
	if streamErr != nil && fallbackAllowed && llm.Fallbackable(streamErr) {
		events <- Event{Type: EventThinking, Step: "model_fallback"}
		safetyPrompt := systemPrompt + "\n\n=== SAFETY NOTE ===\nThe secondary provider was unavailable mid-scene; continue responsibly, keep all parties consenting adults, and stay in character.\n"
		safetyMessages := append([]llm.ChatMessage{{Role: "system", Content: safetyPrompt}}, chatMessages[1:]...)
		var more string
		var moreTokens int
		more, moreTokens, streamErr = o.stream(ctx, events, fallback, safetyMessages, safetyPrompt)
		fullText += more
		tokensSent += moreTokens
	}

	if streamErr != nil && tokensSent == 0 {
		o.emitErrorKind(events, "model_unavailable", fmt.Errorf("model unavailable: %w", streamErr))
		return
	}

	assistantMessage := domain.Message{
		ID:             assistantID,
		ConversationID: conversation.ID,
		Role:           domain.RoleAssistant,
		Content:        strings.TrimSpace(fullText),
		Timestamp:      time.Now().UTC(),
	}
	if err := o.messages.Create(ctx, assistantMessage); err != nil {
		o.emitError(events, fmt.Errorf("persist assistant message: %w", err))
		return
	}
	if err := o.conversations.Touch(ctx, conversation.ID, assistantMessage.Timestamp); err != nil {
		o.logger.Warn("touch conversation failed", zap.Error(err))
	}
	if err := o.users.TouchLastActive(ctx, user.ID, assistantMessage.Timestamp); err != nil {
		o.logger.Warn("touch user failed", zap.Error(err))
	}

	o.scheduleExtraction(user.ID, persona.ID, conversation.ID, req.Message, assistantMessage.Content, result.Confidence)
	o.applyPreferences(ctx, user.ID, prefs, req.Message)

	events <- Event{Type: EventDone, ConversationID: conversation.ID, MessageID: assistantMessage.ID}
}

func (o *Orchestrator) stream(ctx context.Context, events chan<- Event, dispatcher llm.Dispatcher, messages []llm.ChatMessage, _ string) (string, int, error) {
	tokenEvents, errs := dispatcher.StreamChat(ctx, messages, llm.ChatParams{Model: o.model, Temperature: o.temperature})

	var sb strings.Builder
	var tokensSent int
	var streamErr error

loop:
	for {
		select {
		case ev, ok := <-tokenEvents:
			if !ok {
				break loop
			}
			if ev.Token != "" {
				sb.WriteString(ev.Token)
				tokensSent++
				events <- Event{Type: EventToken, Token: ev.Token}
			}
			if ev.Done {
				break loop
			}
		case err, ok := <-errs:
			if ok && err != nil {
				streamErr = err
			}
		case <-ctx.Done():
			streamErr = ctx.Err()
			break loop
		}
	}
	return sb.String(), tokensSent, streamErr
}

func (o *Orchestrator) providersForRoute(route domain.Route) (chosen, fallback llm.Dispatcher, fallbackAllowed bool) {
	if route == domain.RouteExplicit || route == domain.RouteFetish {
		return o.secondary, o.primary, true
	}
	return o.primary, nil, false
}

func (o *Orchestrator) terminalAssistantMessage(ctx context.Context, events chan<- Event, conversationID, text string) {
	msg := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           domain.RoleAssistant,
		Content:        text,
		Timestamp:      time.Now().UTC(),
	}
	if err := o.messages.Create(ctx, msg); err != nil {
		o.emitError(events, fmt.Errorf("persist terminal message: %w", err))
		return
	}
	events <- Event{Type: EventToken, Token: text}
	events <- Event{Type: EventDone, ConversationID: conversationID, MessageID: msg.ID}
}

func (o *Orchestrator) emitError(events chan<- Event, err error) {
	o.emitErrorKind(events, "internal", err)
}

func (o *Orchestrator) emitErrorKind(events chan<- Event, kind string, err error) {
	if o.logger != nil {
		o.logger.Error("orchestrator error", zap.String("kind", kind), zap.Error(err))
	}
	events <- Event{Type: EventError, ErrorKind: kind, Error: err.Error()}
}

func (o *Orchestrator) resolvePersona(ctx context.Context, name string) (domain.Persona, error) {
	key := "persona:" + name
	if o.personaCache != nil {
		if raw, found, err := o.personaCache.Get(ctx, key); err == nil && found {
			var p domain.Persona
			if json.Unmarshal([]byte(raw), &p) == nil {
				return p, nil
			}
		}
	}
	p, err := o.personas.GetByName(ctx, name)
	if err != nil {
		return domain.Persona{}, err
	}
	if o.personaCache != nil {
		if raw, err := json.Marshal(p); err == nil {
			_ = o.personaCache.Set(ctx, key, string(raw), personaCacheTTL)
		}
	}
	return p, nil
}

func (o *Orchestrator) resolveConversation(ctx context.Context, userID, conversationID string, now time.Time) (domain.Conversation, error) {
	if conversationID != "" {
		c, err := o.conversations.GetByID(ctx, conversationID)
		if err == nil {
			return c, nil
		}
		if err != repository.ErrNotFound {
			return domain.Conversation{}, err
		}
	}
	c := domain.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.conversations.Create(ctx, c); err != nil {
		return domain.Conversation{}, err
	}
	return c, nil
}

func (o *Orchestrator) appendAudit(ctx context.Context, userID, conversationID string, result classify.Result, decision router.Decision, message string) {
	if o.audit == nil {
		return
	}
	digest := sha256.Sum256([]byte(message))
	action := domain.AuditActionGenerate
	switch decision.Action {
	case domain.ActionRefuseHard, domain.ActionRefuseSoft:
		action = domain.AuditActionRefuse
	case domain.ActionRequestAgeVerify:
		action = domain.AuditActionAgeVerify
	}
	entry := domain.AuditEntry{
		Timestamp:      time.Now().UTC(),
		UserID:         userID,
		ConversationID: conversationID,
		Label:          string(result.Label),
		Confidence:     result.Confidence,
		Indicators:     result.Indicators,
		Route:          decision.NextState.CurrentRoute,
		Action:         action,
		MessageDigest:  hex.EncodeToString(digest[:]),
	}
	if err := o.audit.Append(ctx, entry); err != nil {
		o.logger.Warn("append audit entry failed", zap.Error(err))
	}
	o.notifyAudit(entry)
}

func (o *Orchestrator) scheduleExtraction(userID, personaID, conversationID, userMessage, assistantMessage string, importance float64) {
	if o.pool == nil || o.extractor == nil || personaID == "" {
		return
	}
	o.pool.Submit(worker.Task{
		ConversationID: conversationID,
		Importance:     importance,
		Run: func(ctx context.Context) {
			if _, err := o.extractor.Extract(ctx, userID, personaID, conversationID, userMessage, assistantMessage, time.Now().UTC()); err != nil {
				o.logger.Warn("memory extraction failed", zap.Error(err))
			}
		},
	})
}

func (o *Orchestrator) applyPreferences(ctx context.Context, userID string, current domain.Preferences, message string) {
	patch := o.prefs.Extract(message)
	if patch.IsZero() {
		return
	}
	merged := current.Merge(patch, time.Now().UTC())
	if err := o.users.SetPreferences(ctx, userID, merged); err != nil {
		o.logger.Warn("persist preferences failed", zap.Error(err))
	}
}

// notifyAudit fires the alert channel off the request path; delivery
// failure only produces a log line, it never affects the chat turn.
func (o *Orchestrator) notifyAudit(entry domain.AuditEntry) {
	if o.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := o.notifier.NotifyAudit(ctx, entry); err != nil {
			o.logger.Debug("audit notification not sent", zap.Error(err))
		}
	}()
}
