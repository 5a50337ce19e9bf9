// Package http wires gin handlers for the chat gateway's external
// interfaces: the streaming chat endpoint, age verification, session
// inspection, classification probe, preferences, conversation management,
// and health. Every handler is a thin adapter — business rules live in
// the orchestrator and the components it wires together.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clone-llm/internal/cache"
	"clone-llm/internal/classify"
	"clone-llm/internal/domain"
	"clone-llm/internal/orchestrator"
	"clone-llm/internal/repository"
	"clone-llm/internal/router"
)

// Server bundles the dependencies every handler needs. Handlers are
// methods on Server so they share one set of collaborators without a
// separate constructor per endpoint.
type Server struct {
	logger *zap.Logger

	orch *orchestrator.Orchestrator

	users         repository.UserRepository
	personas      repository.PersonaRepository
	conversations repository.ConversationRepository
	sessionStates repository.SessionStateRepository
	memories      repository.MemoryRepository

	classifier classify.Classifier
	rtr        router.Router

	rateLimiter cache.RateLimiter

	healthChecks []HealthCheck
}

// HealthCheck is a named dependency probe surfaced by GET /health. Name
// matches one of the fixed response keys ("database", "llm").
type HealthCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// NewServer builds a Server with the given collaborators. Use
// WithHealthChecks to register dependency probes for GET /health.
func NewServer(
	logger *zap.Logger,
	orch *orchestrator.Orchestrator,
	users repository.UserRepository,
	personas repository.PersonaRepository,
	conversations repository.ConversationRepository,
	sessionStates repository.SessionStateRepository,
	memories repository.MemoryRepository,
	classifier classify.Classifier,
	rtr router.Router,
	rateLimiter cache.RateLimiter,
) *Server {
	return &Server{
		logger:        logger,
		orch:          orch,
		users:         users,
		personas:      personas,
		conversations: conversations,
		sessionStates: sessionStates,
		memories:      memories,
		classifier:    classifier,
		rtr:           rtr,
		rateLimiter:   rateLimiter,
	}
}

// WithHealthChecks attaches dependency probes to be run by GET /health.
func (s *Server) WithHealthChecks(checks ...HealthCheck) *Server {
	s.healthChecks = append(s.healthChecks, checks...)
	return s
}

// resolveUserID maps the caller's external identity (already resolved by
// AuthMiddleware) to an internal user id, lazily creating the user record
// on first contact.
func (s *Server) resolveUserID(c *gin.Context) (string, bool) {
	externalID := ExternalUserID(c)
	if externalID == "" {
		writeError(c, http.StatusUnauthorized, "auth_failed", "missing credentials")
		return "", false
	}
	user, err := s.users.GetOrCreateByExternalID(c.Request.Context(), externalID, time.Now().UTC())
	if err != nil {
		s.logger.Error("resolve user failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal", "could not resolve user")
		return "", false
	}
	return user.ID, true
}

// requireOwnedConversation loads a conversation and verifies it belongs
// to userID, writing the appropriate error response otherwise. Cross-
// tenant access is always fatal for the request, never coerced into a
// fallback.
func (s *Server) requireOwnedConversation(c *gin.Context, userID, conversationID string) (domain.Conversation, bool) {
	conv, err := s.conversations.GetByID(c.Request.Context(), conversationID)
	if err != nil {
		if err == repository.ErrNotFound {
			writeError(c, http.StatusNotFound, "invalid_request", "conversation not found")
			return domain.Conversation{}, false
		}
		s.logger.Error("load conversation failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal", "could not load conversation")
		return domain.Conversation{}, false
	}
	if conv.UserID != userID {
		writeError(c, http.StatusForbidden, "forbidden", "conversation belongs to another user")
		return domain.Conversation{}, false
	}
	return conv, true
}
