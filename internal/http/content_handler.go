package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clone-llm/internal/domain"
	"clone-llm/internal/repository"
)

type ageVerifyRequest struct {
	ConversationID string `json:"conversation_id" binding:"required"`
	Confirmed      bool   `json:"confirmed"`
}

// AgeVerify handles POST /content/age-verify. A confirmation flips the
// session's age_verified flag; a refusal counts against the
// age-verification attempt cap the router enforces.
func (s *Server) AgeVerify(c *gin.Context) {
	var req ageVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	userID, ok := s.resolveUserID(c)
	if !ok {
		return
	}
	if _, ok := s.requireOwnedConversation(c, userID, req.ConversationID); !ok {
		return
	}

	now := time.Now().UTC()
	state, err := s.sessionStates.Get(c.Request.Context(), req.ConversationID)
	if err != nil {
		if err != repository.ErrNotFound {
			s.logger.Error("load session state failed", zap.Error(err))
			writeError(c, http.StatusInternalServerError, "internal", "could not load session state")
			return
		}
		state = repository.NewState(req.ConversationID, now)
	}

	if req.Confirmed {
		state = s.rtr.ConfirmAgeVerification(state, now)
	} else {
		state = s.rtr.RecordAgeVerificationFailure(state, now)
	}

	if err := s.sessionStates.Upsert(c.Request.Context(), state); err != nil {
		s.logger.Error("persist session state failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal", "could not persist session state")
		return
	}

	c.JSON(http.StatusOK, gin.H{"age_verified": state.AgeVerified})
}

// SessionInspect handles GET /content/session/:conversation_id.
func (s *Server) SessionInspect(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	userID, ok := s.resolveUserID(c)
	if !ok {
		return
	}
	if _, ok := s.requireOwnedConversation(c, userID, conversationID); !ok {
		return
	}

	state, err := s.sessionStates.Get(c.Request.Context(), conversationID)
	if err != nil {
		if err != repository.ErrNotFound {
			s.logger.Error("load session state failed", zap.Error(err))
			writeError(c, http.StatusInternalServerError, "internal", "could not load session state")
			return
		}
		state = repository.NewState(conversationID, time.Now().UTC())
	}
	c.JSON(http.StatusOK, state)
}

type classifyRequest struct {
	Message string `json:"message" binding:"required"`
}

// ClassifyProbe handles POST /content/classify. It runs the classifier
// and router against a fresh, stateless session so callers can inspect
// how a message would be labeled and routed without affecting any real
// conversation.
func (s *Server) ClassifyProbe(c *gin.Context) {
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result := s.classifier.Classify(req.Message)
	decision := s.rtr.Decide(domain.SessionState{}, result.Label, 1, time.Now().UTC())

	c.JSON(http.StatusOK, gin.H{
		"label":      result.Label,
		"confidence": result.Confidence,
		"indicators": result.Indicators,
		"route":      decision.NextState.CurrentRoute,
	})
}
