package http

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clone-llm/internal/orchestrator"
)

type chatRequest struct {
	Message            string `json:"message" binding:"required"`
	ConversationID     string `json:"conversation_id"`
	PersonalityName    string `json:"personality_name"`
	CustomSystemPrompt string `json:"system_prompt"`
}

// Chat handles POST /chat. It streams a line-delimited sequence of JSON
// events to the client as the orchestrator produces them, flushing after
// every line so the client sees tokens as they arrive rather than
// buffered at response close.
func (s *Server) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	externalID := ExternalUserID(c)
	if externalID == "" {
		writeError(c, http.StatusUnauthorized, "auth_failed", "missing credentials")
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		writeError(c, http.StatusInternalServerError, "internal", "streaming not supported")
		return
	}

	events := s.orch.Handle(c.Request.Context(), orchestrator.Request{
		ExternalUserID:     externalID,
		ConversationID:     req.ConversationID,
		PersonaName:        req.PersonalityName,
		CustomSystemPrompt: req.CustomSystemPrompt,
		Message:            req.Message,
	})

	c.Writer.Header().Set("Content-Type", "application/x-ndjson")
	c.Writer.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(c.Writer)
	for ev := range events {
		if err := enc.Encode(ev); err != nil {
			s.logger.Warn("chat stream write failed", zap.Error(err))
			return
		}
		flusher.Flush()
	}
}
