package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ListConversations handles GET /conversations.
func (s *Server) ListConversations(c *gin.Context) {
	userID, ok := s.resolveUserID(c)
	if !ok {
		return
	}
	convs, err := s.conversations.ListByUser(c.Request.Context(), userID)
	if err != nil {
		s.logger.Error("list conversations failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal", "could not list conversations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

type conversationIDRequest struct {
	ConversationID string `json:"conversation_id" binding:"required"`
}

// ResetConversation handles POST /conversation/reset. The short-term
// buffer has no storage of its own — buffer.Buffer reads the tail of
// persisted messages on every call — so the only short-term-adjacent
// state a reset can clear is the rolling conversation summary; messages
// and long-term memories are left untouched, matching the documented
// contract that reset preserves both.
func (s *Server) ResetConversation(c *gin.Context) {
	var req conversationIDRequest
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

	if err := s.conversations.UpdateSummary(c.Request.Context(), req.ConversationID, "", time.Now().UTC()); err != nil {
		s.logger.Error("reset conversation failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal", "could not reset conversation")
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

// ClearMemory handles POST /memory/clear. It deletes every memory owned
// by the caller within one conversation; messages are untouched.
func (s *Server) ClearMemory(c *gin.Context) {
	var req conversationIDRequest
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

	if err := s.memories.DeleteByConversation(c.Request.Context(), userID, req.ConversationID); err != nil {
		s.logger.Error("clear memory failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal", "could not clear memory")
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}
