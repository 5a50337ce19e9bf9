package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clone-llm/internal/domain"
)

// GetPreferences handles GET /preferences.
func (s *Server) GetPreferences(c *gin.Context) {
	userID, ok := s.resolveUserID(c)
	if !ok {
		return
	}
	prefs, err := s.users.GetPreferences(c.Request.Context(), userID)
	if err != nil {
		s.logger.Error("load preferences failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal", "could not load preferences")
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// SetPreferences handles POST /preferences. The body is any subset of
// Preferences fields; unset fields are left untouched in the persisted
// record (last writer wins per field, not per request).
func (s *Server) SetPreferences(c *gin.Context) {
	var patch domain.Preferences
	if err := c.ShouldBindJSON(&patch); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	userID, ok := s.resolveUserID(c)
	if !ok {
		return
	}

	current, err := s.users.GetPreferences(c.Request.Context(), userID)
	if err != nil {
		s.logger.Error("load preferences failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal", "could not load preferences")
		return
	}

	merged := current.Merge(patch, time.Now().UTC())
	if err := s.users.SetPreferences(c.Request.Context(), userID, merged); err != nil {
		s.logger.Error("persist preferences failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal", "could not persist preferences")
		return
	}
	c.JSON(http.StatusOK, merged)
}

// ClearPreferences handles DELETE /preferences.
func (s *Server) ClearPreferences(c *gin.Context) {
	userID, ok := s.resolveUserID(c)
	if !ok {
		return
	}
	cleared := domain.Preferences{LastUpdated: time.Now().UTC()}
	if err := s.users.SetPreferences(c.Request.Context(), userID, cleared); err != nil {
		s.logger.Error("clear preferences failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal", "could not clear preferences")
		return
	}
	c.JSON(http.StatusOK, cleared)
}
