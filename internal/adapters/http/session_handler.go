package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskhub/core/internal/infrastructure/logger"
	"github.com/taskhub/core/internal/ports"
)

// SessionHandler exposes the authenticated user's active sessions
type SessionHandler struct {
	sessions ports.SessionManager
	logger   *logger.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions ports.SessionManager, logger *logger.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// ListSessions godoc
// @Summary List active sessions
// @Tags sessions
// @Produce json
// @Success 200 {array} entities.Session
// @Security BearerAuth
// @Router /sessions [get]
func (h *SessionHandler) ListSessions(c echo.Context) error {
	userID := userIDFromContext(c)

	sessions, err := h.sessions.ListSessions(c.Request().Context(), userID)
	if err != nil {
		h.logger.Errorw("List sessions failed", "error", err, "user_id", userID)
		return mapError(err)
	}
	return c.JSON(http.StatusOK, sessions)
}

// RevokeSession godoc
// @Summary Revoke a session
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /sessions/{id} [delete]
func (h *SessionHandler) RevokeSession(c echo.Context) error {
	userID := userIDFromContext(c)
	sessionID := c.Param("id")

	if err := h.sessions.RevokeSession(c.Request().Context(), userID, sessionID); err != nil {
		h.logger.Errorw("Revoke session failed", "error", err, "user_id", userID, "session_id", sessionID)
		return mapError(err)
	}

	h.logger.LogSecurityEvent("session_revoked", userID, c.RealIP(), map[string]interface{}{
		"session_id": sessionID,
	})
	return c.NoContent(http.StatusNoContent)
}
