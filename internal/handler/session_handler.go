package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/YathuPiraba/lead-management-system-sub000/internal/models"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/response"
)

type sessionLister interface {
	ListSessions(ctx context.Context, principal *models.Principal) ([]models.SessionView, error)
	Stats(ctx context.Context, principal *models.Principal) (*models.SessionStats, error)
}

type activityScanner interface {
	Scan(ctx context.Context, id models.Identity) (*models.SuspiciousActivityReport, error)
}

// SessionHandler exposes the caller's own sessions.
type SessionHandler struct {
	sessions sessionLister
	scanner  activityScanner
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(sessions sessionLister, scanner activityScanner) *SessionHandler {
	return &SessionHandler{sessions: sessions, scanner: scanner}
}

// List godoc
// @Summary List active sessions
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /auth/sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	views, err := h.sessions.ListSessions(c.Request.Context(), principal)
	if err != nil {
		fail(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, map[string]interface{}{"total": len(views)})
}

// Stats godoc
// @Summary Session statistics
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /auth/sessions/stats [get]
func (h *SessionHandler) Stats(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	stats, err := h.sessions.Stats(c.Request.Context(), principal)
	if err != nil {
		fail(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats)
}

// Security godoc
// @Summary Suspicious activity scan of the caller
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /auth/sessions/security [get]
func (h *SessionHandler) Security(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	report, err := h.scanner.Scan(c.Request.Context(), principal.Identity)
	if err != nil {
		fail(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}
