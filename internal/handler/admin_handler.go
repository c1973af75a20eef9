package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/YathuPiraba/lead-management-system-sub000/internal/models"
	"github.com/YathuPiraba/lead-management-system-sub000/internal/service"
	appErrors "github.com/YathuPiraba/lead-management-system-sub000/pkg/errors"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/export"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/response"
)

type adminSecurityService interface {
	ForceLogout(ctx context.Context, actor models.Identity, targetUserID, reason string, meta service.RequestMeta) (int, error)
	ScanUser(ctx context.Context, actor models.Identity, targetUserID string) (*models.SuspiciousActivityReport, error)
	ListUserSessions(ctx context.Context, actor models.Identity, targetUserID string) ([]models.SessionView, error)
}

var sessionExportColumns = []string{"session_id", "device_type", "device_fingerprint", "ip_address", "user_agent", "created_at"}

// AdminHandler exposes administrative session controls.
type AdminHandler struct {
	security adminSecurityService
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(security adminSecurityService) *AdminHandler {
	return &AdminHandler{security: security}
}

// ForceLogout godoc
// @Summary Force logout of a user
// @Description End every session of the target user
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param payload body models.ForceLogoutRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/users/{id}/force-logout [post]
func (h *AdminHandler) ForceLogout(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}

	var req models.ForceLogoutRequest
	if err := bindPayload(c, &req); err != nil {
		fail(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "reason is required and at most 500 characters"))
		return
	}

	count, err := h.security.ForceLogout(c.Request.Context(), principal.Identity, c.Param("id"), req.Reason, requestMeta(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.JSON(c, http.StatusOK, models.LogoutResponse{LoggedOutCount: count})
}

// Security godoc
// @Summary Suspicious activity scan of a user
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/users/{id}/security [get]
func (h *AdminHandler) Security(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	report, err := h.security.ScanUser(c.Request.Context(), principal.Identity, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// ExportSessions godoc
// @Summary Export a user's sessions as CSV
// @Tags Admin
// @Produce text/csv
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/users/{id}/sessions/export [get]
func (h *AdminHandler) ExportSessions(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	targetID := c.Param("id")
	views, err := h.security.ListUserSessions(c.Request.Context(), principal.Identity, targetID)
	if err != nil {
		fail(c, err)
		return
	}

	table := export.Table{Columns: sessionExportColumns, Rows: make([][]string, 0, len(views))}
	for _, v := range views {
		table.Rows = append(table.Rows, []string{
			v.SessionID,
			string(v.DeviceType),
			v.DeviceFingerprint,
			v.IPAddress,
			v.UserAgent,
			v.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, table); err != nil {
		fail(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"sessions-%s.csv\"", targetID))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
