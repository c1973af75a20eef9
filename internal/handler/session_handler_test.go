package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YathuPiraba/lead-management-system-sub000/internal/middleware"
	"github.com/YathuPiraba/lead-management-system-sub000/internal/models"
	"github.com/YathuPiraba/lead-management-system-sub000/internal/service"
	appErrors "github.com/YathuPiraba/lead-management-system-sub000/pkg/errors"
)

type sessionListerStub struct {
	views []models.SessionView
	stats *models.SessionStats
	err   error
}

func (s *sessionListerStub) ListSessions(context.Context, *models.Principal) ([]models.SessionView, error) {
	return s.views, s.err
}

func (s *sessionListerStub) Stats(context.Context, *models.Principal) (*models.SessionStats, error) {
	return s.stats, s.err
}

type securityStub struct {
	report     *models.SuspiciousActivityReport
	views      []models.SessionView
	err        error
	target     string
	reason     string
	scannedFor models.Identity
}

func (s *securityStub) Scan(_ context.Context, id models.Identity) (*models.SuspiciousActivityReport, error) {
	s.scannedFor = id
	return s.report, s.err
}

func (s *securityStub) ScanUser(_ context.Context, _ models.Identity, target string) (*models.SuspiciousActivityReport, error) {
	s.target = target
	return s.report, s.err
}

func (s *securityStub) ListUserSessions(_ context.Context, _ models.Identity, target string) ([]models.SessionView, error) {
	s.target = target
	return s.views, s.err
}

func (s *securityStub) ForceLogout(_ context.Context, _ models.Identity, target, reason string, _ service.RequestMeta) (int, error) {
	s.target, s.reason = target, reason
	if s.err != nil {
		return 0, s.err
	}
	return 3, nil
}

func authedContext(w *httptest.ResponseRecorder, req *http.Request) *gin.Context {
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Set(middleware.ContextPrincipalKey, callerPrincipal())
	return c
}

func TestSessionHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	lister := &sessionListerStub{views: []models.SessionView{
		{SessionID: "sid-1", DeviceType: models.DeviceDesktop, Current: true},
		{SessionID: "sid-2", DeviceType: models.DeviceMobile},
	}}
	h := NewSessionHandler(lister, &securityStub{})

	w := httptest.NewRecorder()
	h.List(authedContext(w, httptest.NewRequest(http.MethodGet, "/auth/sessions", nil)))

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, float64(2), env.Meta["total"])
	var views []models.SessionView
	require.NoError(t, json.Unmarshal(env.Data, &views))
	require.Len(t, views, 2)
	assert.True(t, views[0].Current)
}

func TestSessionHandlerStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	lister := &sessionListerStub{stats: &models.SessionStats{
		Total:        2,
		ByDeviceType: map[models.DeviceType]int{models.DeviceDesktop: 2},
		ByIPAddress:  map[string]int{"10.0.0.1": 2},
	}}
	h := NewSessionHandler(lister, &securityStub{})

	w := httptest.NewRecorder()
	h.Stats(authedContext(w, httptest.NewRequest(http.MethodGet, "/auth/sessions/stats", nil)))

	require.Equal(t, http.StatusOK, w.Code)
	var stats models.SessionStats
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &stats))
	assert.Equal(t, 2, stats.ByDeviceType[models.DeviceDesktop])
}

func TestSessionHandlerStoreFailureIsOpaque(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewSessionHandler(&sessionListerStub{err: appErrors.Wrap(errors.New("dial tcp"), appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "down")}, &securityStub{})

	w := httptest.NewRecorder()
	h.List(authedContext(w, httptest.NewRequest(http.MethodGet, "/auth/sessions", nil)))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, env.Error.Code)
	assert.NotContains(t, w.Body.String(), "dial tcp")
}

func TestSessionHandlerSecurity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	security := &securityStub{report: &models.SuspiciousActivityReport{UserID: "u-1", IsSuspicious: true, Reasons: []string{service.ReasonMultipleIPs}}}
	h := NewSessionHandler(&sessionListerStub{}, security)

	w := httptest.NewRecorder()
	h.Security(authedContext(w, httptest.NewRequest(http.MethodGet, "/auth/sessions/security", nil)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-1", security.scannedFor.Subject().UserID)
	var report models.SuspiciousActivityReport
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &report))
	assert.Equal(t, []string{service.ReasonMultipleIPs}, report.Reasons)
}

func TestSessionHandlerRequiresPrincipal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewSessionHandler(&sessionListerStub{}, &securityStub{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/auth/sessions", nil)
	h.List(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminHandlerForceLogout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	security := &securityStub{}
	h := NewAdminHandler(security)

	w := httptest.NewRecorder()
	c := authedContext(w, jsonRequest(http.MethodPost, "/admin/users/u-9/force-logout", models.ForceLogoutRequest{Reason: "lost device"}))
	c.Params = gin.Params{{Key: "id", Value: "u-9"}}

	h.ForceLogout(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-9", security.target)
	assert.Equal(t, "lost device", security.reason)
	var res models.LogoutResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &res))
	assert.Equal(t, 3, res.LoggedOutCount)
}

func TestAdminHandlerForceLogoutRequiresReason(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing reason", map[string]string{}},
		{"empty reason", map[string]string{"reason": ""}},
		{"reason too long", map[string]string{"reason": strings.Repeat("x", 501)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			security := &securityStub{}
			h := NewAdminHandler(security)

			w := httptest.NewRecorder()
			c := authedContext(w, jsonRequest(http.MethodPost, "/admin/users/u-9/force-logout", tt.body))
			c.Params = gin.Params{{Key: "id", Value: "u-9"}}

			h.ForceLogout(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, security.target)
		})
	}
}

func TestAdminHandlerScopeErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewAdminHandler(&securityStub{err: appErrors.Clone(appErrors.ErrNotFound, "user not found")})

	w := httptest.NewRecorder()
	c := authedContext(w, httptest.NewRequest(http.MethodGet, "/admin/users/u-9/security", nil))
	c.Params = gin.Params{{Key: "id", Value: "u-9"}}

	h.Security(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminHandlerExportSessions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	security := &securityStub{views: []models.SessionView{
		{SessionID: "sid-1", DeviceType: models.DeviceMobile, IPAddress: "10.0.0.1", UserAgent: "Mozilla/5.0 (iPhone)", CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		{SessionID: "sid-2", DeviceType: models.DeviceDesktop, DeviceFingerprint: "fp-2", UserAgent: "Mozilla/5.0 (Windows NT 10.0)", CreatedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
	}}
	h := NewAdminHandler(security)

	w := httptest.NewRecorder()
	c := authedContext(w, httptest.NewRequest(http.MethodGet, "/admin/users/u-9/sessions/export", nil))
	c.Params = gin.Params{{Key: "id", Value: "u-9"}}

	h.ExportSessions(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-9", security.target)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="sessions-u-9.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "session_id,device_type,device_fingerprint,ip_address,user_agent,created_at\n"+
		"sid-1,mobile,,10.0.0.1,Mozilla/5.0 (iPhone),2026-03-01T09:00:00Z\n"+
		"sid-2,desktop,fp-2,,Mozilla/5.0 (Windows NT 10.0),2026-03-02T09:00:00Z\n", w.Body.String())
}

func TestAdminHandlerExportSessionsScopeError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewAdminHandler(&securityStub{err: appErrors.Clone(appErrors.ErrNotFound, "user not found")})

	w := httptest.NewRecorder()
	c := authedContext(w, httptest.NewRequest(http.MethodGet, "/admin/users/u-9/sessions/export", nil))
	c.Params = gin.Params{{Key: "id", Value: "u-9"}}

	h.ExportSessions(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, appErrors.ErrNotFound.Code, decodeEnvelope(t, w).Error.Code)
}
