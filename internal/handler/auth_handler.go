package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/YathuPiraba/lead-management-system-sub000/internal/middleware"
	"github.com/YathuPiraba/lead-management-system-sub000/internal/models"
	"github.com/YathuPiraba/lead-management-system-sub000/internal/service"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/config"
	appErrors "github.com/YathuPiraba/lead-management-system-sub000/pkg/errors"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/response"
)

// RefreshTokenHeader carries a refresh token for clients that cannot use cookies.
const RefreshTokenHeader = "X-Refresh-Token"

type sessionAuthority interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	Refresh(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error)
	Authenticate(ctx context.Context, accessToken string) (*models.Principal, error)
	Logout(ctx context.Context, principal *models.Principal, target string) (int, error)
	LogoutOthers(ctx context.Context, principal *models.Principal) (int, error)
	LogoutAll(ctx context.Context, principal *models.Principal) (int, error)
}

type accountService interface {
	ChangePassword(ctx context.Context, principal *models.Principal, req models.ChangePasswordRequest, meta service.RequestMeta) (int, error)
}

// AuthHandlerOptions controls token transport.
type AuthHandlerOptions struct {
	Cookie     config.CookieConfig
	Tenant     config.TenantConfig
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// AuthHandler wires HTTP endpoints to the session authority.
type AuthHandler struct {
	authority sessionAuthority
	accounts  accountService
	opts      AuthHandlerOptions
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(authority sessionAuthority, accounts accountService, opts AuthHandlerOptions) *AuthHandler {
	if opts.Cookie.Transport == "" {
		opts.Cookie.Transport = config.TransportBoth
	}
	if opts.Cookie.Path == "" {
		opts.Cookie.Path = "/"
	}
	return &AuthHandler{authority: authority, accounts: accounts, opts: opts}
}

func (h *AuthHandler) usesCookies() bool {
	return h.opts.Cookie.Transport == config.TransportCookie || h.opts.Cookie.Transport == config.TransportBoth
}

func (h *AuthHandler) usesBody() bool {
	return h.opts.Cookie.Transport == config.TransportBody || h.opts.Cookie.Transport == config.TransportBoth
}

func (h *AuthHandler) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	if name == "" {
		return
	}
	switch strings.ToLower(h.opts.Cookie.SameSite) {
	case "strict":
		c.SetSameSite(http.SameSiteStrictMode)
	case "none":
		c.SetSameSite(http.SameSiteNoneMode)
	default:
		c.SetSameSite(http.SameSiteLaxMode)
	}
	maxAge := int(ttl.Seconds())
	if value == "" {
		maxAge = -1
	}
	c.SetCookie(name, value, maxAge, h.opts.Cookie.Path, h.opts.Cookie.Domain, h.opts.Cookie.Secure, true)
}

func (h *AuthHandler) setTokenCookies(c *gin.Context, access, refresh string) {
	if !h.usesCookies() {
		return
	}
	h.setCookie(c, h.opts.Cookie.AccessName, access, h.opts.AccessTTL)
	h.setCookie(c, h.opts.Cookie.RefreshName, refresh, h.opts.RefreshTTL)
}

func (h *AuthHandler) clearTokenCookies(c *gin.Context) {
	h.setTokenCookies(c, "", "")
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate by username and password, opening a new session
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")
	if req.Tenant == "" {
		req.Tenant = middleware.TenantIndicator(c, h.opts.Tenant)
	}

	res, err := h.authority.Login(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}

	h.setTokenCookies(c, res.AccessToken, res.RefreshToken)
	if !h.usesBody() {
		res.AccessToken, res.RefreshToken = "", ""
	}
	response.JSON(c, http.StatusOK, res)
}

// Refresh godoc
// @Summary Refresh access token
// @Description Exchange a refresh token (cookie, X-Refresh-Token header or body) for a new access token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RefreshTokenRequest false "Refresh payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshTokenRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid refresh payload"))
			return
		}
	}
	if req.RefreshToken == "" {
		req.RefreshToken = strings.TrimSpace(c.GetHeader(RefreshTokenHeader))
	}
	if req.RefreshToken == "" && h.usesCookies() {
		if value, err := c.Cookie(h.opts.Cookie.RefreshName); err == nil {
			req.RefreshToken = value
		}
	}
	if req.RefreshToken == "" {
		fail(c, appErrors.ErrUnauthorized)
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.authority.Refresh(c.Request.Context(), req)
	if err != nil {
		h.clearTokenCookies(c)
		fail(c, err)
		return
	}

	h.setTokenCookies(c, res.AccessToken, res.RefreshToken)
	if !h.usesBody() {
		res.AccessToken, res.RefreshToken = "", ""
	}
	response.JSON(c, http.StatusOK, res)
}

// Verify godoc
// @Summary Check access token
// @Description Report whether the presented access token is currently valid. No side effects.
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/verify [get]
func (h *AuthHandler) Verify(c *gin.Context) {
	token := middleware.AccessToken(c, h.opts.Cookie.AccessName)
	valid := false
	if token != "" {
		_, err := h.authority.Authenticate(c.Request.Context(), token)
		valid = err == nil
	}
	response.JSON(c, http.StatusOK, models.VerifyResponse{Valid: valid})
}

// Me godoc
// @Summary Current principal
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"user":       models.NewUserInfo(principal.Identity),
		"session_id": principal.SessionID,
	})
}

// Logout godoc
// @Summary Logout a session
// @Description End the named session of the caller, or the current one when none is given
// @Tags Authentication
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.LogoutRequest false "Target session"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}

	var req models.LogoutRequest
	if c.Request.ContentLength > 0 {
		if err := bindPayload(c, &req); err != nil {
			fail(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid logout payload"))
			return
		}
	}

	count, err := h.authority.Logout(c.Request.Context(), principal, req.SessionID)
	if err != nil {
		fail(c, err)
		return
	}
	if req.SessionID == "" || req.SessionID == principal.SessionID {
		h.clearTokenCookies(c)
	}
	response.JSON(c, http.StatusOK, models.LogoutResponse{LoggedOutCount: count})
}

// LogoutOthers godoc
// @Summary Logout other sessions
// @Description End every session of the caller except the current one
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/logout/others [post]
func (h *AuthHandler) LogoutOthers(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	count, err := h.authority.LogoutOthers(c.Request.Context(), principal)
	if err != nil {
		fail(c, err)
		return
	}
	response.JSON(c, http.StatusOK, models.LogoutResponse{LoggedOutCount: count})
}

// LogoutAll godoc
// @Summary Logout everywhere
// @Description End every session of the caller
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/logout/all [post]
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	count, err := h.authority.LogoutAll(c.Request.Context(), principal)
	if err != nil {
		fail(c, err)
		return
	}
	h.clearTokenCookies(c)
	response.JSON(c, http.StatusOK, models.LogoutResponse{LoggedOutCount: count})
}

// ChangePassword godoc
// @Summary Change password
// @Description Change password for current user and end all other sessions
// @Tags Authentication
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.ChangePasswordRequest true "Change password"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}

	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	count, err := h.accounts.ChangePassword(c.Request.Context(), principal, req, requestMeta(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.JSON(c, http.StatusOK, models.LogoutResponse{LoggedOutCount: count})
}
