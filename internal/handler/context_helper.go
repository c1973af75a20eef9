package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/YathuPiraba/lead-management-system-sub000/internal/middleware"
	"github.com/YathuPiraba/lead-management-system-sub000/internal/models"
	"github.com/YathuPiraba/lead-management-system-sub000/internal/service"
	appErrors "github.com/YathuPiraba/lead-management-system-sub000/pkg/errors"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/logger"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/response"
)

var payloadValidator = validator.New()

// bindPayload decodes the JSON body into dst and enforces its validate tags.
func bindPayload(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return err
	}
	return payloadValidator.Struct(dst)
}

// principalOrAbort returns the authenticated caller or writes a 401.
func principalOrAbort(c *gin.Context) (*models.Principal, bool) {
	principal, ok := middleware.PrincipalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return principal, true
}

// fail records the internal error code on the request log line before the
// caller-visible (possibly generic) error is written.
func fail(c *gin.Context, err error) {
	logger.AddFields(c, zap.String("error_code", appErrors.Code(err)))
	if appErr := appErrors.FromError(err); appErr != nil && appErr.Err != nil {
		logger.AddFields(c, zap.NamedError("cause", appErr.Err))
	}
	response.Error(c, err)
}

func requestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}
