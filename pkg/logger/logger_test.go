package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/YathuPiraba/lead-management-system-sub000/pkg/middleware/requestid"
)

func TestGinMiddlewareLogsRequestAndExtraFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)
	l := zap.New(core)

	r := gin.New()
	r.Use(requestid.Middleware())
	r.Use(GinMiddleware(l))
	r.GET("/login", func(c *gin.Context) {
		AddFields(c, zap.String("tenant", "acme"))
		WithRequest(c.Request.Context(), l).Info("session opened")
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.Header.Set("X-Request-ID", "req-42")
	r.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)

	assert.Equal(t, "session opened", entries[0].Message)
	assert.Equal(t, "req-42", entries[0].ContextMap()["request_id"])

	line := entries[1].ContextMap()
	assert.Equal(t, "http_request", entries[1].Message)
	assert.Equal(t, "req-42", line["request_id"])
	assert.Equal(t, "acme", line["tenant"])
	assert.Equal(t, int64(http.StatusNoContent), line["status"])
}

func TestWithRequestWithoutID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := zap.New(core)

	WithRequest(httptest.NewRequest(http.MethodGet, "/", nil).Context(), l).Info("plain")

	require.Equal(t, 1, logs.Len())
	_, ok := logs.All()[0].ContextMap()["request_id"]
	assert.False(t, ok)
}
