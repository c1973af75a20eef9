package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewarePropagatesID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	var fromGin, fromCtx string
	r.GET("/", func(c *gin.Context) {
		fromGin = Value(c)
		fromCtx = FromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"client supplied", "req-123", true},
		{"missing", "", false},
		{"oversized", strings.Repeat("x", maxLength+1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(headerKey, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			echoed := w.Header().Get(headerKey)
			require.NotEmpty(t, echoed)
			assert.Equal(t, echoed, fromGin)
			assert.Equal(t, echoed, fromCtx)
			if tt.keep {
				assert.Equal(t, tt.header, echoed)
			} else {
				assert.NotEqual(t, tt.header, echoed)
			}
		})
	}
}
