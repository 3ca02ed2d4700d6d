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

func newRouter() (*gin.Engine, *string) {
	gin.SetMode(gin.TestMode)
	var captured string
	r := gin.New()
	r.Use(Middleware())
	r.GET("/ping", func(c *gin.Context) {
		captured = Value(c)
		c.Status(http.StatusOK)
	})
	return r, &captured
}

func TestMiddlewareKeepsInboundID(t *testing.T) {
	r, captured := newRouter()

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "caller-trace-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "caller-trace-42", *captured)
	assert.Equal(t, "caller-trace-42", w.Header().Get("X-Request-ID"))
}

func TestMiddlewareGeneratesWhenMissing(t *testing.T) {
	r, captured := newRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.NotEmpty(t, *captured)
	assert.Equal(t, *captured, w.Header().Get("X-Request-ID"))
}

func TestMiddlewareReplacesMalformedID(t *testing.T) {
	r, captured := newRouter()

	cases := []string{
		"has spaces",
		"bad\nnewline",
		strings.Repeat("x", 65),
	}
	for _, inbound := range cases {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header["X-Request-Id"] = []string{inbound}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.NotEmpty(t, *captured)
		assert.NotEqual(t, inbound, *captured)
	}
}
