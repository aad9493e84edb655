package requestid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type seenIDs struct {
	gin string
	ctx string
}

func serve(header string) (seenIDs, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	var seen seenIDs
	r := gin.New()
	r.Use(Middleware())
	r.GET("/", func(c *gin.Context) {
		seen = seenIDs{gin: Value(c), ctx: FromContext(c.Request.Context())}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(headerKey, header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return seen, w
}

func TestMiddlewareGeneratesID(t *testing.T) {
	seen, w := serve("")

	assert.Len(t, seen.gin, 36)
	assert.Equal(t, seen.gin, seen.ctx)
	assert.Equal(t, seen.gin, w.Header().Get(headerKey))
}

func TestMiddlewareReusesClientID(t *testing.T) {
	seen, _ := serve("terminal-7-req-42")
	assert.Equal(t, "terminal-7-req-42", seen.ctx)
}

func TestMiddlewareReplacesOversizedID(t *testing.T) {
	seen, _ := serve(strings.Repeat("x", maxLength+1))
	assert.Len(t, seen.gin, 36)
}

func TestFromContextWithoutID(t *testing.T) {
	assert.Empty(t, FromContext(context.Background()))
	assert.Equal(t, "abc", FromContext(WithID(context.Background(), "abc")))
}
