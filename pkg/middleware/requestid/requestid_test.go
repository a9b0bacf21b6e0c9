package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewarePropagatesIncomingID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set(Header, "req-abc")

	Middleware()(c)

	assert.Equal(t, "req-abc", Value(c))
	assert.Equal(t, "req-abc", rec.Header().Get(Header))
}

func TestMiddlewareMintsIDWhenAbsent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	Middleware()(c)

	assert.NotEmpty(t, Value(c))
	assert.Equal(t, Value(c), rec.Header().Get(Header))
}
