package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestNewAllowsConfiguredOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("Origin", "https://tramite.drtc.gob.pe")

	New([]string{"https://tramite.drtc.gob.pe/"})(c)

	assert.Equal(t, "https://tramite.drtc.gob.pe", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
}

func TestNewSkipsUnknownOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("Origin", "https://otro.example.com")

	New([]string{"https://tramite.drtc.gob.pe"})(c)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewAnswersPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodOptions, "/", nil)
	c.Request.Header.Set("Origin", "https://tramite.drtc.gob.pe")

	New(nil)(c)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://tramite.drtc.gob.pe", rec.Header().Get("Access-Control-Allow-Origin"))
}
