package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestEngine(log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Logger(log), Recovery(log), CORS())
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := newTestEngine(zap.New(core))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())

	access := logs.FilterMessage("HTTP request").All()
	if assert.Len(t, access, 1) {
		assert.Equal(t, zapcore.ErrorLevel, access[0].Level)
		assert.Equal(t, int64(http.StatusInternalServerError), access[0].ContextMap()["status"])
	}
}

func TestLogger_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := newTestEngine(zap.New(core))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok?x=1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	entries := logs.FilterMessage("HTTP request").All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
		assert.Equal(t, "x=1", entries[0].ContextMap()["query"])
		assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	}
}

func TestCORS(t *testing.T) {
	r := newTestEngine(zap.NewNop())

	req := httptest.NewRequest(http.MethodOptions, "/ok", nil)
	req.Header.Set("Origin", "http://client.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
