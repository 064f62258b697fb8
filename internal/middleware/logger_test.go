package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerLevelsAndPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.DebugLevel)

	r := gin.New()
	r.Use(Logger(zap.New(core)))
	r.GET("/api/v2/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/socket.io/", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/api/v2/health?check=1", "/socket.io/?EIO=4", "/boom"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("logged %d entries, want 3", len(entries))
	}
	wantLevels := []zapcore.Level{zapcore.InfoLevel, zapcore.DebugLevel, zapcore.ErrorLevel}
	for i, want := range wantLevels {
		if entries[i].Level != want {
			t.Errorf("entry %d level = %s, want %s", i, entries[i].Level, want)
		}
	}
	if got := entries[0].ContextMap()["path"]; got != "/api/v2/health?check=1" {
		t.Errorf("path = %v, want query string included", got)
	}
}
