package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/slidecast/core/internal/modules/auth"
	"github.com/slidecast/core/internal/modules/gateway"
	"github.com/slidecast/core/internal/modules/manifest"
)

var processStart = time.Now()

func (a *App) registerRoutes(authSvc *auth.Service, manifestSvc *manifest.Service) {
	r := a.router

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"message": "method not allowed"})
	})

	api := r.Group("/api/v2")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ok":     1,
			"uptime": int64(time.Since(processStart).Seconds()),
		})
	})

	auth.RegisterRoutes(api, authSvc)
	manifest.NewHandler(manifestSvc).RegisterRoutes(api)
	gateway.RegisterRoutes(api, a.hub)
}
