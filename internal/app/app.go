// Package app wires the server together: config, database, redis, the
// in-process broker, the socket.io hub, and the HTTP routes.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/slidecast/core/internal/config"
	"github.com/slidecast/core/internal/database"
	"github.com/slidecast/core/internal/middleware"
	"github.com/slidecast/core/internal/modules/auth"
	"github.com/slidecast/core/internal/modules/gateway"
	"github.com/slidecast/core/internal/modules/grading"
	"github.com/slidecast/core/internal/modules/manifest"
	"github.com/slidecast/core/internal/pkg/jwt"
	pkgredis "github.com/slidecast/core/internal/pkg/redis"
	"github.com/slidecast/core/internal/transport"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	db     *gorm.DB
	broker *transport.Broker
	hub    *gateway.Hub
	relay  *grading.Relay
	logger *zap.Logger
	cancel context.CancelFunc
}

// New initializes the application: config, DB, redis, broker, hub, routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	jwt.SetSecret(cfg.JWTSecret)

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	// Redis is optional: without it the broker still serves a single
	// instance, it just cannot fan out to peers.
	var rc *pkgredis.Client
	if cfg.RedisURL != "" {
		rc, err = pkgredis.Connect(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg)))
	if rc != nil {
		router.Use(middleware.RateLimit(rc.Raw()))
		router.Use(middleware.Idempotence(rc.Raw()))
		router.Use(middleware.HTTPCache(rc.Raw(), middleware.HTTPCacheOptions{
			SkipPaths: []string{"/api/v2/live*", "/api/v2/socket.io*", "/api/v2/auth*"},
		}))
	}

	var brokerOpts []transport.Option
	if rc != nil {
		brokerOpts = append(brokerOpts, transport.WithRedis(rc))
	}
	broker := transport.NewBroker(logger, brokerOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	go broker.Run(ctx)

	hub := gateway.NewHub(broker, logger, func(token string) bool {
		claims, err := middleware.ValidateToken(token)
		return err == nil && claims.Role == middleware.RoleTeacher
	}, cfg.HeartbeatPeriod(), cfg.StaleGrace())
	go hub.Run(ctx)

	authSvc := auth.NewService(db, logger)
	if err := authSvc.EnsureSeedUser(cfg); err != nil {
		cancel()
		return nil, fmt.Errorf("seed user: %w", err)
	}

	manifestSvc := manifest.NewService(db, broker, logger)

	var relay *grading.Relay
	if cfg.Grading.URL != "" {
		upstream := grading.NewUpstream(cfg.Grading.URL, cfg.Grading.Secret, logger)
		relay = grading.NewRelay(broker, upstream, logger)
		manifestSvc.OnRoomCreated(func(key string) {
			if err := relay.EnsureRoom(context.Background(), key); err != nil {
				logger.Warn("grading relay attach failed", zap.String("room", key), zap.Error(err))
			}
		})
		if rooms, err := manifestSvc.ListRooms(); err == nil {
			for _, room := range rooms {
				if err := relay.EnsureRoom(ctx, room.Key); err != nil {
					logger.Warn("grading relay attach failed", zap.String("room", room.Key), zap.Error(err))
				}
			}
		}
	}

	app := &App{
		cfg:    cfg,
		router: router,
		db:     db,
		broker: broker,
		hub:    hub,
		relay:  relay,
		logger: logger,
		cancel: cancel,
	}
	app.registerRoutes(authSvc, manifestSvc)
	return app, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background goroutines.
func (a *App) Shutdown() {
	if a.relay != nil {
		a.relay.Close()
	}
	a.cancel()
}

func corsConfig(cfg *config.AppConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		patterns := cfg.AllowedOrigins
		c.AllowOriginFunc = func(origin string) bool {
			host := originHost(origin)
			for _, pattern := range patterns {
				if originAllowed(pattern, host) {
					return true
				}
			}
			return false
		}
	} else {
		c.AllowOriginFunc = func(string) bool { return true }
	}
	return c
}
