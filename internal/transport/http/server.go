package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatrelay/internal/auth"
	"github.com/vovakirdan/chatrelay/internal/config"
	"github.com/vovakirdan/chatrelay/internal/core"
	"github.com/vovakirdan/chatrelay/internal/store"
)

// Deps are the services the HTTP layer exposes.
type Deps struct {
	Dispatcher *core.Dispatcher
	Gateway    *core.Gateway
	Auth       *auth.Service
	Users      store.UserStore
}

// NewServer builds an HTTP server with all routes.
func NewServer(deps Deps, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(deps, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter builds the gin engine.
func NewRouter(deps Deps, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	router.GET("/ws", gin.WrapH(NewWSHandler(deps.Dispatcher, deps.Auth, cfg, logger)))

	if deps.Auth != nil {
		apiHandlers := NewAPIHandlers(deps.Auth, logger)
		authGroup := router.Group("/auth")
		authGroup.POST("/register", apiHandlers.Register)
		authGroup.POST("/login", apiHandlers.Login)
	}

	views := NewViewHandlers(deps.Gateway, deps.Dispatcher.Registry(), logger)
	api := router.Group("/api")
	if cfg.JWT.Required && deps.Auth != nil {
		api.Use(AuthMiddleware(deps.Auth, logger))
	}
	api.GET("/online", views.Online)
	api.GET("/messages", views.PublicMessages)
	api.GET("/rooms/:room/messages", views.RoomMessages)

	if deps.Auth != nil && deps.Users != nil {
		users := NewUserHandlers(deps.Users, logger)
		router.GET("/api/me", AuthMiddleware(deps.Auth, logger), users.Me)
	}

	return router
}
