package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/siro844/excalidraw/internal/auth"
	"github.com/siro844/excalidraw/internal/config"
	"github.com/siro844/excalidraw/internal/relay"
	"github.com/siro844/excalidraw/internal/store"
)

// NewServer builds the HTTP server: REST API, health check, and the WebSocket
// relay endpoint.
func NewServer(router *relay.Router, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(LoggerMiddleware(logger), gin.Recovery())

	engine.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	apiHandlers := NewAPIHandlers(authService, st, cfg.SignupRateLimit, logger)
	roomHandlers := NewRoomHandlers(st, logger)

	api := engine.Group("/api/v1")
	api.POST("/auth/signup", apiHandlers.Signup)
	api.POST("/auth/login", apiHandlers.Login)

	authed := api.Group("")
	authed.Use(AuthMiddleware(authService, logger))
	authed.GET("/auth/me", apiHandlers.Me)
	authed.POST("/rooms", roomHandlers.CreateRoom)
	authed.GET("/rooms", roomHandlers.ListRooms)
	authed.GET("/rooms/:roomId/chats", roomHandlers.ListChats)

	engine.GET("/ws", gin.WrapH(NewWSHandler(router, authService, logger)))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
