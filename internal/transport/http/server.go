package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/sketchwire/sketchwire-server/internal/auth"
	"github.com/sketchwire/sketchwire-server/internal/config"
	"github.com/sketchwire/sketchwire-server/internal/core"
	"github.com/sketchwire/sketchwire-server/internal/store"
)

// NewServer builds the HTTP server: REST endpoints for auth, rooms and the
// bootstrap fetch, plus the /ws relay endpoint.
func NewServer(hub *core.Hub, authService *auth.Service, st store.Store, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	apiHandlers := NewAPIHandlers(authService, logger)
	roomHandlers := NewRoomHandlers(st, logger)

	router.GET("/health", healthHandler)
	router.POST("/signup", apiHandlers.Signup)
	router.POST("/signin", apiHandlers.Signin)
	router.GET("/room/:slug", roomHandlers.ResolveRoom)
	router.GET("/chats/:roomId", roomHandlers.ListRoomShapes)

	authed := router.Group("/", AuthMiddleware(authService, logger))
	authed.POST("/api/rooms", roomHandlers.CreateRoom)
	authed.GET("/api/rooms", roomHandlers.ListRooms)
	authed.POST("/shape/update", roomHandlers.UpsertShape)

	router.GET("/ws", gin.WrapH(NewWSHandler(hub, authService, logger)))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
