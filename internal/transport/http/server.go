package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/queuesync/internal/client"
	"github.com/vovakirdan/queuesync/internal/config"
)

// NewServer builds the local bridge API over the joined sessions.
func NewServer(registry *client.Registry, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	sessions := NewSessionHandlers(registry, logger)
	events := NewEventHandlers(registry, logger)

	api := router.Group("/api/sessions")
	api.GET("", sessions.List)
	api.POST("/:code", sessions.Join)
	api.DELETE("/:code", sessions.Leave)
	api.GET("/:code/status", sessions.Status)
	api.POST("/:code/connect", sessions.Connect)
	api.POST("/:code/disconnect", sessions.Disconnect)
	api.GET("/:code/queue", sessions.Queue)
	api.POST("/:code/queue", sessions.AddSong)
	api.POST("/:code/votes", sessions.Vote)
	api.GET("/:code/notices", sessions.Notices)
	api.DELETE("/:code/notices/:id", sessions.DismissNotice)
	api.GET("/:code/events", events.Stream)

	return &stdhttp.Server{
		Addr:              cfg.BridgeAddr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
