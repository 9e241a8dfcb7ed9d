package http

import (
	"context"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/lobbychat/internal/config"
	"github.com/vovakirdan/lobbychat/internal/core"
)

// Hub is the part of the core the transport talks to.
type Hub interface {
	RegisterClient(c *core.Client)
	UnregisterClient(c *core.Client)
}

// Pinger reports store reachability for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewServer builds an HTTP server with the health and realtime routes.
func NewServer(hub Hub, pinger Pinger, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery(), LoggerMiddleware(logger))
	engine.GET("/health", healthHandler(pinger, logger))
	engine.GET("/ws", gin.WrapH(NewWSHandler(hub, cfg.WS, logger)))

	// An empty origin list lets rs/cors allow every origin.
	handler := cors.New(cors.Options{
		AllowedOrigins: cfg.WS.AllowedOrigins,
		AllowedMethods: []string{stdhttp.MethodGet, stdhttp.MethodOptions},
		MaxAge:         300,
	}).Handler(engine)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(pinger Pinger, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if pinger != nil {
			if err := pinger.Ping(c.Request.Context()); err != nil {
				logger.Warn().Err(err).Msg("health check: store unreachable")
				c.String(stdhttp.StatusServiceUnavailable, "store unavailable")
				return
			}
		}
		c.String(stdhttp.StatusOK, "ok")
	}
}
