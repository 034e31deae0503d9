package server

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/cruxline/crux-engine/internal/config"
)

// NewRouter builds the gin engine with the identity middleware applied and
// all provided feature registrars mounted under /v1.
func NewRouter(cfg *config.Config, registrars ...Registrar) *gin.Engine {
	if cfg.App.ENV != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		Respond(c, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1", Identity())
	for _, r := range registrars {
		r.Register(v1)
	}

	return router
}

// StartHTTPServer boots the HTTP server and blocks until it exits.
func StartHTTPServer(cfg *config.Config, registrars ...Registrar) error {
	router := NewRouter(cfg, registrars...)
	addr := fmt.Sprintf("%s:%s", cfg.HTTP.Host, cfg.HTTP.Port)
	if err := router.Run(addr); err != nil {
		return fmt.Errorf("http server failed on %s: %w", addr, err)
	}
	return nil
}
