// Package server exposes a running clock/reset generator over HTTP: health,
// readiness, the sequencer snapshot, domain reset levels, Prometheus metrics
// and a control route for the external reset.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/danmuck/crgctl/internal/crg"
	"github.com/danmuck/crgctl/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

var ErrUnknownAction = errors.New("unknown reset action")

type Server struct {
	Name     string
	Addr     string
	Appeared time.Time

	system *crg.System
	router *gin.Engine
	once   sync.Once
}

func New(sys *crg.System, addr string, corsOrigins []string) *Server {
	observability.RegisterMetrics()
	name := sys.Config().Name
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger, name, sys))
	r.Use(observability.RequestMetricsMiddleware(name, sys))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	return &Server{
		Name:     name,
		Addr:     addr,
		Appeared: time.Now(),
		system:   sys,
		router:   r,
	}
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// RegisterRoutes is safe to call more than once.
func (s *Server) RegisterRoutes() {
	s.once.Do(s.registerRoutes)
}

func (s *Server) registerRoutes() {
	r := s.router
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"system":  s.Name,
			"version": version,
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		released := s.system.Sequencer().Released()
		status := http.StatusOK
		if !released {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready": released,
			"state": s.system.State().String(),
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.Status())
	})

	r.GET("/domains", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"domains": s.Domains()})
	})

	r.GET("/transitions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"transitions": s.Transitions()})
	})

	r.POST("/reset/:action", func(c *gin.Context) {
		action := c.Param("action")
		if err := s.ResetAction(action); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"external_reset": s.system.ExternalReset(),
		})
	})
}

// ResetAction drives the external reset input: "assert" holds it, "release"
// lets the sequencer run.
func (s *Server) ResetAction(action string) error {
	switch action {
	case "assert":
		s.system.AssertReset()
	case "release":
		s.system.ReleaseReset()
	default:
		return ErrUnknownAction
	}
	log.Info().Str("system", s.Name).Str("action", action).Msg("external reset driven")
	return nil
}

// Serve blocks until ctx is cancelled or the listener fails.
func (s *Server) Serve(ctx context.Context) error {
	s.RegisterRoutes()
	srv := &http.Server{Addr: s.Addr, Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info().Str("system", s.Name).Str("addr", s.Addr).Msg("status server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		<-errCh
		return err
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
