// Package server wires configuration, database pool and HTTP router together and runs the
// HTTP server until its context is cancelled.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"gitlab.com/dirk.krummacker/personas-service/internal/config"
	"gitlab.com/dirk.krummacker/personas-service/internal/database"
	"gitlab.com/dirk.krummacker/personas-service/internal/logger"
	"gitlab.com/dirk.krummacker/personas-service/internal/persona"
	"gitlab.com/dirk.krummacker/personas-service/internal/service"
)

// Server is the personas HTTP service together with the pool it owns.
type Server struct {
	cfg    *config.Config
	log    zerolog.Logger
	pool   *database.Pool
	router *gin.Engine
	http   *http.Server
}

// New opens the database pool and builds the router. An unreachable database does not fail
// New; only a missing port or an invalid pool configuration does.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Server, error) {
	if err := cfg.ValidateServer(); err != nil {
		return nil, err
	}
	pool, err := database.Open(ctx, cfg.Database, logger.Component(log, "database"))
	if err != nil {
		return nil, err
	}

	var registry *prometheus.Registry
	if cfg.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewDBStatsCollector(pool.DB(), cfg.Database.Name),
		)
	}

	store := persona.NewStore(pool)
	handler := service.NewHandler(store, cfg, logger.Component(log, "http"))
	router := service.SetupHttpRouter(handler, cfg, registry)

	return &Server{
		cfg:    cfg,
		log:    log,
		pool:   pool,
		router: router,
		http: &http.Server{
			Addr:    net.JoinHostPort("", strconv.Itoa(cfg.Port)),
			Handler: router,
		},
	}, nil
}

// Handler returns the router serving the REST API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves HTTP until ctx is cancelled, then shuts the server down gracefully and drains the
// pool. The pool is drained on every return path; a failed drain is returned as an error.
func (s *Server) Run(ctx context.Context) (err error) {
	defer func() {
		if closeErr := s.pool.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info().Str("addr", s.http.Addr).Msg("server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		return nil
	})
	return g.Wait()
}
