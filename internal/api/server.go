package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/heimdex/heimdex-clipper/internal/batch"
	"github.com/heimdex/heimdex-clipper/internal/editor"
	"github.com/heimdex/heimdex-clipper/internal/history"
	"github.com/heimdex/heimdex-clipper/internal/playback"
	"github.com/heimdex/heimdex-clipper/internal/preview"
	"github.com/heimdex/heimdex-clipper/internal/render"
	"github.com/heimdex/heimdex-clipper/internal/session"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port      int
	Tokens    TokenSource
	Workspace *editor.Workspace
	Batch     *batch.Orchestrator
	Sessions  *session.Reconciler
	History   *history.Recorder
	Preview   *preview.Manager
	Playback  *playback.Server
	Probe     *render.CachedProbe
	Logger    *slog.Logger
	StartTime time.Time
	Version   string

	// BatchContext outlives any request; background batches run on it.
	BatchContext context.Context
}

func (cfg ServerConfig) batchContext() context.Context {
	if cfg.BatchContext != nil {
		return cfg.BatchContext
	}
	return context.Background()
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
