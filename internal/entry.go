// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/folio/internal/api"
	"github.com/starford/folio/internal/docs"
	"github.com/starford/folio/internal/mcpserver"
	"github.com/starford/folio/internal/metrics"
	"github.com/starford/folio/internal/noteservice"
	"github.com/starford/folio/internal/sse"
	"github.com/starford/folio/internal/storage"
	"github.com/starford/folio/internal/store"
)

var errConfigRequired = errors.New("config is required")

const shutdownTimeout = 10 * time.Second

// services holds everything the HTTP server and the MCP server share.
type services struct {
	db      *store.DB
	broker  *sse.Broker
	metrics *metrics.Metrics
	notes   *noteservice.Service
	docs    *docs.Service
	uploads *storage.FS
}

func openServices(cfg *Config, logger *slog.Logger) (*services, error) {
	if dir := filepath.Dir(cfg.SQLite.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	s := &services{db: db, metrics: metrics.New()}
	s.broker = sse.NewBroker(cfg.App.HTTP.TreeThrottle)
	s.metrics.TrackSSEClients(s.broker.ClientCount)
	s.notes = noteservice.New(db,
		noteservice.WithPublisher(s.broker),
		noteservice.WithMetrics(s.metrics),
	)

	if err := os.MkdirAll(cfg.Uploads.Dir, 0o755); err != nil {
		s.close()
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	if s.uploads, err = storage.NewFS(cfg.Uploads.Dir, api.ImageExtensions...); err != nil {
		s.close()
		return nil, fmt.Errorf("init uploads: %w", err)
	}

	if cfg.Docs.Root != "" {
		root, err := storage.NewFS(cfg.Docs.Root, ".md")
		if err != nil {
			s.close()
			return nil, fmt.Errorf("init docs: %w", err)
		}
		s.docs = docs.NewService(root, cfg.Docs.Files, logger)
	}
	return s, nil
}

func (s *services) close() {
	if s.broker != nil {
		s.broker.Close()
	}
	if err := s.db.Close(); err != nil {
		slog.Warn("close store", slog.String("error", err.Error()))
	}
}

func (s *services) handler(cfg *Config, logger *slog.Logger) http.Handler {
	return api.NewServer(api.Deps{
		Notes:       s.notes,
		Docs:        s.docs,
		Uploads:     api.NewUploadHandler(s.uploads, cfg.Uploads.MaxBytes, logger),
		Events:      s.broker,
		Metrics:     s.metrics,
		AuthEnabled: cfg.Auth.AuthEnabled(),
		AuthToken:   cfg.Auth.Token,
		CORSOrigins: cfg.App.HTTP.CORSOrigins,
		Logger:      logger,
	})
}

// Run starts the HTTP server with the given options and blocks until ctx is cancelled or a
// shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stdout)
	if err != nil {
		return err
	}
	cfg, logger := app.config, app.logger
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("docs_root", cfg.Docs.Root),
		slog.String("uploads_dir", cfg.Uploads.Dir),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	svc, err := openServices(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.close()

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           svc.handler(cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if svc.docs != nil {
		g.Go(func() error {
			err := svc.docs.Watch(gCtx, cfg.Docs.Debounce, func(ids []string) {
				for range ids {
					svc.metrics.DocsReloaded()
				}
				svc.broker.PublishDocsUpdated(ids)
			})
			if err != nil {
				// Docs are optional; the notes API keeps serving.
				logger.Warn("docs watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		// Close SSE streams first, otherwise Shutdown waits on them.
		svc.broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the note tools over stdio. Logs go to stderr because stdout carries the protocol.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(app.logger)

	svc, err := openServices(app.config, app.logger)
	if err != nil {
		return err
	}
	defer svc.close()

	app.logger.Info("MCP server starting", slog.String("sqlite_path", app.config.SQLite.Path))
	return mcpserver.New(svc.notes, svc.uploads).ServeStdio()
}
