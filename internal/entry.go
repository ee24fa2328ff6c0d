// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/kenaz-notebook/internal/api"
	"github.com/starford/kenaz-notebook/internal/exporter"
	"github.com/starford/kenaz-notebook/internal/mcpserver"
	"github.com/starford/kenaz-notebook/internal/sse"
	"github.com/starford/kenaz-notebook/internal/storage"
	"github.com/starford/kenaz-notebook/internal/workspace"
)

// runtime is what every command needs: the logger, the storage provider and
// the workspace on top of it.
type runtime struct {
	cfg      *Config
	logger   *slog.Logger
	provider storage.Provider
	fs       *storage.FS // nil unless the fs backend is used
	ws       *workspace.Workspace
}

func (rt *runtime) close() {
	rt.ws.Close()
	if err := rt.provider.Close(); err != nil {
		rt.logger.Error("storage close failed", slog.String("error", err.Error()))
	}
}

func setup(app *application) (*runtime, error) {
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.String("link_scope", cfg.Links.Scope),
		slog.String("log_level", cfg.App.LogLevel.String()))

	rt := &runtime{cfg: cfg, logger: logger}

	switch cfg.Storage.Backend {
	case BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		db, err := storage.OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		rt.provider = db
	default:
		if err := os.MkdirAll(cfg.Storage.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		fs, err := storage.NewFS(cfg.Storage.Dir)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		rt.provider, rt.fs = fs, fs
	}

	rt.ws = workspace.Open(workspace.Options{
		Provider:           rt.provider,
		Logger:             logger,
		CommitDelay:        cfg.Editor.CommitDelay,
		SaveIndicatorDelay: cfg.Editor.SaveIndicatorDelay,
		LinkScope:          cfg.Links.Scope,
		SeedDemo:           cfg.Workspace.SeedDemo,
	})
	return rt, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	rt, err := setup(newApplication(opts))
	if err != nil {
		return err
	}
	defer rt.close()

	cfg, logger := rt.cfg, rt.logger

	// SSE broker fed by workspace events.
	broker := sse.NewBroker(cfg.SSE.GraphThrottle)
	defer broker.Close()
	unsubscribe := rt.ws.Subscribe(func(ev workspace.Event) {
		broker.PublishChange(ev.Kind, ev.FolderID, ev.NoteID)
	})
	defer unsubscribe()

	apiRouter := api.NewRouter(rt.ws, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"ok","save_status":%q}`, rt.ws.SaveStatus())
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reload the tree when another process rewrites the data files.
	if rt.fs != nil && cfg.Storage.Watch {
		g.Go(func() error {
			err := storage.Watch(gCtx, rt.fs, 200*time.Millisecond, logger, func(key string) {
				if key == storage.KeyFolders {
					logger.Info("External change detected, reloading", slog.String("key", key))
					rt.ws.Reload()
				}
			})
			if err != nil {
				logger.Warn("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
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

		logger.Info("Shutting down server...")

		// Close the SSE streams first, otherwise Shutdown waits on them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group context so the watcher stops too.
var errShutdown = errors.New("shutdown")

// RunMCP serves the notebook tools over stdio until the client disconnects.
func RunMCP(_ context.Context, opts ...Option) error {
	app := newApplication(opts)
	rt, err := setup(app)
	if err != nil {
		return err
	}
	defer rt.close()

	rt.logger.Info("MCP server starting on stdio")
	if err := mcpserver.New(rt.ws, app.version).ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// RunExport writes a backup of the stored folders to out. An empty out
// writes a timestamped file in the current directory; "-" writes to w.
func RunExport(_ context.Context, out string, w io.Writer, opts ...Option) error {
	rt, err := setup(newApplication(opts))
	if err != nil {
		return err
	}
	defer rt.close()

	name, data, err := exporter.Export(rt.ws.Snapshot(), time.Now())
	if err != nil {
		return err
	}
	if out == "-" {
		_, err := w.Write(data)
		return err
	}
	if out == "" {
		out = name
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	rt.logger.Info("Export written", slog.String("path", out))
	return nil
}
