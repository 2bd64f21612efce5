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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/taskboard/internal/api"
	"github.com/starford/taskboard/internal/boardservice"
	"github.com/starford/taskboard/internal/index"
	"github.com/starford/taskboard/internal/mcpserver"
	"github.com/starford/taskboard/internal/sse"
	"github.com/starford/taskboard/internal/storage"
)

// Board bundles an opened board directory, its index and the service over them.
type Board struct {
	Service *boardservice.Service
	Store   storage.Provider
	DB      *index.DB
}

// Close releases the index.
func (b *Board) Close() error {
	return b.DB.Close()
}

// OpenBoard opens the board directory and the index, and brings the index up
// to date. The directory is created when missing.
func OpenBoard(cfg *Config, logger *slog.Logger, opts ...boardservice.Option) (*Board, error) {
	if err := os.MkdirAll(cfg.Board.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create board dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Board.Dir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	files := cfg.Board.Files()
	if err := index.Sync(db, store, files, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	opts = append([]boardservice.Option{
		boardservice.WithIDFormat(cfg.Board.IDPrefix, cfg.Board.IDWidth),
		boardservice.WithLogger(logger),
	}, opts...)
	svc := boardservice.New(store, db, files, opts...)
	return &Board{Service: svc, Store: store, DB: db}, nil
}

// NewLogger returns the structured JSON logger used by every command.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts...)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := NewLogger(app.logOutput, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("board_dir", cfg.Board.Dir),
		slog.String("active_file", cfg.Board.ActiveFile),
		slog.String("archive_file", cfg.Board.ArchiveFile),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	board, err := OpenBoard(cfg, logger, boardservice.WithPublisher(broker))
	if err != nil {
		return err
	}
	defer board.Close()

	apiRouter := api.NewRouter(board.Service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := board.Service.Checksum(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"board not initialized"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher; external edits refresh the index and notify clients.
	g.Go(func() error {
		err := index.Watch(gCtx, board.DB, board.Store, cfg.Board.Files(), logger, func(name string) {
			broker.PublishFileEvent(name)
		})
		if err != nil {
			logger.Error("file watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

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

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio. Logs go to the configured output,
// never stdout, which carries the protocol.
func RunMCP(_ context.Context, opts ...Option) error {
	app := newApplication(opts...)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	logOutput := app.logOutput
	if logOutput == os.Stdout {
		logOutput = os.Stderr
	}
	logger := NewLogger(logOutput, app.config.App.LogLevel)
	slog.SetDefault(logger)

	board, err := OpenBoard(app.config, logger)
	if err != nil {
		return err
	}
	defer board.Close()

	logger.Info("MCP server starting", slog.String("board_dir", app.config.Board.Dir))
	return mcpserver.New(board.Service).ServeStdio()
}
