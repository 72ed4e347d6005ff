package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nnaudify/audify/internal/jobs"
	"github.com/nnaudify/audify/internal/repositories"
	"github.com/nnaudify/audify/internal/resolver"
	"github.com/nnaudify/audify/internal/server"
	"github.com/nnaudify/audify/internal/shared"
	"github.com/nnaudify/audify/internal/stream"
	"github.com/nnaudify/audify/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Serve wires the full service together and runs the HTTP API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	host := config.Server.Host
	if cmd.String("host") != "" {
		host = cmd.String("host")
	}
	port := config.Server.Port
	if v := cmd.Int("port"); v != 0 {
		port = int(v)
	}

	if err := os.MkdirAll(config.DownloadsDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	// A fresh database gets its schema here, so serve works without a
	// prior setup run. Applied migrations are skipped.
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	playlists := repositories.NewPlaylistRepository(db)
	downloads := repositories.NewDownloadRepository(db)
	history := repositories.NewHistoryRepository(db)

	trackResolver := resolver.New(r.provider, r.logger)
	proxy := stream.NewProxy(trackResolver, r.httpClient, r.logger)
	tracker := jobs.NewTracker(time.Duration(config.Jobs.RetentionMinutes)*time.Minute, r.logger)
	importer := tasks.NewImportEngine(r.provider, r.exporter, playlists, config.Import.RateLimit, r.logger)
	downloader := tasks.NewDownloadEngine(trackResolver, downloads, r.httpClient, config.DownloadsDir(), r.logger)

	handlers := server.NewHandlers(
		r.provider,
		trackResolver,
		proxy,
		tracker,
		importer,
		downloader,
		playlists,
		downloads,
		history,
		config.DownloadsDir(),
		r.logger,
	)

	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger), server.CORS())
	handlers.Register(router)

	serverAddr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting API server at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-stop:
		r.logger.Info("shutting down", "signal", sig)
	case <-ctx.Done():
		r.logger.Info("shutting down", "reason", ctx.Err())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	return nil
}
