package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/blurbapp/blurb/internal/auth"
	"github.com/blurbapp/blurb/internal/config"
	"github.com/blurbapp/blurb/internal/domain"
	"github.com/blurbapp/blurb/internal/httpserver"
	"github.com/blurbapp/blurb/internal/sqlite"
	"github.com/blurbapp/blurb/internal/token"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up the repository (implements all the domain repository ports)
	repo, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	defer repo.Close()
	logger.Info("opened database", "path", cfg.DatabasePath)

	// Set up auth: credential store + token issuer
	issuer := token.NewIssuer([]byte(cfg.TokenSecret), cfg.TokenTTL)
	creds := auth.NewCredentialStore(repo, cfg.BcryptCost)
	authSvc := auth.NewService(creds, issuer, logger)

	// Set up the content service
	content := domain.NewContentService(repo, repo, repo, repo, cfg.StoryTTL, logger)

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start the background story-expiry sweeper
	go content.StartExpirySweeper(ctx, cfg.SweepInterval)

	// Start the HTTP server
	server := httpserver.NewServer(cfg, content, authSvc, issuer, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started", "port", cfg.Port)

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}
