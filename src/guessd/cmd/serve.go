package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/q-controller/guessit/src/pkg/config"
	"github.com/q-controller/guessit/src/pkg/events"
	"github.com/q-controller/guessit/src/pkg/game"
	"github.com/q-controller/guessit/src/pkg/storefactory"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout      = 10 * time.Second
	sessionSweepInterval = time.Minute
)

func serve(ctx context.Context, cfg *config.Config) (retErr error) {
	storage, storageErr := storefactory.Open(ctx, cfg.Storage)
	if storageErr != nil {
		return fmt.Errorf("failed to open storage: %w", storageErr)
	}
	defer func() {
		if closeErr := storage.Close(); closeErr != nil {
			retErr = errors.Join(retErr, closeErr)
		}
	}()

	hub := events.NewHub(ctx)
	sessions := game.NewSessions(cfg.SessionCookie)
	opts := []game.Option{
		game.WithEvents(hub),
		game.WithSessions(sessions),
	}
	if storage.Objects != nil {
		opts = append(opts, game.WithObjects(storage.Objects, cfg.Storage.Blob.Local.URLPrefix))
	}

	srv, srvErr := game.CreateServer(storage.Items, opts...)
	if srvErr != nil {
		return fmt.Errorf("failed to create server: %w", srvErr)
	}
	handler, handlerErr := srv.Handler()
	if handlerErr != nil {
		return fmt.Errorf("failed to create handler: %w", handlerErr)
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Listening", "addr", httpServer.Addr, "backend", cfg.Storage.Backend)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		sessions.Run(gctx, sessionSweepInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the game HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, configPathErr := cmd.Flags().GetString("config")
		if configPathErr != nil {
			return fmt.Errorf("failed to get config: %w", configPathErr)
		}

		cfg, cfgErr := config.Load(configPath)
		if cfgErr != nil {
			return cfgErr
		}
		slog.Debug("Read config", "config", cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "Path to the config file; defaults and environment apply when omitted")
}
