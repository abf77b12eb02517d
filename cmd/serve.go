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

	"github.com/spf13/cobra"

	"github.com/weathernow/weathernow/internal/backend"
	"github.com/weathernow/weathernow/internal/config"
	"github.com/weathernow/weathernow/internal/database"
	"github.com/weathernow/weathernow/internal/server"
	"github.com/weathernow/weathernow/internal/widget"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the widget server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		logger, err := cfg.Log.NewLogger(os.Stderr)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)

		store, err := database.Open(cfg.Session.Driver, cfg.Session.DSN, cfg.Session.TTL)
		if err != nil {
			return fmt.Errorf("opening session store: %w", err)
		}
		defer store.Close()

		client := backend.New(backend.Options{
			BaseURL:   cfg.Backend.BaseURL,
			Timeout:   cfg.Backend.Timeout,
			RateLimit: cfg.Backend.RateLimit,
			Burst:     cfg.Backend.Burst,
		})
		w := widget.New(client, store, logger)
		sweeper := database.NewSweeper(store, cfg.Session.TTL, cfg.Session.SweepInterval, logger)

		srv, err := server.New(server.Config{
			Addr:           cfg.Server.Addr,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}, w, sweeper, logger)
		if err != nil {
			return fmt.Errorf("creating server: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("shutdown failed", "error", err)
			}
		}()

		logger.Info("starting weathernow",
			"version", Version,
			"backend", cfg.Backend.BaseURL,
			"session_driver", store.DatabaseType(),
		)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}
