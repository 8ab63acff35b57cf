package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/shramba/internal/api"
	"github.com/erazemk/shramba/internal/store"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reminder scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), root)
		},
	}
}

func serve(ctx context.Context, root *rootOptions) error {
	cfg, logger := root.cfg, root.logger

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	jwtSecret, err := store.GetJWTSecret(ctx, a.db)
	if err != nil {
		return err
	}

	deps := api.Deps{
		DB:        a.db,
		JWTSecret: jwtSecret,
		Recipes:   a.finder,
		Mailer:    a.dispatcher,
		Events:    a.emitter,
		Providers: a.providers,
	}
	if cfg.ReminderEnabled {
		if err := a.scheduler.Start(ctx); err != nil {
			return err
		}
		defer a.scheduler.Stop()
		deps.Scheduler = a.scheduler
	} else {
		logger.Info("reminder scheduler disabled")
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.LoggingMiddleware(api.NewRouter(deps)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", cfg.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server forced to shutdown", "error", err)
		}
	}

	logger.Info("server stopped, closing database")
	return nil
}
