package main

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

	"github.com/LeventeLantos/sheet-messaging/internal/api"
	"github.com/LeventeLantos/sheet-messaging/internal/config"
	"github.com/LeventeLantos/sheet-messaging/internal/scheduler"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var paused bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run passes on a schedule and expose the status API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadAll()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if _, err := setupLogging(os.Stderr, cfg.Log.Level, root.logFormat, "json"); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, !paused)
		},
	}

	cmd.Flags().BoolVar(&paused, "paused", false, "start with the scheduler stopped (start it via POST /v1/scheduler/start)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, autostart bool) error {
	a, err := buildApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := scheduler.New(cfg.Scheduler.Interval, func(ctx context.Context) error {
		_, err := a.runner.Run(ctx)
		return err
	})
	if err != nil {
		return err
	}

	h := api.NewHandler(sched, a.runs, a.recorder.Handler())
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           api.Router(h, loggingMiddleware),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("status api listening", "addr", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if autostart {
		sched.Start()
	}

	select {
	case <-ctx.Done():
		slog.Info("shutdown requested")
	case err := <-errCh:
		if err != nil {
			sched.Stop()
			return fmt.Errorf("http server: %w", err)
		}
	}

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
