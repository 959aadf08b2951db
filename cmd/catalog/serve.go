package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-catalog-cache/internal/server"
	"github.com/goliatone/go-errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultShutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	var noWarm bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog over HTTP with a revalidation endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			c, err := opts.containerFrom(cfg)
			if err != nil {
				return err
			}
			logger := c.Logger()
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if !c.Client().Configured() {
				logger.Warn("store credentials missing, every read returns empty results")
			} else if !noWarm {
				if err := c.Warm(ctx); err != nil {
					logger.Warn("cache warm-up failed", zap.Error(err))
				}
			}

			srv := server.New(cfg.Server.Addr, c, cfg.Server.RevalidateSecret, logger)
			serveErr := make(chan error, 1)
			go func() {
				logger.Info("catalog server listening", zap.String("addr", cfg.Server.Addr))
				serveErr <- srv.ListenAndServe()
			}()

			select {
			case err := <-serveErr:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return errors.Wrap(err, errors.CategoryExternal, "serve").
					WithMetadata(map[string]any{"addr": cfg.Server.Addr})
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			timeout := cfg.Server.ShutdownTimeout
			if timeout <= 0 {
				timeout = defaultShutdownTimeout
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errors.Wrap(err, errors.CategoryInternal, "shutdown")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides the configured one)")
	cmd.Flags().BoolVar(&noWarm, "no-warm", false, "skip loading categories and navigation at start")
	return cmd
}
