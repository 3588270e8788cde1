package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/couchcryptid/floodwatch/internal/adapter/httpadapter"
	"github.com/couchcryptid/floodwatch/internal/session"
	"github.com/couchcryptid/floodwatch/internal/view"
	"github.com/couchcryptid/floodwatch/internal/watch"
	"github.com/spf13/cobra"
)

const watchCmdName = "watch"

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   watchCmdName + " [REGION]",
		Short: "Keep a region's warnings refreshed and serve health and metrics",
		Long: `Re-list a region's warnings every REFRESH_INTERVAL (minimum 30s) and print
a summary after each refresh. /healthz, /readyz and /metrics are served on
HTTP_ADDR until SIGINT or SIGTERM.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			region, err := a.regionFromArgs(ctx, args)
			if err != nil {
				return err
			}

			sess := a.newSession()
			defer sess.Close()

			srv := httpadapter.NewServer(a.cfg.HTTPAddr, sess, a.logger)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.Error("http server error", "error", err)
				}
			}()

			out := cmd.OutOrStdout()
			w := watch.New(sess, watch.Config{
				Region:    region,
				Interval:  a.cfg.RefreshInterval,
				FetchWait: a.cfg.FetchWait,
			}, a.clock, a.logger, a.metrics, func(at time.Time, v session.View) {
				if err := view.RenderRefresh(out, at, v); err != nil {
					a.logger.Warn("write refresh summary", "error", err)
				}
			})

			if err := w.Run(ctx); err != nil {
				a.logger.Error("watch error", "error", err)
			}

			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("http server shutdown error", "error", err)
			}
			a.logger.Info("shutdown complete")
			return nil
		},
	}
}
