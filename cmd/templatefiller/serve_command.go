package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"templatefiller/internal/httpapi"
	"templatefiller/internal/logging"
	"templatefiller/internal/metrics"
	"templatefiller/internal/pipeline"
	"templatefiller/internal/preflight"
	"templatefiller/internal/records"
	"templatefiller/internal/staging"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the upload form and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if bind != "" {
				cfg.Paths.APIBind = bind
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			store, err := records.Open(cfg)
			if err != nil {
				return fmt.Errorf("open records: %w", err)
			}
			defer store.Close()

			prom := metrics.NewProm()
			deps, err := pipeline.NewDeps(cmd.Context(), cfg, store, prom, logger)
			if err != nil {
				return fmt.Errorf("prepare pipeline: %w", err)
			}
			p, err := pipeline.New(deps)
			if err != nil {
				return fmt.Errorf("prepare pipeline: %w", err)
			}
			if failed := preflight.Failed(preflight.RunAll(cmd.Context(), cfg, deps.Downloads)); len(failed) > 0 {
				for _, check := range failed {
					logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
						logging.String("check", check.Name),
						logging.String("detail", check.Detail),
						logging.String(logging.FieldImpact, "server not started"),
					)
				}
				return fmt.Errorf("preflight: %d check(s) failed; run templatefiller status for details", len(failed))
			}

			server, err := httpapi.New(httpapi.Options{
				Config:         cfg,
				Pipeline:       p,
				Metrics:        prom,
				MetricsHandler: prom.Handler(),
				Logger:         logger,
			})
			if err != nil {
				return err
			}

			// Reclaim workspaces left behind by a previous process before accepting uploads.
			startup := staging.CleanStale(cmd.Context(), cfg.Paths.WorkspaceDir, cfg.WorkspaceMaxAge(), logger)
			if len(startup.Removed) > 0 {
				logger.Info("removed stale workspaces",
					logging.String(logging.FieldEventType, "workspace_startup_sweep"),
					logging.Int("removed", len(startup.Removed)),
				)
			}

			group, groupCtx := errgroup.WithContext(cmd.Context())
			group.Go(func() error {
				return server.Serve(groupCtx)
			})
			group.Go(func() error {
				return staging.Sweep(groupCtx, cfg.Paths.WorkspaceDir, cfg.SweepInterval(), cfg.WorkspaceMaxAge(), logger)
			})
			if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Override the configured listen address")
	return cmd
}
