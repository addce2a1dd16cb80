package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"templatefiller/internal/config"
	"templatefiller/internal/preflight"
	"templatefiller/internal/records"
	"templatefiller/internal/storage"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Run readiness checks and summarize session records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			downloads, storeErr := storage.NewDownloadStore(cmd.Context(), cfg)
			results := preflight.RunAll(cmd.Context(), cfg, downloads)
			if storeErr != nil {
				results = append(results, preflight.Result{Name: "Download store", Detail: storeErr.Error()})
			}

			fmt.Fprintln(out, "Readiness")
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d readiness check(s) failed", len(failed))
			}

			return ctx.withRecords(func(_ *config.Config, store *records.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return fmt.Errorf("session stats: %w", err)
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Sessions")
				for _, state := range records.AllStates() {
					if count := stats[state]; count > 0 {
						fmt.Fprintln(out, renderStatusLine(string(state), stateKind(state), strconv.Itoa(count), colorize))
					}
				}
				return nil
			})
		},
	}
}
