package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"templatefiller/internal/staging"
)

func newWorkspacesCommand(ctx *commandContext) *cobra.Command {
	workspacesCmd := &cobra.Command{
		Use:   "workspaces",
		Short: "Manage session workspaces",
	}
	workspacesCmd.AddCommand(newWorkspacesListCommand(ctx))
	workspacesCmd.AddCommand(newWorkspacesCleanCommand(ctx))
	return workspacesCmd
}

func newWorkspacesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List session workspaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dirs, err := staging.ListDirectories(cfg.Paths.WorkspaceDir)
			if err != nil {
				return fmt.Errorf("list workspaces: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(dirs) == 0 {
				fmt.Fprintln(out, "No workspaces")
				return nil
			}
			rows := make([][]string, 0, len(dirs))
			for _, dir := range dirs {
				state := "idle"
				if dir.Locked {
					state = "in use"
				}
				rows = append(rows, []string{
					dir.Name,
					state,
					humanize.IBytes(uint64(dir.Size)),
					humanize.Time(dir.ModTime),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Session", "State", "Size", "Modified"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
			return nil
		},
	}
}

func newWorkspacesCleanCommand(ctx *commandContext) *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove idle workspaces older than the configured age",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			age := cfg.WorkspaceMaxAge()
			if cmd.Flags().Changed("max-age") {
				age = maxAge
			}
			result := staging.CleanStale(cmd.Context(), cfg.Paths.WorkspaceDir, age, logger)

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintln(out, renderStatusLine("Removed", statusOK, fmt.Sprintf("%d", len(result.Removed)), colorize))
			fmt.Fprintln(out, renderStatusLine("Skipped", statusInfo, fmt.Sprintf("%d", len(result.Skipped)), colorize))
			for _, failure := range result.Errors {
				fmt.Fprintln(out, renderStatusLine("Error", statusError, failure.Path+": "+failure.Error.Error(), colorize))
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d workspace(s) could not be removed", len(result.Errors))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Override the configured maximum workspace age")
	return cmd
}
