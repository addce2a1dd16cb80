package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"templatefiller/internal/config"
	"templatefiller/internal/records"
)

func newDownloadsCommand(ctx *commandContext) *cobra.Command {
	downloadsCmd := &cobra.Command{
		Use:   "downloads",
		Short: "Inspect published output archives",
	}
	downloadsCmd.AddCommand(newDownloadsListCommand(ctx))
	return downloadsCmd
}

func newDownloadsListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded downloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRecords(func(_ *config.Config, store *records.Store) error {
				downloads, err := store.ListDownloads(cmd.Context(), limit)
				if err != nil {
					return fmt.Errorf("list downloads: %w", err)
				}
				if jsonOut {
					return writeJSON(cmd, downloads)
				}
				out := cmd.OutOrStdout()
				if len(downloads) == 0 {
					fmt.Fprintln(out, "No downloads recorded")
					return nil
				}
				rows := make([][]string, 0, len(downloads))
				for _, d := range downloads {
					rows = append(rows, []string{
						d.OutputID,
						d.Backend,
						humanize.IBytes(uint64(d.Size)),
						shortDigest(d.SHA256),
						d.CreatedAt.Local().Format(time.DateTime),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Output", "Backend", "Size", "SHA256", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				fmt.Fprintln(out, strconv.Itoa(len(downloads))+" download(s)")
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum downloads to list")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}

func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
