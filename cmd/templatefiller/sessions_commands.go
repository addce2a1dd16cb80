package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"templatefiller/internal/config"
	"templatefiller/internal/records"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect session records",
	}
	sessionsCmd.AddCommand(newSessionsListCommand(ctx))
	sessionsCmd.AddCommand(newSessionsShowCommand(ctx))
	sessionsCmd.AddCommand(newSessionsStatsCommand(ctx))
	return sessionsCmd
}

func newSessionsListCommand(ctx *commandContext) *cobra.Command {
	var stateFlags []string
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			states := make([]records.State, 0, len(stateFlags))
			for _, raw := range stateFlags {
				state := records.State(raw)
				if !state.Valid() {
					return fmt.Errorf("unknown state %q", raw)
				}
				states = append(states, state)
			}
			return ctx.withRecords(func(_ *config.Config, store *records.Store) error {
				sessions, err := store.ListSessions(cmd.Context(), limit, states...)
				if err != nil {
					return fmt.Errorf("list sessions: %w", err)
				}
				if jsonOut {
					return writeJSON(cmd, sessions)
				}
				out := cmd.OutOrStdout()
				if len(sessions) == 0 {
					fmt.Fprintln(out, "No sessions recorded")
					return nil
				}
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(sessions))
				for _, s := range sessions {
					rows = append(rows, []string{
						s.ID,
						s.Mode,
						colorizeCell(string(s.State), stateKind(s.State), colorize),
						s.UploadName,
						strconv.Itoa(s.Diagnostics),
						s.OutputID,
						s.CreatedAt.Local().Format(time.DateTime),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Mode", "State", "Upload", "Diagnostics", "Output", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&stateFlags, "state", nil, "Filter by state (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum sessions to list")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}

func newSessionsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session and its state history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRecords(func(_ *config.Config, store *records.Store) error {
				session, err := store.GetSession(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("load session: %w", err)
				}
				if session == nil {
					return fmt.Errorf("session %s not found", args[0])
				}
				history, err := store.History(cmd.Context(), session.ID)
				if err != nil {
					return fmt.Errorf("load history: %w", err)
				}
				if jsonOut {
					return writeJSON(cmd, struct {
						*records.Session
						History []records.Transition `json:"history"`
					}{session, history})
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintln(out, renderStatusLine("Session", statusInfo, session.ID, colorize))
				fmt.Fprintln(out, renderStatusLine("Mode", statusInfo, session.Mode, colorize))
				fmt.Fprintln(out, renderStatusLine("Upload", statusInfo, session.UploadName, colorize))
				fmt.Fprintln(out, renderStatusLine("State", stateKind(session.State), string(session.State), colorize))
				if session.OutputID != "" {
					fmt.Fprintln(out, renderStatusLine("Output", statusOK, session.OutputID, colorize))
				}
				if session.ErrorKind != "" {
					fmt.Fprintln(out, renderStatusLine("Fault", statusError, session.ErrorKind+": "+session.FailureReason, colorize))
				}

				rows := make([][]string, 0, len(history))
				for _, tr := range history {
					rows = append(rows, []string{string(tr.State), tr.At.Local().Format(time.RFC3339Nano)})
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable([]string{"State", "At"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}

func newSessionsStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count sessions by state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRecords(func(_ *config.Config, store *records.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return fmt.Errorf("session stats: %w", err)
				}
				rows := make([][]string, 0, len(stats))
				total := 0
				for _, state := range records.AllStates() {
					count := stats[state]
					total += count
					rows = append(rows, []string{string(state), strconv.Itoa(count)})
				}
				rows = append(rows, []string{"total", strconv.Itoa(total)})
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"State", "Sessions"}, rows,
					[]columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}
