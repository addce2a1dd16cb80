package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"templatefiller/internal/config"
	"templatefiller/internal/fileutil"
	"templatefiller/internal/metrics"
	"templatefiller/internal/packaging"
	"templatefiller/internal/pipeline"
	"templatefiller/internal/records"
)

type runResult struct {
	SessionID   string           `json:"session_id"`
	Mode        string           `json:"mode"`
	State       string           `json:"state"`
	OutputID    string           `json:"output_id,omitempty"`
	SHA256      string           `json:"sha256,omitempty"`
	Size        int64            `json:"size,omitempty"`
	Written     string           `json:"written,omitempty"`
	FaultKind   string           `json:"fault_kind,omitempty"`
	Fault       string           `json:"fault,omitempty"`
	Hint        string           `json:"hint,omitempty"`
	Diagnostics []diagnosticView `json:"diagnostics"`
}

type diagnosticView struct {
	Severity string `json:"severity"`
	Kind     string `json:"kind"`
	Path     string `json:"path"`
	Message  string `json:"message"`
}

// errSessionNotReady makes the command exit non-zero after its report is printed.
var errSessionNotReady = errors.New("session did not produce an output archive")

func newRunCommand(ctx *commandContext) *cobra.Command {
	var mode string
	var outPath string
	var apostrophe string
	var dialect string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "run <archive.zip>",
		Short: "Run the pipeline on a local archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open archive: %w", err)
			}
			defer file.Close()

			specs := pipeline.PostProcessors(apostrophe, dialect)

			var result runResult
			err = ctx.withRecords(func(cfg *config.Config, store *records.Store) error {
				deps, err := pipeline.NewDeps(cmd.Context(), cfg, store, metrics.Noop{}, logger)
				if err != nil {
					return fmt.Errorf("prepare pipeline: %w", err)
				}
				p, err := pipeline.New(deps)
				if err != nil {
					return fmt.Errorf("prepare pipeline: %w", err)
				}
				if err := p.CheckPostProcessors(specs); err != nil {
					return fmt.Errorf("text options: %w", err)
				}
				outcome := p.Run(cmd.Context(), pipeline.Request{
					Mode:           pipeline.Mode(mode),
					FileName:       filepath.Base(args[0]),
					Body:           file,
					PostProcessors: specs,
				})
				result = buildRunResult(outcome, cfg.Debug)
				if outcome.Ready() && outPath != "" {
					written, err := copyOutput(cmd, deps, outcome.Output, outPath)
					if err != nil {
						return err
					}
					result.Written = written
				}
				return nil
			})
			if err != nil {
				return err
			}

			if jsonOut {
				if err := writeJSON(cmd, result); err != nil {
					return err
				}
			} else {
				printRunResult(cmd, result)
			}
			if result.State != string(records.StateReady) {
				return errSessionNotReady
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", string(pipeline.ModeCheck), "Pipeline mode (check or nocheck)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Copy the output archive to this path or directory")
	cmd.Flags().StringVar(&apostrophe, "apostrophe", "", "Apostrophe style for text entries (curly or straight)")
	cmd.Flags().StringVar(&dialect, "dialect", "", "Spelling dialect for text entries (bre or ame)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}

func buildRunResult(outcome pipeline.Outcome, debug bool) runResult {
	result := runResult{
		SessionID:   outcome.Session.ID,
		Mode:        string(outcome.Session.Mode),
		State:       outcome.Label(),
		Diagnostics: make([]diagnosticView, 0, len(outcome.Diagnostics)),
	}
	for _, d := range outcome.Diagnostics {
		result.Diagnostics = append(result.Diagnostics, diagnosticView{
			Severity: string(d.Severity),
			Kind:     string(d.Kind),
			Path:     d.Path,
			Message:  d.Message,
		})
	}
	if outcome.Output != nil {
		result.OutputID = outcome.Output.ID
		result.SHA256 = outcome.Output.SHA256
		result.Size = outcome.Output.Size
	}
	if f := outcome.Fault; f != nil {
		result.FaultKind = string(f.Kind)
		result.Hint = pipeline.Hint(f.Kind)
		result.Fault = f.Message
		if debug {
			result.Fault = f.Error()
		}
	}
	return result
}

func copyOutput(cmd *cobra.Command, deps pipeline.Deps, output *packaging.Output, target string) (string, error) {
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		target = filepath.Join(target, output.ID)
	}
	body, _, err := deps.Downloads.Open(cmd.Context(), output.ID)
	if err != nil {
		return "", fmt.Errorf("open output archive: %w", err)
	}
	defer body.Close()

	if err := fileutil.WriteVerified(target, body, output.Size, output.SHA256); err != nil {
		return "", fmt.Errorf("export %s: %w", target, err)
	}
	return target, nil
}

func printRunResult(cmd *cobra.Command, result runResult) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	fmt.Fprintln(out, renderStatusLine("Session", statusInfo, result.SessionID, colorize))
	fmt.Fprintln(out, renderStatusLine("Mode", statusInfo, result.Mode, colorize))
	fmt.Fprintln(out, renderStatusLine("State", stateKind(records.State(result.State)), result.State, colorize))
	if result.OutputID != "" {
		fmt.Fprintln(out, renderStatusLine("Output", statusOK, result.OutputID, colorize))
	}
	if result.Written != "" {
		fmt.Fprintln(out, renderStatusLine("Written", statusOK, result.Written, colorize))
	}
	if result.FaultKind != "" {
		fmt.Fprintln(out, renderStatusLine("Fault", statusError, result.FaultKind+": "+result.Fault, colorize))
		if result.Hint != "" {
			fmt.Fprintln(out, renderStatusLine("Hint", statusInfo, result.Hint, colorize))
		}
	}
	if len(result.Diagnostics) == 0 {
		return
	}

	rows := make([][]string, 0, len(result.Diagnostics))
	for i, d := range result.Diagnostics {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			colorizeCell(strings.ToUpper(d.Severity), severityKind(d.Severity), colorize),
			d.Kind,
			d.Path,
			d.Message,
		})
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable([]string{"#", "Severity", "Kind", "Path", "Message"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft}))
}
