package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hlsmerge/internal/batch"
	"hlsmerge/internal/config"
	"hlsmerge/internal/conflict"
	"hlsmerge/internal/history"
	"hlsmerge/internal/preflight"
	"hlsmerge/internal/scanner"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var onConflict string
	var jsonOutput bool
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "convert <input-dir> <output-dir>",
		Short: "Merge every HLS folder under input-dir into output-dir",
		Long: `Convert each immediate subfolder of input-dir that holds an HLS manifest
into a single file in output-dir, one folder at a time in name order.

When an output file already exists you are asked whether to overwrite it,
skip the folder, or cancel the rest of the batch. Ctrl-C stops the batch
after the folder currently being converted.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCfg := *cfg
			if cmd.Flags().Changed("on-conflict") {
				policy, err := conflict.ParsePolicy(onConflict)
				if err != nil {
					return err
				}
				runCfg.Convert.OnConflict = string(policy)
			}

			inputDir, outputDir := args[0], args[1]
			if scanner.ValidateDir(outputDir) == nil {
				if failed, ok := preflight.FirstFailure(preflight.ForBatch(&runCfg, outputDir)); ok {
					return fmt.Errorf("preflight: %s: %s", failed.Name, failed.Detail)
				}
			}

			logger, closeLog, err := ctx.newLogger(cmd)
			if err != nil {
				return err
			}
			defer closeLog()

			store, err := history.Open(&runCfg, logger)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			orch, err := batch.NewFromConfig(&runCfg, store, logger)
			if err != nil {
				return err
			}

			signalCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			run, err := orch.Start(signalCtx, inputDir, outputDir)
			if err != nil {
				if errors.Is(err, batch.ErrBusy) {
					return fmt.Errorf("%w; wait for it to finish", err)
				}
				return err
			}

			sup := newSupervisor(signalCtx, cmd, supervisorOptions{
				progress: !noProgress && !jsonOutput,
				quiet:    jsonOutput,
			})
			outcome := sup.drive(run)

			if jsonOutput {
				if err := writeJSON(cmd, newConvertSummary(outcome, sup.units)); err != nil {
					return err
				}
			} else {
				printOutcome(cmd, &runCfg, outcome)
			}
			if outcome.State == batch.FatalAborted {
				return fmt.Errorf("batch aborted: %w", outcome.Err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&onConflict, "on-conflict", "", "Answer for existing outputs: ask, overwrite, skip, or cancel (default from convert.on_conflict)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print a JSON summary instead of progress lines")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	return cmd
}

func printOutcome(cmd *cobra.Command, cfg *config.Config, outcome batch.Outcome) {
	out := cmd.OutOrStdout()
	elapsed := outcome.Elapsed.Round(100 * time.Millisecond)
	switch outcome.State {
	case batch.NothingToDo:
		fmt.Fprintf(out, "Nothing to do: no subfolder of %s contains a %s file\n", outcome.Job.InputDir, cfg.Convert.ManifestExtension)
	case batch.Completed:
		fmt.Fprintf(out, "Batch complete: %d converted, %d failed, %d skipped in %s\n",
			outcome.Succeeded, outcome.Failed, outcome.Skipped, elapsed)
	case batch.CancelledByUser:
		fmt.Fprintf(out, "Batch cancelled after %d of %d folders (%d converted, %d failed, %d skipped)\n",
			outcome.Reached, len(outcome.Job.Units), outcome.Succeeded, outcome.Failed, outcome.Skipped)
	case batch.FatalAborted:
		fmt.Fprintf(out, "Batch aborted after %d of %d folders\n", outcome.Reached, len(outcome.Job.Units))
	}
}

type convertUnitSummary struct {
	Name   string `json:"name"`
	Input  string `json:"input"`
	Output string `json:"output"`
	Status string `json:"status"`
	Bytes  int64  `json:"output_bytes,omitempty"`
}

type convertSummary struct {
	BatchID   string               `json:"batch_id"`
	State     string               `json:"state"`
	InputDir  string               `json:"input_dir"`
	OutputDir string               `json:"output_dir"`
	Total     int                  `json:"total"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
	Skipped   int                  `json:"skipped"`
	Elapsed   string               `json:"elapsed"`
	Error     string               `json:"error,omitempty"`
	Units     []convertUnitSummary `json:"units"`
}

func newConvertSummary(outcome batch.Outcome, units []batch.UnitFinished) convertSummary {
	summary := convertSummary{
		BatchID:   outcome.Job.ID,
		State:     outcome.State.String(),
		InputDir:  outcome.Job.InputDir,
		OutputDir: outcome.Job.OutputDir,
		Total:     len(outcome.Job.Units),
		Succeeded: outcome.Succeeded,
		Failed:    outcome.Failed,
		Skipped:   outcome.Skipped,
		Elapsed:   outcome.Elapsed.Round(time.Millisecond).String(),
		Units:     make([]convertUnitSummary, 0, len(units)),
	}
	if outcome.Err != nil {
		summary.Error = outcome.Err.Error()
	}
	for _, u := range units {
		summary.Units = append(summary.Units, convertUnitSummary{
			Name:   u.Name,
			Input:  u.Entry.InputPath,
			Output: filepath.Base(u.Entry.OutputPath),
			Status: strings.TrimSpace(u.Status),
			Bytes:  u.Result.OutputBytes,
		})
	}
	return summary
}
