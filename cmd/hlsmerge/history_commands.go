package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"hlsmerge/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or clear the conversion history",
	}

	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))

	return historyCmd
}

// historyRecord is the export shape of an entry for YAML output.
type historyRecord struct {
	Timestamp string `yaml:"timestamp"`
	Input     string `yaml:"input"`
	Output    string `yaml:"output"`
	Status    string `yaml:"status"`
	BatchID   string `yaml:"batch_id,omitempty"`
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool
	var yamlOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded conversions, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput && yamlOutput {
				return fmt.Errorf("specify only one of --json or --yaml")
			}
			return ctx.withHistory(cmd, func(store history.Store) error {
				entries, err := store.LoadAll(cmd.Context())
				if err != nil {
					return fmt.Errorf("load history: %w", err)
				}
				if limit > 0 && len(entries) > limit {
					entries = entries[:limit]
				}

				switch {
				case jsonOutput:
					if entries == nil {
						entries = []history.Entry{}
					}
					return writeJSON(cmd, entries)
				case yamlOutput:
					records := make([]historyRecord, 0, len(entries))
					for _, e := range entries {
						records = append(records, historyRecord{
							Timestamp: history.FormatTimestamp(e.Timestamp),
							Input:     e.InputPath,
							Output:    e.OutputPath,
							Status:    e.Status,
							BatchID:   e.BatchID,
						})
					}
					return writeYAML(cmd, records)
				}

				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "History is empty")
					return nil
				}
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{
						fmt.Sprintf("%s (%s)", history.FormatTimestamp(e.Timestamp), humanize.Time(e.Timestamp)),
						paint(e.Status, statusKindColor(historyStatusKind(e.Status)), colorize),
						e.InputPath,
						e.OutputPath,
					})
				}
				fmt.Fprint(out, renderTable([]tableColumn{
					{header: "When"},
					{header: "Status"},
					{header: "Input", path: true},
					{header: "Output", path: true},
				}, rows))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most N entries (0 = all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print entries as JSON")
	cmd.Flags().BoolVar(&yamlOutput, "yaml", false, "Print entries as YAML")
	return cmd
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the conversion history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(cmd, func(store history.Store) error {
				out := cmd.OutOrStdout()
				entries, err := store.LoadAll(cmd.Context())
				corrupt := errors.Is(err, history.ErrCorrupt)
				if err != nil && !corrupt {
					return fmt.Errorf("load history: %w", err)
				}
				if len(entries) == 0 && !corrupt {
					fmt.Fprintln(out, "History is already empty")
					return nil
				}
				if !yes {
					question := fmt.Sprintf("Delete %d history entries?", len(entries))
					if corrupt {
						question = "History file is unreadable. Delete it?"
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "%s [y/N] ", question)
					answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
					switch strings.ToLower(strings.TrimSpace(answer)) {
					case "y", "yes":
					default:
						fmt.Fprintln(out, "History left unchanged")
						return nil
					}
				}
				if err := store.Clear(cmd.Context()); err != nil {
					return fmt.Errorf("clear history: %w", err)
				}
				if corrupt {
					fmt.Fprintln(out, "Removed unreadable history file")
					return nil
				}
				fmt.Fprintf(out, "Cleared %d history entries\n", len(entries))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}
