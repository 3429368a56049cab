package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"hlsmerge/internal/scanner"
)

type scanRow struct {
	Name     string `json:"name"`
	Source   string `json:"source_dir"`
	Manifest string `json:"manifest"`
	Output   string `json:"output"`
	Exists   bool   `json:"output_exists"`
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "scan <input-dir> <output-dir>",
		Short: "List the folders a convert run would process",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			inputDir, outputDir := args[0], args[1]
			if err := scanner.ValidateDir(outputDir); err != nil {
				return fmt.Errorf("output directory: %w", err)
			}

			logger, closeLog, err := ctx.newLogger(cmd)
			if err != nil {
				return err
			}
			defer closeLog()

			units, err := scanner.New(cfg.Convert.ManifestExtension, cfg.OutputExtension(), logger).Scan(inputDir, outputDir)
			if err != nil {
				return err
			}

			rows := make([]scanRow, 0, len(units))
			for _, u := range units {
				_, statErr := os.Stat(u.OutputPath)
				rows = append(rows, scanRow{
					Name:     u.Name,
					Source:   u.SourceDir,
					Manifest: u.Manifest,
					Output:   u.OutputPath,
					Exists:   statErr == nil,
				})
			}

			if jsonOutput {
				return writeJSON(cmd, rows)
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintf(out, "No subfolder of %s contains a %s file\n", inputDir, cfg.Convert.ManifestExtension)
				return nil
			}
			tableRows := make([][]string, 0, len(rows))
			existing := 0
			for i, r := range rows {
				if r.Exists {
					existing++
				}
				tableRows = append(tableRows, []string{
					strconv.Itoa(i + 1),
					r.Name,
					r.Manifest,
					filepath.Base(r.Output),
					yesNo(r.Exists),
				})
			}
			fmt.Fprint(out, renderTable([]tableColumn{
				{header: "#", align: alignRight},
				{header: "Folder"},
				{header: "Manifest"},
				{header: "Output", path: true},
				{header: "Exists"},
			}, tableRows))
			fmt.Fprintf(out, "%d folder(s) to convert, %d output(s) already exist\n", len(rows), existing)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the unit list as JSON")
	return cmd
}
