package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hlsmerge/internal/deps"
	"hlsmerge/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check that ffmpeg and the state directory are usable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			exeDir := deps.ExecutableDir()

			ffmpeg := deps.ResolveFFmpeg(cfg.FFmpeg.Binary, exeDir)
			lines := renderSectionHeader("Dependencies", colorize)
			if ffmpeg.Available {
				lines = append(lines, renderStatusLine(ffmpeg.Name, statusOK, fmt.Sprintf("%s (%s)", ffmpeg.Command, ffmpeg.Source), colorize))
			} else {
				lines = append(lines, renderStatusLine(ffmpeg.Name, statusError, ffmpeg.Detail, colorize))
			}
			lines = append(lines, statusIndent+ffmpeg.Description)

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Environment", colorize)...)
			var failed []string
			for _, r := range preflight.RunAll(cfg, exeDir) {
				kind := statusOK
				if !r.Passed {
					kind = statusError
					failed = append(failed, r.Name)
				}
				lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			fmt.Fprintln(out, strings.Join(lines, "\n"))

			if len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed: %s", len(failed), strings.Join(failed, ", "))
			}
			return nil
		},
	}
}
