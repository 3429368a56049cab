package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"hlsmerge/internal/batch"
	"hlsmerge/internal/conflict"
	"hlsmerge/internal/history"
)

type supervisorOptions struct {
	progress bool
	quiet    bool
}

// supervisor is the control side of a batch run: it drains events, renders
// them, and answers conflict requests from the command's stdin.
type supervisor struct {
	ctx      context.Context
	opts     supervisorOptions
	out      io.Writer
	prompt   io.Writer
	in       io.Reader
	colorize bool

	bar *progressbar.ProgressBar

	linesOnce sync.Once
	lines     chan string

	units []batch.UnitFinished
}

func newSupervisor(ctx context.Context, cmd *cobra.Command, opts supervisorOptions) *supervisor {
	s := &supervisor{
		ctx:      ctx,
		opts:     opts,
		out:      cmd.OutOrStdout(),
		prompt:   cmd.ErrOrStderr(),
		in:       cmd.InOrStdin(),
		colorize: shouldColorize(cmd.OutOrStdout()),
	}
	if !shouldColorize(s.prompt) {
		s.opts.progress = false
	}
	return s
}

// drive consumes every event of run and returns its outcome.
func (s *supervisor) drive(run *batch.Run) batch.Outcome {
	for ev := range run.Events() {
		switch e := ev.(type) {
		case batch.UnitStarted:
			s.unitStarted(e)
		case batch.UnitFinished:
			s.unitFinished(e)
		case batch.DecisionRequested:
			s.decide(e.Request)
		case batch.Warning:
			s.clearBar()
			fmt.Fprintf(s.prompt, "warning: %v\n", e.Err)
		case batch.BatchEnded:
			if s.bar != nil {
				_ = s.bar.Finish()
				fmt.Fprintln(s.prompt)
			}
		}
	}
	return run.Wait()
}

func (s *supervisor) unitStarted(e batch.UnitStarted) {
	if !s.opts.progress {
		return
	}
	if s.bar == nil {
		s.bar = progressbar.NewOptions(e.Total,
			progressbar.OptionSetWriter(s.prompt),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionEnableColorCodes(true),
		)
	}
	s.bar.Describe(e.Name)
}

func (s *supervisor) unitFinished(e batch.UnitFinished) {
	s.units = append(s.units, e)
	if !s.opts.quiet {
		s.clearBar()
		label := fmt.Sprintf("[%d/%d] %s", e.Index, e.Total, e.Name)
		fmt.Fprintln(s.out, renderStatusLine(label, historyStatusKind(e.Status), unitDetail(e), s.colorize))
	}
	if s.bar != nil {
		_ = s.bar.Add(1)
	}
}

func unitDetail(e batch.UnitFinished) string {
	if e.Status != history.StatusSuccess || !e.Transcoded {
		return e.Status
	}
	return fmt.Sprintf("%s (%s in %s)", e.Status,
		humanize.IBytes(uint64(max(e.Result.OutputBytes, 0))),
		e.Result.Elapsed.Round(100*time.Millisecond))
}

// decide prompts until the supervisor gives a recognized answer. End of
// input or an interrupt dismisses the request, which cancels the batch.
func (s *supervisor) decide(req *conflict.Request) {
	s.clearBar()
	fmt.Fprintf(s.prompt, "%s already exists in the output folder.\n", req.DisplayName)
	lines := s.inputLines()
	for {
		fmt.Fprint(s.prompt, "[o]verwrite, [s]kip, or [c]ancel the batch? ")
		select {
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(s.prompt)
				req.Dismiss()
				return
			}
			if d, ok := conflict.ParseAnswer(line); ok {
				req.Respond(d)
				return
			}
			fmt.Fprintf(s.prompt, "Unrecognized answer %q.\n", strings.TrimSpace(line))
		case <-s.ctx.Done():
			fmt.Fprintln(s.prompt)
			req.Dismiss()
			return
		}
	}
}

// inputLines starts reading stdin on first use. The reader goroutine ends at
// EOF; it may outlive the batch while blocked on a terminal read.
func (s *supervisor) inputLines() <-chan string {
	s.linesOnce.Do(func() {
		s.lines = make(chan string)
		go func() {
			defer close(s.lines)
			scanner := bufio.NewScanner(s.in)
			for scanner.Scan() {
				s.lines <- scanner.Text()
			}
		}()
	})
	return s.lines
}

func (s *supervisor) clearBar() {
	if s.bar != nil {
		_ = s.bar.Clear()
	}
}
