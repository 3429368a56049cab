// Package transcode runs ffmpeg for one conversion unit and classifies the
// outcome.
//
// The process stream-copies the manifest's media into the output container
// and always overwrites the output; collision handling happens before this
// package is called. The process is deliberately not bound to the batch
// context: cancellation is honored between units, never mid-remux.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"hlsmerge/internal/logging"
	"hlsmerge/internal/scanner"
)

// Kind classifies a transcode attempt.
type Kind int

const (
	Success Kind = iota
	// TranscodeFailure is a non-zero exit; the unit fails, the batch continues.
	TranscodeFailure
	// ExecutorMissing means ffmpeg could not be invoked at all. Fatal for the batch.
	ExecutorMissing
	// UnknownFailure is any other start or wait fault; the batch continues.
	UnknownFailure
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case TranscodeFailure:
		return "transcode_failure"
	case ExecutorMissing:
		return "executor_missing"
	case UnknownFailure:
		return "unknown_failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Fatal reports whether the kind ends the whole batch.
func (k Kind) Fatal() bool { return k == ExecutorMissing }

// Result is the outcome of one invocation.
type Result struct {
	Kind Kind
	// Detail is the failure text: trimmed stderr, or the fault description.
	Detail      string
	Elapsed     time.Duration
	OutputBytes int64
}

// Options configures the ffmpeg invocation.
type Options struct {
	Binary               string
	ProtocolWhitelist    string
	AudioBitstreamFilter string
}

// Executor runs ffmpeg. It is safe for sequential use by one worker.
type Executor struct {
	opts   Options
	logger *slog.Logger
}

// New returns an executor for the resolved ffmpeg binary.
func New(opts Options, logger *slog.Logger) *Executor {
	if strings.TrimSpace(opts.Binary) == "" {
		opts.Binary = "ffmpeg"
	}
	if opts.AudioBitstreamFilter == "" {
		opts.AudioBitstreamFilter = "aac_adtstoasc"
	}
	return &Executor{opts: opts, logger: logging.NewComponentLogger(logger, "transcode")}
}

// Args returns the ffmpeg arguments for unit, without the binary.
func (e *Executor) Args(unit scanner.Unit) []string {
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "error"}
	if e.opts.ProtocolWhitelist != "" {
		args = append(args, "-protocol_whitelist", e.opts.ProtocolWhitelist)
	}
	return append(args,
		"-i", unit.ManifestPath(),
		"-c", "copy",
		"-bsf:a", e.opts.AudioBitstreamFilter,
		"-y", unit.OutputPath,
	)
}

// Transcode converts one unit. ctx only contributes log fields.
func (e *Executor) Transcode(ctx context.Context, unit scanner.Unit) Result {
	logger := logging.WithContext(ctx, e.logger)
	args := e.Args(unit)

	cmd := exec.Command(e.opts.Binary, args...)
	configureProcess(cmd)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Debug("running ffmpeg",
		logging.String("binary", e.opts.Binary),
		logging.String("args", strings.Join(args, " ")),
	)

	started := time.Now()
	err := cmd.Run()
	result := classify(err, stderr.String())
	result.Elapsed = time.Since(started)

	if result.Kind == Success {
		if info, statErr := os.Stat(unit.OutputPath); statErr == nil {
			result.OutputBytes = info.Size()
		}
	}
	logger.Debug("ffmpeg finished",
		logging.String("kind", result.Kind.String()),
		logging.Duration("elapsed", result.Elapsed),
	)
	return result
}

func classify(err error, stderr string) Result {
	if err == nil {
		return Result{Kind: Success}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		detail := strings.TrimSpace(stderr)
		if detail == "" {
			detail = exitErr.Error()
		}
		return Result{Kind: TranscodeFailure, Detail: detail}
	}

	if errors.Is(err, exec.ErrNotFound) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, syscall.ENOEXEC) {
		return Result{Kind: ExecutorMissing, Detail: err.Error()}
	}

	return Result{Kind: UnknownFailure, Detail: err.Error()}
}
