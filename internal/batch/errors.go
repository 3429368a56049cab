package batch

import (
	"errors"
	"fmt"

	"hlsmerge/internal/scanner"
)

var (
	// ErrInvalidInput reports a missing or non-directory input or output path.
	ErrInvalidInput = fmt.Errorf("batch: %w", scanner.ErrInvalidInput)
	// ErrBusy reports that a batch is already running.
	ErrBusy = errors.New("batch: another batch is already running")
	// ErrExecutorMissing is the cause of a FatalAborted outcome when ffmpeg
	// cannot be invoked.
	ErrExecutorMissing = errors.New("batch: transcoder executable missing")
)
