package batch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"hlsmerge/internal/conflict"
	"hlsmerge/internal/history"
	"hlsmerge/internal/logging"
	"hlsmerge/internal/scanner"
	"hlsmerge/internal/transcode"
)

// UnitScanner lists the units of a batch.
type UnitScanner interface {
	Scan(inputDir, outputDir string) ([]scanner.Unit, error)
}

// Transcoder converts one unit.
type Transcoder interface {
	Transcode(ctx context.Context, unit scanner.Unit) transcode.Result
}

// DecisionResolver waits for the answer to a conflict request.
type DecisionResolver interface {
	Resolve(ctx context.Context, req *conflict.Request) conflict.Decision
}

// Job is one batch: an ordered unit list bound to an input/output pair.
type Job struct {
	ID        string
	InputDir  string
	OutputDir string
	Units     []scanner.Unit
}

// Outcome summarizes a finished batch.
type Outcome struct {
	State State
	Job   Job
	// Reached counts units that produced a history entry.
	Reached   int
	Succeeded int
	Failed    int
	Skipped   int
	// Err is the cause of FatalAborted.
	Err     error
	Elapsed time.Duration
}

// Deps bundles the collaborators of an Orchestrator.
type Deps struct {
	Scanner    UnitScanner
	Transcoder Transcoder
	History    history.Store
	// Resolver defaults to conflict.Resolver.
	Resolver DecisionResolver
	// Policy answers conflicts without asking when not PolicyAsk.
	Policy conflict.Policy
	// LockPath, when set, is flock'ed for the duration of a batch so two
	// processes cannot convert at once.
	LockPath string
	Logger   *slog.Logger
}

// Orchestrator runs at most one batch at a time: Start succeeds only from
// Idle or a terminal state.
type Orchestrator struct {
	deps   Deps
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	state State
}

// New constructs an orchestrator.
func New(deps Deps) *Orchestrator {
	if deps.Resolver == nil {
		deps.Resolver = conflict.Resolver{}
	}
	if deps.Policy == "" {
		deps.Policy = conflict.PolicyAsk
	}
	return &Orchestrator{
		deps:   deps,
		logger: logging.NewComponentLogger(deps.Logger, "batch"),
		now:    time.Now,
		state:  Idle,
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Run is the handle of a started batch. Job carries the id and directories;
// the scanned unit list is reported in Outcome.Job.
type Run struct {
	Job    Job
	events *mailbox
	cancel context.CancelFunc
	done   chan struct{}
	result Outcome
}

// Events delivers batch notifications in order. BatchEnded is always last,
// after which the channel is closed. The channel must be drained.
func (r *Run) Events() <-chan Event { return r.events.out }

// Wait blocks until the batch ends and returns its outcome.
func (r *Run) Wait() Outcome {
	<-r.done
	return r.result
}

// Cancel stops the batch at the next unit boundary. A transcode already in
// progress runs to completion. A pending conflict request resolves as
// CancelAll.
func (r *Run) Cancel() { r.cancel() }

// Start validates both directories and launches the batch worker.
func (o *Orchestrator) Start(ctx context.Context, inputDir, outputDir string) (*Run, error) {
	if err := scanner.ValidateDir(inputDir); err != nil {
		return nil, fmt.Errorf("%w: input directory: %v", ErrInvalidInput, err)
	}
	if err := scanner.ValidateDir(outputDir); err != nil {
		return nil, fmt.Errorf("%w: output directory: %v", ErrInvalidInput, err)
	}
	inputDir, _ = filepath.Abs(inputDir)
	outputDir, _ = filepath.Abs(outputDir)

	o.mu.Lock()
	if o.state != Idle && !o.state.Terminal() {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	var lock *flock.Flock
	if o.deps.LockPath != "" {
		lock = flock.New(o.deps.LockPath)
		locked, err := lock.TryLock()
		if err != nil {
			o.mu.Unlock()
			return nil, fmt.Errorf("acquire batch lock: %w", err)
		}
		if !locked {
			o.mu.Unlock()
			return nil, fmt.Errorf("%w (lock %s held by another process)", ErrBusy, o.deps.LockPath)
		}
	}
	o.state = Scanning
	o.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{
		Job: Job{
			ID:        uuid.NewString(),
			InputDir:  inputDir,
			OutputDir: outputDir,
		},
		events: newMailbox(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer cancel()
		outcome := o.execute(logging.WithBatchID(runCtx, run.Job.ID), run)

		o.mu.Lock()
		o.state = outcome.State
		o.mu.Unlock()
		if lock != nil {
			if err := lock.Unlock(); err != nil {
				o.logger.Debug("release batch lock failed", logging.Error(err))
			}
		}

		run.result = outcome
		run.events.post(BatchEnded{Outcome: outcome})
		run.events.close()
		close(run.done)
	}()

	return run, nil
}
