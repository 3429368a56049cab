package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"hlsmerge/internal/conflict"
	"hlsmerge/internal/history"
	"hlsmerge/internal/logging"
	"hlsmerge/internal/scanner"
	"hlsmerge/internal/transcode"
)

// unitStep is the per-unit verdict of the worker loop.
type unitStep int

const (
	stepContinue unitStep = iota
	stepCancel
	stepFatal
)

func (o *Orchestrator) execute(ctx context.Context, run *Run) Outcome {
	started := o.now()
	logger := logging.WithContext(ctx, o.logger)
	job := run.Job
	outcome := Outcome{Job: job}
	finish := func(state State) Outcome {
		outcome.State = state
		outcome.Job = job
		outcome.Elapsed = o.now().Sub(started)
		return outcome
	}

	units, err := o.deps.Scanner.Scan(job.InputDir, job.OutputDir)
	if err != nil {
		outcome.Err = fmt.Errorf("scan %s: %w", job.InputDir, err)
		logging.ErrorWithContext(logger, "scan failed", "scan_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the input directory is readable"),
		)
		return finish(FatalAborted)
	}
	job.Units = units
	if len(units) == 0 {
		logger.Info("no convertible folders found",
			logging.String(logging.FieldEventType, "nothing_to_do"),
			logging.String("input_dir", job.InputDir),
		)
		return finish(NothingToDo)
	}

	o.setState(PerUnit)
	logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_started"),
		logging.Int("unit_count", len(units)),
		logging.String("input_dir", job.InputDir),
		logging.String("output_dir", job.OutputDir),
	)

	for i, unit := range units {
		if ctx.Err() != nil {
			logger.Info("batch cancelled before next unit",
				logging.String(logging.FieldEventType, "batch_cancelled"),
				logging.Int("unit_index", i+1),
				logging.Int("unit_count", len(units)),
			)
			return finish(CancelledByUser)
		}
		step, err := o.processUnit(ctx, run.events, &job, &outcome, i, unit)
		switch step {
		case stepCancel:
			return finish(CancelledByUser)
		case stepFatal:
			outcome.Err = err
			return finish(FatalAborted)
		}
		o.setState(PerUnit)
	}

	final := finish(Completed)
	logger.Info("batch completed",
		logging.String(logging.FieldEventType, "batch_completed"),
		logging.Int("succeeded", final.Succeeded),
		logging.Int("failed", final.Failed),
		logging.Int("skipped", final.Skipped),
		logging.Duration("elapsed", final.Elapsed),
	)
	return final
}

func (o *Orchestrator) processUnit(ctx context.Context, events *mailbox, job *Job, outcome *Outcome, i int, unit scanner.Unit) (unitStep, error) {
	total := len(job.Units)
	index := i + 1
	ctx = logging.WithUnit(ctx, unit.Name)
	logger := logging.WithContext(ctx, o.logger)

	events.post(UnitStarted{Index: index, Total: total, Name: unit.Name, Unit: unit})
	logger.Info("unit started",
		logging.String(logging.FieldEventType, "unit_started"),
		logging.Int("unit_index", index),
		logging.Int("unit_count", total),
		logging.String("manifest", unit.Manifest),
	)

	exists, err := outputExists(unit.OutputPath)
	if err != nil {
		logging.WarnWithContext(logger, "cannot check output path; treating as absent", "output_stat_failed",
			logging.String("output_path", unit.OutputPath),
			logging.Error(err),
			logging.String(logging.FieldImpact, "ffmpeg will be asked to overwrite if the file exists"),
		)
	}
	if exists {
		decision := o.decide(ctx, events, logger, index, total, unit)
		switch decision {
		case conflict.Skip:
			o.record(ctx, events, job.ID, logger, UnitFinished{Index: index, Total: total, Name: unit.Name, Status: history.StatusSkipped}, unit)
			outcome.Reached++
			outcome.Skipped++
			return stepContinue, nil
		case conflict.CancelAll:
			o.record(ctx, events, job.ID, logger, UnitFinished{Index: index, Total: total, Name: unit.Name, Status: history.StatusCancelled}, unit)
			outcome.Reached++
			return stepCancel, nil
		}
	}

	o.setState(Transcoding)
	result := o.deps.Transcoder.Transcode(ctx, unit)
	finished := UnitFinished{
		Index:      index,
		Total:      total,
		Name:       unit.Name,
		Status:     statusFor(result),
		Kind:       result.Kind,
		Transcoded: true,
		Result:     result,
	}
	o.record(ctx, events, job.ID, logger, finished, unit)
	outcome.Reached++

	switch {
	case result.Kind == transcode.Success:
		outcome.Succeeded++
		logger.Info("unit converted",
			logging.String(logging.FieldEventType, "unit_converted"),
			logging.String("output", filepath.Base(unit.OutputPath)),
			logging.Int64("output_bytes", result.OutputBytes),
			logging.Duration("elapsed", result.Elapsed),
		)
	case result.Kind.Fatal():
		outcome.Failed++
		logging.ErrorWithContext(logger, "transcoder cannot be invoked; aborting batch", "executor_missing",
			logging.String("kind", result.Kind.String()),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "install ffmpeg or set ffmpeg.binary in the config"),
		)
		return stepFatal, fmt.Errorf("%w: %s", ErrExecutorMissing, result.Detail)
	default:
		outcome.Failed++
		logging.WarnWithContext(logger, "unit conversion failed", "unit_failed",
			logging.String("kind", result.Kind.String()),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "inspect the manifest and segments of this folder"),
			logging.String(logging.FieldImpact, "unit recorded as failed; batch continues"),
		)
	}
	return stepContinue, nil
}

// decide answers the conflict for unit, asking the supervisor unless the
// configured policy answers automatically.
func (o *Orchestrator) decide(ctx context.Context, events *mailbox, logger *slog.Logger, index, total int, unit scanner.Unit) conflict.Decision {
	if decision, ok := o.deps.Policy.Answer(); ok {
		logger.Info("output exists; applying policy",
			logging.Args(logging.DecisionAttrs("output_conflict", decision.String(), "policy "+string(o.deps.Policy))...)...,
		)
		return decision
	}

	o.setState(AwaitingDecision)
	req := conflict.NewRequest(unit.Name, filepath.Base(unit.OutputPath), unit.OutputPath)
	events.post(DecisionRequested{Index: index, Total: total, Request: req})
	decision := o.deps.Resolver.Resolve(ctx, req)
	reason := "supervisor answer"
	if decision == conflict.CancelAll && ctx.Err() != nil {
		reason = "batch cancelled while waiting"
	}
	logger.Info("output exists; decision received",
		logging.Args(logging.DecisionAttrs("output_conflict", decision.String(), reason)...)...,
	)
	o.setState(PerUnit)
	return decision
}

// record appends the unit's history entry and publishes UnitFinished. A
// failed append is a warning only.
func (o *Orchestrator) record(ctx context.Context, events *mailbox, batchID string, logger *slog.Logger, finished UnitFinished, unit scanner.Unit) {
	entry := history.Entry{
		Timestamp:  o.now(),
		InputPath:  unit.SourceDir,
		OutputPath: unit.OutputPath,
		Status:     finished.Status,
		BatchID:    batchID,
	}
	// The entry is written even when ctx is already cancelled.
	if err := o.deps.History.Append(context.WithoutCancel(ctx), entry); err != nil {
		werr := fmt.Errorf("record history for %s: %w", unit.Name, err)
		events.post(Warning{Err: werr})
		logging.WarnWithContext(logger, "history write failed", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions of the state directory"),
			logging.String(logging.FieldImpact, "entry not persisted; batch continues"),
		)
	}
	finished.Entry = entry
	events.post(finished)
}

func statusFor(result transcode.Result) string {
	switch result.Kind {
	case transcode.Success:
		return history.StatusSuccess
	case transcode.ExecutorMissing:
		return history.StatusExecutorMissing
	default:
		return history.Failed(result.Detail)
	}
}

func outputExists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
