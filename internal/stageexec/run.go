package stageexec

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"splicer/internal/journal"
	"splicer/internal/logging"
	"splicer/internal/services"
)

// ErrSkipped is returned by a stage body whose work was already done.
var ErrSkipped = errors.New("stage skipped")

// Recorder persists stage executions. *journal.Journal satisfies it.
type Recorder interface {
	RecordStage(ctx context.Context, stage journal.Stage) error
}

// Options describes one stage execution for one track.
type Options struct {
	Logger   *slog.Logger
	Recorder Recorder
	Stage    string
	// Detail is a short description stored with the journal row, such as the
	// filter name or output file.
	Detail string
}

// Run executes fn as a named stage: the context is stamped with the stage
// name, start and outcome are logged, and the execution is journaled. A fn
// returning ErrSkipped is recorded as skipped and Run returns nil.
func Run(ctx context.Context, opts Options, fn func(context.Context) error) error {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	stageCtx := services.WithStage(ctx, opts.Stage)

	logger.DebugContext(stageCtx, "stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("detail", opts.Detail),
	)

	started := time.Now()
	err := fn(stageCtx)
	finished := time.Now()

	record := journal.Stage{
		Stage:      opts.Stage,
		Detail:     opts.Detail,
		StartedAt:  started,
		FinishedAt: finished,
		Status:     journal.StatusSucceeded,
	}
	record.RunID, _ = services.RunIDFromContext(ctx)
	record.Track, _ = services.TrackFromContext(ctx)

	switch {
	case errors.Is(err, ErrSkipped):
		record.Status = journal.StatusSkipped
		logger.InfoContext(stageCtx, "stage skipped",
			logging.String(logging.FieldEventType, "stage_skip"),
			logging.String("detail", opts.Detail),
		)
		err = nil
	case err != nil:
		record.Status = journal.StatusFailed
		record.Error = strings.TrimSpace(err.Error())
		logger.ErrorContext(stageCtx, "stage failed",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.String("detail", opts.Detail),
			logging.String("error_category", services.Category(err)),
			logging.Error(err),
		)
	default:
		logger.InfoContext(stageCtx, "stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.String("detail", opts.Detail),
			logging.Duration("stage_duration", finished.Sub(started).Round(time.Millisecond)),
		)
	}

	if opts.Recorder != nil {
		if recErr := opts.Recorder.RecordStage(ctx, record); recErr != nil {
			logger.WarnContext(stageCtx, "failed to journal stage", logging.Error(recErr))
		}
	}
	return err
}
