package stageexec

import (
	"context"
	"errors"
	"sync"
	"testing"

	"splicer/internal/journal"
	"splicer/internal/services"
)

type memoryRecorder struct {
	mu     sync.Mutex
	stages []journal.Stage
}

func (r *memoryRecorder) RecordStage(_ context.Context, stage journal.Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
	return nil
}

func TestRunRecordsOutcome(t *testing.T) {
	ctx := services.WithRunID(context.Background(), "run-1")
	ctx = services.WithTrack(ctx, "host")
	rec := &memoryRecorder{}

	var sawStage string
	err := Run(ctx, Options{Recorder: rec, Stage: "aproc1", Detail: "compress"}, func(ctx context.Context) error {
		sawStage, _ = services.StageFromContext(ctx)
		return nil
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if sawStage != "aproc1" {
		t.Fatalf("stage not stamped on context, got %q", sawStage)
	}

	boom := errors.New("boom")
	if err := Run(ctx, Options{Recorder: rec, Stage: "denoise"}, func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected stage error, got %v", err)
	}
	if err := Run(ctx, Options{Recorder: rec, Stage: "aproc"}, func(context.Context) error { return ErrSkipped }); err != nil {
		t.Fatalf("skipped stage should not fail, got %v", err)
	}

	if len(rec.stages) != 3 {
		t.Fatalf("expected 3 journal rows, got %d", len(rec.stages))
	}
	want := []string{journal.StatusSucceeded, journal.StatusFailed, journal.StatusSkipped}
	for i, stage := range rec.stages {
		if stage.Status != want[i] {
			t.Fatalf("row %d status = %q, want %q", i, stage.Status, want[i])
		}
		if stage.RunID != "run-1" || stage.Track != "host" {
			t.Fatalf("row %d missing run or track: %#v", i, stage)
		}
	}
	if rec.stages[0].Detail != "compress" || rec.stages[1].Error != "boom" {
		t.Fatalf("unexpected rows %#v", rec.stages)
	}
}

func TestRunWithoutRecorder(t *testing.T) {
	if err := Run(context.Background(), Options{Stage: "clip"}, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}
