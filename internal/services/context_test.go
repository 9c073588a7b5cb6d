package services_test

import (
	"context"
	"testing"

	"splicer/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-123")
	ctx = services.WithTrack(ctx, "host")
	ctx = services.WithStage(ctx, "aproc")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-123" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if track, ok := services.TrackFromContext(ctx); !ok || track != "host" {
		t.Fatalf("unexpected track: %v %v", track, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "aproc" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithTrack(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.TrackFromContext(ctx); ok {
		t.Fatal("expected no track value")
	}
}
