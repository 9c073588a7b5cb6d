package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"splicer/internal/logging"
	"splicer/internal/workspace"
)

func populate(t *testing.T, ws workspace.Workspace, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(ws.Path(name), []byte(name), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestListIntermediates(t *testing.T) {
	ws := workspace.New(t.TempDir(), "flac")
	populate(t, ws,
		"host-raw.flac",
		"host-noiser.flac",
		"host-aproc1.flac",
		"host-aproc12.flac",
		"host-aprocx.flac",
		"host-noise.f32",
		"host-proc.flac",
		"guest-noiser.wav",
	)
	files, err := ListIntermediates(ws)
	if err != nil {
		t.Fatalf("ListIntermediates: %v", err)
	}
	want := []string{"host-aproc1.flac", "host-aproc12.flac", "host-noise.f32", "host-noiser.flac"}
	if len(files) != len(want) {
		t.Fatalf("got %+v", files)
	}
	for i, name := range want {
		if files[i].Name != name {
			t.Fatalf("file %d = %s, want %s", i, files[i].Name, name)
		}
		if files[i].Size != int64(len(name)) {
			t.Fatalf("size of %s = %d", name, files[i].Size)
		}
	}
}

func TestListIntermediatesMissingDirectory(t *testing.T) {
	files, err := ListIntermediates(workspace.New("/nonexistent/path/12345", "flac"))
	if err != nil || len(files) != 0 {
		t.Fatalf("missing directory = %v, %v", files, err)
	}
}

func TestCleanIntermediatesHonoursAge(t *testing.T) {
	ws := workspace.New(t.TempDir(), "flac")
	populate(t, ws, "old-noiser.flac", "new-aproc1.flac", "host-proc.flac")
	oldTime := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(ws.Path("old-noiser.flac"), oldTime, oldTime); err != nil {
		t.Fatalf("set old time: %v", err)
	}

	result := CleanIntermediates(context.Background(), ws, time.Hour, logging.NewNop())
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}
	if len(result.Removed) != 1 || result.Removed[0] != filepath.Join(ws.Dir, "old-noiser.flac") {
		t.Fatalf("removed = %v", result.Removed)
	}
	if !workspace.Exists(ws.Path("new-aproc1.flac")) {
		t.Fatal("recent intermediate should be kept")
	}

	result = CleanIntermediates(context.Background(), ws, 0, nil)
	if len(result.Removed) != 1 || workspace.Exists(ws.Path("new-aproc1.flac")) {
		t.Fatalf("zero age should remove everything, removed = %v", result.Removed)
	}
	if !workspace.Exists(ws.Path("host-proc.flac")) {
		t.Fatal("processed tracks must never be removed")
	}
}
