package main

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// ffmpegStub creates the last argument as an empty file, unless it is
// stdout, and prints a silencedetect report when asked for one.
const ffmpegStub = `#!/bin/sh
for last; do :; done
case "$*" in
*silencedetect*)
	echo "[silencedetect @ 0x1] silence_start: 10" >&2
	echo "[silencedetect @ 0x1] silence_end: 20 | silence_duration: 10" >&2
	;;
esac
[ "$last" = "-" ] || : > "$last"
`

const ffprobeStub = `#!/bin/sh
cat <<'JSON'
{"streams":[
 {"index":0,"codec_type":"video","r_frame_rate":"30/1"},
 {"index":1,"codec_type":"audio","tags":{"title":"host"}}
],"format":{"nb_streams":2}}
JSON
`

type cliEnv struct {
	dir string
}

// newCLIEnv prepares a workspace whose config points at stub media tools.
func newCLIEnv(t *testing.T, extraConfig string) *cliEnv {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	base := t.TempDir()
	bin := filepath.Join(base, "bin")
	dir := filepath.Join(base, "work")
	for _, d := range []string{bin, dir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	ffmpeg := writeScript(t, bin, "ffmpeg", ffmpegStub)
	ffprobe := writeScript(t, bin, "ffprobe", ffprobeStub)
	conf := fmt.Sprintf("[programs]\nffmpeg=%s\nffprobe=%s\n%s", ffmpeg, ffprobe, extraConfig)
	if err := os.WriteFile(filepath.Join(dir, "splicer.conf"), []byte(conf), 0o644); err != nil {
		t.Fatal(err)
	}
	return &cliEnv{dir: dir}
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func (e *cliEnv) path(name string) string {
	return filepath.Join(e.dir, name)
}

func (e *cliEnv) write(t *testing.T, name, content string) {
	t.Helper()
	if err := os.WriteFile(e.path(name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, "", append([]string{"-C", e.dir}, args...)...)
}

func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s: %v", path, err)
	}
}
