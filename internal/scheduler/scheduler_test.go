package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"splicer/internal/config"
	"splicer/internal/media/ffmpeg"
	"splicer/internal/workspace"
)

const loudnormSummary = "Input Integrated:    -23.5 LUFS\n"

// fakeRunner writes each command's output file instead of running it.
type fakeRunner struct {
	mu    sync.Mutex
	calls []ffmpeg.Command
	// hook runs before the output is written; a non-nil error fails the call.
	hook func(cmd ffmpeg.Command) error
}

func (f *fakeRunner) Run(_ context.Context, cmd ffmpeg.Command) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		if err := hook(cmd); err != nil {
			return nil, err
		}
	}
	if slices.Contains(cmd.Args, "loudnorm=print_format=summary") {
		return []byte(loudnormSummary), nil
	}
	return nil, writeOutput(cmd)
}

func (f *fakeRunner) Pipe(_ context.Context, cmds ...ffmpeg.Command) error {
	f.mu.Lock()
	f.calls = append(f.calls, cmds...)
	f.mu.Unlock()
	return writeOutput(cmds[len(cmds)-1])
}

func (f *fakeRunner) commands() []ffmpeg.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func writeOutput(cmd ffmpeg.Command) error {
	out := cmd.Args[len(cmd.Args)-1]
	if i := slices.Index(cmd.Args, "-o"); i >= 0 {
		out = cmd.Args[i+1]
	}
	return os.WriteFile(out, []byte(cmd.String()), 0o644)
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("pcm"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func newTestScheduler(t *testing.T, engine *config.Engine, runner *fakeRunner) (*Scheduler, workspace.Workspace) {
	t.Helper()
	ws := workspace.New(t.TempDir(), engine.RawFormat())
	return New(Options{Engine: engine, Workspace: ws, Runner: runner}), ws
}

func runAll(t *testing.T, s *Scheduler, ws workspace.Workspace) ([]Outcome, error) {
	t.Helper()
	jobs, err := Discover(ws)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Run(ctx, jobs)
}

func TestDiscover(t *testing.T) {
	ws := workspace.New(t.TempDir(), "flac")
	for _, name := range []string{"host-raw.flac", "host-sync.flac", "guest-sync.flac", "notes.txt", "video.track", "music-raw.wav"} {
		touch(t, ws.Path(name))
	}

	jobs, err := Discover(ws)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].Base != "guest" || jobs[0].DeleteInput {
		t.Fatalf("guest job = %+v", jobs[0])
	}
	if jobs[1].Base != "host" || !jobs[1].DeleteInput || filepath.Base(jobs[1].Input) != "host-raw.flac" {
		t.Fatalf("host job = %+v", jobs[1])
	}
	select {
	case <-jobs[0].Done():
		t.Fatal("new job should not be done")
	default:
	}
}

func TestRunDefaultStepsWithLeveling(t *testing.T) {
	runner := &fakeRunner{}
	s, ws := newTestScheduler(t, config.Defaults(), runner)
	touch(t, ws.RawFile("host"))

	outcomes, err := runAll(t, s, ws)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Skipped {
		t.Fatalf("unexpected outcomes %+v", outcomes)
	}

	calls := runner.commands()
	if len(calls) != 4 {
		t.Fatalf("expected measure, compress, measure, limit; got %d calls", len(calls))
	}
	compress := strings.Join(calls[1].Args, " ")
	if !strings.Contains(compress, "[0:a]acompressor=level_in=5.500000dB[aud]") {
		t.Fatalf("compress step args = %q", compress)
	}
	if !strings.HasSuffix(compress, ws.StageFile("host", 1)) {
		t.Fatalf("step 1 should write the stage file, got %q", compress)
	}
	if !strings.HasSuffix(strings.Join(calls[3].Args, " "), ws.ProcFile("host")) {
		t.Fatalf("last step should write the processed file, got %v", calls[3].Args)
	}

	if !workspace.Exists(ws.ProcFile("host")) {
		t.Fatal("processed file missing")
	}
	for _, gone := range []string{ws.RawFile("host"), ws.NoiserFile("host"), ws.StageFile("host", 1)} {
		if workspace.Exists(gone) {
			t.Fatalf("%s should have been removed", filepath.Base(gone))
		}
	}
}

const dependencyConfig = `
[steps]
aproc=1
[filters]
alevel1=0
aproc1=plain
/^guest$/ aproc1=gate
plain=anull
gate=sidechaingate@$(dep1)
gatedeps=host
`

func TestDependentWaitsForDependency(t *testing.T) {
	runner := &fakeRunner{}
	s, ws := newTestScheduler(t, config.FromDocuments(dependencyConfig), runner)
	touch(t, ws.SyncFile("guest"))
	touch(t, ws.SyncFile("host"))

	jobs, err := Discover(ws)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	host := jobs[1]

	var observed error
	runner.hook = func(cmd ffmpeg.Command) error {
		joined := strings.Join(cmd.Args, " ")
		switch {
		case strings.Contains(joined, "anull"):
			time.Sleep(50 * time.Millisecond)
		case strings.Contains(joined, "sidechaingate@"):
			select {
			case <-host.Done():
			default:
				observed = errors.New("dependent filter ran before dependency finished")
			}
			if !workspace.Exists(ws.ProcFile("host")) {
				observed = errors.New("dependency output missing when dependent ran")
			}
			if !strings.Contains(joined, "sidechaingate@"+ws.ProcFile("host")) {
				observed = errors.New("dep1 not substituted: " + joined)
			}
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := s.Run(ctx, jobs); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if observed != nil {
		t.Fatal(observed)
	}
	if !workspace.Exists(ws.SyncFile("guest")) {
		t.Fatal("synchronized inputs must be kept")
	}
}

func TestBoundedPoolCompletesDependencyChain(t *testing.T) {
	runner := &fakeRunner{}
	engine := config.FromDocuments(dependencyConfig, "[scheduler]\nmaxjobs=1\n")
	s, ws := newTestScheduler(t, engine, runner)
	if s.maxJobs != 1 {
		t.Fatalf("maxJobs = %d, want 1", s.maxJobs)
	}
	touch(t, ws.SyncFile("guest"))
	touch(t, ws.SyncFile("host"))

	if _, err := runAll(t, s, ws); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, base := range []string{"guest", "host"} {
		if !workspace.Exists(ws.ProcFile(base)) {
			t.Fatalf("%s not processed", base)
		}
	}
}

func TestSecondRunDoesNoWork(t *testing.T) {
	runner := &fakeRunner{}
	s, ws := newTestScheduler(t, config.FromDocuments(dependencyConfig), runner)
	touch(t, ws.SyncFile("guest"))
	touch(t, ws.SyncFile("host"))

	if _, err := runAll(t, s, ws); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	first := len(runner.commands())

	outcomes, err := runAll(t, s, ws)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if got := len(runner.commands()); got != first {
		t.Fatalf("second run invoked %d tools", got-first)
	}
	for _, outcome := range outcomes {
		if !outcome.Skipped {
			t.Fatalf("expected %s to be skipped", outcome.Base)
		}
	}
}

func TestNullSteps(t *testing.T) {
	runner := &fakeRunner{}
	engine := config.FromDocuments("[filters]\naproc1=null\naproc2=null\n")
	s, ws := newTestScheduler(t, engine, runner)
	touch(t, ws.SyncFile("host"))

	if _, err := runAll(t, s, ws); err != nil {
		t.Fatalf("Run: %v", err)
	}
	calls := runner.commands()
	if len(calls) != 1 {
		t.Fatalf("expected only the final conversion, got %v", calls)
	}
	want := ffmpeg.ConvertArgs(ws.StageFile("host", 1), "flac", ws.ProcFile("host"))
	if !slices.Equal(calls[0].Args, want) {
		t.Fatalf("conversion args = %v, want %v", calls[0].Args, want)
	}
	if workspace.Exists(ws.StageFile("host", 1)) {
		t.Fatal("intermediate should be removed after conversion")
	}
}

func TestNoiseReductionWithLearning(t *testing.T) {
	runner := &fakeRunner{}
	engine := config.FromDocuments("[steps]\nnoiser=noiserepellent\nnoiserlearn=y\naproc=0\n")
	s, ws := newTestScheduler(t, engine, runner)
	touch(t, ws.RawFile("host"))

	if _, err := runAll(t, s, ws); err != nil {
		t.Fatalf("Run: %v", err)
	}
	calls := runner.commands()
	if len(calls) != 5 {
		t.Fatalf("expected learn (2) and denoise (3) pipelines, got %d commands", len(calls))
	}
	if calls[1].Name != "splicer-findnoise" || !slices.Equal(calls[1].Args, []string{"-o", ws.NoiseProfile("host"), "2"}) {
		t.Fatalf("learner = %v", calls[1])
	}
	if calls[3].Name != "splicer-noiserepellentdenoise" || !slices.Equal(calls[3].Args, []string{"-l", ws.NoiseProfile("host"), "2"}) {
		t.Fatalf("denoiser = %v", calls[3])
	}
	if !slices.Contains(calls[2].Args, "f32le") {
		t.Fatalf("noiserepellent should decode f32le, got %v", calls[2].Args)
	}
	if workspace.Exists(ws.NoiseProfile("host")) {
		t.Fatal("learned profile should be removed")
	}
	if !workspace.Exists(ws.ProcFile("host")) || workspace.Exists(ws.RawFile("host")) {
		t.Fatal("expected processed output and deleted raw input")
	}
}

func TestConditionalNoiserSkipsOtherTracks(t *testing.T) {
	runner := &fakeRunner{}
	engine := config.FromDocuments("[steps]\n/^host$/ noiser=rnn\naproc=0\n")
	s, ws := newTestScheduler(t, engine, runner)
	touch(t, ws.SyncFile("guest"))
	touch(t, ws.SyncFile("host"))

	if _, err := runAll(t, s, ws); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, cmd := range runner.commands() {
		if strings.Contains(cmd.String(), "guest") {
			t.Fatalf("guest should be linked, not denoised: %v", cmd)
		}
	}
	data, err := os.ReadFile(ws.ProcFile("guest"))
	if err != nil || string(data) != "pcm" {
		t.Fatalf("guest output = %q, %v", data, err)
	}
}

func TestFailedTrackDoesNotStopOthers(t *testing.T) {
	runner := &fakeRunner{}
	runner.hook = func(cmd ffmpeg.Command) error {
		if strings.Contains(cmd.String(), "host-noiser") {
			return errors.New("exit status 1")
		}
		return nil
	}
	engine := config.FromDocuments("[filters]\nalevel1=0\nalevel2=0\n")
	s, ws := newTestScheduler(t, engine, runner)
	touch(t, ws.RawFile("guest"))
	touch(t, ws.RawFile("host"))

	outcomes, err := runAll(t, s, ws)
	if err == nil || !strings.Contains(err.Error(), "host") {
		t.Fatalf("expected aggregated host failure, got %v", err)
	}
	if outcomes[0].Err != nil || !workspace.Exists(ws.ProcFile("guest")) {
		t.Fatalf("guest should succeed: %+v", outcomes[0])
	}
	if outcomes[1].Err == nil {
		t.Fatal("host outcome should carry the failure")
	}
	if !workspace.Exists(ws.RawFile("host")) {
		t.Fatal("failed track must keep its input")
	}
}

func TestEveryTrackFailureIsReported(t *testing.T) {
	runner := &fakeRunner{}
	runner.hook = func(cmd ffmpeg.Command) error {
		if strings.Contains(cmd.String(), "-noiser.") {
			return errors.New("exit status 1")
		}
		return nil
	}
	engine := config.FromDocuments("[filters]\nalevel1=0\nalevel2=0\n")
	s, ws := newTestScheduler(t, engine, runner)
	touch(t, ws.RawFile("guest"))
	touch(t, ws.RawFile("host"))

	outcomes, err := runAll(t, s, ws)
	if err == nil {
		t.Fatal("expected failures")
	}
	for i, base := range []string{"guest", "host"} {
		if !strings.Contains(err.Error(), base+":") {
			t.Fatalf("error should name %s: %v", base, err)
		}
		if outcomes[i].Err == nil {
			t.Fatalf("%s outcome should carry its failure", base)
		}
	}
}

func TestCancelledRunReleasesJobs(t *testing.T) {
	s, ws := newTestScheduler(t, config.Defaults(), &fakeRunner{})
	touch(t, ws.RawFile("host"))
	jobs, err := Discover(ws)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Run(ctx, jobs); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	select {
	case <-jobs[0].Done():
	default:
		t.Fatal("job should be done after Run returns")
	}
}
