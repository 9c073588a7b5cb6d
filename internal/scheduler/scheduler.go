package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"splicer/internal/config"
	"splicer/internal/logging"
	"splicer/internal/media/ffmpeg"
	"splicer/internal/services"
	"splicer/internal/stageexec"
	"splicer/internal/workspace"
)

// KeyMaxJobs caps how many tracks run external tools at once. 0 is unbounded.
const KeyMaxJobs = "scheduler.maxjobs"

// Options configures a Scheduler.
type Options struct {
	Engine    *config.Engine
	Workspace workspace.Workspace
	Runner    ffmpeg.Runner
	Logger    *slog.Logger
	Recorder  stageexec.Recorder
	// MaxJobs overrides scheduler.maxjobs when positive.
	MaxJobs int
}

// Outcome is the result of one job.
type Outcome struct {
	Base    string
	Skipped bool
	Err     error
}

// Scheduler runs track pipelines concurrently.
type Scheduler struct {
	engine   *config.Engine
	ws       workspace.Workspace
	runner   ffmpeg.Runner
	logger   *slog.Logger
	recorder stageexec.Recorder
	maxJobs  int
}

// New builds a Scheduler. A nil Runner executes real processes.
func New(opts Options) *Scheduler {
	runner := opts.Runner
	if runner == nil {
		runner = ffmpeg.ExecRunner{}
	}
	maxJobs := opts.MaxJobs
	if maxJobs <= 0 && opts.Engine != nil {
		maxJobs = opts.Engine.Int(KeyMaxJobs, "")
	}
	return &Scheduler{
		engine:   opts.Engine,
		ws:       opts.Workspace,
		runner:   runner,
		logger:   logging.NewComponentLogger(opts.Logger, "scheduler"),
		recorder: opts.Recorder,
		maxJobs:  maxJobs,
	}
}

// Run processes jobs concurrently and returns one Outcome per job, in job
// order. A failing track does not stop the others; the returned error
// aggregates every track failure. Dependents of a failed track are released
// and will most likely fail on its missing output.
func (s *Scheduler) Run(ctx context.Context, jobs []*Job) ([]Outcome, error) {
	if s.engine == nil {
		return nil, fmt.Errorf("scheduler: %w", services.ErrConfiguration)
	}
	byBase := make(map[string]*Job, len(jobs))
	for _, job := range jobs {
		byBase[job.Base] = job
	}

	var slots chan struct{}
	if s.maxJobs > 0 {
		slots = make(chan struct{}, s.maxJobs)
	}

	s.logger.InfoContext(ctx, "processing tracks",
		logging.Int("tracks", len(jobs)),
		logging.Int("max_jobs", s.maxJobs),
	)

	outcomes := make([]Outcome, len(jobs))
	start := make(chan struct{})
	var g errgroup.Group
	for i, job := range jobs {
		t := &track{
			Scheduler: s,
			job:       job,
			deps:      byBase,
			slots:     slots,
			codec:     s.engine.RawCodec(),
		}
		g.Go(func() error {
			defer job.finish()
			select {
			case <-start:
			case <-ctx.Done():
				outcomes[i] = Outcome{Base: job.Base, Err: ctx.Err()}
				return ctx.Err()
			}
			skipped, err := t.process(services.WithTrack(ctx, job.Base))
			outcomes[i] = Outcome{Base: job.Base, Skipped: skipped, Err: err}
			return err
		})
	}
	// every job and its Done channel exist before any pipeline proceeds
	close(start)
	// Wait reports only the first failure; every outcome is kept for the
	// aggregate below.
	if err := g.Wait(); err == nil {
		return outcomes, nil
	}

	var result *multierror.Error
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", outcome.Base, outcome.Err))
		}
	}
	return outcomes, result.ErrorOrNil()
}

// acquire takes a tool slot. Slots are never held across dependency waits,
// so a bounded pool cannot deadlock on an acyclic graph.
func (t *track) acquire(ctx context.Context) (func(), error) {
	if t.slots == nil {
		return func() {}, nil
	}
	select {
	case t.slots <- struct{}{}:
		return func() { <-t.slots }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// waitFor blocks until the named track has finished. Names that are not
// tracks of this run are not waited on.
func (t *track) waitFor(ctx context.Context, base string) error {
	dep, ok := t.deps[base]
	if !ok || dep == t.job {
		return nil
	}
	t.logger.DebugContext(ctx, "waiting for dependency", logging.String("dependency", base))
	select {
	case <-dep.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stage runs fn as a journaled stage.
func (t *track) stage(ctx context.Context, name, detail string, fn func(context.Context) error) error {
	return stageexec.Run(ctx, stageexec.Options{
		Logger:   t.logger,
		Recorder: t.recorder,
		Stage:    name,
		Detail:   detail,
	}, fn)
}

// tool runs cmd while holding a slot.
func (t *track) tool(ctx context.Context, cmd ffmpeg.Command) error {
	release, err := t.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	t.logger.DebugContext(ctx, "running tool", logging.String("command", cmd.String()))
	if _, err := t.runner.Run(ctx, cmd); err != nil {
		return services.Wrap(services.ErrExternalTool, "", cmd.Name, "", err)
	}
	return nil
}

// pipe runs a pipeline while holding a slot.
func (t *track) pipe(ctx context.Context, cmds ...ffmpeg.Command) error {
	release, err := t.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	if err := t.runner.Pipe(ctx, cmds...); err != nil {
		return services.Wrap(services.ErrExternalTool, "", "pipeline", "", err)
	}
	return nil
}

// track is the per-job view of the scheduler.
type track struct {
	*Scheduler
	job   *Job
	deps  map[string]*Job
	slots chan struct{}
	codec string
}
