package demux

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"splicer/internal/config"
	"splicer/internal/logging"
	"splicer/internal/media/ffmpeg"
	"splicer/internal/media/ffprobe"
	"splicer/internal/services"
	"splicer/internal/stageexec"
	"splicer/internal/workspace"
)

// Directive keys.
const (
	KeyInclude  = "tracks.include"
	KeyResample = "filters.resample"
)

// Names given to untitled streams.
const (
	defaultVideoTitle = "video"
	audioTitlePrefix  = "audio"
)

// Action says what demux does with one stream.
type Action string

const (
	ActionMarker   Action = "marker"
	ActionExtract  Action = "extract"
	ActionConvert  Action = "convert"
	ActionExists   Action = "exists"
	ActionExcluded Action = "excluded"
)

// Track is one stream of the capture and the planned action for it.
type Track struct {
	Index  int
	Kind   string
	Title  string
	Action Action
	// Source is the file audio is read from; Output is the file written.
	Source string
	Output string
}

// ProbeFunc inspects a media file.
type ProbeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Options configures a Demuxer.
type Options struct {
	Engine    *config.Engine
	Workspace workspace.Workspace
	Runner    ffmpeg.Runner
	Probe     ProbeFunc
	Logger    *slog.Logger
	Recorder  stageexec.Recorder
	DryRun    bool
}

// Demuxer plans and performs track extraction.
type Demuxer struct {
	engine   *config.Engine
	ws       workspace.Workspace
	runner   ffmpeg.Runner
	probe    ProbeFunc
	logger   *slog.Logger
	recorder stageexec.Recorder
	dryRun   bool
}

// New builds a Demuxer. Nil Runner and Probe use the real tools.
func New(opts Options) *Demuxer {
	runner := opts.Runner
	if runner == nil {
		runner = ffmpeg.ExecRunner{}
	}
	probe := opts.Probe
	if probe == nil {
		probe = ffprobe.Inspect
	}
	return &Demuxer{
		engine:   opts.Engine,
		ws:       opts.Workspace,
		runner:   runner,
		probe:    probe,
		logger:   logging.NewComponentLogger(opts.Logger, "demux"),
		recorder: opts.Recorder,
		dryRun:   opts.DryRun,
	}
}

// Plan probes input and decides the action for every video and audio stream.
func (d *Demuxer) Plan(ctx context.Context, input string) ([]Track, error) {
	result, err := d.probe(ctx, d.engine.FFprobeBinary(), input)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "demux", "probe", input, err)
	}
	d.logger.InfoContext(ctx, "probed capture",
		logging.String("input", input),
		logging.Int("streams", len(result.Streams)),
	)

	var tracks []Track
	for _, stream := range result.Streams {
		if !stream.IsVideo() {
			continue
		}
		title := stream.Title()
		if title == "" {
			title = defaultVideoTitle
		}
		track := Track{Index: stream.Index, Kind: "video", Title: title, Action: ActionMarker, Output: d.ws.TrackFile(title)}
		if !d.engine.Bool(KeyInclude, title) {
			track.Action = ActionExcluded
		}
		tracks = append(tracks, track)
	}

	untitled := 0
	for _, stream := range result.Streams {
		if !stream.IsAudio() {
			continue
		}
		title := stream.Title()
		if title == "" {
			untitled++
			title = audioTitlePrefix + strconv.Itoa(untitled)
		}
		tracks = append(tracks, d.planAudio(stream.Index, title, input))
	}
	return tracks, nil
}

func (d *Demuxer) planAudio(index int, title, input string) Track {
	track := Track{Index: index, Kind: "audio", Title: title, Source: input, Output: d.ws.RawFile(title)}
	supplied := d.ws.Path(title + "-raw." + workspace.SyncFormat)
	switch {
	case !d.engine.Bool(KeyInclude, title):
		track.Action = ActionExcluded
	case workspace.Exists(track.Output) || workspace.Exists(d.ws.ProcFile(title)):
		track.Action = ActionExists
	case workspace.Exists(supplied):
		track.Action = ActionConvert
		track.Source = supplied
	default:
		track.Action = ActionExtract
	}
	return track
}

// Run plans input and, unless in dry-run mode, writes video markers and
// extracts audio tracks concurrently. Extraction failures of separate
// tracks are aggregated.
func (d *Demuxer) Run(ctx context.Context, input string) ([]Track, error) {
	tracks, err := d.Plan(ctx, input)
	if err != nil {
		return nil, err
	}
	for _, track := range tracks {
		d.logger.InfoContext(ctx, "track planned",
			logging.String(logging.FieldTrack, track.Title),
			logging.String("kind", track.Kind),
			logging.Int("stream", track.Index),
			logging.String("action", string(track.Action)),
		)
	}
	if d.dryRun {
		return tracks, nil
	}

	var g errgroup.Group
	errs := make([]error, len(tracks))
	for i, track := range tracks {
		switch track.Action {
		case ActionMarker:
			g.Go(func() error {
				if err := os.WriteFile(track.Output, []byte(strconv.Itoa(track.Index)), 0o644); err != nil {
					errs[i] = fmt.Errorf("write %s: %w", filepath.Base(track.Output), err)
				}
				return errs[i]
			})
		case ActionExtract, ActionConvert:
			g.Go(func() error {
				errs[i] = d.extract(services.WithTrack(ctx, track.Title), track)
				return errs[i]
			})
		}
	}
	// Wait keeps only the first failure; errs holds them all.
	if err := g.Wait(); err == nil {
		return tracks, nil
	}

	var result *multierror.Error
	for _, err := range errs {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return tracks, result.ErrorOrNil()
}

func (d *Demuxer) extract(ctx context.Context, track Track) error {
	codec := d.engine.RawCodec()
	args := ffmpeg.ResampleArgs(track.Source, codec, track.Output)
	if track.Action == ActionExtract {
		resample, _ := d.engine.Resolve(KeyResample, "", nil)
		args = ffmpeg.ExtractArgs(track.Source, track.Index, resample, codec, track.Output)
	}
	cmd := ffmpeg.Command{Name: d.engine.FFmpegBinary(), Args: args}
	return stageexec.Run(ctx, stageexec.Options{
		Logger:   d.logger,
		Recorder: d.recorder,
		Stage:    "demux",
		Detail:   filepath.Base(track.Output),
	}, func(ctx context.Context) error {
		if _, err := d.runner.Run(ctx, cmd); err != nil {
			return services.Wrap(services.ErrExternalTool, "demux", string(track.Action), track.Title, err)
		}
		return nil
	})
}
