package clip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar"
	"github.com/hashicorp/go-multierror"

	"splicer/internal/config"
	"splicer/internal/filtergraph"
	"splicer/internal/logging"
	"splicer/internal/media/ffmpeg"
	"splicer/internal/media/ffprobe"
	"splicer/internal/services"
	"splicer/internal/stageexec"
	"splicer/internal/workspace"
)

// Directive keys.
const (
	KeyVideoFormat = "formats.vformat"
	KeyVideoCodec  = "formats.vcodec"
	KeyVideoCRF    = "formats.vcrf"
	KeyVideoRate   = "formats.vbr"
	KeyVideoFlags  = "formats.vflags"
	KeyAudioFormat = "formats.aformat"
	KeyAudioCodec  = "formats.acodec"
	KeyAudioRate   = "formats.abr"
	KeyVideoFilter = "filters.video"
	KeyFFClip      = "filters.ffclip"
	KeyVideoBypass = "steps.videobypass"
)

const (
	marksExt        = ".mark"
	deinterlace     = "yadif=mode=send_field_nospatial:parity=tff,mcdeint=parity=tff"
	highFrameRate   = 40
	defaultVideoExt = "mkv"
	defaultAudioExt = "wav"
)

var interlacedTrack = regexp.MustCompile(`iv$`)

// Action records what happened to one output.
type Action string

const (
	ActionClipped Action = "clipped"
	ActionSkipped Action = "skipped"
	ActionRemoved Action = "removed"
)

// Output is one clipped file.
type Output struct {
	Track   string
	Kind    string
	Segment string
	Path    string
	Action  Action
}

// ProbeFunc inspects a media file.
type ProbeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Options configures a Clipper.
type Options struct {
	Engine    *config.Engine
	Workspace workspace.Workspace
	Runner    ffmpeg.Runner
	Probe     ProbeFunc
	Logger    *slog.Logger
	Recorder  stageexec.Recorder
	// Cleanup deletes outputs instead of producing them.
	Cleanup bool
}

// Clipper cuts processed tracks by a marks file.
type Clipper struct {
	engine   *config.Engine
	ws       workspace.Workspace
	runner   ffmpeg.Runner
	probe    ProbeFunc
	logger   *slog.Logger
	recorder stageexec.Recorder
	cleanup  bool
	base     filtergraph.Options
	fps      int
}

// New builds a Clipper. Nil Runner and Probe use the real tools.
func New(opts Options) *Clipper {
	runner := opts.Runner
	if runner == nil {
		runner = ffmpeg.ExecRunner{}
	}
	probe := opts.Probe
	if probe == nil {
		probe = ffprobe.Inspect
	}
	return &Clipper{
		engine:   opts.Engine,
		ws:       opts.Workspace,
		runner:   runner,
		probe:    probe,
		logger:   logging.NewComponentLogger(opts.Logger, "clip"),
		recorder: opts.Recorder,
		cleanup:  opts.Cleanup,
		base:     filtergraph.OptionsFromConfig(opts.Engine),
	}
}

// DefaultMarksPath is the marks file that accompanies input.
func DefaultMarksPath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + marksExt
}

// Run clips every video track and processed audio track of the workspace
// once per restart segment of the marks file. An empty marksPath uses
// DefaultMarksPath. Failures of separate outputs are aggregated.
func (c *Clipper) Run(ctx context.Context, input, marksPath string) ([]Output, error) {
	if c.engine == nil {
		return nil, services.Wrap(services.ErrConfiguration, "clip", "run", "no configuration loaded", nil)
	}
	if strings.TrimSpace(marksPath) == "" {
		marksPath = DefaultMarksPath(input)
	}
	restarts, err := countRestarts(marksPath)
	if err != nil {
		return nil, fmt.Errorf("count restarts: %w", err)
	}
	videos, audios, err := c.discover()
	if err != nil {
		return nil, err
	}
	c.logger.InfoContext(ctx, "clipping workspace",
		logging.String("marks", marksPath),
		logging.Int("segments", restarts+1),
		logging.Int("video_tracks", len(videos)),
		logging.Int("audio_tracks", len(audios)),
		logging.Bool("cleanup", c.cleanup),
	)

	var outputs []Output
	var result *multierror.Error
	for segment := 0; segment <= restarts; segment++ {
		if err := ctx.Err(); err != nil {
			return outputs, err
		}
		suffix := workspace.RestartSuffix(segment, restarts)
		listing := c.ws.MarksFile(suffix)
		if c.cleanup {
			if err := os.Remove(listing); err != nil && !errors.Is(err, os.ErrNotExist) {
				result = multierror.Append(result, err)
			}
		} else if err := c.writeMarks(ctx, marksPath, segment, listing); err != nil {
			return outputs, err
		}

		graphs, err := c.segment(ctx, marksPath, segment)
		if err != nil {
			return outputs, err
		}
		for _, name := range videos {
			out, err := c.clipVideo(ctx, input, name, suffix, graphs)
			outputs = append(outputs, out)
			if err != nil {
				result = multierror.Append(result, err)
			}
		}
		for _, name := range audios {
			out, err := c.clipAudio(ctx, name, suffix, graphs)
			outputs = append(outputs, out)
			if err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	return outputs, result.ErrorOrNil()
}

// discover lists `.track` markers and processed audio files by name.
func (c *Clipper) discover() (videos, audios []string, err error) {
	entries, err := os.ReadDir(c.ws.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read workspace: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if ok, _ := doublestar.Match("*."+workspace.TrackExt, name); ok {
			videos = append(videos, name)
			continue
		}
		if ok, _ := doublestar.Match("*-proc."+c.ws.Format, name); ok && !strings.HasPrefix(name, "noise-") {
			audios = append(audios, name)
		}
	}
	sort.Strings(videos)
	sort.Strings(audios)
	return videos, audios, nil
}

func (c *Clipper) clipVideo(ctx context.Context, input, name, suffix string, graphs segmentGraphs) (Output, error) {
	base := strings.TrimSuffix(name, "."+workspace.TrackExt)
	format := c.resolve(KeyVideoFormat, name, defaultVideoExt)
	out := Output{Track: base, Kind: "video", Segment: suffix, Path: c.ws.OutputFile(base, suffix, format)}
	if done, err := c.settle(&out); done {
		return out, err
	}

	index, err := readStreamIndex(c.ws.Path(name))
	if err != nil {
		return out, err
	}
	source := fmt.Sprintf("[0:%d]null[vid];", index)
	graph := strings.TrimSpace(graphs.video(c.frameRate(ctx, input)))

	var cmd ffmpeg.Command
	if bypass := c.resolve(KeyVideoBypass, base, ""); bypass != "" {
		cmd = ffmpeg.Command{Name: bypass, Args: []string{input, source + graph, out.Path}}
	} else {
		filters := "null"
		if interlacedTrack.MatchString(base) {
			filters = deinterlace
		}
		filters += "," + c.resolve(KeyVideoFilter, base, "null")
		args := []string{
			"-nostdin", "-copyts",
			"-i", input,
			"-filter_complex", source + graph + ";[vid]" + filters + "[vid]",
			"-map", "[vid]",
		}
		cmd = ffmpeg.Command{Name: c.engine.FFmpegBinary(), Args: append(args, c.videoCodecArgs(name, out.Path)...)}
	}
	return out, c.run(ctx, &out, cmd)
}

// videoCodecArgs returns the encoder flags followed by the output path.
func (c *Clipper) videoCodecArgs(name, output string) []string {
	if flags := strings.Fields(c.resolve(KeyVideoFlags, name, "")); len(flags) > 0 {
		return append(flags, output)
	}
	args := []string{"-c:v", c.resolve(KeyVideoCodec, name, "libx264"), "-threads", "0", "-preset", "ultrafast"}
	if crf := c.resolve(KeyVideoCRF, name, ""); crf != "" {
		args = append(args, "-crf", crf)
	} else if rate := c.resolve(KeyVideoRate, name, ""); rate != "" {
		args = append(args, "-b:v", rate)
	}
	return append(args, output)
}

func (c *Clipper) clipAudio(ctx context.Context, name, suffix string, graphs segmentGraphs) (Output, error) {
	base, _ := c.ws.BaseFromProc(name)
	format := c.resolve(KeyAudioFormat, base, defaultAudioExt)
	out := Output{Track: base, Kind: "audio", Segment: suffix, Path: c.ws.OutputFile(base, suffix, format)}
	if done, err := c.settle(&out); done {
		return out, err
	}

	mode := filtergraph.ParseFFMode(c.resolve(KeyFFClip, base, ""))
	args := []string{
		"-nostdin",
		"-i", c.ws.Path(name),
		"-filter_complex", strings.TrimSpace(graphs.audio[mode]),
		"-map", "[aud]",
		"-c:a", c.resolve(KeyAudioCodec, base, "pcm_s16le"),
	}
	if rate := c.resolve(KeyAudioRate, base, ""); rate != "" {
		args = append(args, "-b:a", rate)
	}
	args = append(args, out.Path)
	return out, c.run(ctx, &out, ffmpeg.Command{Name: c.engine.FFmpegBinary(), Args: args})
}

// settle handles cleanup mode and existing outputs. It reports true when no
// clipping is needed.
func (c *Clipper) settle(out *Output) (bool, error) {
	if c.cleanup {
		out.Action = ActionRemoved
		if err := os.Remove(out.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return true, fmt.Errorf("remove %s: %w", filepath.Base(out.Path), err)
		}
		return true, nil
	}
	if workspace.Exists(out.Path) {
		out.Action = ActionSkipped
		return true, nil
	}
	return false, nil
}

func (c *Clipper) run(ctx context.Context, out *Output, cmd ffmpeg.Command) error {
	ctx = services.WithTrack(ctx, out.Track)
	err := stageexec.Run(ctx, stageexec.Options{
		Logger:   c.logger,
		Recorder: c.recorder,
		Stage:    "clip",
		Detail:   filepath.Base(out.Path),
	}, func(ctx context.Context) error {
		if _, err := c.runner.Run(ctx, cmd); err != nil {
			return services.Wrap(services.ErrExternalTool, "clip", out.Kind, out.Track, err)
		}
		return nil
	})
	if err == nil {
		out.Action = ActionClipped
	}
	return err
}

// frameRate picks the output rate of video graphs from the capture's first
// stream with a known frame rate. The probe runs once per Clipper.
func (c *Clipper) frameRate(ctx context.Context, input string) int {
	if c.fps != 0 {
		return c.fps
	}
	c.fps = filtergraph.DefaultFPS
	result, err := c.probe(ctx, c.engine.FFprobeBinary(), input)
	if err != nil {
		c.logger.WarnContext(ctx, "frame rate probe failed; assuming 30 fps",
			logging.String("input", input),
			logging.Error(err),
		)
		return c.fps
	}
	for _, stream := range result.Streams {
		if rate := stream.FrameRate(); rate > 0 {
			if rate >= highFrameRate {
				c.fps = 60
			}
			break
		}
	}
	return c.fps
}

func (c *Clipper) resolve(key, condition, fallback string) string {
	if value, ok := c.engine.Resolve(key, condition, nil); ok {
		return value
	}
	return fallback
}

// readStreamIndex reads the capture stream index stored in a track marker.
// Unreadable content selects stream 0.
func readStreamIndex(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read track marker: %w", err)
	}
	index, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, nil
	}
	return index, nil
}
