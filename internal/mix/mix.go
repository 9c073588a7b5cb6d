package mix

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"splicer/internal/config"
	"splicer/internal/logging"
	"splicer/internal/media/ffmpeg"
	"splicer/internal/services"
	"splicer/internal/stageexec"
)

// Filter chains applied when an input has none of its own.
const (
	DefaultVideoFilter = "null"
	DefaultAudioFilter = "anull"
)

// silentAudio stands in for the mix when a program has no audio tracks.
const silentAudio = "aevalsrc=0:s=48000:d=1[aud]"

// Program describes one mix.
type Program struct {
	Output string
	Video  string
	Audio  []string
	// VideoFilter is applied to the video input; empty means null.
	VideoFilter string
	// AudioFilters holds per-track chains keyed by 0-based audio index.
	// Entries for indexes past the last audio file are ignored.
	AudioFilters map[int]string
	// OutputOptions are passed to ffmpeg ahead of the output path.
	OutputOptions []string
}

// Validate reports a program that cannot be mixed.
func (p Program) Validate() error {
	switch {
	case strings.TrimSpace(p.Output) == "":
		return services.Wrap(services.ErrValidation, "mix", "validate", "output file is required", nil)
	case strings.TrimSpace(p.Video) == "":
		return services.Wrap(services.ErrValidation, "mix", "validate", "video file is required", nil)
	}
	for i := range p.AudioFilters {
		if i < 0 {
			return services.Wrap(services.ErrValidation, "mix", "validate", "audio filter index "+strconv.Itoa(i)+" is negative", nil)
		}
	}
	return nil
}

// Graph returns the filter_complex for p. Input 0 is the video; audio file
// i is input i+1.
func (p Program) Graph() string {
	var b strings.Builder
	videoFilter := p.VideoFilter
	if strings.TrimSpace(videoFilter) == "" {
		videoFilter = DefaultVideoFilter
	}
	fmt.Fprintf(&b, "[0:v]%s[vid]", videoFilter)
	for i := range p.Audio {
		fmt.Fprintf(&b, ";[%d:a]%s[aud%d]", i+1, p.audioFilter(i), i)
	}
	b.WriteByte(';')
	if len(p.Audio) == 0 {
		b.WriteString(silentAudio)
		return b.String()
	}
	for i := range p.Audio {
		fmt.Fprintf(&b, "[aud%d]", i)
	}
	fmt.Fprintf(&b, "amix=%d[aud]", len(p.Audio))
	return b.String()
}

func (p Program) audioFilter(i int) string {
	if filter := strings.TrimSpace(p.AudioFilters[i]); filter != "" {
		return filter
	}
	return DefaultAudioFilter
}

// Args returns the ffmpeg arguments for p.
func (p Program) Args() []string {
	args := make([]string, 0, 2*len(p.Audio)+len(p.OutputOptions)+8)
	args = append(args, "-i", p.Video)
	for _, audio := range p.Audio {
		args = append(args, "-i", audio)
	}
	args = append(args,
		"-filter_complex", p.Graph(),
		"-map", "[vid]",
		"-map", "[aud]",
	)
	args = append(args, p.OutputOptions...)
	return append(args, p.Output)
}

// Options configures a Mixer.
type Options struct {
	Engine   *config.Engine
	Runner   ffmpeg.Runner
	Logger   *slog.Logger
	Recorder stageexec.Recorder
}

// Mixer runs programs through ffmpeg.
type Mixer struct {
	engine   *config.Engine
	runner   ffmpeg.Runner
	logger   *slog.Logger
	recorder stageexec.Recorder
}

// New builds a Mixer. A nil Runner executes real processes.
func New(opts Options) *Mixer {
	runner := opts.Runner
	if runner == nil {
		runner = ffmpeg.ExecRunner{}
	}
	return &Mixer{
		engine:   opts.Engine,
		runner:   runner,
		logger:   logging.NewComponentLogger(opts.Logger, "mix"),
		recorder: opts.Recorder,
	}
}

// Mix renders p to its output file.
func (m *Mixer) Mix(ctx context.Context, p Program) error {
	if m.engine == nil {
		return fmt.Errorf("mix: %w", services.ErrConfiguration)
	}
	if err := p.Validate(); err != nil {
		return err
	}
	cmd := ffmpeg.Command{Name: m.engine.FFmpegBinary(), Args: p.Args()}
	m.logger.DebugContext(ctx, "mixing program",
		logging.String("video", p.Video),
		logging.Int("audio_tracks", len(p.Audio)),
		logging.String("graph", p.Graph()),
	)
	return stageexec.Run(ctx, stageexec.Options{
		Logger:   m.logger,
		Recorder: m.recorder,
		Stage:    "mix",
		Detail:   filepath.Base(p.Output),
	}, func(ctx context.Context) error {
		if _, err := m.runner.Run(ctx, cmd); err != nil {
			return services.Wrap(services.ErrExternalTool, "mix", "ffmpeg", filepath.Base(p.Output), err)
		}
		return nil
	})
}
