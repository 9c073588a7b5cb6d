package silence

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"regexp"
	"strconv"

	"splicer/internal/config"
	"splicer/internal/logging"
	"splicer/internal/marks"
	"splicer/internal/media/ffmpeg"
	"splicer/internal/services"
)

// Directive keys.
const (
	KeyThreshold = "silence.threshold"
	KeyPadding   = "silence.padding"
)

// Defaults used when the directives are absent.
const (
	DefaultThreshold = "-25dB"
	DefaultPadding   = 0.5
)

var (
	silenceStartPattern = regexp.MustCompile(`silence_start: (-?[0-9.]*)`)
	silenceEndPattern   = regexp.MustCompile(`silence_end: (-?[0-9.]*)`)
)

// Gap is one silent interval in seconds.
type Gap struct {
	Start float64
	End   float64
}

// ParseGaps reads silencedetect log output. A gap is reported when its end
// line is seen and pairs with the most recent start.
func ParseGaps(output []byte) []Gap {
	var gaps []Gap
	var start float64
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if m := silenceStartPattern.FindStringSubmatch(line); m != nil {
			start = parseSeconds(m[1])
			continue
		}
		if m := silenceEndPattern.FindStringSubmatch(line); m != nil {
			gaps = append(gaps, Gap{Start: start, End: parseSeconds(m[1])})
		}
	}
	return gaps
}

func parseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// Apply copies src to w and cuts every gap that lies inside a kept span,
// leaving padding seconds of silence at each edge. It returns the number of
// cuts inserted.
func Apply(src marks.Source, gaps []Gap, padding float64, w io.Writer) (int, error) {
	out := bufio.NewWriter(w)
	cur := newCursor(src)
	cuts := 0
	for _, gap := range gaps {
		for cur.next.Time < gap.End {
			if err := cur.advance(out); err != nil {
				return cuts, err
			}
		}
		if cur.prev.Time >= gap.Start || !cur.prevKept {
			continue
		}
		if err := marks.Write(out, marks.Mark{Op: marks.Out, Time: gap.Start + padding}); err != nil {
			return cuts, err
		}
		if err := marks.Write(out, marks.Mark{Op: marks.In, Time: gap.End - padding}); err != nil {
			return cuts, err
		}
		cuts++
	}
	for !cur.done {
		if err := cur.advance(out); err != nil {
			return cuts, err
		}
	}
	if err := src.Err(); err != nil {
		return cuts, fmt.Errorf("read marks: %w", err)
	}
	return cuts, out.Flush()
}

// cursor walks the marks stream keeping the last written mark and the one
// after it. The stream starts as if an out mark sat at 0.
type cursor struct {
	src      marks.Source
	prev     marks.Mark
	prevKept bool
	next     marks.Mark
	nextKept bool
	done     bool
}

func newCursor(src marks.Source) *cursor {
	c := &cursor{src: src, prev: marks.Mark{Op: marks.Out}}
	c.read()
	return c
}

func (c *cursor) read() {
	m, ok := c.src.Next()
	if !ok {
		c.done = true
		c.next = marks.Mark{Time: math.Inf(1)}
		c.nextKept = c.prevKept
		return
	}
	c.next = m
	switch m.Op {
	case marks.In, marks.NormalIn:
		c.nextKept = true
	case marks.Out, marks.FastForwardOut:
		c.nextKept = false
	default:
		c.nextKept = c.prevKept
	}
}

func (c *cursor) advance(w io.Writer) error {
	if err := marks.Write(w, c.next); err != nil {
		return err
	}
	c.prev, c.prevKept = c.next, c.nextKept
	c.read()
	return nil
}

// Options configures a Refiner.
type Options struct {
	Engine *config.Engine
	Runner ffmpeg.Runner
	Logger *slog.Logger
}

// Refiner detects silence in audio tracks and applies it to marks.
type Refiner struct {
	engine *config.Engine
	runner ffmpeg.Runner
	logger *slog.Logger
}

// New builds a Refiner. A nil Runner uses the real tools.
func New(opts Options) *Refiner {
	runner := opts.Runner
	if runner == nil {
		runner = ffmpeg.ExecRunner{}
	}
	return &Refiner{
		engine: opts.Engine,
		runner: runner,
		logger: logging.NewComponentLogger(opts.Logger, "silence"),
	}
}

// Detect mixes inputs and returns their shared silent gaps.
func (r *Refiner) Detect(ctx context.Context, inputs []string) ([]Gap, error) {
	if len(inputs) == 0 {
		return nil, services.Wrap(services.ErrValidation, "silence", "detect", "no audio inputs", nil)
	}
	threshold := DefaultThreshold
	binary := "ffmpeg"
	if r.engine != nil {
		threshold = r.engine.StringOr(KeyThreshold, DefaultThreshold)
		binary = r.engine.FFmpegBinary()
	}
	ctx = services.WithStage(ctx, "silence")
	cmd := ffmpeg.Command{Name: binary, Args: ffmpeg.SilenceArgs(inputs, threshold)}
	r.logger.DebugContext(ctx, "detecting silence", logging.String("command", cmd.String()))
	output, err := r.runner.Run(ctx, cmd)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "silence", "detect", "silencedetect", err)
	}
	gaps := ParseGaps(output)
	r.logger.InfoContext(ctx, "silence detected",
		logging.Int("inputs", len(inputs)),
		logging.Int("gaps", len(gaps)),
		logging.String("threshold", threshold),
	)
	return gaps, nil
}

// Refine reads marks from in, cuts the silence shared by inputs out of kept
// spans, and writes the result to out.
func (r *Refiner) Refine(ctx context.Context, inputs []string, in io.Reader, out io.Writer) error {
	gaps, err := r.Detect(ctx, inputs)
	if err != nil {
		return err
	}
	padding := DefaultPadding
	if r.engine != nil {
		if _, ok := r.engine.Resolve(KeyPadding, "", nil); ok {
			padding = r.engine.Float(KeyPadding, "")
		}
	}
	cuts, err := Apply(marks.NewReader(in), gaps, padding, out)
	if err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "silence cut from marks",
		logging.Int("cuts", cuts),
		logging.Float64("padding_seconds", padding),
	)
	return nil
}
