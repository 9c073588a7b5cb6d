package filtergraph

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"splicer/internal/config"
	"splicer/internal/marks"
)

// FFMode selects how audio inside fast-forward spans is produced.
type FFMode int

const (
	// Resynthesize speeds the audio up alongside the video.
	Resynthesize FFMode = iota
	// Keep plays the start of the span at normal speed, truncated to fit.
	Keep
	// Discard replaces the span with silence.
	Discard
)

// ParseFFMode maps a directive value (`resynthesize`, `keep`, `discard`) to
// an FFMode. Unknown values resynthesize.
func ParseFFMode(value string) FFMode {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "keep":
		return Keep
	case "discard":
		return Discard
	default:
		return Resynthesize
	}
}

func (m FFMode) String() string {
	switch m {
	case Keep:
		return "keep"
	case Discard:
		return "discard"
	default:
		return "resynthesize"
	}
}

// Options configures one compiler run.
type Options struct {
	// Restart selects the 0-based restart segment to emit.
	Restart int
	// AudioPad and VideoPad name the input pads. Setting either requests a
	// graph for that medium.
	AudioPad string
	VideoPad string
	// CountRestarts emits only the number of restart marks.
	CountRestarts bool

	FFMode     FFMode
	FFLen      float64
	MinFFSpeed float64
	// MaxFFPitch bounds the audio sample-rate speedup. Values below 1 mean no
	// bound.
	MaxFFPitch float64
	FFFilter   string
	FPS        int
	AudioRate  int
}

// Default tunables.
const (
	DefaultFFLen      = 8
	DefaultMinFFSpeed = 4
	DefaultFFFilter   = "null"
	DefaultFPS        = 30
	DefaultAudioRate  = 48000
)

// DefaultOptions returns options with every tunable at its default.
func DefaultOptions() Options {
	return Options{
		FFLen:      DefaultFFLen,
		MinFFSpeed: DefaultMinFFSpeed,
		MaxFFPitch: math.Inf(1),
		FFFilter:   DefaultFFFilter,
		FPS:        DefaultFPS,
		AudioRate:  DefaultAudioRate,
	}
}

// OptionsFromConfig reads the `marktofilter` directives over the defaults.
// Zero-valued length and speed directives keep their defaults.
func OptionsFromConfig(engine *config.Engine) Options {
	opts := DefaultOptions()
	if engine == nil {
		return opts
	}
	if v := engine.Float("marktofilter.fflen", ""); v != 0 {
		opts.FFLen = v
	}
	if v := engine.Float("marktofilter.minffspeed", ""); v != 0 {
		opts.MinFFSpeed = v
	}
	opts.MaxFFPitch = engine.Float("marktofilter.maxffpitch", "")
	if filter, ok := engine.Resolve("marktofilter.fffilter", "", nil); ok {
		opts.FFFilter = filter
	}
	return opts
}

func (o Options) normalized() Options {
	if o.FFLen <= 0 {
		o.FFLen = DefaultFFLen
	}
	if o.MinFFSpeed <= 0 {
		o.MinFFSpeed = DefaultMinFFSpeed
	}
	if o.MaxFFPitch < 1 {
		o.MaxFFPitch = math.Inf(1)
	}
	if o.FFFilter == "" {
		o.FFFilter = DefaultFFFilter
	}
	if o.FPS <= 0 {
		o.FPS = DefaultFPS
	}
	if o.AudioRate <= 0 {
		o.AudioRate = DefaultAudioRate
	}
	return o
}

// State is the compiler's position in the mark stream.
type State struct {
	// Length is the cumulative output duration in seconds.
	Length float64
	LastIn float64
	Inside bool
	// Segments counts numbered segment pads emitted.
	Segments int
	// Countdown reaches 0 while the selected restart segment is being read.
	Countdown int
	Restarts  int
}

// Compiler turns marks into filter graph text.
type Compiler struct {
	opts Options
}

// New returns a Compiler for opts.
func New(opts Options) *Compiler {
	return &Compiler{opts: opts.normalized()}
}

// Options returns the effective options.
func (c *Compiler) Options() Options {
	return c.opts
}

// Compile consumes src and writes the selected output to w.
func (c *Compiler) Compile(ctx context.Context, src marks.Source, w io.Writer) (State, error) {
	out := bufio.NewWriter(w)
	run := &compileRun{opts: c.opts, out: out, st: State{Countdown: c.opts.Restart}}
	audio := c.opts.AudioPad != ""
	video := c.opts.VideoPad != ""

	if audio {
		run.printf("[%s]anull[aut];\n", c.opts.AudioPad)
	}
	if video {
		run.printf("[%s]null[vit];\n", c.opts.VideoPad)
	}

	for {
		if err := ctx.Err(); err != nil {
			return run.st, err
		}
		m, ok := src.Next()
		if !ok {
			break
		}
		run.step(m)
	}
	if err := src.Err(); err != nil {
		return run.st, fmt.Errorf("read marks: %w", err)
	}

	if c.opts.CountRestarts {
		run.printf("%d\n", run.st.Restarts)
	}
	if audio {
		run.printf("[aut]atrim=0:0[aut];\n[aut]")
		for i := 0; i < run.st.Segments; i++ {
			run.printf("[au%d]", i)
		}
		sep := ""
		if video {
			sep = ";"
		}
		run.printf("concat=n=%d:v=0:a=1[aud]%s\n", run.st.Segments+1, sep)
	}
	if video {
		run.printf("[vit]trim=0:0[vit];\n[vit]")
		for i := 0; i < run.st.Segments; i++ {
			run.printf("[vi%d]", i)
		}
		run.printf("concat=n=%d:v=1:a=0,fps=%d:start_time=0[vid]\n", run.st.Segments+1, c.opts.FPS)
	}

	if run.err != nil {
		return run.st, run.err
	}
	if err := out.Flush(); err != nil {
		return run.st, err
	}
	return run.st, nil
}

// CountRestarts returns the number of restart marks in src.
func CountRestarts(src marks.Source) (int, error) {
	count := 0
	for {
		m, ok := src.Next()
		if !ok {
			break
		}
		if m.Op == marks.Restart {
			count++
		}
	}
	return count, src.Err()
}

type compileRun struct {
	opts Options
	out  *bufio.Writer
	st   State
	err  error
}

func (r *compileRun) printf(format string, args ...any) {
	if r.err != nil {
		return
	}
	_, r.err = fmt.Fprintf(r.out, format, args...)
}

func (r *compileRun) selected() bool {
	return r.st.Countdown == 0
}

func (r *compileRun) step(m marks.Mark) {
	switch m.Op {
	case marks.Restart:
		r.st.Countdown--
		r.st.Restarts++
	case marks.In:
		r.st.Inside = true
		r.st.LastIn = m.Time
	case marks.Out, marks.FastForwardOut:
		if r.selected() {
			r.cut(m.Time)
		}
	case marks.NormalIn:
		if r.selected() {
			r.fastForward(m.Time)
		}
	case marks.Annotate:
		if r.selected() && !r.opts.CountRestarts && r.opts.AudioPad == "" && r.opts.VideoPad == "" {
			r.annotate(m.Time)
		}
	}
}

// cut closes a normal-speed span at t.
func (r *compileRun) cut(t float64) {
	lastIn := r.st.LastIn
	// a zero-length trim is rejected downstream
	if t <= lastIn {
		t = lastIn + 0.001
	}
	seg := r.st.Segments
	if r.opts.AudioPad != "" {
		r.printf("[aut]asplit[auu][aut];\n"+
			"[auu]atrim=%f:%f,asetpts=PTS-STARTPTS[au%d];\n", lastIn, t, seg)
	}
	if r.opts.VideoPad != "" {
		r.printf("[vit]split[viu][vit];\n"+
			"[viu]trim=%f:%f,setpts=PTS-STARTPTS[vi%d];\n", lastIn, t, seg)
	}
	r.st.Segments++
	r.st.Length += t - lastIn
	r.st.Inside = false
	r.st.LastIn = t
}

// Speeds describes one fast-forward span's resynthesis.
type Speeds struct {
	Span   float64
	Video  float64
	Audio  float64
	Tempo  float64
	OutLen float64
}

// FastForwardSpeeds computes speeds for a fast-forward span of the given
// length under opts.
func FastForwardSpeeds(span float64, opts Options) Speeds {
	opts = opts.normalized()
	if span <= 0 {
		span = 0.001
	}
	s := Speeds{Span: span, Tempo: 1}
	if span <= opts.FFLen*opts.MinFFSpeed {
		s.Video = opts.MinFFSpeed
		s.OutLen = span / opts.MinFFSpeed
	} else {
		s.Video = span / opts.FFLen
		s.OutLen = opts.FFLen
	}
	s.Audio = s.Video
	if s.Audio > opts.MaxFFPitch {
		s.Tempo = s.Audio / opts.MaxFFPitch
		s.Audio = opts.MaxFFPitch
	}
	return s
}

// TempoSteps splits tempo into a number of atempo=2 stages and a final
// remainder in (1/2, 2]. A remainder of exactly 1 needs no stage.
func TempoSteps(tempo float64) (doublings int, rest float64) {
	for tempo > 2 {
		doublings++
		tempo /= 2
	}
	return doublings, tempo
}

// fastForward closes a fast-forward span at t and resumes normal speed.
func (r *compileRun) fastForward(t float64) {
	lastIn := r.st.LastIn
	s := FastForwardSpeeds(t-lastIn, r.opts)
	seg := r.st.Segments
	// overshoot t by one span; output is cut to OutLen after the speed change
	end := t + s.Span

	if r.opts.AudioPad != "" {
		switch r.opts.FFMode {
		case Discard:
			r.printf("aevalsrc=0,atrim=0:%f[au%d];\n", s.OutLen, seg)
		case Keep:
			r.printf("[aut]asplit[auu][aut];\n")
			r.printf("[auu]atrim=%f:%f,asetpts=PTS-STARTPTS[au%d];\n", lastIn, lastIn+s.OutLen, seg)
		default:
			rate := r.opts.AudioRate
			r.printf("[aut]asplit[auu][aut];\n")
			r.printf("[auu]atrim=%f:%f,asetpts=PTS-STARTPTS,aresample=%d,asetrate=%f,aresample=%d",
				lastIn, end, rate, float64(rate)*s.Audio, rate)
			doublings, rest := TempoSteps(s.Tempo)
			for i := 0; i < doublings; i++ {
				r.printf(",atempo=2")
			}
			if rest != 1 {
				r.printf(",atempo=%f", rest)
			}
			r.printf(",aresample=%d,atrim=0:%f[au%d];\n", rate, s.OutLen, seg)
		}
	}
	if r.opts.VideoPad != "" {
		r.printf("[vit]split[viu][vit];\n"+
			"[viu]trim=%f:%f,setpts=(PTS-STARTPTS)/%f,\n"+
			"     fps=%d:start_time=0,trim=0:%f,%s[vi%d];\n",
			lastIn, end, s.Video, r.opts.FPS, s.OutLen, r.opts.FFFilter, seg)
	}

	r.st.Segments++
	r.st.Inside = true
	r.st.LastIn = t
	r.st.Length += s.OutLen
}

func (r *compileRun) annotate(t float64) {
	elapsed := r.st.Length
	if r.st.Inside {
		elapsed += t - r.st.LastIn
	}
	r.printf("m %s\n", FormatElapsed(elapsed))
}

// FormatElapsed renders seconds as `h:mm:ss`, `mm:ss` when under an hour, or
// `ss` when under a minute.
func FormatElapsed(seconds float64) string {
	s := int64(seconds)
	m := s / 60
	h := m / 60
	s %= 60
	m %= 60

	var b strings.Builder
	if h != 0 {
		fmt.Fprintf(&b, "%d:", h)
	}
	if h != 0 || m != 0 {
		fmt.Fprintf(&b, "%02d:", m)
	}
	fmt.Fprintf(&b, "%02d", s)
	return b.String()
}
