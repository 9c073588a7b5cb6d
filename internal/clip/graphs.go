package clip

import (
	"context"
	"fmt"
	"os"
	"strings"

	"splicer/internal/filtergraph"
	"splicer/internal/marks"
)

// Input pads the clip graphs read from.
const (
	videoPad = "vid"
	audioPad = "0:a"
)

// segmentGraphs holds every graph one restart segment needs.
type segmentGraphs struct {
	video30 string
	video60 string
	audio   map[filtergraph.FFMode]string
}

// video returns the graph for the detected frame rate.
func (g segmentGraphs) video(fps int) string {
	if fps == 60 {
		return g.video60
	}
	return g.video30
}

// compile runs the compiler over a fresh reader of the marks file.
func (c *Clipper) compile(ctx context.Context, marksPath string, opts filtergraph.Options) (string, error) {
	src := marks.Open(marksPath)
	defer src.Close()
	var b strings.Builder
	if _, err := filtergraph.New(opts).Compile(ctx, src, &b); err != nil {
		return "", fmt.Errorf("compile %s: %w", marksPath, err)
	}
	return b.String(), nil
}

// countRestarts returns the number of restart marks in the marks file.
func countRestarts(marksPath string) (int, error) {
	src := marks.Open(marksPath)
	defer src.Close()
	return filtergraph.CountRestarts(src)
}

// writeMarks writes the human-readable annotation list for segment.
func (c *Clipper) writeMarks(ctx context.Context, marksPath string, segment int, out string) error {
	opts := c.base
	opts.Restart = segment
	text, err := c.compile(ctx, marksPath, opts)
	if err != nil {
		return err
	}
	return os.WriteFile(out, []byte(text), 0o644)
}

// segment compiles the video and audio graphs of one restart segment.
func (c *Clipper) segment(ctx context.Context, marksPath string, segment int) (segmentGraphs, error) {
	g := segmentGraphs{audio: make(map[filtergraph.FFMode]string, 3)}

	video := c.base
	video.Restart = segment
	video.VideoPad = videoPad
	var err error
	video.FPS = 30
	if g.video30, err = c.compile(ctx, marksPath, video); err != nil {
		return g, err
	}
	video.FPS = 60
	if g.video60, err = c.compile(ctx, marksPath, video); err != nil {
		return g, err
	}

	for _, mode := range []filtergraph.FFMode{filtergraph.Resynthesize, filtergraph.Keep, filtergraph.Discard} {
		audio := c.base
		audio.Restart = segment
		audio.AudioPad = audioPad
		audio.FFMode = mode
		if g.audio[mode], err = c.compile(ctx, marksPath, audio); err != nil {
			return g, err
		}
	}
	return g, nil
}
