package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"splicer/internal/mix"
	"splicer/internal/services"
)

func newMixCommand(ctx *commandContext) *cobra.Command {
	var videoFilter string
	var audioFilters []string
	var outputOptions []string

	cmd := &cobra.Command{
		Use:   "mix <output> <video> [audio...]",
		Short: "Assemble a program from a clipped video and clipped audio tracks",
		Long: "Run each input through its own filters and mix the audio tracks into\n" +
			"one stream alongside the video. Without audio tracks the program gets\n" +
			"one second of silence.",
		Example: "  splicer mix -A 1=volume=0.8 -o '-c:v copy -c:a aac' show.mkv video.mkv host.flac guest.flac",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := parseAudioFilters(audioFilters)
			if err != nil {
				return err
			}
			var options []string
			for _, opt := range outputOptions {
				options = append(options, strings.Fields(opt)...)
			}

			s, err := ctx.startSession(cmd, "mix")
			if err != nil {
				return err
			}
			program := mix.Program{
				Output:        s.ws.Path(args[0]),
				Video:         s.ws.Path(args[1]),
				VideoFilter:   videoFilter,
				AudioFilters:  filters,
				OutputOptions: options,
			}
			for _, audio := range args[2:] {
				program.Audio = append(program.Audio, s.ws.Path(audio))
			}
			m := mix.New(mix.Options{
				Engine:   s.engine,
				Logger:   s.logger,
				Recorder: s.recorder(),
			})
			err = m.Mix(s.ctx, program)
			if err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: mixed\n", args[0])
			}
			return s.finish(err)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&videoFilter, "video-filter", "V", "", "ffmpeg filters for the video input")
	flags.StringArrayVarP(&audioFilters, "audio-filter", "A", nil, "ffmpeg filters for one audio track, as <index>=<filters> (0-based, repeatable)")
	flags.StringArrayVarP(&outputOptions, "output-options", "o", nil, "ffmpeg output options, split on whitespace (repeatable)")
	addVerboseFlag(cmd, ctx)
	return cmd
}

// parseAudioFilters reads <index>=<filters> values. A later value for the
// same index wins.
func parseAudioFilters(values []string) (map[int]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	filters := make(map[int]string, len(values))
	for _, value := range values {
		index, chain, ok := strings.Cut(value, "=")
		i, err := strconv.Atoi(strings.TrimSpace(index))
		if !ok || err != nil || i < 0 {
			return nil, services.Wrap(services.ErrValidation, "mix", "parse flags", fmt.Sprintf("--audio-filter %q: want <index>=<filters>", value), nil)
		}
		filters[i] = chain
	}
	return filters, nil
}
