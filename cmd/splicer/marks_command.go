package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"splicer/internal/filtergraph"
	"splicer/internal/logging"
	"splicer/internal/marks"
	"splicer/internal/services"
)

func newMarksCommand(ctx *commandContext) *cobra.Command {
	var (
		inFile        string
		outFile       string
		restart       int
		countRestarts bool
		audioPad      string
		videoPad      string
		audioKeep     bool
		audioDiscard  bool
		fps           int
		audioRate     int
	)

	cmd := &cobra.Command{
		Use:   "marks",
		Short: "Compile a marks file into an ffmpeg filter graph",
		Long: "Compile a marks file into an ffmpeg filter graph.\n\n" +
			"With --audio and/or --video the graph for those input pads is written; with\n" +
			"neither, the bookmark listing of the chosen restart segment is written.\n" +
			"Without --in-file every input is kept.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if restart < 1 {
				return services.Wrap(services.ErrValidation, "marks", "flags", fmt.Sprintf("--chosen-restart must be >= 1, got %d", restart), nil)
			}
			if audioKeep && audioDiscard {
				return services.Wrap(services.ErrValidation, "marks", "flags", "--audio-keep and --audio-discard are exclusive", nil)
			}
			engine, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}

			opts := filtergraph.OptionsFromConfig(engine)
			opts.Restart = restart - 1
			opts.CountRestarts = countRestarts
			opts.AudioPad = audioPad
			opts.VideoPad = videoPad
			opts.FPS = fps
			opts.AudioRate = audioRate
			switch {
			case audioKeep:
				opts.FFMode = filtergraph.Keep
			case audioDiscard:
				opts.FFMode = filtergraph.Discard
			}

			var out io.Writer = cmd.OutOrStdout()
			var file *os.File
			if outFile != "" {
				file, err = os.Create(outFile)
				if err != nil {
					return fmt.Errorf("open output: %w", err)
				}
				out = file
			}

			src := marks.Open(inFile)
			defer src.Close()
			st, err := filtergraph.New(opts).Compile(cmd.Context(), src, out)
			if file != nil {
				if closeErr := file.Close(); err == nil && closeErr != nil {
					err = fmt.Errorf("write output: %w", closeErr)
				}
			}
			if err != nil {
				if file != nil {
					// a partial graph must not be mistaken for a result
					_ = os.Remove(outFile)
				}
				return err
			}
			logger.DebugContext(cmd.Context(), "marks compiled",
				logging.String("input", inFile),
				logging.Int("segments", st.Segments),
				logging.Int("restarts", st.Restarts),
				logging.Float64("length_seconds", st.Length),
			)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&inFile, "in-file", "i", "", "Marks file to read")
	flags.StringVarP(&outFile, "out-file", "o", "", "Write the result here instead of stdout")
	flags.IntVarP(&restart, "chosen-restart", "r", 1, "Restart segment to emit (1-based)")
	flags.BoolVar(&countRestarts, "count-restarts", false, "Also print the number of restart marks")
	flags.StringVarP(&audioPad, "audio", "a", "", "Emit an audio graph reading this input pad")
	flags.StringVarP(&videoPad, "video", "v", "", "Emit a video graph reading this input pad")
	flags.BoolVarP(&audioKeep, "audio-keep", "k", false, "Keep fast-forwarded audio at normal speed")
	flags.BoolVar(&audioDiscard, "audio-discard", false, "Replace fast-forwarded audio with silence")
	flags.IntVar(&fps, "fps", filtergraph.DefaultFPS, "Output frame rate")
	flags.IntVar(&audioRate, "arate", filtergraph.DefaultAudioRate, "Output audio sample rate")
	flags.BoolVar(&ctx.verbose, "verbose", false, "Enable debug logging")
	return cmd
}
