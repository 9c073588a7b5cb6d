package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"splicer/internal/config"
	"splicer/internal/fileutil"
	"splicer/internal/logging"
	"splicer/internal/media/ffmpeg"
	"splicer/internal/services"
	"splicer/internal/stageexec"
	"splicer/internal/workspace"
)

// Processing directives, resolved with the track base as condition.
const (
	keyNoiserLearn = "steps.noiserlearn"
	keySteps       = "steps.aproc"
	nullFilter     = "null"
	pcmChannelsArg = "2"
)

func stepFilterKey(i int) string { return fmt.Sprintf("filters.aproc%d", i) }
func stepLevelKey(i int) string  { return fmt.Sprintf("filters.alevel%d", i) }

// process runs one track's pipeline: noise reduction, then each configured
// step, ending at the track's processed file.
func (t *track) process(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	base := t.job.Base
	procFile := t.ws.ProcFile(base)

	if workspace.Exists(procFile) {
		err := t.stage(ctx, "aproc", filepath.Base(procFile), func(context.Context) error {
			return stageexec.ErrSkipped
		})
		return true, err
	}

	input, err := filepath.Abs(t.job.Input)
	if err != nil {
		return false, err
	}

	if err := t.reduceNoise(ctx, input); err != nil {
		return false, err
	}

	steps := t.engine.Int(keySteps, base)
	t.logger.DebugContext(ctx, "audio processing steps", logging.Int("steps", steps))

	last := t.ws.NoiserFile(base)
	if steps <= 0 {
		// the processed file is the hand-off contract with clip
		if err := fileutil.Move(last, procFile); err != nil {
			return false, err
		}
	}
	for i := 1; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		next := t.ws.StageFile(base, i)
		if i == steps {
			next = procFile
		}
		if err := t.step(ctx, i, i == steps, last, next); err != nil {
			return false, err
		}
		last = next
	}

	if t.job.DeleteInput {
		if err := fileutil.RemoveIfExists(input); err != nil {
			return false, fmt.Errorf("remove input: %w", err)
		}
	}
	return false, nil
}

// reduceNoise produces the track's noiser file: denoised when a noiser is
// configured for the track, otherwise a link to the input.
func (t *track) reduceNoise(ctx context.Context, input string) error {
	base := t.job.Base
	noiserFile := t.ws.NoiserFile(base)
	profile := t.ws.NoiseProfile(base)

	noiser, ok := t.engine.Noiser(base)
	if !ok {
		if err := fileutil.LinkOrCopy(input, noiserFile); err != nil {
			return fmt.Errorf("link %s: %w", filepath.Base(noiserFile), err)
		}
		return nil
	}

	ffmpegBin := t.engine.FFmpegBinary()
	learn := t.engine.Bool(keyNoiserLearn, base)

	if learn && !workspace.Exists(profile) {
		err := t.stage(ctx, "noiselearn", filepath.Base(profile), func(ctx context.Context) error {
			return t.pipe(ctx,
				ffmpeg.Command{Name: ffmpegBin, Args: ffmpeg.DecodePCMArgs(input, "f32le")},
				ffmpeg.Command{Name: t.engine.FindNoiseBinary(), Args: []string{"-o", profile, pcmChannelsArg}},
			)
		})
		if err != nil {
			return err
		}
	}

	if !workspace.Exists(noiserFile) {
		format := ffmpeg.PCMFormat(noiser)
		denoiseArgs := []string{pcmChannelsArg}
		if learn {
			denoiseArgs = []string{"-l", profile, pcmChannelsArg}
		}
		err := t.stage(ctx, "denoise", noiser, func(ctx context.Context) error {
			return t.pipe(ctx,
				ffmpeg.Command{Name: ffmpegBin, Args: ffmpeg.DecodePCMArgs(input, format)},
				ffmpeg.Command{Name: t.engine.DenoiseBinary(noiser), Args: denoiseArgs},
				ffmpeg.Command{Name: ffmpegBin, Args: ffmpeg.EncodePCMArgs(format, t.codec, noiserFile)},
			)
		})
		if err != nil {
			return err
		}
	}

	// learned profiles are per session; the next run learns afresh
	if learn {
		if err := fileutil.RemoveIfExists(profile); err != nil {
			t.logger.WarnContext(ctx, "failed to remove noise profile", logging.Error(err))
		}
	}
	return nil
}

// step runs processing step i from last to next and removes last.
func (t *track) step(ctx context.Context, i int, final bool, last, next string) error {
	base := t.job.Base
	name := t.engine.StringFor(stepFilterKey(i), base)
	stageName := "aproc" + strconv.Itoa(i)
	ffmpegBin := t.engine.FFmpegBinary()

	if name == nullFilter {
		return t.stage(ctx, stageName, nullFilter, func(ctx context.Context) error {
			if !final {
				return fileutil.Move(last, next)
			}
			// the final step still normalizes the codec
			if err := t.tool(ctx, ffmpeg.Command{Name: ffmpegBin, Args: ffmpeg.ConvertArgs(last, t.codec, next)}); err != nil {
				return err
			}
			return fileutil.RemoveIfExists(last)
		})
	}

	vars := config.Vars{}
	if level := t.engine.Float(stepLevelKey(i), base); level != 0 {
		err := t.stage(ctx, stageName+"-level", strconv.FormatFloat(level, 'f', -1, 64), func(ctx context.Context) error {
			release, err := t.acquire(ctx)
			if err != nil {
				return err
			}
			defer release()
			gain, err := ffmpeg.MeasureLevel(ctx, t.runner, ffmpegBin, last, level)
			if err != nil {
				return services.Wrap(services.ErrExternalTool, "", "loudness", filepath.Base(last), err)
			}
			vars["level"] = fmt.Sprintf("%f", gain)
			t.logger.DebugContext(ctx, "measured gain", logging.Float64("gain_db", gain))
			return nil
		})
		if err != nil {
			return err
		}
	}

	for di, dep := range t.engine.Lines("filters."+name+"deps", base, nil) {
		if err := t.waitFor(ctx, dep); err != nil {
			return err
		}
		vars["dep"+strconv.Itoa(di+1)] = t.ws.ProcFile(dep)
	}

	filter, ok := t.engine.Resolve("filters."+name, base, vars)
	if !ok {
		return services.Wrap(services.ErrConfiguration, stageName, "resolve filter", "filters."+name+" is not defined", nil)
	}

	return t.stage(ctx, stageName, name, func(ctx context.Context) error {
		if err := t.tool(ctx, ffmpeg.Command{Name: ffmpegBin, Args: ffmpeg.FilterArgs(last, filter, t.codec, next)}); err != nil {
			return err
		}
		return fileutil.RemoveIfExists(last)
	})
}
