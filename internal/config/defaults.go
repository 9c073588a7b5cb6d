package config

import "strings"

// Directive keys read by more than one stage.
const (
	KeyFFmpeg        = "programs.ffmpeg"
	KeyFFprobe       = "programs.ffprobe"
	KeyFindNoise     = "programs.findnoise"
	KeyDenoisePrefix = "programs.denoiseprefix"
	KeyDenoiseSuffix = "programs.denoisesuffix"

	KeyRawFormat = "formats.aiformat"
	KeyRawCodec  = "formats.aicodec"

	KeyLogLevel  = "logging.level"
	KeyLogFormat = "logging.format"
	KeyLogFile   = "logging.file"
)

const (
	defaultFFmpeg    = "ffmpeg"
	defaultFFprobe   = "ffprobe"
	defaultRawFormat = "flac"
	defaultRawCodec  = "flac"
)

// FFmpegBinary returns the transcoder executable.
func (e *Engine) FFmpegBinary() string {
	return strings.TrimSpace(e.StringOr(KeyFFmpeg, defaultFFmpeg))
}

// FFprobeBinary returns the stream inspector executable.
func (e *Engine) FFprobeBinary() string {
	return strings.TrimSpace(e.StringOr(KeyFFprobe, defaultFFprobe))
}

// FindNoiseBinary returns the noise-profile learner executable.
func (e *Engine) FindNoiseBinary() string {
	return strings.TrimSpace(e.StringOr(KeyFindNoise, "splicer-findnoise"))
}

// DenoiseBinary returns the executable for the named noise reducer.
func (e *Engine) DenoiseBinary(noiser string) string {
	return e.StringOr(KeyDenoisePrefix, "splicer-") + noiser + e.StringOr(KeyDenoiseSuffix, "denoise")
}

// Noiser returns the noise reducer configured for the track base, if any.
// An empty value clears a noiser set by an outer file.
func (e *Engine) Noiser(base string) (string, bool) {
	noiser, ok := e.Resolve("steps.noiser", base, nil)
	noiser = strings.TrimSpace(noiser)
	return noiser, ok && noiser != ""
}

// RawFormat returns the container extension of intermediate audio files.
func (e *Engine) RawFormat() string {
	return strings.TrimSpace(e.StringOr(KeyRawFormat, defaultRawFormat))
}

// RawCodec returns the codec of intermediate audio files.
func (e *Engine) RawCodec() string {
	return strings.TrimSpace(e.StringOr(KeyRawCodec, defaultRawCodec))
}
