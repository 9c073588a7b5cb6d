package ffmpeg

import (
	"fmt"
	"strconv"
)

// PCM stream parameters used between ffmpeg and sample-processing tools.
const (
	PCMChannels   = 2
	PCMSampleRate = 48000
)

// PCMFormat returns the raw sample format a noise reducer consumes.
func PCMFormat(noiser string) string {
	if noiser == "noiserepellent" {
		return "f32le"
	}
	return "s16le"
}

// FilterArgs applies filter to the first audio stream of input and encodes
// the result with codec, overwriting output.
func FilterArgs(input, filter, codec, output string) []string {
	return []string{
		"-i", input,
		"-filter_complex", "[0:a]" + filter + "[aud]",
		"-map", "[aud]",
		"-c:a", codec,
		"-y", output,
	}
}

// ConvertArgs re-encodes input with codec.
func ConvertArgs(input, codec, output string) []string {
	return []string{"-i", input, "-c:a", codec, "-y", output}
}

// DecodePCMArgs decodes input to raw interleaved stereo samples on stdout.
func DecodePCMArgs(input, format string) []string {
	return []string{
		"-i", input,
		"-f", format,
		"-ac", strconv.Itoa(PCMChannels),
		"-ar", strconv.Itoa(PCMSampleRate),
		"-",
	}
}

// EncodePCMArgs encodes raw stereo samples from stdin into output.
func EncodePCMArgs(format, codec, output string) []string {
	return []string{
		"-f", format,
		"-ac", strconv.Itoa(PCMChannels),
		"-ar", strconv.Itoa(PCMSampleRate),
		"-i", "-",
		"-c:a", codec,
		"-y", output,
	}
}

// ExtractArgs pulls one audio stream out of a container, resampled to the PCM
// rate and channel count.
func ExtractArgs(input string, streamIndex int, filter, codec, output string) []string {
	args := []string{
		"-nostdin", "-copyts",
		"-i", input,
		"-map", fmt.Sprintf("0:%d", streamIndex),
	}
	if filter != "" {
		args = append(args, "-af", filter)
	}
	return append(args,
		"-c:a", codec,
		"-ar", strconv.Itoa(PCMSampleRate),
		"-ac", strconv.Itoa(PCMChannels),
		"-y", output,
	)
}

// ResampleArgs re-encodes a standalone audio file at the PCM rate and
// channel count.
func ResampleArgs(input, codec, output string) []string {
	return []string{
		"-nostdin",
		"-i", input,
		"-c:a", codec,
		"-ar", strconv.Itoa(PCMSampleRate),
		"-ac", strconv.Itoa(PCMChannels),
		"-y", output,
	}
}

// LoudnessArgs analyses input with loudnorm and discards the audio.
func LoudnessArgs(input string) []string {
	return []string{
		"-i", input,
		"-af", "loudnorm=print_format=summary",
		"-f", "wav",
		"-y", "/dev/null",
	}
}

// SilenceArgs mixes inputs and reports silent gaps below threshold.
func SilenceArgs(inputs []string, threshold string) []string {
	args := make([]string, 0, 2*len(inputs)+8)
	graph := ""
	for i, in := range inputs {
		args = append(args, "-i", in)
		graph += fmt.Sprintf("[%d:a]", i)
	}
	graph += fmt.Sprintf("amix=%d,dynaudnorm,silencedetect=%s[aud]", len(inputs), threshold)
	return append(args, "-filter_complex", graph, "-map", "[aud]", "-f", "null", "-")
}
