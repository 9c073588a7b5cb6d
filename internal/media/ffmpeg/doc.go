// Package ffmpeg runs the external transcoder and the sample-processing tools
// that splicer chains around it.
//
// Key types:
//   - Command: a program name plus arguments
//   - Runner: executes a Command, or a pipeline of Commands joined
//     stdout-to-stdin
//   - ExecRunner: the os/exec implementation used outside tests
//
// Stages build their argument lists with the helpers in args.go and hand
// them to a Runner, so tests can substitute a recording fake.
// MeasureLevel runs a loudnorm analysis pass and returns the gain needed to
// reach a target integrated loudness.
package ffmpeg
