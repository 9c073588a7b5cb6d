// Package filtergraph compiles mark streams into ffmpeg filter graphs.
//
// A Compiler consumes one pass over a marks.Source and produces, depending on
// its Options, one of:
//
//   - the number of restart marks in the stream,
//   - a human-readable list of bookmarks (`m 1:02:03`) in output time,
//   - an audio and/or video filter_complex program that trims the kept spans
//     of the selected restart segment, resynthesizes fast-forward spans, and
//     concatenates the result into the `[aud]` and `[vid]` pads.
//
// Fast-forward spans are compressed to at most FFLen seconds of output and at
// least MinFFSpeed times real speed. Audio follows the video speed through a
// sample-rate change, bounded by MaxFFPitch; any speed beyond the bound is
// made up with a chain of atempo filters, each kept within atempo's range.
package filtergraph
