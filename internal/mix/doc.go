// Package mix assembles a finished program from one clipped video file and
// any number of clipped audio tracks.
//
// Every input passes through its own filter chain before the audio tracks
// are combined with amix. A program with no audio tracks gets one second of
// generated silence so the output always carries an audio stream.
package mix
