// Package silence tightens a marks stream around silent gaps.
//
// The given audio tracks are mixed and run through ffmpeg's silencedetect.
// Every gap that falls inside a kept span is cut out by inserting an
// out/in pair, padded so that a little of the silence survives on both sides.
// All other marks pass through untouched.
package silence
