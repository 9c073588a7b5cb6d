// Package workspace names the files that splicer stages hand to one another
// inside a project directory, and guards the directory against concurrent
// runs.
//
// For a track base name `host` and intermediate format `flac`:
//
//	host-raw.flac     demuxed capture, deleted once processed
//	host-sync.flac    externally synchronized capture, kept
//	host-noiser.flac  noise-reduced intermediate
//	host-noise.f32    learned noise profile
//	host-aproc1.flac  output of processing step 1 (of several)
//	host-proc.flac    processed track
//	host2.wav         clipped output for restart segment 2
//	host.track        video stream index marker
//	marks2.txt        bookmark listing for restart segment 2
package workspace
