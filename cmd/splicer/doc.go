// Package main hosts the splicer CLI entrypoint and command graph.
//
// Each post-production stage is a subcommand: demux splits a capture into
// per-track files, process runs the per-track audio chains, clip assembles
// the final program from a marks file, and run chains the three. The marks
// and silence commands expose the filter graph compiler and the silence
// refiner as filters over mark streams. doctor, history, and config are
// diagnostic helpers.
//
// Commands that touch a workspace take its lock for their whole run, stamp a
// fresh run id onto their context, and record their stages in the run
// journal. The heavy lifting lives in the internal packages; this package
// only wires flags to them.
package main
