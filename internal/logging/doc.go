// Package logging assembles structured slog loggers and formatting helpers used
// across splicer.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and tags every record with the run, track, and stage carried in
// the context passed to the *Context logging methods. A no-op logger is
// provided for tests and wiring code that cannot fail.
//
// Logs go to stderr by default because several commands stream their primary
// output (filter graphs, refined marks) on stdout.
package logging
