// Package marks reads and writes edit-decision mark streams.
//
// A mark stream is line oriented: each line is a single opcode byte followed by
// a timestamp in seconds, for example `i12.5` or `o93.25`. Opcodes are
//
//	i  in: start of a kept span
//	o  out: end of a kept span
//	f  fast-forward out: end of a kept span that continues at speed
//	n  normal in: end of a fast-forward span, resume normal speed
//	r  restart: start of the next recording segment
//	m  annotate: a bookmark shown in human-readable listings
//
// Readers are single pass. Callers that need the stream twice (once to count
// restarts, once per segment) open a new Reader each time.
package marks
