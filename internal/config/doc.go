// Package config loads and resolves splicer's cascading directive files.
//
// A directive file is a line-oriented document of `name = value` settings
// grouped under `[namespace]` headers. Entries may carry a leading `/regex/`
// condition that is matched against the caller's context (usually a track base
// name), and may extend rather than replace earlier values with `+=` (append)
// or `<+=` (prepend). Values are templates: `$name` and `$(name)` are
// substituted from caller-provided variables at resolution time.
//
// Load cascades the embedded defaults, every same-named file found in the
// ancestor directories of the working directory (outermost first), and an
// optional explicit override, into one Store. The resulting Engine is frozen
// after Load returns and may be shared freely between goroutines.
//
// Read settings through an Engine so every stage resolves them the same way.
package config
