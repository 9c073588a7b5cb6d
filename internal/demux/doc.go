// Package demux splits a multi-track capture into the per-track files the
// rest of the pipeline consumes.
//
// Video streams are not extracted; each included video stream leaves a
// `{title}.track` marker holding its stream index so clip can map it from
// the source container. Included audio streams are extracted concurrently
// to `{title}-raw.{fmt}`.
package demux
