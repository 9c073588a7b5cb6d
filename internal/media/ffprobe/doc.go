// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// This package has no splicer-specific dependencies.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video stream properties, including the title
//     tag and frame rate
//
// Primary entry points:
//   - Inspect: executes ffprobe and returns parsed Result
//   - Parse: decodes an ffprobe JSON document
package ffprobe
