// Package services defines shared utilities consumed by the pipeline stages.
//
// It carries context helpers that stamp run identifiers, track names, and
// stage names for logging, plus the structured error markers and Wrap helper
// that let the CLI classify failures into journal categories and exit codes.
package services
