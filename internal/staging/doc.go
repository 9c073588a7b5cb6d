// Package staging finds and removes intermediate files left in a workspace.
//
// A track pipeline that fails keeps its noise-reduced copy, its numbered
// processing-step outputs, and its learned noise profile so that a rerun can
// resume. Once a workspace is abandoned or finished those files only take up
// space; CleanIntermediates removes the ones older than a cutoff.
package staging
