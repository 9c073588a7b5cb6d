// Package preflight provides readiness checks for the external programs and
// workspace directory splicer depends on.
//
// The doctor command renders every result; the pipeline commands run
// RunAll before touching the workspace and refuse to start when a required
// check fails.
package preflight
