// Package journal records splicer runs and the per-track stage executions
// inside them in a SQLite database under the project's `.splicer` directory.
//
// The journal is bookkeeping only: stages never read it back to decide what
// to do, so deleting the database is always safe. `splicer history` renders
// its contents.
package journal
