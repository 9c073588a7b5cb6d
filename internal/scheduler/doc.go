// Package scheduler discovers the audio tracks of a workspace and runs their
// processing pipelines concurrently.
//
// Every track gets its own goroutine. A track may declare, per processing
// step, that its filter reads other tracks' processed output; the step then
// blocks on those tracks' Done channels before resolving the filter. All jobs
// exist, and their channels are open, before any goroutine is released, so a
// dependency can never look finished merely because it has not started.
//
// Cycles are not detected. A cyclic declaration blocks until the context is
// cancelled.
package scheduler
