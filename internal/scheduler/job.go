package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar"

	"splicer/internal/workspace"
)

// Job is one track's processing pipeline.
type Job struct {
	Base  string
	Input string
	// DeleteInput removes Input once the pipeline finishes successfully.
	DeleteInput bool

	done chan struct{}
	once sync.Once
}

// NewJob returns a job whose Done channel is open.
func NewJob(base, input string, deleteInput bool) *Job {
	return &Job{Base: base, Input: input, DeleteInput: deleteInput, done: make(chan struct{})}
}

// Done is closed once the job's pipeline has exited, whatever its outcome.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

func (j *Job) finish() {
	j.once.Do(func() { close(j.done) })
}

// Discover lists the tracks awaiting processing in ws: raw captures
// (`*-raw.<fmt>`, deleted after processing) and synchronized external
// captures (`*-sync.flac`, kept). Jobs are sorted by base name. When both
// exist for one base the raw capture wins.
func Discover(ws workspace.Workspace) ([]*Job, error) {
	entries, err := os.ReadDir(ws.Dir)
	if err != nil {
		return nil, fmt.Errorf("discover tracks: %w", err)
	}
	rawPattern := "*-raw." + ws.Format
	syncPattern := "*-sync." + workspace.SyncFormat

	byBase := make(map[string]*Job)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if ok, err := doublestar.Match(rawPattern, name); err != nil {
			return nil, fmt.Errorf("discover tracks: %w", err)
		} else if ok {
			base, _ := ws.BaseFromRaw(name)
			byBase[base] = NewJob(base, filepath.Join(ws.Dir, name), true)
			continue
		}
		if ok, err := doublestar.Match(syncPattern, name); err != nil {
			return nil, fmt.Errorf("discover tracks: %w", err)
		} else if ok {
			base, _ := workspace.BaseFromSync(name)
			if _, taken := byBase[base]; !taken {
				byBase[base] = NewJob(base, filepath.Join(ws.Dir, name), false)
			}
		}
	}

	jobs := make([]*Job, 0, len(byBase))
	for _, job := range byBase {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].Base < jobs[k].Base })
	return jobs, nil
}
