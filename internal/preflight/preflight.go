package preflight

import (
	"fmt"

	"splicer/internal/config"
	"splicer/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the configuration, workspace, and external program checks.
func RunAll(engine *config.Engine, dir string) []Result {
	if engine == nil {
		return nil
	}

	results := []Result{
		CheckConfiguration(engine),
		CheckDirectoryAccess("Workspace directory", dir),
	}
	for _, status := range CheckSystemDeps(engine) {
		results = append(results, fromStatus(status))
	}
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

func fromStatus(status deps.Status) Result {
	detail := status.Detail
	if status.Available {
		detail = status.Path
	}
	if !status.Available && status.Optional {
		return Result{Name: status.Name, Passed: true, Detail: fmt.Sprintf("optional, %s", detail)}
	}
	return Result{Name: status.Name, Passed: status.Available, Detail: detail}
}
