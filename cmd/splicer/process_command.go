package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"splicer/internal/logging"
	"splicer/internal/scheduler"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var maxJobs int

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Denoise and run the audio processing chain of every raw track",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.startSession(cmd, "process")
			if err != nil {
				return err
			}
			return s.finish(s.process(cmd, maxJobs))
		},
	}
	cmd.Flags().IntVarP(&maxJobs, "jobs", "j", 0, "Tracks running external tools at once (default: scheduler.maxjobs, 0 = unbounded)")
	addVerboseFlag(cmd, ctx)
	return cmd
}

// process runs the scheduler over the workspace's raw and sync tracks and
// prints one line per track.
func (s *session) process(cmd *cobra.Command, maxJobs int) error {
	jobs, err := scheduler.Discover(s.ws)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		s.logger.WarnContext(s.ctx, "no raw tracks found",
			logging.String("dir", s.ws.Dir),
			logging.String("format", s.ws.Format),
		)
		return nil
	}
	sched := scheduler.New(scheduler.Options{
		Engine:    s.engine,
		Workspace: s.ws,
		Logger:    s.logger,
		Recorder:  s.recorder(),
		MaxJobs:   maxJobs,
	})
	outcomes, runErr := sched.Run(s.ctx, jobs)
	out := cmd.OutOrStdout()
	for _, outcome := range outcomes {
		status := "processed"
		switch {
		case outcome.Err != nil:
			status = "failed"
		case outcome.Skipped:
			status = "up to date"
		}
		fmt.Fprintf(out, "%s: %s\n", outcome.Base, status)
	}
	return runErr
}
