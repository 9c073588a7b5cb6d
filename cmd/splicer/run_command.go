package main

import (
	"github.com/spf13/cobra"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <capture> [marks]",
		Short: "Demux, process, and clip a capture in one go",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			marksPath := ""
			if len(args) > 1 {
				marksPath = args[1]
			}
			s, err := ctx.startSession(cmd, "run")
			if err != nil {
				return err
			}
			return s.finish(s.runAll(cmd, args[0], marksPath))
		},
	}
	addVerboseFlag(cmd, ctx)
	return cmd
}

// runAll chains the stages under one lock, run id, and journal entry. A
// failing stage stops the chain.
func (s *session) runAll(cmd *cobra.Command, input, marksPath string) error {
	if err := s.demux(cmd, input, false); err != nil {
		return err
	}
	if err := s.process(cmd, 0); err != nil {
		return err
	}
	return s.clip(cmd, input, marksPath, false)
}
