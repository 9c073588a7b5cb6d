package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"splicer/internal/clip"
)

func newClipCommand(ctx *commandContext) *cobra.Command {
	var cleanup bool

	cmd := &cobra.Command{
		Use:   "clip <capture> [marks]",
		Short: "Cut the processed tracks by a marks file",
		Long: "Cut every video track marker and processed audio track by a marks file,\n" +
			"once per restart segment. The marks file defaults to the capture name\n" +
			"with a .mark extension.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			marksPath := ""
			if len(args) > 1 {
				marksPath = args[1]
			}
			s, err := ctx.startSession(cmd, "clip")
			if err != nil {
				return err
			}
			return s.finish(s.clip(cmd, args[0], marksPath, cleanup))
		},
	}
	// -c is the persistent config flag
	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "Delete clipped outputs instead of producing them")
	addVerboseFlag(cmd, ctx)
	return cmd
}

func (s *session) clip(cmd *cobra.Command, input, marksPath string, cleanup bool) error {
	c := clip.New(clip.Options{
		Engine:    s.engine,
		Workspace: s.ws,
		Logger:    s.logger,
		Recorder:  s.recorder(),
		Cleanup:   cleanup,
	})
	outputs, err := c.Run(s.ctx, input, marksPath)
	out := cmd.OutOrStdout()
	for _, o := range outputs {
		action := string(o.Action)
		if action == "" {
			action = "failed"
		}
		fmt.Fprintf(out, "%s: %s\n", filepath.Base(o.Path), action)
	}
	return err
}
