package main

import (
	"github.com/spf13/cobra"

	"splicer/internal/silence"
)

func newSilenceCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "silence <audio>... < marks > marks",
		Short: "Cut silence shared by the given tracks out of a marks stream",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			r := silence.New(silence.Options{Engine: engine, Logger: logger})
			return r.Refine(cmd.Context(), args, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	addVerboseFlag(cmd, ctx)
	return cmd
}
