package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"splicer/internal/staging"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove intermediate files left by interrupted or failed runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.startSession(cmd, "clean")
			if err != nil {
				return err
			}
			return s.finish(s.clean(cmd, dryRun, olderThan))
		},
	}
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "List intermediate files without removing them")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Only remove files last modified longer ago than this")
	addVerboseFlag(cmd, ctx)
	return cmd
}

func (s *session) clean(cmd *cobra.Command, dryRun bool, olderThan time.Duration) error {
	out := cmd.OutOrStdout()
	if dryRun {
		files, err := staging.ListIntermediates(s.ws)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Fprintln(out, "No intermediate files")
			return nil
		}
		rows := make([][]string, 0, len(files))
		for _, f := range files {
			rows = append(rows, []string{f.Name, strconv.FormatInt(f.Size, 10), f.ModTime.Local().Format(time.DateTime)})
		}
		fmt.Fprintln(out, renderTable(out, []string{"File", "Bytes", "Modified"}, rows,
			[]columnAlignment{alignLeft, alignRight, alignLeft}))
		return nil
	}

	result := staging.CleanIntermediates(s.ctx, s.ws, olderThan, s.logger)
	fmt.Fprintf(out, "Removed %d intermediate files\n", len(result.Removed))
	var errs *multierror.Error
	for _, e := range result.Errors {
		errs = multierror.Append(errs, fmt.Errorf("%s: %w", e.Path, e.Error))
	}
	return errs.ErrorOrNil()
}
