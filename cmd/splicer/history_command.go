package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"splicer/internal/journal"
	"splicer/internal/workspace"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var runID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs and the stages of one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dir, err := ctx.dir()
			if err != nil {
				return err
			}
			ws := workspace.New(dir, engine.RawFormat())
			out := cmd.OutOrStdout()
			if !workspace.Exists(ws.JournalPath()) {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			j, err := journal.Open(cmd.Context(), ws.JournalPath())
			if err != nil {
				return err
			}
			defer j.Close()
			return renderHistory(cmd, out, j, limit, runID)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "Show the stages of this run (default: latest)")
	return cmd
}

func renderHistory(cmd *cobra.Command, out io.Writer, j *journal.Journal, limit int, runID string) error {
	ctx := cmd.Context()
	runs, err := j.Runs(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID,
			run.Command,
			run.StartedAt.Local().Format(time.DateTime),
			formatDuration(run.StartedAt, run.FinishedAt),
			run.Status,
		})
	}
	fmt.Fprintln(out, renderTable(out, []string{"Run", "Command", "Started", "Duration", "Status"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft}))

	if runID == "" {
		runID = runs[0].ID
	}
	stages, err := j.Stages(ctx, runID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nStages of run %s\n", runID)
	if len(stages) == 0 {
		fmt.Fprintln(out, "No stages recorded")
		return nil
	}
	rows = rows[:0]
	for _, st := range stages {
		rows = append(rows, []string{
			st.Track,
			st.Stage,
			st.Detail,
			formatDuration(st.StartedAt, st.FinishedAt),
			st.Status,
			st.Error,
		})
	}
	fmt.Fprintln(out, renderTable(out, []string{"Track", "Stage", "Detail", "Duration", "Status", "Error"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft}))
	return nil
}

func formatDuration(start, end time.Time) string {
	if start.IsZero() || end.IsZero() {
		return "-"
	}
	return end.Sub(start).Round(time.Millisecond).String()
}
