package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"splicer/internal/demux"
)

func newDemuxCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "demux <capture>",
		Short: "Split a capture into raw audio tracks and video track markers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.startSession(cmd, "demux")
			if err != nil {
				return err
			}
			return s.finish(s.demux(cmd, args[0], dryRun))
		},
	}
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Show the track plan without writing anything")
	addVerboseFlag(cmd, ctx)
	return cmd
}

func (s *session) demux(cmd *cobra.Command, input string, dryRun bool) error {
	d := demux.New(demux.Options{
		Engine:    s.engine,
		Workspace: s.ws,
		Logger:    s.logger,
		Recorder:  s.recorder(),
		DryRun:    dryRun,
	})
	tracks, err := d.Run(s.ctx, input)
	if len(tracks) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), renderTracks(cmd, tracks))
	}
	return err
}

func renderTracks(cmd *cobra.Command, tracks []demux.Track) string {
	caser := cases.Title(language.English)
	rows := make([][]string, 0, len(tracks))
	for _, t := range tracks {
		rows = append(rows, []string{
			strconv.Itoa(t.Index),
			caser.String(t.Kind),
			t.Title,
			string(t.Action),
		})
	}
	return renderTable(cmd.OutOrStdout(),
		[]string{"Stream", "Kind", "Track", "Action"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
	)
}
