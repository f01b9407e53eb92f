package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"freeroom/internal/avail"
	"freeroom/internal/export"
	"freeroom/internal/model"
	"freeroom/internal/render"
	"freeroom/internal/timeline"
)

func newTimelineCmd(a *app) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "timeline <location>",
		Short: "Show a room's day as free and busy blocks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			room, blocks, err := a.roomDay(args[0], date)
			if err != nil {
				return err
			}
			return render.Timeline(cmd.OutOrStdout(), room, blocks, a.display())
		},
	}
	cmd.Flags().StringVarP(&date, "date", "d", "", "Day to show, YYYY-MM-DD, today or tomorrow")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var date, output string

	cmd := &cobra.Command{
		Use:   "export <location>",
		Short: "Export a room's busy blocks as an ICS calendar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			room, blocks, err := a.roomDay(args[0], date)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer file.Close()
				w = file
			}

			if err := export.TimelineICS(w, room, blocks, time.Now()); err != nil {
				return fmt.Errorf("failed to generate ICS: %w", err)
			}
			if output != "" && output != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %s to %s\n", room.Location, output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&date, "date", "d", "", "Day to export, YYYY-MM-DD, today or tomorrow")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (default stdout)")
	return cmd
}

// roomDay builds the timeline of location on the --date day.
func (a *app) roomDay(location, dateFlag string) (model.Room, []model.Block, error) {
	date, snap, err := a.loadDay(dateFlag, time.Now())
	if err != nil {
		return model.Room{}, nil, err
	}
	room, ok := avail.Lookup(snap.Rooms, location)
	if !ok {
		return model.Room{}, nil, fmt.Errorf("unknown room %q", location)
	}
	for _, f := range snap.Errors {
		if f.Location == room.Location {
			return model.Room{}, nil, fmt.Errorf("events for %s were not fetched: %s", room.Location, f.Message)
		}
	}

	blocks, err := timeline.Build(date, snap.Events[room.Location])
	if err != nil {
		return model.Room{}, nil, err
	}
	return room, blocks, nil
}
