package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"freeroom/internal/avail"
	"freeroom/internal/refresh"
	"freeroom/internal/render"
	"freeroom/internal/snapshot"
)

func newUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update [date]",
		Short: "Download one day of events for every room",
		Long: `Download reservations from the booking system and class meetings from
the course schedule for every room, and store them for "find".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dateArg string
			if len(args) == 1 {
				dateArg = args[0]
			}
			date, err := avail.ParseDate(dateArg, a.cfg.Location(), time.Now())
			if err != nil {
				return err
			}

			u, err := refresh.FromConfig(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			snap, err := u.Run(cmd.Context(), date)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Downloaded events for %d rooms on %s\n", len(snap.Rooms)-len(snap.Errors), snap.Date)
			return render.Failures(cmd.OutOrStdout(), snapshotFailures(snap))
		},
	}
}

func newRoomsCmd(a *app) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List the room inventory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				snap *snapshot.Snapshot
				err  error
			)
			if date == "" {
				snap, err = a.store().Latest()
			} else {
				_, snap, err = a.loadDay(date, time.Now())
			}
			if errors.Is(err, snapshot.ErrNotFound) {
				return fmt.Errorf("no rooms known yet: %w", err)
			}
			if err != nil {
				return err
			}
			return render.Rooms(cmd.OutOrStdout(), snap.Rooms, a.display())
		},
	}
	cmd.Flags().StringVarP(&date, "date", "d", "", "Use the snapshot of this day instead of the newest")
	return cmd
}
