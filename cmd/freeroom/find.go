package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"freeroom/internal/avail"
	"freeroom/internal/duration"
	appLog "freeroom/internal/log"
	"freeroom/internal/render"
	"freeroom/internal/snapshot"
)

type findFlags struct {
	at          string
	length      string
	date        string
	category    string
	minCapacity int
	filter      string
	bookingOnly bool
	favorites   bool
	verbose     bool
}

func newFindCmd(a *app) *cobra.Command {
	var f findFlags

	cmd := &cobra.Command{
		Use:   "find",
		Short: "List rooms that are free for a time window",
		Long: `List rooms that stay free from --at for --for, ranked with favorites first.

Durations accept hours ("1.5"), suffixed values ("90min", "2hr") and
combinations ("1hr 30min").`,
		Example: `  freeroom find
  freeroom find --at 14:30 --for 2hr --category classroom,computer_lab
  freeroom find --date tomorrow --at 09:00 --min-capacity 40`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.verbose {
				appLog.SetLevel(appLog.LevelDebug)
			}
			now := time.Now()

			date, snap, err := a.loadDay(f.date, now)
			if err != nil {
				return err
			}

			hours, err := duration.ParseHours(f.length)
			if err != nil {
				return err
			}
			q, err := avail.Window(date, f.at, duration.Hours(hours), now)
			if err != nil {
				return err
			}
			q.Verbose = f.verbose

			usable := avail.MarkFavorites(snap.UsableRooms(), a.cfg.IsFavorite)
			rooms, err := avail.Select(usable, avail.Filter{
				Categories:        avail.ParseCategories(f.category),
				DefaultCategories: a.cfg.DefaultCategories,
				MinCapacity:       f.minCapacity,
				Keyword:           f.filter,
				RequireBookingID:  f.bookingOnly,
				FavoritesOnly:     f.favorites,
			})
			if err != nil {
				return err
			}

			res, err := avail.Find(rooms, snap.Events, q)
			res.Failed = append(res.Failed, snapshotFailures(snap)...)
			out := cmd.OutOrStdout()
			if errors.Is(err, avail.ErrEmptyResultSet) {
				fmt.Fprintln(out, err)
				return render.Failures(out, res.Failed)
			}
			if err != nil {
				return err
			}
			return render.Results(out, res, q, a.display())
		},
	}

	cmd.Flags().StringVar(&f.at, "at", "now", "Start of the window, HH:MM or now")
	cmd.Flags().StringVarP(&f.length, "for", "f", "1", "Length of the window")
	cmd.Flags().StringVarP(&f.date, "date", "d", "", "Day to search, YYYY-MM-DD, today or tomorrow")
	cmd.Flags().StringVar(&f.category, "category", "default", `Comma-separated categories, "default" or "all"`)
	cmd.Flags().IntVar(&f.minCapacity, "min-capacity", 0, "Minimum capacity; rooms of unknown capacity are kept")
	cmd.Flags().StringVar(&f.filter, "filter", "", "Only rooms whose location, name or notes contain this text")
	cmd.Flags().BoolVar(&f.bookingOnly, "booking-only", false, "Only rooms bookable in the booking system")
	cmd.Flags().BoolVar(&f.favorites, "favorites", false, "Only favorite rooms")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Show event status and debug logging")
	return cmd
}

// loadDay resolves a --date value and loads its snapshot.
func (a *app) loadDay(dateFlag string, now time.Time) (time.Time, *snapshot.Snapshot, error) {
	date, err := avail.ParseDate(dateFlag, a.cfg.Location(), now)
	if err != nil {
		return time.Time{}, nil, err
	}
	snap, err := a.store().Load(date)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("%s: %w", date.Format("2006-01-02"), err)
	}
	return date, snap, nil
}

func snapshotFailures(snap *snapshot.Snapshot) []avail.RoomError {
	out := make([]avail.RoomError, 0, len(snap.Errors))
	for _, f := range snap.Errors {
		out = append(out, avail.RoomError{Location: f.Location, Err: errors.New(f.Message)})
	}
	return out
}
