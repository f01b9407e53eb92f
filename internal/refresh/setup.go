package refresh

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"freeroom/internal/booking"
	"freeroom/internal/config"
	"freeroom/internal/courses"
	"freeroom/internal/ics"
	"freeroom/internal/inventory"
	appLog "freeroom/internal/log"
	"freeroom/internal/snapshot"
)

// FromConfig wires an Updater from cfg: the course schedule file, the
// registrar listing, the ICS course feeds and, when a cookie file exists,
// the booking system. Missing local files are logged and skipped; a course
// feed that cannot be fetched or parsed, even from cache, is an error.
func FromConfig(ctx context.Context, cfg *config.Config) (*Updater, error) {
	loc := cfg.Location()
	termStart, termEnd, err := cfg.TermRange()
	if err != nil {
		return nil, err
	}

	u := &Updater{
		CourseNames: map[string]string{},
		Inventory:   inventory.OptionsFromConfig(cfg),
		Store:       StoreFromConfig(cfg),
		Location:    loc,
		Concurrency: cfg.Booking.Concurrency,
	}

	sched, err := courses.Load(cfg.SOCFile, courses.Options{
		Campus:      cfg.Campus,
		CurrentMini: cfg.CurrentMini,
		Buildings:   cfg.Buildings,
		TermStart:   termStart,
		TermEnd:     termEnd,
	})
	switch {
	case errors.Is(err, fs.ErrNotExist):
		appLog.Warn("course schedule file missing, skipping", "path", cfg.SOCFile)
	case err != nil:
		return nil, err
	default:
		u.Courses = append(u.Courses, sched)
		u.CourseNames = sched.CourseNames()
	}

	reg, err := inventory.LoadRegistrar(cfg.RegistrarFile, cfg.Buildings)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		appLog.Warn("registrar file missing, skipping", "path", cfg.RegistrarFile)
	case err != nil:
		return nil, err
	default:
		u.Registrar = reg
	}

	if len(cfg.CourseICS) > 0 {
		timeout := time.Duration(cfg.Booking.TimeoutSeconds) * time.Second
		fetcher := ics.NewFetcher(filepath.Join(cfg.DataDir, "ics-cache"), timeout)
		results, errs := fetcher.FetchAll(ctx, ics.FeedsFromConfig(cfg.CourseICS))

		var parsed []ics.ParsedEvent
		for _, res := range results {
			evs, err := ics.Parse(res.Feed.ID, res.Body)
			if err != nil {
				errs = append(errs, fmt.Errorf("ics feed %s: %w", res.Feed.ID, err))
				continue
			}
			parsed = append(parsed, evs...)
		}
		// A feed with neither a fresh nor a cached body would leave its
		// rooms looking free all day.
		if len(errs) > 0 {
			return nil, fmt.Errorf("refresh: course feeds unavailable: %w", errors.Join(errs...))
		}
		u.Courses = append(u.Courses, ics.NewCalendar(parsed, loc))
	}

	session, err := booking.ReadCookieFile(cfg.CookieFile)
	if err != nil {
		appLog.Warn("no booking session, using course data only; run `freeroom login`", "err", err)
	} else {
		timeout := time.Duration(cfg.Booking.TimeoutSeconds) * time.Second
		u.Booking = booking.NewClient(cfg.Booking.BaseURL, session, loc, timeout)
	}

	return u, nil
}

// StoreFromConfig opens the snapshot store under cfg.DataDir.
func StoreFromConfig(cfg *config.Config) *snapshot.Store {
	return snapshot.NewStore(filepath.Join(cfg.DataDir, "snapshots"), cfg.Location())
}

// Reloading rebuilds the Updater from Config before every run, so a new
// cookie file or course export is picked up by long-running servers.
type Reloading struct {
	Config *config.Config
}

func (r Reloading) Run(ctx context.Context, date time.Time) (*snapshot.Snapshot, error) {
	u, err := FromConfig(ctx, r.Config)
	if err != nil {
		return nil, err
	}
	return u.Run(ctx, date)
}
