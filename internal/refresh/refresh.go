package refresh

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"freeroom/internal/booking"
	"freeroom/internal/inventory"
	appLog "freeroom/internal/log"
	"freeroom/internal/match"
	"freeroom/internal/model"
	"freeroom/internal/snapshot"
)

// BookingSource is the part of the booking-system client used here.
type BookingSource interface {
	CheckLogin(ctx context.Context) (string, error)
	ListSpaces(ctx context.Context) ([]booking.Space, error)
	Reservations(ctx context.Context, spaceID int, date time.Time, courseNames map[string]string) ([]model.BookingEvent, error)
}

// CourseSource yields scheduled class meetings per room.
type CourseSource interface {
	EventsOn(location string, date time.Time) ([]model.CourseEvent, error)
	Locations() []string
}

// Updater fetches one day of events for every room and stores the result
// as a snapshot.
type Updater struct {
	// Booking is optional; without it only course data is used.
	Booking     BookingSource
	Courses     []CourseSource
	CourseNames map[string]string
	Registrar   []inventory.RegistrarRoom
	Inventory   inventory.Options

	Store       *snapshot.Store
	Location    *time.Location
	Concurrency int
}

// RoomError is a per-room fetch or merge failure.
type RoomError struct {
	Location string
	Err      error
}

func (e *RoomError) Error() string { return e.Location + ": " + e.Err.Error() }
func (e *RoomError) Unwrap() error { return e.Err }

// Run refreshes date. Rooms that fail are recorded in the snapshot and
// logged; only failures that affect every room abort the run.
func (u *Updater) Run(ctx context.Context, date time.Time) (*snapshot.Snapshot, error) {
	loc := u.Location
	if loc == nil {
		loc = time.Local
	}
	day := model.DayStart(date.In(loc))
	started := time.Now()

	var spaces []booking.Space
	if u.Booking != nil {
		user, err := u.Booking.CheckLogin(ctx)
		if err != nil {
			return nil, fmt.Errorf("refresh: booking login: %w", err)
		}
		appLog.Info("booking session valid", "user", user)

		if spaces, err = u.Booking.ListSpaces(ctx); err != nil {
			return nil, fmt.Errorf("refresh: list spaces: %w", err)
		}
	}

	var scheduled []string
	for _, cs := range u.Courses {
		scheduled = append(scheduled, cs.Locations()...)
	}
	scheduled = dedupe(scheduled)

	rooms, err := inventory.Build(spaces, u.Registrar, scheduled, u.Inventory)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	events := make([][]model.EventRecord, len(rooms))
	failures := make([]error, len(rooms))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(u.Concurrency, 1))
	for i, room := range rooms {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			evs, err := u.roomEvents(gctx, room, day)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failures[i] = &RoomError{Location: room.Location, Err: err}
				appLog.Error("room refresh failed", err, "room", room.Location)
				return nil
			}
			events[i] = evs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	snap := &snapshot.Snapshot{
		Date:      day.Format("2006-01-02"),
		FetchedAt: time.Now().In(loc),
		Timezone:  loc.String(),
		Rooms:     rooms,
		Events:    make(map[string][]model.EventRecord, len(rooms)),
	}
	for i, room := range rooms {
		var re *RoomError
		if errors.As(failures[i], &re) {
			snap.Errors = append(snap.Errors, snapshot.RoomFailure{Location: re.Location, Message: re.Err.Error()})
			continue
		}
		snap.Events[room.Location] = events[i]
	}
	sort.Slice(snap.Errors, func(i, j int) bool { return snap.Errors[i].Location < snap.Errors[j].Location })

	if u.Store != nil {
		if err := u.Store.Save(snap); err != nil {
			return nil, err
		}
	}

	appLog.Info("refresh completed",
		"date", snap.Date,
		"rooms", len(rooms),
		"failed_rooms", len(snap.Errors),
		"elapsed", time.Since(started).Round(time.Millisecond).String(),
	)
	return snap, nil
}

// roomEvents collects and reconciles one room's events on day.
func (u *Updater) roomEvents(ctx context.Context, room model.Room, day time.Time) ([]model.EventRecord, error) {
	var bookingEvents []model.BookingEvent
	if u.Booking != nil && room.HasBookingID() {
		var err error
		bookingEvents, err = u.Booking.Reservations(ctx, room.BookingID, day, u.CourseNames)
		if err != nil {
			return nil, fmt.Errorf("reservations: %w", err)
		}
	}

	var courseEvents []model.CourseEvent
	for _, cs := range u.Courses {
		evs, err := cs.EventsOn(room.Location, day)
		if err != nil {
			return nil, fmt.Errorf("course schedule: %w", err)
		}
		courseEvents = append(courseEvents, evs...)
	}

	return match.Merge(day, bookingEvents, courseEvents)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
