package avail

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"freeroom/internal/model"
)

var ErrBadWindow = errors.New("invalid query window")

// ParseDate resolves "", "today", "tomorrow" or YYYY-MM-DD to midnight in
// loc. now anchors the relative forms.
func ParseDate(s string, loc *time.Location, now time.Time) (time.Time, error) {
	today := model.DayStart(now.In(loc))
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "today":
		return today, nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	}
	d, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q, want YYYY-MM-DD", ErrBadWindow, s)
	}
	return d, nil
}

// Window builds the Query for date starting at at and lasting length.
// at is "now" (or empty) or HH:MM; "now" takes the wall clock of now,
// truncated to the minute. A window running past the end of the day is
// clamped to 23:59.
func Window(date time.Time, at string, length time.Duration, now time.Time) (Query, error) {
	if length < 0 {
		return Query{}, fmt.Errorf("%w: negative length %s", ErrBadWindow, length)
	}
	date = model.DayStart(date)

	var start time.Time
	switch a := strings.ToLower(strings.TrimSpace(at)); a {
	case "", "now":
		start = model.At(date, now.In(date.Location()).Truncate(time.Minute))
	default:
		clock, err := time.Parse("15:04", a)
		if err != nil {
			return Query{}, fmt.Errorf("%w: time %q, want HH:MM or now", ErrBadWindow, at)
		}
		start = model.At(date, clock)
	}

	end := start.Add(length)
	if dayEnd := model.DayEnd(date); end.After(dayEnd) {
		end = dayEnd
	}
	if start.After(end) {
		return Query{}, fmt.Errorf("%w: %s is past the end of the day", ErrBadWindow, start.Format("15:04"))
	}
	return Query{Date: date, Start: start, End: end}, nil
}

// Lookup finds a room by location, ignoring case.
func Lookup(rooms []model.Room, location string) (model.Room, bool) {
	for _, r := range rooms {
		if strings.EqualFold(r.Location, strings.TrimSpace(location)) {
			return r, true
		}
	}
	return model.Room{}, false
}
