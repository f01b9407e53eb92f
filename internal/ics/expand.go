package ics

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "freeroom/internal/log"
	"freeroom/internal/model"
)

const maxOccurrencesPerDay = 64

// Occurrence is one concrete instance of a (possibly recurring) event.
type Occurrence struct {
	UID      string
	Summary  string
	Location string
	Start    time.Time
	End      time.Time
}

// Calendar is the parsed content of all course feeds, indexed by room.
type Calendar struct {
	base      map[string][]ParsedEvent // by UID
	overrides map[string][]ParsedEvent // by UID
	desc      map[string]string        // description by UID
	display   *time.Location
}

// NewCalendar groups parsed events from one or more feeds. display is the
// zone course times are reported in; nil means time.Local.
func NewCalendar(events []ParsedEvent, display *time.Location) *Calendar {
	if display == nil {
		display = time.Local
	}
	c := &Calendar{
		base:      make(map[string][]ParsedEvent),
		overrides: make(map[string][]ParsedEvent),
		desc:      make(map[string]string),
		display:   display,
	}
	for _, ev := range events {
		if ev.Recurrence != nil {
			c.overrides[ev.UID] = append(c.overrides[ev.UID], ev)
			continue
		}
		c.base[ev.UID] = append(c.base[ev.UID], ev)
		c.desc[ev.UID] = ev.Description
	}
	return c
}

// Locations returns every LOCATION value seen in the feeds, sorted.
func (c *Calendar) Locations() []string {
	seen := make(map[string]bool)
	for _, evs := range c.base {
		for _, ev := range evs {
			if ev.Location != "" {
				seen[ev.Location] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for loc := range seen {
		out = append(out, loc)
	}
	sort.Strings(out)
	return out
}

// Expand returns every timed occurrence starting on date's calendar day.
// All-day entries are holidays or notes, not room bookings, and are left
// out.
func (c *Calendar) Expand(date time.Time) []Occurrence {
	date = date.In(c.display)
	dayStart := model.DayStart(date)
	dayEnd := dayStart.Add(24*time.Hour - time.Nanosecond)

	uids := make([]string, 0, len(c.base))
	for uid := range c.base {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	var out []Occurrence
	for _, uid := range uids {
		for _, ev := range c.base[uid] {
			if ev.AllDay {
				continue
			}
			occ, truncated := c.expandEvent(ev, dayStart, dayEnd)
			if truncated {
				appLog.Error("ics expansion truncated", errors.New("max occurrences reached"),
					"uid", uid, "cap", maxOccurrencesPerDay)
			}
			out = append(out, occ...)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func (c *Calendar) expandEvent(ev ParsedEvent, from, to time.Time) ([]Occurrence, bool) {
	overrides := c.overrides[ev.UID]
	if ev.RawRRule == "" {
		start, end, inst := ev.Start, ev.End, ev
		if o, ok := findOverride(overrides, start); ok {
			start, end, inst = o.Start, o.End, o
		}
		if !c.startsWithin(start, from, to) {
			return nil, false
		}
		return []Occurrence{c.occurrence(inst, start, end)}, false
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("ics rrule parse failed", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen by one day on each side; overrides may move an instance onto
	// or off the target day.
	loc := ev.Start.Location()
	times := set.Between(from.AddDate(0, 0, -1).In(loc), to.AddDate(0, 0, 1).In(loc), true)

	truncated := false
	if len(times) > maxOccurrencesPerDay {
		times = times[:maxOccurrencesPerDay]
		truncated = true
	}

	dur := ev.End.Sub(ev.Start)
	var out []Occurrence
	for _, t := range times {
		start, end, inst := t, t.Add(dur), ev
		if o, ok := findOverride(overrides, t); ok {
			start, end, inst = o.Start, o.End, o
		}
		if !c.startsWithin(start, from, to) {
			continue
		}
		out = append(out, c.occurrence(inst, start, end))
	}
	return out, truncated
}

func (c *Calendar) startsWithin(start, from, to time.Time) bool {
	s := start.In(c.display)
	return !s.Before(from) && !s.After(to)
}

func (c *Calendar) occurrence(ev ParsedEvent, start, end time.Time) Occurrence {
	return Occurrence{
		UID:      ev.UID,
		Summary:  ev.Summary,
		Location: ev.Location,
		Start:    start.In(c.display),
		End:      end.In(c.display),
	}
}

// findOverride matches a RECURRENCE-ID against an instance start.
func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, o := range overrides {
		if o.Recurrence != nil && o.Recurrence.Equal(start) {
			return o, true
		}
	}
	return ParsedEvent{}, false
}

// EventsOn returns the course events held in location on date. Times are
// wall-clock "15:04" strings; an occurrence running past midnight ends at
// 23:59.
func (c *Calendar) EventsOn(location string, date time.Time) ([]model.CourseEvent, error) {
	var out []model.CourseEvent
	for _, occ := range c.Expand(date) {
		if occ.Location != location {
			continue
		}
		number, name := SplitSummary(occ.Summary)
		end := occ.End.Format("15:04")
		if !model.SameDay(occ.Start, occ.End) {
			end = "23:59"
		}
		out = append(out, model.CourseEvent{
			Number:      number,
			Name:        name,
			Instructors: instructors(c.desc[occ.UID]),
			Start:       occ.Start.Format("15:04"),
			End:         end,
		})
	}
	return out, nil
}

var summaryRe = regexp.MustCompile(`^(\d[\d-]*\d):?\s+(.+)$`)

// SplitSummary splits "15-122 Principles..." or "15122: Principles..."
// into course number and name. Summaries without a leading number are
// returned whole as the name.
func SplitSummary(s string) (number, name string) {
	s = strings.TrimSpace(s)
	if m := summaryRe.FindStringSubmatch(s); m != nil {
		return m[1], strings.TrimSpace(m[2])
	}
	return "", s
}

// instructors reads an "Instructor(s): a; b" line from a description.
func instructors(desc string) []string {
	for _, line := range strings.Split(desc, "\n") {
		key, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "instructor", "instructors", "instructor(s)":
		default:
			continue
		}
		var out []string
		for _, n := range strings.Split(rest, ";") {
			if n = strings.TrimSpace(n); n != "" {
				out = append(out, n)
			}
		}
		return out
	}
	return nil
}
