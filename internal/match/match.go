package match

import (
	"fmt"
	"strings"
	"time"

	"freeroom/internal/model"
)

// Tolerance is how far apart the starts, and separately the ends, of two
// listings may be while still describing the same occupancy.
const Tolerance = 300 * time.Second

var clockLayouts = []string{
	"15:04",
	"15:04:05",
	"03:04PM",
	"3:04PM",
	"03:04:05PM",
	"3:04 PM",
}

// ParseClock parses a wall-clock string from the course schedule and
// places it on date's calendar day.
func ParseClock(date time.Time, s string) (time.Time, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.At(date, t), nil
		}
	}
	return time.Time{}, fmt.Errorf("match: unrecognized clock time %q", s)
}

// within reports whether [aStart, aEnd] and [bStart, bEnd] are the same
// window up to Tolerance on each side.
func within(aStart, aEnd, bStart, bEnd time.Time) bool {
	return absDuration(aStart.Sub(bStart)) <= Tolerance && absDuration(aEnd.Sub(bEnd)) <= Tolerance
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// resolvedCourse is a course event with its times resolved on the query
// date.
type resolvedCourse struct {
	ev    model.CourseEvent
	start time.Time
	end   time.Time
}

// Merge reconciles one room's booking-system and course-schedule events
// for date into EventRecords.
//
// Course events are visited in order. Each claims the first booking event
// within Tolerance of its window; every other booking event in the same
// window is dropped as a duplicate listing, and so are later listings of
// the same course number in that window. Booking events left unclaimed
// become booking-only records, again collapsing duplicates. Matching is
// greedy: an earlier course event wins a contested booking event even if
// a later one would fit it better.
func Merge(date time.Time, booking []model.BookingEvent, courses []model.CourseEvent) ([]model.EventRecord, error) {
	pending := make([]resolvedCourse, 0, len(courses))
	for _, c := range courses {
		start, err := ParseClock(date, c.Start)
		if err != nil {
			return nil, fmt.Errorf("course %s start: %w", c.Number, err)
		}
		end, err := ParseClock(date, c.End)
		if err != nil {
			return nil, fmt.Errorf("course %s end: %w", c.Number, err)
		}
		pending = append(pending, resolvedCourse{ev: c, start: start, end: end})
	}

	pool := make([]model.BookingEvent, len(booking))
	copy(pool, booking)

	records := make([]model.EventRecord, 0, len(courses)+len(booking))

	for len(pending) > 0 {
		cur := pending[0]

		var claimed *model.BookingEvent
		remaining := make([]model.BookingEvent, 0, len(pool))
		for i := range pool {
			if within(pool[i].Start, pool[i].End, cur.start, cur.end) {
				if claimed == nil {
					b := pool[i]
					claimed = &b
				}
				continue
			}
			remaining = append(remaining, pool[i])
		}
		pool = remaining

		rest := make([]resolvedCourse, 0, len(pending)-1)
		// Only repeat listings of the same course collapse. Cross-listed
		// courses with different numbers in the same slot each keep a record.
		for _, other := range pending[1:] {
			if other.ev.Number == cur.ev.Number && within(other.start, other.end, cur.start, cur.end) {
				continue
			}
			rest = append(rest, other)
		}
		pending = rest

		records = append(records, courseRecord(cur, claimed))
	}

	for len(pool) > 0 {
		cur := pool[0]
		remaining := make([]model.BookingEvent, 0, len(pool)-1)
		for _, other := range pool[1:] {
			if within(other.Start, other.End, cur.Start, cur.End) {
				continue
			}
			remaining = append(remaining, other)
		}
		pool = remaining

		records = append(records, bookingRecord(cur))
	}

	return records, nil
}

func courseRecord(c resolvedCourse, b *model.BookingEvent) model.EventRecord {
	rec := model.EventRecord{
		Start:  c.start,
		End:    c.end,
		Name:   fmt.Sprintf("%s: %s", c.ev.Number, c.ev.Name),
		Status: "Course",
		Source: model.SourceCourseSchedule,
	}

	comment := fmt.Sprintf("Instructor(s): %s\n", strings.Join(c.ev.Instructors, "; "))

	if b != nil {
		if b.Start.Before(rec.Start) {
			rec.Start = b.Start
		}
		if b.End.After(rec.End) {
			rec.End = b.End
		}
		rec.Status = strings.TrimSpace("Course " + b.State)
		rec.Source = model.SourceBoth
		comment += b.ID + "\n\n" + b.Comment
	}

	rec.Comment = strings.TrimSpace(comment)
	return rec
}

func bookingRecord(b model.BookingEvent) model.EventRecord {
	title := strings.TrimSpace(b.MatchedCourseName)
	if title == "" {
		title = b.Title
	}

	status := strings.TrimSpace(b.State)
	if status == "" {
		status = "Unknown"
	}

	return model.EventRecord{
		Start:   b.Start,
		End:     b.End,
		Name:    fmt.Sprintf("%s: %s", b.ID, title),
		Status:  status,
		Source:  model.SourceBookingSystem,
		Comment: strings.TrimSpace(b.ID + "\n\n" + b.Comment),
	}
}
