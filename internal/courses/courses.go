package courses

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/teambition/rrule-go"

	appLog "freeroom/internal/log"
	"freeroom/internal/model"
)

// Options controls which parts of the schedule file are imported.
type Options struct {
	// Campus keeps only meetings held on this campus.
	Campus string
	// CurrentMini drops half-semester sections ("A1", "B2", ...) whose
	// digit differs from it.
	CurrentMini int
	// Buildings is the include list for meeting locations.
	Buildings []string

	// TermStart and TermEnd bound weekly meetings; zero means unbounded.
	TermStart time.Time
	TermEnd   time.Time
}

// file mirrors the schedule-of-classes JSON export.
type file struct {
	Courses map[string]struct {
		Name       string    `json:"name"`
		Department string    `json:"department"`
		Lectures   []section `json:"lectures"`
		Sections   []section `json:"sections"`
	} `json:"courses"`
}

type section struct {
	Name        string        `json:"name"`
	Instructors []string      `json:"instructors"`
	Times       []meetingTime `json:"times"`
}

type meetingTime struct {
	// Days is nil for meetings with no fixed day ("TBA").
	Days     []int   `json:"days"`
	Begin    string  `json:"begin"`
	End      string  `json:"end"`
	Building *string `json:"building"`
	Room     *string `json:"room"`
	Location string  `json:"location"`
}

// Meeting is one weekly recurring class meeting in one room.
type Meeting struct {
	Number      string
	Name        string
	Department  string
	Instructors []string
	Location    string

	// Days uses Sunday=0 .. Saturday=6.
	Days  []int
	Begin string
	End   string
}

// Schedule is an immutable, loaded course schedule.
type Schedule struct {
	meetings  map[string][]Meeting
	names     map[string]string
	termStart time.Time
	termEnd   time.Time
}

// Load reads a schedule file from path.
func Load(path string, opts Options) (*Schedule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("courses: open schedule: %w", err)
	}
	defer f.Close()
	return Parse(f, opts)
}

// Parse reads a schedule from r.
func Parse(r io.Reader, opts Options) (*Schedule, error) {
	var data file
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("courses: decode schedule: %w", err)
	}

	include := make(map[string]bool, len(opts.Buildings))
	for _, b := range opts.Buildings {
		include[b] = true
	}

	s := &Schedule{
		meetings:  make(map[string][]Meeting),
		names:     make(map[string]string, len(data.Courses)),
		termStart: opts.TermStart,
		termEnd:   opts.TermEnd,
	}

	// Iterate in key order so meeting order within a room is stable.
	numbers := make([]string, 0, len(data.Courses))
	for k := range data.Courses {
		numbers = append(numbers, k)
	}
	sort.Strings(numbers)

	skipped := 0
	for _, number := range numbers {
		c := data.Courses[number]
		s.names[strings.ReplaceAll(number, "-", "")] = c.Name

		for _, sec := range append(append([]section(nil), c.Lectures...), c.Sections...) {
			if isOtherMini(sec.Name, opts.CurrentMini) {
				continue
			}
			for _, mt := range sec.Times {
				if mt.Location != opts.Campus || mt.Days == nil {
					continue
				}
				if !IncludeLocation(mt.Building, mt.Room, include) {
					skipped++
					continue
				}
				loc := *mt.Building + " " + *mt.Room
				s.meetings[loc] = append(s.meetings[loc], Meeting{
					Number:      number,
					Name:        c.Name,
					Department:  c.Department,
					Instructors: sec.Instructors,
					Location:    loc,
					Days:        mt.Days,
					Begin:       mt.Begin,
					End:         mt.End,
				})
			}
		}
	}

	appLog.Info("course schedule loaded",
		"courses", len(data.Courses),
		"rooms", len(s.meetings),
		"skipped_meetings", skipped,
	)
	return s, nil
}

// isOtherMini reports whether a section named like "A1" belongs to a
// different half-semester than current.
func isOtherMini(name string, current int) bool {
	if len(name) != 2 {
		return false
	}
	r0, r1 := rune(name[0]), rune(name[1])
	if !unicode.IsUpper(r0) || r0 > unicode.MaxASCII || !unicode.IsDigit(r1) {
		return false
	}
	return int(r1-'0') != current
}

// IncludeLocation reports whether a building/room pair names a real,
// in-scope teaching space.
func IncludeLocation(building, room *string, buildings map[string]bool) bool {
	if building == nil || room == nil {
		return false
	}
	switch *room {
	case "REMOTE", "DNM":
		return false
	}
	if *building == "DNM" {
		return false
	}
	if strings.HasSuffix(*room, "flr") {
		return false
	}
	return buildings[*building]
}

// CourseNames maps course numbers without dashes ("15122") to names.
func (s *Schedule) CourseNames() map[string]string {
	out := make(map[string]string, len(s.names))
	for k, v := range s.names {
		out[k] = v
	}
	return out
}

// Locations returns every room that hosts at least one meeting, sorted.
func (s *Schedule) Locations() []string {
	out := make([]string, 0, len(s.meetings))
	for loc := range s.meetings {
		out = append(out, loc)
	}
	sort.Strings(out)
	return out
}

// EventsOn returns the course events held in location on date.
func (s *Schedule) EventsOn(location string, date time.Time) ([]model.CourseEvent, error) {
	var out []model.CourseEvent
	for _, m := range s.meetings[location] {
		ok, err := s.meetsOn(m, date)
		if err != nil {
			return nil, fmt.Errorf("courses: %s in %s: %w", m.Number, location, err)
		}
		if !ok {
			continue
		}
		out = append(out, model.CourseEvent{
			Number:      m.Number,
			Name:        m.Name,
			Instructors: m.Instructors,
			Start:       m.Begin,
			End:         m.End,
		})
	}
	return out, nil
}

var weekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// meetsOn expands m's weekly rule across date's calendar day.
func (s *Schedule) meetsOn(m Meeting, date time.Time) (bool, error) {
	byDay := make([]rrule.Weekday, 0, len(m.Days))
	for _, d := range m.Days {
		if d < 0 || d > 6 {
			return false, fmt.Errorf("day %d out of range", d)
		}
		byDay = append(byDay, weekdays[d])
	}
	if len(byDay) == 0 {
		return false, nil
	}

	dayStart := model.DayStart(date)
	dtStart := s.termStart
	if dtStart.IsZero() {
		// Unbounded term: any week containing date will do.
		dtStart = dayStart.AddDate(0, 0, -7)
	}
	dtStart = time.Date(dtStart.Year(), dtStart.Month(), dtStart.Day(), 0, 0, 0, 0, date.Location())

	opt := rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   dtStart,
		Byweekday: byDay,
	}
	if !s.termEnd.IsZero() {
		opt.Until = s.termEnd
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return false, err
	}

	occ := r.Between(dayStart, dayStart.Add(24*time.Hour-time.Nanosecond), true)
	return len(occ) > 0, nil
}
