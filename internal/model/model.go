package model

import "time"

// Source records which feed(s) an EventRecord was built from.
type Source int

const (
	SourceBookingSystem Source = iota + 1
	SourceCourseSchedule
	SourceBoth
)

func (s Source) String() string {
	switch s {
	case SourceBookingSystem:
		return "Booking"
	case SourceCourseSchedule:
		return "Course Schedule"
	case SourceBoth:
		return "Course Schedule & Booking"
	default:
		return "Unknown"
	}
}

// BookingEvent is a single reservation as reported by the booking system
// for one space on one day. Events of type "closed" never get this far.
type BookingEvent struct {
	ID      string // booking event reference, e.g. "2021-ABCDEF"
	Title   string
	State   string
	Type    string
	Comment string

	Start time.Time
	End   time.Time

	// MatchedCourseName is the course-schedule name for the course number
	// embedded in ID, if exactly one was found.
	MatchedCourseName string
}

// CourseEvent is a single class meeting from the course schedule. The
// schedule stores wall-clock times only; Start/End are "HH:MM" style
// strings resolved against a query date by the matcher.
type CourseEvent struct {
	Number      string
	Name        string
	Instructors []string

	Start string
	End   string
}

// EventRecord is the canonical occupancy interval for one room on one day.
type EventRecord struct {
	Start   time.Time `cbor:"1,keyasint" json:"start"`
	End     time.Time `cbor:"2,keyasint" json:"end"`
	Name    string    `cbor:"3,keyasint" json:"name"`
	Status  string    `cbor:"4,keyasint" json:"status"`
	Source  Source    `cbor:"5,keyasint" json:"source"`
	Comment string    `cbor:"6,keyasint" json:"comment"`
}

// Block is one segment of a room's day timeline. Busy blocks carry the
// EventRecord that occupies them; free blocks only have Start, End and
// Available set.
type Block struct {
	EventRecord
	Available bool `json:"available"`
}

// Room is a bookable space as known to the inventory.
type Room struct {
	Location string `cbor:"1,keyasint" json:"location"`
	Name     string `cbor:"2,keyasint" json:"name"`
	Category string `cbor:"3,keyasint" json:"category"`
	Capacity int    `cbor:"4,keyasint" json:"capacity"`
	Notes    string `cbor:"5,keyasint" json:"notes,omitempty"`
	Comment  string `cbor:"6,keyasint" json:"comment,omitempty"`

	// BookingID is the booking-system space id, 0 when the room is not
	// listed there.
	BookingID int  `cbor:"7,keyasint" json:"booking_id,omitempty"`
	Favorite  bool `cbor:"8,keyasint" json:"favorite"`
}

func (r Room) HasBookingID() bool {
	return r.BookingID != 0
}
