package avail

import (
	"errors"
	"fmt"
	"sort"
	"time"

	appLog "freeroom/internal/log"
	"freeroom/internal/model"
	"freeroom/internal/timeline"
)

var (
	// ErrNoContainingBlock means the query instant fell outside a room's
	// timeline. Build always covers the full day, so this indicates a bug.
	ErrNoContainingBlock = errors.New("no timeline block contains the requested time")

	// ErrEmptyResultSet is returned together with an empty Result when no
	// room is free for the whole window.
	ErrEmptyResultSet = errors.New("no rooms are free for the requested window")
)

// Query asks which rooms are free for the whole of [Start, End) on Date.
type Query struct {
	Date  time.Time
	Start time.Time
	End   time.Time

	// Verbose keeps status and comment of the preceding block and logs the
	// decision made for each room.
	Verbose bool
}

// Candidate is a room that is free for the requested window.
type Candidate struct {
	Room model.Room

	// Preceding is the block right before the free block; when the free
	// block opens the day it is a zero-length block at Free.Start named "None".
	Preceding model.Block

	// Free is the free block containing the window.
	Free model.Block
}

// RoomError records a room skipped because its timeline could not be built
// or queried.
type RoomError struct {
	Location string
	Err      error
}

func (e RoomError) Error() string {
	return fmt.Sprintf("%s: %v", e.Location, e.Err)
}

func (e RoomError) Unwrap() error {
	return e.Err
}

// Result is the ranked answer to a Query.
type Result struct {
	Candidates []Candidate

	// ShowCategory is false when every considered room shares one category,
	// in which case the column carries no information.
	ShowCategory bool

	Failed []RoomError
}

// Find builds each room's timeline from events (keyed by room location)
// and returns the rooms that are free from q.Start until at least q.End,
// favorites first and then by location. A room whose timeline fails is
// recorded in Result.Failed and skipped.
func Find(rooms []model.Room, events map[string][]model.EventRecord, q Query) (Result, error) {
	if q.End.Before(q.Start) {
		return Result{}, fmt.Errorf("query window ends (%s) before it starts (%s)",
			q.End.Format(time.Kitchen), q.Start.Format(time.Kitchen))
	}

	res := Result{ShowCategory: !sameCategory(rooms)}

	for _, room := range rooms {
		cand, ok, err := check(room, events[room.Location], q)
		if err != nil {
			appLog.Error("availability check failed; skipping room", err, "location", room.Location)
			res.Failed = append(res.Failed, RoomError{Location: room.Location, Err: err})
			continue
		}
		if q.Verbose {
			appLog.Debug("availability checked",
				"location", room.Location,
				"available", ok,
				"free_until", cand.Free.End.Format("15:04"),
			)
		}
		if ok {
			res.Candidates = append(res.Candidates, cand)
		}
	}

	Rank(res.Candidates)

	if len(res.Candidates) == 0 {
		return res, ErrEmptyResultSet
	}
	return res, nil
}

func check(room model.Room, events []model.EventRecord, q Query) (Candidate, bool, error) {
	blocks, err := timeline.Build(q.Date, events)
	if err != nil {
		return Candidate{}, false, err
	}

	idx := timeline.Containing(blocks, q.Start)
	if idx < 0 {
		return Candidate{}, false, fmt.Errorf("%w: %s", ErrNoContainingBlock, q.Start.Format(time.RFC3339))
	}

	containing := blocks[idx]
	var preceding model.Block
	if idx > 0 {
		preceding = blocks[idx-1]
	} else {
		preceding = model.Block{EventRecord: model.EventRecord{Start: containing.Start, End: containing.Start, Name: "None"}}
	}
	if !q.Verbose {
		preceding.Status = ""
		preceding.Comment = ""
	}

	cand := Candidate{Room: room, Preceding: preceding, Free: containing}
	ok := containing.Available && !q.End.After(containing.End)
	return cand, ok, nil
}

// Rank orders candidates favorites first, then by location.
func Rank(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		ki, kj := rankKey(cands[i].Room), rankKey(cands[j].Room)
		if ki != kj {
			return ki < kj
		}
		return cands[i].Room.Location < cands[j].Room.Location
	})
}

func rankKey(r model.Room) string {
	if r.Favorite {
		return "A" + r.Location
	}
	return "B" + r.Location
}

func sameCategory(rooms []model.Room) bool {
	for _, r := range rooms[min(1, len(rooms)):] {
		if r.Category != rooms[0].Category {
			return false
		}
	}
	return true
}
