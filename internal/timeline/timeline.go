package timeline

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"freeroom/internal/model"
)

// ErrInconsistentDay is returned when the events handed to Build do not all
// lie on the requested day, even after cross-midnight clamping.
var ErrInconsistentDay = errors.New("timeline: events span more than one calendar day")

// Build turns one room's events for date into an ordered, gap-free,
// non-overlapping sequence of blocks covering [00:00, 23:59] of date.
//
// Steps:
//   - sort events by start (stable)
//   - clamp a first event that started the previous day to 00:00, and a
//     last event that ends the next day to 23:59
//   - walk events with a cursor from 00:00, emitting a free block for every
//     gap and a busy block per event
//   - emit a trailing free block up to 23:59
//   - shrink any block that overlaps its successor
//
// An event whose end precedes its start is treated as zero length.
//
// The input slice is not modified.
func Build(date time.Time, events []model.EventRecord) ([]model.Block, error) {
	dayStart := model.DayStart(date)
	dayEnd := model.DayEnd(date)

	if len(events) == 0 {
		return []model.Block{freeBlock(dayStart, dayEnd)}, nil
	}

	sorted := make([]model.EventRecord, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	first := &sorted[0]
	if !model.SameDay(first.Start, first.End) {
		first.Start = model.DayStart(first.End)
	}
	last := &sorted[len(sorted)-1]
	if !model.SameDay(last.Start, last.End) {
		last.End = model.DayEnd(last.Start)
	}

	for i, ev := range sorted {
		if !model.SameDay(ev.Start, dayStart) || !model.SameDay(ev.End, dayStart) {
			return nil, fmt.Errorf("%w: event %d %q runs %s to %s, want %s",
				ErrInconsistentDay, i, ev.Name,
				ev.Start.Format(time.RFC3339), ev.End.Format(time.RFC3339),
				dayStart.Format("2006-01-02"))
		}
		// Anything past 23:59 (e.g. 23:59:30) is folded into the last minute.
		if ev.End.After(dayEnd) {
			sorted[i].End = dayEnd
		}
		if sorted[i].Start.After(dayEnd) {
			sorted[i].Start = dayEnd
		}
		// An inverted event occupies only its start instant.
		if sorted[i].End.Before(sorted[i].Start) {
			sorted[i].End = sorted[i].Start
		}
	}

	blocks := make([]model.Block, 0, 2*len(sorted)+1)
	cursor := dayStart
	for _, ev := range sorted {
		if ev.Start.After(cursor) {
			blocks = append(blocks, freeBlock(cursor, ev.Start))
		}
		blocks = append(blocks, model.Block{EventRecord: ev, Available: false})
		cursor = ev.End
	}

	if !cursor.Equal(dayEnd) {
		blocks = append(blocks, freeBlock(cursor, dayEnd))
	}

	for i := 0; i+1 < len(blocks); i++ {
		if blocks[i+1].Start.Before(blocks[i].End) {
			blocks[i].End = blocks[i+1].Start
		}
	}

	return blocks, nil
}

func freeBlock(start, end time.Time) model.Block {
	return model.Block{
		EventRecord: model.EventRecord{Start: start, End: end},
		Available:   true,
	}
}

// Containing returns the index of the first block whose closed range
// [Start, End] contains t, or -1.
func Containing(blocks []model.Block, t time.Time) int {
	for i, b := range blocks {
		if !t.Before(b.Start) && !t.After(b.End) {
			return i
		}
	}
	return -1
}
