package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"freeroom/internal/model"
)

// TimelineICS writes the busy blocks of room's timeline as a calendar.
// Free blocks are left out. now stamps DTSTAMP.
func TimelineICS(w io.Writer, room model.Room, blocks []model.Block, now time.Time) error {
	cal := ics.NewCalendarFor("freeroom")
	cal.SetMethod(ics.MethodPublish)
	cal.SetXWRCalName(room.Location)

	slug := strings.ReplaceAll(strings.ToLower(room.Location), " ", "-")
	for _, b := range blocks {
		if b.Available {
			continue
		}
		event := cal.AddEvent(fmt.Sprintf("%s-%s@freeroom", slug, b.Start.UTC().Format("20060102T150405Z")))
		event.SetDtStampTime(now)
		event.SetStartAt(b.Start)
		event.SetEndAt(b.End)
		event.SetSummary(b.Name)
		event.SetLocation(room.Location)

		desc := fmt.Sprintf("Status: %s\nSource: %s", b.Status, b.Source)
		if b.Comment != "" {
			desc += "\n\n" + b.Comment
		}
		event.SetDescription(desc)
	}

	return cal.SerializeTo(w)
}
