package render

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freeroom/internal/avail"
	"freeroom/internal/model"
)

var day = time.Date(2021, time.September, 14, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func TestCategoryTitle(t *testing.T) {
	assert.Equal(t, "Computer Lab", CategoryTitle("computer_lab"))
	assert.Equal(t, "Classroom", CategoryTitle("classroom"))
	assert.Equal(t, "Cuc", CategoryTitle("cuc"))
}

func TestResults(t *testing.T) {
	res := avail.Result{
		ShowCategory: true,
		Candidates: []avail.Candidate{
			{
				Room:      model.Room{Location: "GHC 4307", Category: "computer_lab", Capacity: 40, Favorite: true},
				Preceding: model.Block{EventRecord: model.EventRecord{End: at(9, 50), Name: "15-122: Principles"}},
				Free:      model.Block{EventRecord: model.EventRecord{Start: at(9, 50), End: at(13, 0)}, Available: true},
			},
			{
				Room:      model.Room{Location: "DH 2315", Category: "classroom"},
				Preceding: model.Block{EventRecord: model.EventRecord{End: at(0, 0), Name: "None"}},
				Free:      model.Block{EventRecord: model.EventRecord{Start: at(0, 0), End: at(23, 59)}, Available: true},
			},
		},
		Failed: []avail.RoomError{{Location: "POS 151", Err: errors.New("inconsistent day")}},
	}
	q := avail.Query{Date: day, Start: at(12, 0), End: at(12, 30)}

	var buf bytes.Buffer
	require.NoError(t, Results(&buf, res, q, Options{Stars: true, MaxWidth: 80, MinAvailable: 30 * time.Minute}))
	out := buf.String()

	assert.Contains(t, out, "★ GHC 4307")
	assert.Contains(t, out, "Computer Lab")
	assert.Contains(t, out, " 1hr ")
	assert.Contains(t, out, " 12hr ")
	assert.Contains(t, out, "09:50")
	assert.Contains(t, out, "?")
	assert.Contains(t, out, "+")
	assert.Contains(t, out, "skipped POS 151: inconsistent day")
	assert.NotContains(t, out, "Status")
}

func TestResults_NoCategoryColumn(t *testing.T) {
	res := avail.Result{Candidates: []avail.Candidate{{
		Room:      model.Room{Location: "DH 2315", Category: "classroom", Capacity: 10},
		Preceding: model.Block{EventRecord: model.EventRecord{End: at(8, 0), Name: "Lecture", Status: "Confirmed"}},
		Free:      model.Block{EventRecord: model.EventRecord{Start: at(8, 0), End: at(23, 59)}, Available: true},
	}}}
	q := avail.Query{Date: day, Start: at(9, 0), End: at(10, 0), Verbose: true}

	var buf bytes.Buffer
	require.NoError(t, Results(&buf, res, q, Options{Fancy: true}))
	out := buf.String()
	assert.NotContains(t, out, "Category")
	assert.Contains(t, out, "Status")
	assert.Contains(t, out, "Confirmed")
	assert.Contains(t, out, "╭")
}

func TestTimeline(t *testing.T) {
	blocks := []model.Block{
		{EventRecord: model.EventRecord{Start: at(0, 0), End: at(9, 0)}, Available: true},
		{EventRecord: model.EventRecord{Start: at(9, 0), End: at(9, 50), Name: "15-122: Principles", Status: "Course"}},
		{EventRecord: model.EventRecord{Start: at(9, 50), End: at(23, 59)}, Available: true},
	}

	var buf bytes.Buffer
	require.NoError(t, Timeline(&buf, model.Room{Location: "DH 2315", Name: "Doherty Hall 2315", Notes: "Chalk only"}, blocks, Options{}))
	out := buf.String()

	assert.Contains(t, out, "DH 2315 (Doherty Hall 2315)")
	assert.Contains(t, out, "Chalk only")
	assert.Contains(t, out, " 9hr ")
	assert.Contains(t, out, "0hr 50min")
	assert.Contains(t, out, "15-122: Principles")
	assert.Contains(t, out, "Free")
}

func TestRooms(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Rooms(&buf, []model.Room{
		{Location: "DH 2315", Name: "Doherty Hall 2315", Category: "classroom", Capacity: 150, BookingID: 3},
		{Location: "POS 151", Name: "POS 151", Category: "studio"},
	}, Options{}))
	out := buf.String()
	assert.Contains(t, out, "Doherty Hall 2315")
	assert.Contains(t, out, "Studio")
	assert.Contains(t, out, "yes")
	assert.Contains(t, out, "no")
}

func TestTruncate(t *testing.T) {
	o := Options{MaxWidth: 30}
	assert.Equal(t, "short", o.truncate("short"))
	assert.Equal(t, "abcdefghi…", o.truncate("abcdefghijklmnop"))
	assert.Equal(t, "a b", o.truncate("a \n b"))
	assert.Equal(t, "abcdefghijklmnop", Options{}.truncate("abcdefghijklmnop"))
}
