package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freeroom/internal/model"
)

var day = time.Date(2021, time.September, 14, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return time.Date(2021, time.September, 14, h, m, 0, 0, time.UTC)
}

func ev(name string, sh, sm, eh, em int) model.EventRecord {
	return model.EventRecord{Start: at(sh, sm), End: at(eh, em), Name: name, Status: "Confirmed"}
}

func assertCoversDay(t *testing.T, blocks []model.Block) {
	t.Helper()
	require.NotEmpty(t, blocks)
	assert.True(t, blocks[0].Start.Equal(at(0, 0)), "first block starts at %s", blocks[0].Start)
	assert.True(t, blocks[len(blocks)-1].End.Equal(at(23, 59)), "last block ends at %s", blocks[len(blocks)-1].End)
	for i := 0; i+1 < len(blocks); i++ {
		assert.True(t, blocks[i+1].Start.Equal(blocks[i].End),
			"gap or overlap between block %d (end %s) and %d (start %s)", i, blocks[i].End, i+1, blocks[i+1].Start)
		assert.False(t, blocks[i].End.Before(blocks[i].Start), "block %d has negative length", i)
	}
}

func TestBuild_Empty(t *testing.T) {
	blocks, err := Build(day, nil)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.True(t, blocks[0].Available)
	assertCoversDay(t, blocks)
}

func TestBuild_SingleEvent(t *testing.T) {
	blocks, err := Build(day, []model.EventRecord{ev("Lecture", 9, 0, 9, 50)})
	require.NoError(t, err)
	require.Len(t, blocks, 3)
	assertCoversDay(t, blocks)

	assert.True(t, blocks[0].Available)
	assert.False(t, blocks[1].Available)
	assert.Equal(t, "Lecture", blocks[1].Name)
	assert.True(t, blocks[1].Start.Equal(at(9, 0)))
	assert.True(t, blocks[1].End.Equal(at(9, 50)))
	assert.True(t, blocks[2].Available)
}

func TestBuild_SortsAndKeepsEveryEvent(t *testing.T) {
	events := []model.EventRecord{
		ev("C", 15, 0, 16, 0),
		ev("A", 8, 0, 9, 0),
		ev("B", 9, 0, 10, 30),
	}
	blocks, err := Build(day, events)
	require.NoError(t, err)
	assertCoversDay(t, blocks)

	var busy []string
	for _, b := range blocks {
		if !b.Available {
			busy = append(busy, b.Name)
		}
	}
	assert.Equal(t, []string{"A", "B", "C"}, busy)

	// Back-to-back events get no free block between them.
	assert.Len(t, blocks, 6)

	// Input is left untouched.
	assert.Equal(t, "C", events[0].Name)
}

func TestBuild_EventsAtDayBounds(t *testing.T) {
	blocks, err := Build(day, []model.EventRecord{ev("Early", 0, 0, 1, 0), ev("Late", 23, 0, 23, 59)})
	require.NoError(t, err)
	assertCoversDay(t, blocks)
	require.Len(t, blocks, 3)
	assert.False(t, blocks[0].Available)
	assert.True(t, blocks[1].Available)
	assert.False(t, blocks[2].Available)
}

func TestBuild_ClampsCrossMidnight(t *testing.T) {
	first := model.EventRecord{Name: "Overnight", Start: at(0, 0).Add(-2 * time.Hour), End: at(2, 0)}
	last := model.EventRecord{Name: "Late", Start: at(22, 0), End: at(23, 59).Add(3 * time.Hour)}

	blocks, err := Build(day, []model.EventRecord{last, first})
	require.NoError(t, err)
	assertCoversDay(t, blocks)
	require.Len(t, blocks, 3)

	assert.Equal(t, "Overnight", blocks[0].Name)
	assert.True(t, blocks[0].Start.Equal(at(0, 0)))
	assert.Equal(t, "Late", blocks[2].Name)
	assert.True(t, blocks[2].End.Equal(at(23, 59)))
}

func TestBuild_OverlappingEvents(t *testing.T) {
	cases := map[string][]model.EventRecord{
		"partial": {ev("A", 9, 0, 10, 0), ev("B", 9, 30, 11, 0)},
		"nested":  {ev("A", 9, 0, 12, 0), ev("B", 10, 0, 11, 0)},
		"chain":   {ev("A", 9, 0, 12, 0), ev("B", 10, 0, 11, 0), ev("C", 10, 30, 10, 45), ev("D", 11, 30, 13, 0)},
		"same":    {ev("A", 9, 0, 10, 0), ev("B", 9, 0, 10, 0)},
		"to-end":  {ev("A", 9, 0, 23, 59), ev("B", 10, 0, 23, 59)},
	}

	for name, events := range cases {
		t.Run(name, func(t *testing.T) {
			blocks, err := Build(day, events)
			require.NoError(t, err)
			assertCoversDay(t, blocks)

			busy := 0
			for _, b := range blocks {
				if !b.Available {
					busy++
				}
			}
			assert.Equal(t, len(events), busy)
		})
	}
}

func TestBuild_EndBeforeStart(t *testing.T) {
	blocks, err := Build(day, []model.EventRecord{ev("Backwards", 10, 0, 9, 0), ev("Later", 11, 0, 12, 0)})
	require.NoError(t, err)
	assertCoversDay(t, blocks)

	require.Len(t, blocks, 5)
	assert.Equal(t, "Backwards", blocks[1].Name)
	assert.True(t, blocks[1].Start.Equal(at(10, 0)))
	assert.True(t, blocks[1].End.Equal(at(10, 0)))
	assert.True(t, blocks[2].Available)
	assert.Equal(t, "Later", blocks[3].Name)
}

func TestBuild_InconsistentDay(t *testing.T) {
	other := model.EventRecord{Name: "Tomorrow", Start: at(9, 0).AddDate(0, 0, 1), End: at(10, 0).AddDate(0, 0, 1)}
	_, err := Build(day, []model.EventRecord{ev("Today", 8, 0, 9, 0), other})
	assert.ErrorIs(t, err, ErrInconsistentDay)
}

func TestBuild_WrongDay(t *testing.T) {
	_, err := Build(day.AddDate(0, 0, 1), []model.EventRecord{ev("Lecture", 9, 0, 9, 50)})
	assert.ErrorIs(t, err, ErrInconsistentDay)
}

func TestContaining(t *testing.T) {
	blocks, err := Build(day, []model.EventRecord{ev("Lecture", 9, 0, 9, 50)})
	require.NoError(t, err)

	assert.Equal(t, 0, Containing(blocks, at(8, 0)))
	// Shared boundaries belong to the earlier block.
	assert.Equal(t, 0, Containing(blocks, at(9, 0)))
	assert.Equal(t, 1, Containing(blocks, at(9, 10)))
	assert.Equal(t, 2, Containing(blocks, at(9, 55)))
	assert.Equal(t, -1, Containing(blocks, at(23, 59).Add(time.Minute)))
}
