package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freeroom/internal/config"
	"freeroom/internal/model"
	"freeroom/internal/refresh"
	"freeroom/internal/snapshot"
)

// setup writes a config and one stored day, returning the config path.
func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.DataDir = dir
	cfg.Display.FancyTable = false
	cfg.Favorites = []string{"WEH 5310"}
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, config.Save(path, cfg))

	day := time.Date(2021, time.September, 14, 0, 0, 0, 0, time.UTC)
	snap := &snapshot.Snapshot{
		Date:     "2021-09-14",
		Timezone: "UTC",
		Rooms: []model.Room{
			{Location: "DH 2315", Category: "classroom", Capacity: 150},
			{Location: "GHC 4307", Category: "classroom", Capacity: 40},
			{Location: "WEH 5310", Category: "classroom", Capacity: 20, Favorite: true},
		},
		Events: map[string][]model.EventRecord{
			"DH 2315": {{
				Start:  day.Add(9 * time.Hour),
				End:    day.Add(9*time.Hour + 50*time.Minute),
				Name:   "15-122: Principles",
				Status: "Course Confirmed",
				Source: model.SourceCourseSchedule,
			}},
			"WEH 5310": {},
		},
		Errors: []snapshot.RoomFailure{{Location: "GHC 4307", Message: "timeout"}},
	}
	require.NoError(t, refresh.StoreFromConfig(cfg).Save(snap))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestFind(t *testing.T) {
	cfgPath := setup(t)

	out, err := run(t, "--config", cfgPath, "find", "--date", "2021-09-14", "--at", "09:55", "--for", "1hr")
	require.NoError(t, err)
	assert.Contains(t, out, "Rooms free Tue Sep 14, 09:55 - 10:55")
	assert.Contains(t, out, "DH 2315")
	assert.Contains(t, out, "14hr 4min")
	assert.Contains(t, out, "15-122: Principles")
	assert.Contains(t, out, "skipped GHC 4307: timeout")

	// Favorites rank first.
	assert.Less(t, bytes.Index([]byte(out), []byte("WEH 5310")), bytes.Index([]byte(out), []byte("DH 2315")))
}

func TestFind_FavoritesEditedAfterUpdate(t *testing.T) {
	cfgPath := setup(t)
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	cfg.Favorites = []string{"DH 2315"}
	require.NoError(t, config.Save(cfgPath, cfg))

	out, err := run(t, "--config", cfgPath, "find", "--date", "2021-09-14", "--at", "09:55", "--favorites")
	require.NoError(t, err)
	assert.Contains(t, out, "DH 2315")
	assert.NotContains(t, out, "WEH 5310")
}

func TestFind_NothingFree(t *testing.T) {
	cfgPath := setup(t)

	_, err := run(t, "--config", cfgPath, "find", "--date", "2021-09-14", "--at", "09:00", "--favorites", "--filter", "dh")
	assert.Error(t, err, "no favorite matches the filter")

	out, err := run(t, "--config", cfgPath, "find", "--date", "2021-09-14", "--at", "09:00", "--filter", "dh")
	require.NoError(t, err)
	assert.Contains(t, out, "no rooms are free")
}

func TestFind_Errors(t *testing.T) {
	cfgPath := setup(t)

	_, err := run(t, "--config", cfgPath, "find", "--date", "2021-09-15")
	assert.ErrorIs(t, err, snapshot.ErrNotFound)

	_, err = run(t, "--config", cfgPath, "find", "--date", "2021-09-14", "--for", "a while")
	assert.Error(t, err)
}

func TestTimeline(t *testing.T) {
	cfgPath := setup(t)

	out, err := run(t, "--config", cfgPath, "timeline", "dh 2315", "--date", "2021-09-14")
	require.NoError(t, err)
	assert.Contains(t, out, "DH 2315")
	assert.Contains(t, out, "Course Confirmed")
	assert.Contains(t, out, "0hr 50min")

	_, err = run(t, "--config", cfgPath, "timeline", "GHC 4307", "--date", "2021-09-14")
	assert.Error(t, err, "rooms whose events failed have no timeline")

	_, err = run(t, "--config", cfgPath, "timeline", "XYZ 1", "--date", "2021-09-14")
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	cfgPath := setup(t)
	output := filepath.Join(t.TempDir(), "dh.ics")

	_, err := run(t, "--config", cfgPath, "export", "DH 2315", "--date", "2021-09-14", "-o", output)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "SUMMARY:15-122: Principles")
	assert.Contains(t, string(data), "DTSTART:20210914T090000Z")
}

func TestRooms(t *testing.T) {
	cfgPath := setup(t)

	out, err := run(t, "--config", cfgPath, "rooms")
	require.NoError(t, err)
	assert.Contains(t, out, "GHC 4307")
	assert.Contains(t, out, "Classroom")
}

func TestConfigCreatedOnFirstRun(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "nested", "config.yaml")
	t.Setenv("XDG_CACHE_HOME", dir)

	_, err := run(t, "--config", cfgPath, "rooms")
	assert.Error(t, err, "nothing downloaded yet")

	info, err := os.Stat(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
