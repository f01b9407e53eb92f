package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"freeroom/internal/config"
	appLog "freeroom/internal/log"
	"freeroom/internal/model"
)

// ErrNotFound is returned when no snapshot exists for the requested day.
var ErrNotFound = errors.New("events not downloaded for date, run update")

const (
	filePrefix = "events-"
	fileSuffix = ".cbor.zst"
	dateLayout = "2006-01-02"
)

// RoomFailure records a room whose events could not be fetched.
type RoomFailure struct {
	Location string `cbor:"1,keyasint" json:"location"`
	Message  string `cbor:"2,keyasint" json:"message"`
}

// Snapshot is everything known about one day: the rooms and each room's
// reconciled events.
type Snapshot struct {
	Date      string                         `cbor:"1,keyasint" json:"date"`
	FetchedAt time.Time                      `cbor:"2,keyasint" json:"fetched_at"`
	Timezone  string                         `cbor:"3,keyasint" json:"timezone"`
	Rooms     []model.Room                   `cbor:"4,keyasint" json:"rooms"`
	Events    map[string][]model.EventRecord `cbor:"5,keyasint" json:"events"`
	Errors    []RoomFailure                  `cbor:"6,keyasint" json:"errors,omitempty"`
}

// Day returns Date as midnight in loc.
func (s *Snapshot) Day(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s.Date, loc)
}

// UsableRooms returns the rooms whose events were fetched. Rooms listed in
// Errors have no events and would otherwise look free all day.
func (s *Snapshot) UsableRooms() []model.Room {
	failed := make(map[string]bool, len(s.Errors))
	for _, f := range s.Errors {
		failed[f.Location] = true
	}
	out := make([]model.Room, 0, len(s.Rooms))
	for _, r := range s.Rooms {
		if !failed[r.Location] {
			out = append(out, r)
		}
	}
	return out
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// Keep the wall-clock offset; the default Unix encoding drops it.
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("snapshot: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("snapshot: CBOR decoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("snapshot: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("snapshot: zstd decoder initialization failed: " + err.Error())
	}
}

// Store keeps one compressed snapshot file per day in a directory.
type Store struct {
	dir string
	loc *time.Location
}

// NewStore returns a Store rooted at dir. Times read back are expressed
// in loc.
func NewStore(dir string, loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{dir: dir, loc: loc}
}

// Path returns the snapshot file for date's calendar day.
func (st *Store) Path(date time.Time) string {
	return filepath.Join(st.dir, filePrefix+date.Format(dateLayout)+fileSuffix)
}

// Save writes s atomically, replacing any snapshot for the same day.
func (st *Store) Save(s *Snapshot) error {
	day, err := time.ParseInLocation(dateLayout, s.Date, st.loc)
	if err != nil {
		return fmt.Errorf("snapshot: date %q: %w", s.Date, err)
	}

	raw, err := encMode.Marshal(s)
	if err != nil {
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	compressed := zstdEncoder.EncodeAll(raw, nil)

	path := st.Path(day)
	if err := config.WriteFileAtomic(path, compressed); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", path, err)
	}

	appLog.Info("snapshot saved",
		"date", s.Date,
		"rooms", len(s.Rooms),
		"failed_rooms", len(s.Errors),
		"bytes", len(compressed),
	)
	return nil
}

// Load reads the snapshot for date's calendar day, or ErrNotFound.
func (st *Store) Load(date time.Time) (*Snapshot, error) {
	return st.loadFile(st.Path(date))
}

// Latest returns the snapshot with the newest date on disk.
func (st *Store) Latest() (*Snapshot, error) {
	dates, err := st.Dates()
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, ErrNotFound
	}
	return st.Load(dates[len(dates)-1])
}

// Dates lists the days that have a snapshot, oldest first.
func (st *Store) Dates() ([]time.Time, error) {
	entries, err := os.ReadDir(st.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: list %s: %w", st.dir, err)
	}

	var dates []time.Time
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		d, err := time.ParseInLocation(dateLayout, strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix), st.loc)
		if err != nil {
			continue
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func (st *Store) loadFile(path string) (*Snapshot, error) {
	compressed, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", path, err)
	}

	raw, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("snapshot: decompress %s: %w", path, err)
	}

	var s Snapshot
	if err := decMode.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("snapshot: decode %s: %w", path, err)
	}
	st.localize(&s)
	return &s, nil
}

// localize moves decoded times, which carry only a fixed offset, back into
// the store's zone.
func (st *Store) localize(s *Snapshot) {
	s.FetchedAt = s.FetchedAt.In(st.loc)
	for loc, events := range s.Events {
		for i := range events {
			events[i].Start = events[i].Start.In(st.loc)
			events[i].End = events[i].End.In(st.loc)
		}
		s.Events[loc] = events
	}
}
