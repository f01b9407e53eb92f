package inventory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freeroom/internal/booking"
	"freeroom/internal/config"
	"freeroom/internal/model"
)

const registrarCSV = `building,room,department,name,capacity,type
DH,2315,CIT,Doherty Hall Lecture,150+,LEARNING HALL
GHC,4307,SCS,,40,CLASSROOM
WEH,5310,MCS,Chem Lab,24,WET LAB
HH,B131,ECE,,12,SPECIALTY SHOP
XYZ,100,,,10,CLASSROOM
,200,,,10,CLASSROOM
WEH,5flr,,,10,CLASSROOM
`

var testBuildings = []string{"DH", "GHC", "WEH", "HH", "CUC"}

func TestParseRegistrar(t *testing.T) {
	rooms, err := ParseRegistrar(strings.NewReader(registrarCSV), testBuildings)
	require.NoError(t, err)
	require.Len(t, rooms, 4)

	assert.Equal(t, "DH 2315", rooms[0].Location)
	assert.Equal(t, 150, rooms[0].Capacity)
	assert.Equal(t, "LEARNING HALL", rooms[0].Type)

	assert.Equal(t, "GHC 4307", rooms[1].Location)
	assert.Equal(t, "HH B131", rooms[2].Location)
	assert.Equal(t, "WEH 5310", rooms[3].Location)
}

func TestParseRegistrar_Errors(t *testing.T) {
	_, err := ParseRegistrar(strings.NewReader("room,capacity\n1,2\n"), testBuildings)
	assert.Error(t, err)

	_, err = ParseRegistrar(strings.NewReader("building,room,capacity\nDH,100,lots\n"), testBuildings)
	assert.Error(t, err)

	rooms, err := ParseRegistrar(strings.NewReader("building,room\nDH,100\n"), testBuildings)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "UNKNOWN", rooms[0].Type)
	assert.Zero(t, rooms[0].Capacity)
}

func testOptions() Options {
	cfg := config.DefaultConfig()
	return Options{
		Categories: cfg.Categories,
		Buildings:  testBuildings,
		Favorites:  []string{"GHC 4307"},
		Notes:      map[string]string{"DH 2315": "Big lecture hall"},
	}
}

func byLocation(rooms []model.Room) map[string]model.Room {
	out := make(map[string]model.Room, len(rooms))
	for _, r := range rooms {
		out[r.Location] = r
	}
	return out
}

func TestBuild(t *testing.T) {
	registrar, err := ParseRegistrar(strings.NewReader(registrarCSV), testBuildings)
	require.NoError(t, err)

	spaces := []booking.Space{
		{ID: 1, Name: "DH 2315", FullName: "Doherty Hall 2315", Categories: []string{"Registrar Classrooms"}, Features: []string{"Projector"}, MaxCapacity: 120},
		{ID: 2, Name: "UC GYM", FullName: "Gymnasium", Categories: []string{"Athletics"}, MaxCapacity: 300},
		{ID: 3, Name: "CUC STUDY ROOM 1", FullName: "CUC Study Room 1", MaxCapacity: 6},
		{ID: 4, Name: "GHC 4307", FullName: "Gates 4307", MaxCapacity: 30},
		{ID: 5, Name: "WQED", FullName: "Welcome Center Lobby"},
		{ID: 6, Name: "MISC 1", FullName: "Storage"},
		{ID: 7, Name: "CLUSTER", FullName: "Cluster", Categories: []string{"Computing Services Lab - Public"}},
	}
	scheduled := []string{"DH 2315", "HH B131", "POS 151"}

	rooms, err := Build(spaces, registrar, scheduled, testOptions())
	require.NoError(t, err)
	require.Len(t, rooms, 10)

	got := byLocation(rooms)

	dh := got["DH 2315"]
	assert.Equal(t, "classroom", dh.Category)
	assert.Equal(t, 150, dh.Capacity)
	assert.Equal(t, 1, dh.BookingID)
	assert.Equal(t, "Doherty Hall 2315", dh.Name)
	assert.Equal(t, "Big lecture hall", dh.Notes)
	assert.Contains(t, dh.Comment, "Registrar Name: Doherty Hall Lecture")
	assert.Contains(t, dh.Comment, "Features: Projector")

	assert.Equal(t, "athletics", got["UC GYM"].Category)
	assert.Equal(t, "study_room", got["CUC STUDY ROOM 1"].Category)
	assert.Equal(t, "admin", got["WQED"].Category)
	assert.Equal(t, "other", got["MISC 1"].Category)
	assert.Equal(t, "computer_lab", got["CLUSTER"].Category)

	ghc := got["GHC 4307"]
	assert.Equal(t, "classroom", ghc.Category)
	assert.Equal(t, 40, ghc.Capacity)
	assert.True(t, ghc.Favorite)

	// Registrar-only rooms.
	weh := got["WEH 5310"]
	assert.Equal(t, "lab", weh.Category)
	assert.False(t, weh.HasBookingID())
	assert.Equal(t, "special_lab", got["HH B131"].Category)

	// Schedule-only room.
	pos := got["POS 151"]
	assert.Equal(t, "classroom", pos.Category)
	assert.Zero(t, pos.Capacity)

	// Booking spaces keep their order at the front.
	assert.Equal(t, "DH 2315", rooms[0].Location)
	assert.Equal(t, "POS 151", rooms[len(rooms)-1].Location)
}

func TestBuild_Overrides(t *testing.T) {
	opts := testOptions()
	opts.Overrides = []config.Override{
		{Location: "POS 151", Field: "category", Value: "studio"},
		{Location: "POS 151", Field: "capacity", Value: "80"},
		{Location: "POS 151", Field: "name", Value: "Posner 151"},
	}

	rooms, err := Build(nil, nil, []string{"POS 151"}, opts)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, model.Room{
		Location: "POS 151",
		Name:     "Posner 151",
		Category: "studio",
		Capacity: 80,
	}, rooms[0])
}

func TestBuild_Invalid(t *testing.T) {
	opts := testOptions()

	opts.Overrides = []config.Override{{Location: "POS 151", Field: "category", Value: "ballroom"}}
	_, err := Build(nil, nil, []string{"POS 151"}, opts)
	assert.Error(t, err)

	opts.Overrides = []config.Override{{Location: "POS 151", Field: "capacity", Value: "10000"}}
	_, err = Build(nil, nil, []string{"POS 151"}, opts)
	assert.Error(t, err)

	opts.Overrides = []config.Override{{Location: "POS 151", Field: "capacity", Value: "-1"}}
	_, err = Build(nil, nil, []string{"POS 151"}, opts)
	assert.Error(t, err)
}
