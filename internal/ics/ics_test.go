package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Times are UTC; 13:00Z is 09:00 in New York during daylight time.
const feedBody = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//freeroom//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:lec-15122@example.edu\r\n" +
	"DTSTAMP:20210801T000000Z\r\n" +
	"SUMMARY:15-122 Principles of Imperative Computation\r\n" +
	"DESCRIPTION:Instructors: Cervesato\\; Kaynar\r\n" +
	"LOCATION:DH  2315\r\n" +
	"DTSTART:20210831T130000Z\r\n" +
	"DTEND:20210831T135000Z\r\n" +
	"RRULE:FREQ=WEEKLY;BYDAY=TU,TH;UNTIL=20211210T235959Z\r\n" +
	"EXDATE:20210916T130000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:lec-15122@example.edu\r\n" +
	"DTSTAMP:20210801T000000Z\r\n" +
	"RECURRENCE-ID:20210921T130000Z\r\n" +
	"SUMMARY:15-122 Principles of Imperative Computation\r\n" +
	"LOCATION:DH 2315\r\n" +
	"DTSTART:20210921T150000Z\r\n" +
	"DTEND:20210921T155000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:review@example.edu\r\n" +
	"DTSTAMP:20210801T000000Z\r\n" +
	"SUMMARY:18220: Exam Review\r\n" +
	"LOCATION:GHC 4307\r\n" +
	"DTSTART:20210914T220000Z\r\n" +
	"DTEND:20210914T230000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:holiday@example.edu\r\n" +
	"DTSTAMP:20210801T000000Z\r\n" +
	"SUMMARY:No classes\r\n" +
	"DTSTART;VALUE=DATE:20210914\r\n" +
	"DTEND;VALUE=DATE:20210915\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"DTSTAMP:20210801T000000Z\r\n" +
	"SUMMARY:No UID\r\n" +
	"DTSTART:20210914T130000Z\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func parseFeed(t *testing.T) *Calendar {
	t.Helper()
	events, err := Parse("test", []byte(feedBody))
	require.NoError(t, err)
	require.Len(t, events, 4)
	return NewCalendar(events, newYork(t))
}

func TestParse(t *testing.T) {
	events, err := Parse("test", []byte(feedBody))
	require.NoError(t, err)

	lec := events[0]
	assert.Equal(t, "lec-15122@example.edu", lec.UID)
	assert.Equal(t, "DH 2315", lec.Location)
	assert.NotEmpty(t, lec.RawRRule)
	require.Len(t, lec.ExDates, 1)
	assert.Nil(t, lec.Recurrence)

	assert.NotNil(t, events[1].Recurrence)
	assert.True(t, events[3].AllDay)

	_, err = Parse("test", nil)
	assert.Error(t, err)
}

func TestCalendar_Locations(t *testing.T) {
	assert.Equal(t, []string{"DH 2315", "GHC 4307"}, parseFeed(t).Locations())
}

func TestEventsOn_Recurring(t *testing.T) {
	cal := parseFeed(t)
	loc := newYork(t)

	tue := time.Date(2021, time.September, 14, 0, 0, 0, 0, loc)
	events, err := cal.EventsOn("DH 2315", tue)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "15-122", events[0].Number)
	assert.Equal(t, "Principles of Imperative Computation", events[0].Name)
	assert.Equal(t, []string{"Cervesato", "Kaynar"}, events[0].Instructors)
	assert.Equal(t, "09:00", events[0].Start)
	assert.Equal(t, "09:50", events[0].End)

	// Wednesday: no meeting.
	events, err = cal.EventsOn("DH 2315", tue.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEventsOn_ExDateAndOverride(t *testing.T) {
	cal := parseFeed(t)
	loc := newYork(t)

	excluded := time.Date(2021, time.September, 16, 0, 0, 0, 0, loc)
	events, err := cal.EventsOn("DH 2315", excluded)
	require.NoError(t, err)
	assert.Empty(t, events)

	moved := time.Date(2021, time.September, 21, 0, 0, 0, 0, loc)
	events, err = cal.EventsOn("DH 2315", moved)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "11:00", events[0].Start)
	assert.Equal(t, "11:50", events[0].End)
}

func TestEventsOn_SingleAndAllDay(t *testing.T) {
	cal := parseFeed(t)
	loc := newYork(t)
	tue := time.Date(2021, time.September, 14, 0, 0, 0, 0, loc)

	events, err := cal.EventsOn("GHC 4307", tue)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "18220", events[0].Number)
	assert.Equal(t, "Exam Review", events[0].Name)
	assert.Equal(t, "18:00", events[0].Start)
	assert.Nil(t, events[0].Instructors)

	for _, occ := range cal.Expand(tue) {
		assert.NotEqual(t, "No classes", occ.Summary)
	}
}

func TestSplitSummary(t *testing.T) {
	cases := []struct {
		in, number, name string
	}{
		{"15-122 Principles", "15-122", "Principles"},
		{"15122: Principles", "15122", "Principles"},
		{"  18220   Circuits ", "18220", "Circuits"},
		{"Office Hours", "", "Office Hours"},
		{"15-122", "", "15-122"},
	}
	for _, tc := range cases {
		number, name := SplitSummary(tc.in)
		assert.Equal(t, tc.number, number, tc.in)
		assert.Equal(t, tc.name, name, tc.in)
	}
}

func TestFetchOne_CacheRevalidation(t *testing.T) {
	var hits, notModified atomic.Int32
	fail := atomic.Bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(feedBody))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), time.Second)
	feed := Feed{ID: "soc", URL: srv.URL + "/feed.ics?token=secret"}

	first, err := f.FetchOne(context.Background(), feed)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, feedBody, string(first.Body))

	second, err := f.FetchOne(context.Background(), feed)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, int32(1), notModified.Load())

	fail.Store(true)
	third, err := f.FetchOne(context.Background(), feed)
	require.NoError(t, err)
	assert.True(t, third.FromCache)
	assert.Equal(t, feedBody, string(third.Body))
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetchAll_ReportsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "bad.ics") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(feedBody))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), time.Second)
	results, errs := f.FetchAll(context.Background(), []Feed{
		{ID: "good", URL: srv.URL + "/good.ics"},
		{ID: "bad", URL: srv.URL + "/bad.ics"},
		{ID: "empty"},
	})
	require.Len(t, results, 1)
	assert.Equal(t, "good", results[0].Feed.ID)
	assert.Len(t, errs, 2)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://cal.example.edu/...(redacted)", redactURL("https://cal.example.edu/private/abc.ics?token=x"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}
