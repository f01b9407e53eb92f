package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	appLog "freeroom/internal/log"
	"freeroom/internal/model"
)

type reservationEnvelope struct {
	// SpaceReservations is an object when reservations exist and may be an
	// empty string otherwise.
	SpaceReservations json.RawMessage `json:"space_reservations"`
}

type reservation struct {
	Event *struct {
		Name  string `json:"event_name"`
		Title string `json:"event_title"`
		State string `json:"state_name"`
		Type  string `json:"event_type_name"`
	} `json:"event"`
	Comments string `json:"reservation_comments"`
	Start    string `json:"reservation_start_dt"`
	End      string `json:"reservation_end_dt"`
}

// courseNumberRe finds five-digit course numbers embedded in event names,
// e.g. "2021-15122 Lec 1".
var courseNumberRe = regexp.MustCompile(`\D(\d{5})\D`)

var reservationLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// Reservations returns the booking events for one space on date.
// courseNames maps five-digit course numbers to names and is used to fill
// BookingEvent.MatchedCourseName. A space without any reservation list
// yields no events and no error.
func (c *Client) Reservations(ctx context.Context, spaceID int, date time.Time, courseNames map[string]string) ([]model.BookingEvent, error) {
	dt := date.Format("2006-01-02")
	path := fmt.Sprintf("/rm_reservations.json?space_id=%d&start_dt=%sT00:00:00&end_dt=%sT23:59:00"+
		"&include=closed+blackouts+pending+related+empty&caller=pro-ReservationService.getReservations",
		spaceID, dt, dt)

	var env reservationEnvelope
	if err := c.get(ctx, path, &env); err != nil {
		return nil, err
	}

	events, err := c.parseReservations(env, courseNames)
	if errors.Is(err, ErrNoReservations) {
		appLog.Debug("no reservations found", "space_id", spaceID, "date", dt)
		return nil, nil
	}
	return events, err
}

func (c *Client) parseReservations(env reservationEnvelope, courseNames map[string]string) ([]model.BookingEvent, error) {
	outer := bytes.TrimSpace(env.SpaceReservations)
	if len(outer) == 0 || outer[0] != '{' {
		return nil, ErrNoReservations
	}
	var inner struct {
		SpaceReservation json.RawMessage `json:"space_reservation"`
	}
	if err := json.Unmarshal(outer, &inner); err != nil {
		return nil, fmt.Errorf("booking: decode space_reservations: %w", err)
	}

	raw := bytes.TrimSpace(inner.SpaceReservation)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, ErrNoReservations
	}

	// A single reservation is sent as an object rather than a list.
	var list []reservation
	if raw[0] == '{' {
		var one reservation
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, fmt.Errorf("booking: decode reservation: %w", err)
		}
		list = []reservation{one}
	} else if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("booking: decode reservations: %w", err)
	}

	events := make([]model.BookingEvent, 0, len(list))
	for _, r := range list {
		if r.Event == nil {
			continue
		}
		if r.Event.Type == "closed" {
			continue
		}

		start, err := c.parseTime(r.Start)
		if err != nil {
			return nil, fmt.Errorf("booking: event %s start: %w", r.Event.Name, err)
		}
		end, err := c.parseTime(r.End)
		if err != nil {
			return nil, fmt.Errorf("booking: event %s end: %w", r.Event.Name, err)
		}

		var courseName string
		if m := courseNumberRe.FindAllStringSubmatch(r.Event.Name, -1); len(m) == 1 {
			courseName = courseNames[m[0][1]]
		}

		events = append(events, model.BookingEvent{
			ID:                r.Event.Name,
			Title:             r.Event.Title,
			State:             r.Event.State,
			Type:              r.Event.Type,
			Comment:           r.Comments,
			Start:             start,
			End:               end,
			MatchedCourseName: courseName,
		})
	}
	return events, nil
}

// parseTime keeps the wall-clock reading of s and places it in c.loc,
// discarding whatever offset the booking system attached.
func (c *Client) parseTime(s string) (time.Time, error) {
	for _, layout := range reservationLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, c.loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
