package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"freeroom/internal/avail"
	"freeroom/internal/config"
	"freeroom/internal/duration"
	"freeroom/internal/model"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true)
	shortStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	freeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// asciiBorder is used when fancy tables are turned off.
var asciiBorder = lipgloss.Border{
	Top: "-", Bottom: "-", Left: "|", Right: "|",
	TopLeft: "+", TopRight: "+", BottomLeft: "+", BottomRight: "+",
	MiddleLeft: "+", MiddleRight: "+", Middle: "+", MiddleTop: "+", MiddleBottom: "+",
}

// Options shapes terminal output.
type Options struct {
	Fancy bool
	Stars bool
	// MaxWidth caps the width of free-text columns.
	MaxWidth int
	// MinAvailable marks shorter free periods in red.
	MinAvailable time.Duration
}

// OptionsFromConfig maps the display section of the config.
func OptionsFromConfig(d config.DisplayConfig) Options {
	return Options{
		Fancy:        d.FancyTable,
		Stars:        d.ShowStars,
		MaxWidth:     d.MaxWidth,
		MinAvailable: time.Duration(d.MinAvailableMinutes) * time.Minute,
	}
}

func (o Options) newTable(headers ...string) *table.Table {
	border := asciiBorder
	if o.Fancy {
		border = lipgloss.RoundedBorder()
	}
	styled := make([]string, len(headers))
	for i, h := range headers {
		styled[i] = headerStyle.Render(h)
	}
	return table.New().
		Border(border).
		BorderStyle(mutedStyle).
		StyleFunc(func(row, col int) lipgloss.Style { return cellStyle }).
		Headers(styled...)
}

// truncate shortens s to the column budget derived from MaxWidth.
func (o Options) truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	limit := o.MaxWidth / 3
	if limit < 8 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

// CategoryTitle turns "computer_lab" into "Computer Lab".
func CategoryTitle(cat string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(cat, "_", " "))
}

func capacity(n int) string {
	if n < 1 {
		return "?"
	}
	return strconv.Itoa(n)
}

func (o Options) roomLabel(r model.Room) string {
	if o.Stars && r.Favorite {
		return "★ " + r.Location
	}
	return r.Location
}

// Results prints the ranked rooms answering q.
func Results(w io.Writer, res avail.Result, q avail.Query, o Options) error {
	headers := []string{"Room"}
	if res.ShowCategory {
		headers = append(headers, "Category")
	}
	headers = append(headers, "Capacity", "Free For", "Previous Event", "Ended")
	if q.Verbose {
		headers = append(headers, "Status")
	}

	t := o.newTable(headers...)
	for _, c := range res.Candidates {
		row := []string{o.roomLabel(c.Room)}
		if res.ShowCategory {
			row = append(row, CategoryTitle(c.Room.Category))
		}

		free := duration.Format(q.Start, c.Free.End)
		if c.Free.End.Sub(q.Start) < o.MinAvailable {
			free = shortStyle.Render(free)
		}

		row = append(row,
			capacity(c.Room.Capacity),
			free,
			o.truncate(c.Preceding.Name),
			c.Preceding.End.Format("15:04"),
		)
		if q.Verbose {
			row = append(row, c.Preceding.Status)
		}
		t.Row(row...)
	}

	title := fmt.Sprintf("Rooms free %s, %s - %s",
		q.Date.Format("Mon Jan 2"), q.Start.Format("15:04"), q.End.Format("15:04"))
	if _, err := fmt.Fprintln(w, headerStyle.Render(title)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, t.String()); err != nil {
		return err
	}
	return Failures(w, res.Failed)
}

// Failures lists rooms skipped during a query, if any.
func Failures(w io.Writer, failed []avail.RoomError) error {
	for _, f := range failed {
		if _, err := fmt.Fprintln(w, warnStyle.Render("skipped "+f.Error())); err != nil {
			return err
		}
	}
	return nil
}

// Timeline prints one room's day as a table of blocks.
func Timeline(w io.Writer, room model.Room, blocks []model.Block, o Options) error {
	t := o.newTable("Start", "End", "Length", "Status", "Event")
	for _, b := range blocks {
		status, name := b.Status, o.truncate(b.Name)
		if b.Available {
			status, name = freeStyle.Render("Free"), ""
		}
		t.Row(
			b.Start.Format("15:04"),
			b.End.Format("15:04"),
			duration.Format(b.Start, b.End),
			status,
			name,
		)
	}

	title := room.Location
	if room.Name != "" && room.Name != room.Location {
		title += " (" + room.Name + ")"
	}
	if _, err := fmt.Fprintln(w, headerStyle.Render(title)); err != nil {
		return err
	}
	if room.Notes != "" {
		if _, err := fmt.Fprintln(w, mutedStyle.Render(room.Notes)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}

// Rooms prints the room inventory.
func Rooms(w io.Writer, rooms []model.Room, o Options) error {
	t := o.newTable("Room", "Name", "Category", "Capacity", "Bookable")
	for _, r := range rooms {
		bookable := "no"
		if r.HasBookingID() {
			bookable = "yes"
		}
		t.Row(o.roomLabel(r), o.truncate(r.Name), CategoryTitle(r.Category), capacity(r.Capacity), bookable)
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}
