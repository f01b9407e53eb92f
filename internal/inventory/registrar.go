package inventory

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"freeroom/internal/courses"
)

// RegistrarRoom is one row of the registrar's classroom listing.
type RegistrarRoom struct {
	Location   string
	Department string
	Name       string
	Capacity   int
	Type       string
}

// LoadRegistrar reads the registrar CSV at path, keeping rows whose
// location passes the course-schedule include rules for buildings.
func LoadRegistrar(path string, buildings []string) ([]RegistrarRoom, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("inventory: open registrar file: %w", err)
	}
	defer f.Close()
	return ParseRegistrar(f, buildings)
}

// ParseRegistrar reads CSV with a header naming at least building and
// room; department, name, capacity and type are optional. Capacities like
// "40+" read as 40. The result is sorted by location.
func ParseRegistrar(r io.Reader, buildings []string) ([]RegistrarRoom, error) {
	include := make(map[string]bool, len(buildings))
	for _, b := range buildings {
		include[b] = true
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("inventory: registrar header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["building"]; !ok {
		return nil, errors.New("inventory: registrar file has no building column")
	}
	if _, ok := col["room"]; !ok {
		return nil, errors.New("inventory: registrar file has no room column")
	}

	byLoc := make(map[string]RegistrarRoom)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("inventory: registrar line %d: %w", line, err)
		}
		field := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		building, room := field("building"), field("room")
		if building == "" || room == "" {
			continue
		}
		if !courses.IncludeLocation(&building, &room, include) {
			continue
		}

		capacity, err := parseCapacity(field("capacity"))
		if err != nil {
			return nil, fmt.Errorf("inventory: registrar line %d: %w", line, err)
		}
		dept := field("department")
		if dept == "" {
			dept = "UNKNOWN"
		}
		typ := field("type")
		if typ == "" {
			typ = "UNKNOWN"
		}

		loc := building + " " + room
		byLoc[loc] = RegistrarRoom{
			Location:   loc,
			Department: dept,
			Name:       field("name"),
			Capacity:   capacity,
			Type:       typ,
		}
	}

	out := make([]RegistrarRoom, 0, len(byLoc))
	for _, rr := range byLoc {
		out = append(out, rr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Location < out[j].Location })
	return out, nil
}

func parseCapacity(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSuffix(s, "+"))
	if err != nil {
		return 0, fmt.Errorf("capacity %q: %w", s, err)
	}
	return n, nil
}

// category maps a registrar room type to a room category. ok is false for
// types that say nothing about the room's use.
func (r RegistrarRoom) category() (cat string, ok bool) {
	switch t := r.Type; {
	case t == "COMPUTER LAB":
		return "computer_lab", true
	case t == "CLASSROOM", t == "LEARNING HALL", t == "AUDITORIUM":
		return "classroom", true
	case strings.HasPrefix(t, "LAB"), strings.HasPrefix(t, "WET LAB"):
		return "lab", true
	case t == "SPECIALTY SHOP":
		return "special_lab", true
	case strings.HasPrefix(t, "STUDIO"), strings.HasPrefix(t, "THEATRE"):
		return "studio", true
	}
	return "", false
}

// comment renders the registrar details shown with a room.
func (r RegistrarRoom) comment() string {
	var b strings.Builder
	if len(r.Name) > 1 {
		fmt.Fprintf(&b, "Registrar Name: %s\n", r.Name)
	}
	if r.Type != "" {
		fmt.Fprintf(&b, "Registrar Category: %s\n", r.Type)
	}
	if r.Department != "" {
		fmt.Fprintf(&b, "Registrar Department: %s\n", r.Department)
	}
	return b.String()
}
