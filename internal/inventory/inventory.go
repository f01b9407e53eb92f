package inventory

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"freeroom/internal/booking"
	"freeroom/internal/config"
	"freeroom/internal/courses"
	appLog "freeroom/internal/log"
	"freeroom/internal/model"
)

// MaxCapacity bounds every room capacity (exclusive).
const MaxCapacity = 9999

// Options carries the user-facing room settings from the config.
type Options struct {
	Categories []string
	Buildings  []string
	Favorites  []string
	Notes      map[string]string
	Overrides  []config.Override
}

// OptionsFromConfig extracts inventory settings from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Categories: cfg.Categories,
		Buildings:  cfg.Buildings,
		Favorites:  cfg.Favorites,
		Notes:      cfg.Notes,
		Overrides:  cfg.Overrides,
	}
}

// Build merges the booking-system spaces, the registrar listing and the
// rooms seen in the course schedule into one room list. Booking spaces come
// first in their listed order, then registrar-only rooms, then
// schedule-only rooms.
func Build(spaces []booking.Space, registrar []RegistrarRoom, scheduled []string, opts Options) ([]model.Room, error) {
	include := make(map[string]bool, len(opts.Buildings))
	for _, b := range opts.Buildings {
		include[b] = true
	}

	regLeft := make(map[string]RegistrarRoom, len(registrar))
	for _, r := range registrar {
		regLeft[r.Location] = r
	}
	socLeft := make(map[string]bool, len(scheduled))
	for _, loc := range scheduled {
		socLeft[loc] = true
	}

	rooms := make([]model.Room, 0, len(spaces)+len(registrar)+len(scheduled))

	for _, sp := range spaces {
		room := model.Room{
			Location:  sp.Name,
			Name:      sp.FullName,
			Category:  classifySpace(sp, regLeft, socLeft, include),
			Capacity:  sp.MaxCapacity,
			BookingID: sp.ID,
		}

		var comment strings.Builder
		if rr, ok := takeRegistrar(regLeft, sp); ok {
			room.Location = rr.Location
			room.Capacity = max(sp.MaxCapacity, rr.Capacity)
			if cat, ok := rr.category(); ok {
				room.Category = cat
			}
			comment.WriteString(rr.comment())
			comment.WriteString("\n")
		}
		if loc, ok := takeScheduled(socLeft, sp.Name, sp.FullName); ok {
			room.Location = loc
		}
		if len(sp.Features) > 0 {
			fmt.Fprintf(&comment, "Features: %s\n\n", strings.Join(sp.Features, ", "))
		}
		room.Comment = strings.TrimSpace(comment.String())
		rooms = append(rooms, room)
	}

	for _, rr := range sortedRegistrar(regLeft) {
		room := model.Room{
			Location: rr.Location,
			Name:     rr.Location,
			Category: "classroom",
			Capacity: rr.Capacity,
			Comment:  strings.TrimSpace(rr.comment()),
		}
		if cat, ok := rr.category(); ok {
			room.Category = cat
		}
		if loc, ok := takeScheduled(socLeft, rr.Location); ok {
			room.Location = loc
		}
		rooms = append(rooms, room)
	}

	for _, loc := range sortedKeys(socLeft) {
		rooms = append(rooms, model.Room{Location: loc, Name: loc, Category: "classroom"})
	}

	for i := range rooms {
		rooms[i].Notes = opts.Notes[rooms[i].Location]
		rooms[i].Favorite = slices.Contains(opts.Favorites, rooms[i].Location)
		if err := applyOverrides(&rooms[i], opts.Overrides); err != nil {
			return nil, err
		}
	}

	if err := validate(rooms, opts.Categories); err != nil {
		return nil, err
	}

	appLog.Info("room inventory built",
		"rooms", len(rooms),
		"booking_spaces", len(spaces),
		"registrar_rooms", len(registrar),
		"scheduled_rooms", len(scheduled),
	)
	return rooms, nil
}

// classifySpace picks a category for a booking-system space from its
// booking categories and names.
func classifySpace(sp booking.Space, reg map[string]RegistrarRoom, soc map[string]bool, include map[string]bool) string {
	hasCat := func(c string) bool { return slices.Contains(sp.Categories, c) }

	switch {
	case hasCat("Athletics"):
		return "athletics"
	case slices.ContainsFunc(sp.Categories, func(c string) bool { return strings.Contains(c, "Computing Services Lab") }):
		return "computer_lab"
	case hasCat("Registrar Classrooms"):
		return "classroom"
	}
	if _, ok := reg[sp.Name]; ok || soc[sp.Name] {
		return "classroom"
	}
	if parts := strings.Fields(sp.Name); len(parts) == 2 && courses.IncludeLocation(&parts[0], &parts[1], include) {
		return "classroom"
	}
	switch {
	case hasCat("Cohon University Center"), strings.HasPrefix(sp.Name, "Cohen University Center"):
		return "cuc"
	case strings.HasPrefix(sp.Name, "CUC STUDY ROOM"),
		strings.HasPrefix(sp.Name, "HBH INTERVIEW ROOM"),
		strings.HasPrefix(sp.FullName, "Tepper Breakout Room"),
		strings.HasPrefix(sp.FullName, "Tepper Interview Room"):
		return "study_room"
	case strings.Contains(sp.FullName, "Welcome Center"):
		return "admin"
	}
	return "other"
}

// takeRegistrar removes and returns the registrar room whose location
// appears in the space's name or full name. An exact name match wins over
// substring matches; among substring matches the longest location wins.
func takeRegistrar(left map[string]RegistrarRoom, sp booking.Space) (RegistrarRoom, bool) {
	if rr, ok := left[sp.Name]; ok {
		delete(left, sp.Name)
		return rr, true
	}
	var best string
	for loc := range left {
		if strings.Contains(sp.Name, loc) || strings.Contains(sp.FullName, loc) {
			if len(loc) > len(best) || (len(loc) == len(best) && loc < best) {
				best = loc
			}
		}
	}
	if best == "" {
		return RegistrarRoom{}, false
	}
	rr := left[best]
	delete(left, best)
	return rr, true
}

// takeScheduled removes and returns the schedule location contained in
// one of names, using the same preference as takeRegistrar.
func takeScheduled(left map[string]bool, names ...string) (string, bool) {
	var best string
	for loc := range left {
		for _, n := range names {
			if n == loc {
				delete(left, loc)
				return loc, true
			}
			if strings.Contains(n, loc) && (len(loc) > len(best) || (len(loc) == len(best) && loc < best)) {
				best = loc
			}
		}
	}
	if best == "" {
		return "", false
	}
	delete(left, best)
	return best, true
}

func applyOverrides(room *model.Room, overrides []config.Override) error {
	for _, o := range overrides {
		if o.Location != room.Location {
			continue
		}
		switch o.Field {
		case "category":
			room.Category = o.Value
		case "name":
			room.Name = o.Value
		case "notes":
			room.Notes = o.Value
		case "comment":
			room.Comment = o.Value
		case "capacity":
			n, err := strconv.Atoi(o.Value)
			if err != nil {
				return fmt.Errorf("inventory: override capacity for %s: %w", o.Location, err)
			}
			room.Capacity = n
		default:
			return fmt.Errorf("inventory: override for %s: unsupported field %q", o.Location, o.Field)
		}
	}
	return nil
}

func validate(rooms []model.Room, categories []string) error {
	for _, r := range rooms {
		if r.Capacity < 0 || r.Capacity >= MaxCapacity {
			return fmt.Errorf("inventory: %s: capacity %d out of range", r.Location, r.Capacity)
		}
		if !slices.Contains(categories, r.Category) {
			return fmt.Errorf("inventory: %s: unknown category %q", r.Location, r.Category)
		}
	}
	return nil
}

func sortedRegistrar(m map[string]RegistrarRoom) []RegistrarRoom {
	out := make([]RegistrarRoom, 0, len(m))
	for _, rr := range m {
		out = append(out, rr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Location < out[j].Location })
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
