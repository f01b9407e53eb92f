package avail

import (
	"errors"
	"fmt"
	"strings"

	"freeroom/internal/model"
)

// ErrNoMatchingRooms is returned by Select when the filters leave nothing.
var ErrNoMatchingRooms = errors.New("no rooms match the given filters")

// Filter narrows the room inventory before availability is checked.
type Filter struct {
	// Categories is a list of category names. "default" expands to
	// DefaultCategories; "all" disables category filtering.
	Categories        []string
	DefaultCategories []string

	// MinCapacity drops rooms with a known capacity below it. Rooms with
	// capacity < 1 are treated as unknown and always kept.
	MinCapacity int

	// Keyword is matched case-insensitively against location, name and notes.
	Keyword string

	RequireBookingID bool
	FavoritesOnly    bool
}

// MarkFavorites sets Favorite on every room from isFavorite, replacing the
// flag stored when the snapshot was taken. rooms is updated in place.
func MarkFavorites(rooms []model.Room, isFavorite func(location string) bool) []model.Room {
	for i := range rooms {
		rooms[i].Favorite = isFavorite(rooms[i].Location)
	}
	return rooms
}

// ParseCategories splits a comma-separated category flag.
func ParseCategories(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ",") {
		c = strings.TrimSpace(c)
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Select applies f to rooms, preserving input order.
func Select(rooms []model.Room, f Filter) ([]model.Room, error) {
	if len(rooms) == 0 {
		return nil, fmt.Errorf("%w: room inventory is empty, run update first", ErrNoMatchingRooms)
	}

	wanted := make(map[string]bool)
	all := len(f.Categories) == 0
	for _, c := range f.Categories {
		switch c {
		case "all":
			all = true
		case "default":
			for _, d := range f.DefaultCategories {
				wanted[d] = true
			}
		default:
			wanted[c] = true
		}
	}

	inCategory := make([]model.Room, 0, len(rooms))
	for _, r := range rooms {
		if all || wanted[r.Category] {
			inCategory = append(inCategory, r)
		}
	}
	if len(inCategory) == 0 {
		return nil, fmt.Errorf("%w: invalid category or no rooms in %s", ErrNoMatchingRooms, strings.Join(f.Categories, ","))
	}

	keyword := strings.ToLower(f.Keyword)
	out := make([]model.Room, 0, len(inCategory))
	for _, r := range inCategory {
		if r.Capacity >= 1 && r.Capacity < f.MinCapacity {
			continue
		}
		if keyword != "" && !strings.Contains(strings.ToLower(r.Location+r.Name+r.Notes), keyword) {
			continue
		}
		if f.RequireBookingID && !r.HasBookingID() {
			continue
		}
		if f.FavoritesOnly && !r.Favorite {
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no rooms with given capacity and filter keywords", ErrNoMatchingRooms)
	}

	return out, nil
}
