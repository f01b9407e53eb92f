package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Space is a bookable location as listed by the booking system.
type Space struct {
	ID              int
	Name            string
	FullName        string
	Categories      []string
	Features        []string
	Layouts         []string
	DefaultCapacity int
	MaxCapacity     int
}

type listData struct {
	Cols []struct {
		Name     string `json:"name"`
		PrefName string `json:"prefname"`
	} `json:"cols"`
	Rows []struct {
		Row []json.RawMessage `json:"row"`
	} `json:"rows"`
}

type itemCell struct {
	ItemID   json.Number `json:"itemId"`
	ItemName string      `json:"itemName"`
}

const spacesPath = "/list/listdata.json?compsubject=location&order=asc&sort=name&page=1&page_size=999" +
	"&obj_cache_accl=0&max_capacity=9999999&caller=pro-ListService.getData"

// ListSpaces returns every space known to the booking system.
func (c *Client) ListSpaces(ctx context.Context) ([]Space, error) {
	var data listData
	if err := c.get(ctx, spacesPath, &data); err != nil {
		return nil, err
	}
	return parseSpaces(data)
}

func parseSpaces(data listData) ([]Space, error) {
	cols := make([]string, len(data.Cols))
	for i, col := range data.Cols {
		cols[i] = col.Name
		if col.PrefName != "" {
			cols[i] = col.PrefName
		}
	}

	spaces := make([]Space, 0, len(data.Rows))
	for n, r := range data.Rows {
		cells := make(map[string]json.RawMessage, len(cols))
		for i, raw := range r.Row {
			if i < len(cols) {
				cells[cols[i]] = raw
			}
		}

		var item itemCell
		if err := json.Unmarshal(cells["name"], &item); err != nil {
			return nil, fmt.Errorf("booking: space row %d: name cell: %w", n, err)
		}
		id, err := strconv.Atoi(item.ItemID.String())
		if err != nil {
			return nil, fmt.Errorf("booking: space row %d: item id %q: %w", n, item.ItemID, err)
		}

		name := collapse(item.ItemName)
		fullName := name
		if raw, ok := cells["formal_name"]; ok {
			if v := collapse(cellString(raw)); v != "" {
				fullName = v
			}
		}

		spaces = append(spaces, Space{
			ID:              id,
			Name:            name,
			FullName:        fullName,
			Categories:      splitList(cellString(cells["categories"])),
			Features:        splitList(cellString(cells["features"])),
			Layouts:         splitList(cellString(cells["layouts"])),
			DefaultCapacity: cellInt(cells["default_capacity"]),
			MaxCapacity:     cellInt(cells["max_capacity"]),
		})
	}
	return spaces, nil
}

// cellString renders a raw list cell as text. Missing or null cells are "".
func cellString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var item itemCell
	if err := json.Unmarshal(raw, &item); err == nil && item.ItemName != "" {
		return item.ItemName
	}
	return string(raw)
}

func cellInt(raw json.RawMessage) int {
	n, err := strconv.Atoi(strings.TrimSpace(cellString(raw)))
	if err != nil {
		return 0
	}
	return n
}

// splitList splits a comma-separated cell, dropping entries of one
// character or less.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = collapse(part)
		if len(part) > 1 {
			out = append(out, part)
		}
	}
	return out
}
