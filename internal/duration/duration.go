package duration

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDuration is wrapped by every ParseHours failure.
var ErrInvalidDuration = errors.New("invalid duration")

// Format renders the span between start and end as "<H>hr" or
// "<H>hr <M>min".
//
// The day is modelled as ending at 23:59, so a span ending at 23:59 whose
// minute count ends in 9 is rounded up by one minute.
func Format(start, end time.Time) string {
	total := int(end.Sub(start) / time.Minute)
	if total < 0 {
		total = 0
	}
	if end.Hour() == 23 && end.Minute() == 59 && total%10 == 9 {
		total++
	}

	hrs := total / 60
	mins := total % 60
	if mins == 0 {
		return fmt.Sprintf("%dhr", hrs)
	}
	return fmt.Sprintf("%dhr %dmin", hrs, mins)
}

// suffixes are checked longest first so "hrs" is not read as "s".
var suffixes = []struct {
	suffix string
	perHour float64
}{
	{"mins", 60},
	{"min", 60},
	{"hrs", 1},
	{"hr", 1},
	{"h", 1},
	{"m", 60},
}

// ParseHours parses a human duration into hours. It accepts a bare number
// of hours ("1.5"), a number with an hour suffix (h, hr, hrs) or a minute
// suffix (m, min, mins), and space-separated combinations such as
// "1hr 30min".
func ParseHours(text string) (float64, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, text)
	}

	var hours float64
	for _, f := range fields {
		h, err := parsePart(f)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, text)
		}
		hours += h
	}
	return hours, nil
}

func parsePart(s string) (float64, error) {
	if v, err := parseNumber(s); err == nil {
		return v, nil
	}

	lower := strings.ToLower(s)
	for _, sfx := range suffixes {
		if !strings.HasSuffix(lower, sfx.suffix) {
			continue
		}
		v, err := parseNumber(strings.TrimSpace(lower[:len(lower)-len(sfx.suffix)]))
		if err != nil {
			return 0, err
		}
		return v / sfx.perHour, nil
	}
	return 0, ErrInvalidDuration
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrInvalidDuration
	}
	return v, nil
}

// Hours converts a fractional hour count into a time.Duration, rounded to
// the second.
func Hours(h float64) time.Duration {
	return (time.Duration(h*float64(time.Hour)) + time.Second/2).Truncate(time.Second)
}
