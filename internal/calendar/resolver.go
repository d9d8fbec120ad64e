// Package calendar resolves the free-form date and time strings found in
// scheduling rows into comparable instants and calendar-day windows.
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultFormats is the fallback order used after ISO-8601 fails.
// Day-first formats come before month-first because the backend is Chilean.
var DefaultFormats = []string{"dd/MM/yyyy", "dd-MM-yyyy", "MM/dd/yyyy", "yyyy/MM/dd"}

var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Resolver parses dates in a fixed location with an ordered list of fallback formats.
type Resolver struct {
	loc     *time.Location
	layouts []string
}

// NewResolver builds a Resolver. formats use day/month/year tokens
// (dd, d, MM, M, yyyy, yy); an empty list selects DefaultFormats and a nil
// location selects time.Local.
func NewResolver(formats []string, loc *time.Location) (*Resolver, error) {
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	if loc == nil {
		loc = time.Local
	}

	layouts := make([]string, 0, len(formats))
	for _, f := range formats {
		l, err := Layout(f)
		if err != nil {
			return nil, err
		}
		layouts = append(layouts, l)
	}
	return &Resolver{loc: loc, layouts: layouts}, nil
}

// Location returns the resolver's time zone.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Layout translates a date-token pattern into a Go reference layout.
// Single and double day/month tokens both accept one or two digits.
func Layout(format string) (string, error) {
	var b strings.Builder
	seen := map[byte]bool{}
	for i := 0; i < len(format); {
		c := format[i]
		n := 1
		for i+n < len(format) && format[i+n] == c {
			n++
		}
		switch {
		case c == 'd' && n <= 2:
			b.WriteString("2")
		case c == 'M' && n <= 2:
			b.WriteString("1")
		case c == 'y' && n == 4:
			b.WriteString("2006")
		case c == 'y' && n == 2:
			b.WriteString("06")
		case c == 'd' || c == 'M' || c == 'y':
			return "", fmt.Errorf("unsupported token %q in date format %q", strings.Repeat(string(c), n), format)
		case (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			return "", fmt.Errorf("unsupported token %q in date format %q", strings.Repeat(string(c), n), format)
		default:
			b.WriteString(strings.Repeat(string(c), n))
		}
		if c == 'd' || c == 'M' || c == 'y' {
			seen[c] = true
		}
		i += n
	}
	if !seen['d'] || !seen['M'] || !seen['y'] {
		return "", fmt.Errorf("date format %q needs day, month and year", format)
	}
	return b.String(), nil
}

// ParseDate tries ISO-8601 first, then each fallback in order.
// The first successful parse wins. Results are expressed in the resolver's location.
func (r *Resolver) ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, l := range isoLayouts {
		if t, err := time.ParseInLocation(l, s, r.loc); err == nil {
			return t.In(r.loc), true
		}
	}
	for _, l := range r.layouts {
		if t, err := time.ParseInLocation(l, s, r.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseClock parses "H:mm", "HH:mm" or "HH:mm:ss" into minutes since midnight.
func ParseClock(s string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}

	h, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || m < 0 || m > 59 || len(strings.TrimSpace(parts[1])) != 2 {
		return 0, false
	}
	if len(parts) == 3 {
		sec, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil || sec < 0 || sec > 59 {
			return 0, false
		}
	}
	return h*60 + m, true
}

// StartOfDay returns midnight of t's calendar day in the resolver's location.
func (r *Resolver) StartOfDay(t time.Time) time.Time {
	t = t.In(r.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, r.loc)
}

// EndOfDay returns the last nanosecond of t's calendar day.
func (r *Resolver) EndOfDay(t time.Time) time.Time {
	return r.StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// SameDay reports whether date falls on ref's calendar day.
func (r *Resolver) SameDay(date, ref time.Time) bool {
	return !date.Before(r.StartOfDay(ref)) && !date.After(r.EndOfDay(ref))
}

// WithinNextDays reports whether date lies in [start of now's day, end of
// the day n days later], both bounds inclusive.
func (r *Resolver) WithinNextDays(date, now time.Time, n int) bool {
	start := r.StartOfDay(now)
	end := r.EndOfDay(start.AddDate(0, 0, n))
	return !date.Before(start) && !date.After(end)
}

// At combines a parsed date with a clock value. A missing clock keeps the
// date at midnight.
func (r *Resolver) At(date time.Time, clock string) time.Time {
	day := r.StartOfDay(date)
	if m, ok := ParseClock(clock); ok {
		return day.Add(time.Duration(m) * time.Minute)
	}
	return day
}
