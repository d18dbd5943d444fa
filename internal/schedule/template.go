// Package schedule expands named weekly templates into concrete candidate
// slots. It has no storage and performs no conflict checks; callers run its
// output through the availability service.
package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"childcare-scheduling-backend/internal/parse"
)

// Entry is one recurring window of a weekly template.
type Entry struct {
	Day   time.Weekday `json:"day"`
	Start parse.Clock  `json:"-"`
	End   parse.Clock  `json:"-"`
}

// Template is a named list of weekly windows.
type Template struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Entries     []Entry `json:"-"`
}

// Candidate is a concrete slot proposal produced by Expand.
type Candidate struct {
	Date     time.Time
	StartAt  time.Time
	EndAt    time.Time
	Capacity int
	Rate     decimal.Decimal
}

// DayFilter restricts expansion to a set of weekdays. A nil filter keeps every day.
type DayFilter map[time.Weekday]bool

// Allows reports whether d passes the filter.
func (f DayFilter) Allows(d time.Weekday) bool {
	return f == nil || f[d]
}

var dayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseDayFilter builds a filter from "all", "weekdays", "weekends" or day names.
// An empty input keeps every day.
func ParseDayFilter(values []string) (DayFilter, error) {
	if len(values) == 0 {
		return nil, nil
	}
	f := DayFilter{}
	for _, raw := range values {
		v := strings.ToLower(strings.TrimSpace(raw))
		switch v {
		case "all":
			return nil, nil
		case "weekdays":
			for d := time.Monday; d <= time.Friday; d++ {
				f[d] = true
			}
		case "weekends":
			f[time.Saturday] = true
			f[time.Sunday] = true
		default:
			d, ok := dayNames[v]
			if !ok {
				return nil, fmt.Errorf("unknown day %q", raw)
			}
			f[d] = true
		}
	}
	return f, nil
}

// WeekStart returns midnight of the Monday of the week containing date, in loc.
func WeekStart(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.In(loc).Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)
	offset := (int(day.Weekday()) + 6) % 7
	return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
}

// Expand maps every entry of t that passes days onto the week containing
// weekStart and stamps it with capacity and rate. Output is ordered by start.
func Expand(t Template, weekStart time.Time, loc *time.Location, capacity int, rate decimal.Decimal, days DayFilter) []Candidate {
	monday := WeekStart(weekStart, loc)
	y, m, d := monday.Date()

	out := make([]Candidate, 0, len(t.Entries))
	for _, e := range t.Entries {
		if !days.Allows(e.Day) {
			continue
		}
		offset := (int(e.Day) + 6) % 7
		date := time.Date(y, m, d+offset, 0, 0, 0, 0, loc)
		out = append(out, Candidate{
			Date:     date,
			StartAt:  e.Start.On(date, loc),
			EndAt:    e.End.On(date, loc),
			Capacity: capacity,
			Rate:     rate,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out
}
