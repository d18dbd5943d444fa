package schedule

import (
	"strings"
	"time"

	"childcare-scheduling-backend/internal/parse"
)

func weekdays(start, end parse.Clock) []Entry {
	entries := make([]Entry, 0, 5)
	for d := time.Monday; d <= time.Friday; d++ {
		entries = append(entries, Entry{Day: d, Start: start, End: end})
	}
	return entries
}

var catalog = []Template{
	{
		Name:        "Traditional Work Week",
		Description: "Monday to Friday, 09:00-17:00",
		Entries:     weekdays(9*60, 17*60),
	},
	{
		Name:        "Early Bird",
		Description: "Monday to Friday, 06:30-15:00",
		Entries:     weekdays(6*60+30, 15*60),
	},
	{
		Name:        "Evening Care",
		Description: "Monday to Friday, 17:00-22:00",
		Entries:     weekdays(17*60, 22*60),
	},
	{
		Name:        "Weekend Care",
		Description: "Saturday and Sunday, 08:00-18:00",
		Entries: []Entry{
			{Day: time.Saturday, Start: 8 * 60, End: 18 * 60},
			{Day: time.Sunday, Start: 8 * 60, End: 18 * 60},
		},
	},
	{
		Name:        "Split Shift",
		Description: "Monday to Friday, 07:00-11:00 and 15:00-19:00",
		Entries:     append(weekdays(7*60, 11*60), weekdays(15*60, 19*60)...),
	},
}

// Catalog returns the built-in templates.
func Catalog() []Template {
	out := make([]Template, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a template by name, ignoring case and surrounding spaces.
func Lookup(name string) (Template, bool) {
	name = strings.TrimSpace(name)
	for _, t := range catalog {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Template{}, false
}
