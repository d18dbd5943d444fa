package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var clockRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

const dateLayout = "2006-01-02"

// Clock is a time of day in minutes after midnight.
type Clock int

// ParseClock parses "H:MM" or "HH:MM" (24h). "24:00" is accepted as end of day.
func ParseClock(raw string) (Clock, error) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return 0, fmt.Errorf("unable to parse clock time: %q", raw)
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if mm > 59 || h > 24 || (h == 24 && mm != 0) {
		return 0, fmt.Errorf("clock time out of range: %q", raw)
	}
	return Clock(h*60 + mm), nil
}

// String renders the clock as HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// On places the clock on the calendar day of date in loc as a wall-clock
// time. 24:00 is midnight of the following day.
func (c Clock) On(date time.Time, loc *time.Location) time.Time {
	y, mo, d := date.In(loc).Date()
	return time.Date(y, mo, d, int(c)/60, int(c)%60, 0, 0, loc)
}

// ClockOf returns the clock time of t as seen in loc.
func ClockOf(t time.Time, loc *time.Location) Clock {
	lt := t.In(loc)
	return Clock(lt.Hour()*60 + lt.Minute())
}

// ParseDate parses a YYYY-MM-DD calendar date as midnight in loc.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse date: %q", raw)
	}
	return d, nil
}

// FormatDate renders t as YYYY-MM-DD in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateLayout)
}
