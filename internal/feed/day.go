package feed

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Day is a calendar date without a time of day. The zero Day means "no date".
type Day struct {
	Year  int
	Month time.Month
	Date  int
}

var dayPattern = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)

// ParseDay parses a DD/MM/YYYY cell. It reports false for empty input, any
// other layout, and dates that do not exist (31/02/2024, 00/01/2020). Years
// below 100 are rejected as well.
func ParseDay(value string) (Day, bool) {
	if value == "" {
		return Day{}, false
	}
	m := dayPattern.FindStringSubmatch(value)
	if m == nil {
		return Day{}, false
	}
	d, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	y, _ := strconv.Atoi(m[3])
	if y < 100 {
		return Day{}, false
	}
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != mo || t.Day() != d {
		return Day{}, false
	}
	return Day{Year: y, Month: time.Month(mo), Date: d}, true
}

// DayOf returns the calendar day of t in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Date: d}
}

// IsZero reports whether d is the absent day.
func (d Day) IsZero() bool { return d == Day{} }

// Compare returns -1, 0 or +1. The absent day sorts before every real day.
func (d Day) Compare(o Day) int {
	switch {
	case d.Year != o.Year:
		return sign(d.Year - o.Year)
	case d.Month != o.Month:
		return sign(int(d.Month) - int(o.Month))
	default:
		return sign(d.Date - o.Date)
	}
}

// Before reports whether d is strictly earlier than o.
func (d Day) Before(o Day) bool { return d.Compare(o) < 0 }

// After reports whether d is strictly later than o.
func (d Day) After(o Day) bool { return d.Compare(o) > 0 }

// Time returns midnight of d in loc.
func (d Day) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Date, 0, 0, 0, 0, loc)
}

// String formats d as DD/MM/YYYY, or "" for the absent day.
func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%02d/%02d/%04d", d.Date, int(d.Month), d.Year)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
