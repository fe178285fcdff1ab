package health

import (
	"regexp"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

const dayKeyLayout = "2006-01-02"

var dayKeyRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// loaded *time.Location values; LoadLocation reads the zoneinfo database on every call
var locations *lru.Cache

func init() {
	c, err := lru.New(128)
	if err != nil {
		panic(err)
	}
	locations = c
}

// LoadLocation resolves an IANA timezone name.
func LoadLocation(timezone string) (*time.Location, error) {
	tz := strings.TrimSpace(timezone)
	if tz == "" {
		return nil, Invalidf("timezone is required")
	}
	if v, ok := locations.Get(tz); ok {
		return v.(*time.Location), nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, Invalidf("invalid timezone %q", tz)
	}
	locations.Add(tz, loc)
	return loc, nil
}

// DayKey formats the calendar date of tsMs as seen in timezone.
func DayKey(tsMs int64, timezone string) (string, error) {
	loc, err := LoadLocation(timezone)
	if err != nil {
		return "", err
	}
	return time.UnixMilli(tsMs).In(loc).Format(dayKeyLayout), nil
}

func ValidDayKey(s string) bool {
	if !dayKeyRe.MatchString(s) {
		return false
	}
	_, err := time.Parse(dayKeyLayout, s)
	return err == nil
}

func ParseDayKey(s string) (time.Time, error) {
	if !dayKeyRe.MatchString(s) {
		return time.Time{}, Invalidf("Invalid day key format. Expected YYYY-MM-DD")
	}
	t, err := time.ParseInLocation(dayKeyLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, Invalidf("Invalid day key %q", s)
	}
	return t, nil
}

// AddDays shifts a day key by whole calendar days. The arithmetic runs on a UTC
// midnight so DST transitions in any zone cannot skip or repeat a date.
func AddDays(dayKey string, n int) (string, error) {
	t, err := ParseDayKey(dayKey)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(dayKeyLayout), nil
}

// MaxRangeDays bounds from..to spans for range summaries.
const MaxRangeDays = 366

// DayRange lists every day key from..to inclusive.
func DayRange(from, to string) ([]string, error) {
	start, err := ParseDayKey(from)
	if err != nil {
		return nil, err
	}
	end, err := ParseDayKey(to)
	if err != nil {
		return nil, err
	}
	if start.After(end) {
		return nil, Invalidf("from must be <= to")
	}
	if end.After(start.AddDate(0, 0, MaxRangeDays-1)) {
		return nil, Invalidf("range must span at most %d days", MaxRangeDays)
	}
	days := make([]string, 0, MaxRangeDays)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(dayKeyLayout))
	}
	return days, nil
}
