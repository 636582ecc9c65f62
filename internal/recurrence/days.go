package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ISO weekdays: 1 = Monday ... 7 = Sunday. DaysOfWeek masks are indexed by
// ISO weekday minus one.

var dayNames = map[string]int{
	"MO": 1,
	"TU": 2,
	"WE": 3,
	"TH": 4,
	"FR": 5,
	"SA": 6,
	"SU": 7,
}

var dayAbbrev = [7]string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}

// ISOWeekday converts a time.Weekday to its ISO number.
func ISOWeekday(wd time.Weekday) int {
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}

// ParseDays parses a day list like "MO,WE,FR" into a Monday-first mask.
// The shorthands "daily", "weekdays" and "weekends" are accepted, as is
// an empty string (no days).
func ParseDays(s string) ([7]bool, error) {
	var mask [7]bool
	s = strings.TrimSpace(s)

	switch strings.ToLower(s) {
	case "", "none":
		return mask, nil
	case "daily":
		for i := range mask {
			mask[i] = true
		}
		return mask, nil
	case "weekdays":
		for i := 0; i < 5; i++ {
			mask[i] = true
		}
		return mask, nil
	case "weekends":
		mask[5], mask[6] = true, true
		return mask, nil
	}

	for _, part := range strings.Split(s, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if len(part) > 2 {
			part = part[:2]
		}
		iso, ok := dayNames[part]
		if !ok {
			return mask, fmt.Errorf("unknown day: %q", part)
		}
		mask[iso-1] = true
	}
	return mask, nil
}

// FormatDays renders a mask back to "MO,WE,FR" form.
func FormatDays(mask [7]bool) string {
	var days []string
	for i, on := range mask {
		if on {
			days = append(days, dayAbbrev[i])
		}
	}
	return strings.Join(days, ",")
}

// ParseClock parses a 24-hour "HH:MM" string.
func ParseClock(s string) (hour, minute int, err error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	hour, err = strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}
