package recurrence

import "time"

// DaysUntil returns how many days from `from` the next target ISO weekday is,
// in the range 0..6.
func DaysUntil(from time.Time, weekday int) int {
	return (weekday - ISOWeekday(from.Weekday()) + 7) % 7
}

// NextOccurrence returns the first instant strictly after now that falls on
// the given ISO weekday at hour:minute in now's location. An occurrence equal
// to now rolls to the following week.
func NextOccurrence(now time.Time, weekday, hour, minute int) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	days := DaysUntil(now, weekday)
	if days == 0 && !candidate.After(now) {
		days = 7
	}
	return candidate.AddDate(0, 0, days)
}
