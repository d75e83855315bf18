package domain

import "time"

// Working hours and days of the weekly schedule grid. Days run Monday through
// Saturday; hour slots run 07:00 through 18:00 (the 19:00 boundary is
// exclusive).
const (
	WorkHoursStart = 7
	WorkHoursEnd   = 19
	WorkDays       = 6
)

// WeekStart returns midnight of the Monday of the week containing t, in t's
// location.
func WeekStart(t time.Time) time.Time {
	days := int(t.Weekday()) - int(time.Monday)
	if days < 0 {
		days += 7
	}
	day := t.AddDate(0, 0, -days)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, t.Location())
}

// CellTimes resolves a (dayIndex, hour) grid cell against a week start into
// the task's scheduled window: the day at hour:00 plus one hour.
func CellTimes(weekStart time.Time, dayIndex, hour int) (start, end time.Time) {
	day := weekStart.AddDate(0, 0, dayIndex)
	start = time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, day.Location())
	return start, start.Add(time.Hour)
}

// CellForTime maps a scheduled start time to its grid cell within the given
// week. It returns ok=false for times outside the week or the working grid.
func CellForTime(weekStart time.Time, at time.Time) (dayIndex, hour int, ok bool) {
	at = at.In(weekStart.Location())
	delta := at.Sub(weekStart)
	if delta < 0 {
		return 0, 0, false
	}
	dayIndex = int(delta / (24 * time.Hour))
	if dayIndex >= WorkDays {
		return 0, 0, false
	}
	hour = at.Hour()
	if hour < WorkHoursStart || hour >= WorkHoursEnd {
		return 0, 0, false
	}
	return dayIndex, hour, true
}
