package engine

import "time"

// Windows are the time boundaries a turn's context is gathered over. All
// fetches cover [StartOfMonth, EndOfToday]; rendering splits that range into
// today (detailed) and the current week (summarized).
type Windows struct {
	StartOfToday time.Time
	EndOfToday   time.Time
	StartOfWeek  time.Time
	StartOfMonth time.Time
}

// ComputeWindows derives the boundaries from now in the user's timezone.
// Weeks start on Monday.
func ComputeWindows(now time.Time, tz *time.Location) Windows {
	local := now.In(tz)

	startOfToday := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, tz)

	weekday := int(local.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	startOfWeek := startOfToday.AddDate(0, 0, -(weekday - 1))

	return Windows{
		StartOfToday: startOfToday,
		EndOfToday:   startOfToday.AddDate(0, 0, 1),
		StartOfWeek:  startOfWeek,
		StartOfMonth: time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, tz),
	}
}
