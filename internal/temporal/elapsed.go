package temporal

import (
	"time"

	"github.com/julianstephens/keel/internal/models"
)

// Elapsed decomposes the time between start and now. Days/Hours/Minutes/
// Seconds split the raw duration; Years/Months/RemainingDays step whole
// calendar years and then months forward from start, so month lengths and
// leap years are honoured instead of averaged.
func Elapsed(start, now time.Time) models.Elapsed {
	var e models.Elapsed
	if !now.After(start) {
		return e
	}

	d := now.Sub(start)
	e.Days = int(d / (24 * time.Hour))
	d -= time.Duration(e.Days) * 24 * time.Hour
	e.Hours = int(d / time.Hour)
	d -= time.Duration(e.Hours) * time.Hour
	e.Minutes = int(d / time.Minute)
	d -= time.Duration(e.Minutes) * time.Minute
	e.Seconds = int(d / time.Second)

	for !start.AddDate(e.Years+1, 0, 0).After(now) {
		e.Years++
	}
	for !start.AddDate(e.Years, e.Months+1, 0).After(now) {
		e.Months++
	}
	anchor := start.AddDate(e.Years, e.Months, 0)
	e.RemainingDays = int(now.Sub(anchor) / (24 * time.Hour))

	return e
}

// WholeDaysSince returns the number of whole 24h periods between start and now.
func WholeDaysSince(start, now time.Time) int {
	if !now.After(start) {
		return 0
	}
	return int(now.Sub(start) / (24 * time.Hour))
}
