package temporal

import (
	"time"

	"github.com/julianstephens/keel/internal/constants"
)

// PeriodMode selects how weekly periods are numbered.
type PeriodMode string

const (
	// PeriodCalendar numbers weeks from the week containing January 1.
	PeriodCalendar PeriodMode = constants.PeriodModeCalendar
	// PeriodPersonal numbers weeks from the week containing a chosen start date.
	PeriodPersonal PeriodMode = constants.PeriodModePersonal
)

// Valid reports whether m is a known mode.
func (m PeriodMode) Valid() bool {
	return m == PeriodCalendar || m == PeriodPersonal
}

// WeekStart returns midnight of the Monday that begins t's week, in t's location.
func WeekStart(t time.Time) time.Time {
	day := StartOfDay(t, t.Location())
	offset := (int(day.Weekday()) - int(constants.PeriodWeekStart) + 7) % 7
	return AddDays(day, -offset)
}

// ClampPeriod limits p to 1..MaxPeriod.
func ClampPeriod(p int) int {
	if p < 1 {
		return 1
	}
	if p > constants.MaxPeriod {
		return constants.MaxPeriod
	}
	return p
}

func periodAnchor(date time.Time, mode PeriodMode, personalStart time.Time) time.Time {
	if mode == PeriodPersonal && !personalStart.IsZero() {
		return WeekStart(personalStart.In(date.Location()))
	}
	jan1 := time.Date(date.Year(), time.January, 1, 0, 0, 0, 0, date.Location())
	return WeekStart(jan1)
}

// Period returns the 1-based week number of date. Both modes share the
// Monday week start so switching modes keeps numbers comparable. Personal
// mode without a start date falls back to calendar numbering.
func Period(date time.Time, mode PeriodMode, personalStart time.Time) int {
	anchor := periodAnchor(date, mode, personalStart)
	days := DaysBetween(anchor, WeekStart(date))
	weeks := days / 7
	if days < 0 && days%7 != 0 {
		weeks--
	}
	return ClampPeriod(weeks + 1)
}

// PeriodRange returns the [start, end) dates of period in the year or
// personal cycle that ref belongs to.
func PeriodRange(period int, mode PeriodMode, personalStart, ref time.Time) (time.Time, time.Time) {
	anchor := periodAnchor(ref, mode, personalStart)
	start := AddDays(anchor, (ClampPeriod(period)-1)*7)
	return start, AddDays(start, 7)
}
