package temporal

import (
	"time"

	"github.com/julianstephens/keel/internal/models"
)

// Streak is the result of walking a counter's history.
type Streak struct {
	Current int
	Longest int
	Resets  int
}

// StreakStats walks day by day from start to today and measures runs of
// maintained days. A day is maintained unless the history marks it false;
// days after today are never visited.
//
// Runs are measured in elapsed days: a run that begins on day A and is
// broken by a reset on day B lasts B-A days, and the open run lasts
// today-A days. The reset day therefore begins the next run.
func StreakStats(start time.Time, history models.History, today time.Time) Streak {
	loc := today.Location()
	first := StartOfDay(start, loc)
	last := StartOfDay(today, loc)

	var s Streak
	if first.After(last) {
		return s
	}

	if maintained, ok := history[DateKey(first, loc)]; ok && !maintained {
		s.Resets++
	}

	run := 0
	for day := AddDays(first, 1); !day.After(last); day = AddDays(day, 1) {
		if maintained, ok := history[DateKey(day, loc)]; ok && !maintained {
			s.Resets++
			if run+1 > s.Longest {
				s.Longest = run + 1
			}
			run = 0
			continue
		}
		run++
	}

	if run > s.Longest {
		s.Longest = run
	}
	s.Current = run
	return s
}

// LongestStreak is StreakStats(...).Longest.
func LongestStreak(start time.Time, history models.History, today time.Time) int {
	return StreakStats(start, history, today).Longest
}

// CurrentStreak is StreakStats(...).Current.
func CurrentStreak(start time.Time, history models.History, today time.Time) int {
	return StreakStats(start, history, today).Current
}

// LastReset returns the latest reset day on or before today, if any.
func LastReset(start time.Time, history models.History, today time.Time) (time.Time, bool) {
	loc := today.Location()
	first := StartOfDay(start, loc)
	var latest time.Time
	found := false
	for key, maintained := range history {
		if maintained {
			continue
		}
		day, err := ParseDateKey(key, loc)
		if err != nil || day.Before(first) || day.After(today) {
			continue
		}
		if !found || day.After(latest) {
			latest = day
			found = true
		}
	}
	return latest, found
}
