package temporal

import (
	"sort"
	"time"
)

// Interval is a [Start, End) span; a nil End is still running and ends at now.
type Interval struct {
	Start time.Time
	End   *time.Time
}

func (iv Interval) end(now time.Time) time.Time {
	if iv.End != nil {
		return *iv.End
	}
	return now
}

// dayWindow returns [midnight, next midnight) for the calendar day of day.
func dayWindow(day time.Time) (time.Time, time.Time) {
	start := StartOfDay(day, day.Location())
	return start, AddDays(start, 1)
}

func overlap(start, end, winStart, winEnd time.Time) time.Duration {
	lo := start
	if winStart.After(lo) {
		lo = winStart
	}
	hi := end
	if winEnd.Before(hi) {
		hi = winEnd
	}
	if !hi.After(lo) {
		return 0
	}
	return hi.Sub(lo)
}

// OverlapHours sums the hours each interval spends inside the target day.
func OverlapHours(intervals []Interval, day, now time.Time) float64 {
	winStart, winEnd := dayWindow(day)
	var total time.Duration
	for _, iv := range intervals {
		total += overlap(iv.Start, iv.end(now), winStart, winEnd)
	}
	return total.Hours()
}

// OverlapHoursBatch computes OverlapHours for many days in one pass over the
// intervals. The result is keyed by each day's date key in its location;
// several instants on the same date count that date once.
func OverlapHoursBatch(intervals []Interval, days []time.Time, now time.Time) map[string]float64 {
	type window struct {
		key        string
		start, end time.Time
	}

	totals := make(map[string]time.Duration, len(days))
	windows := make([]window, 0, len(days))
	for _, d := range days {
		k := DateKey(d, d.Location())
		if _, seen := totals[k]; seen {
			continue
		}
		totals[k] = 0
		s, e := dayWindow(d)
		windows = append(windows, window{key: k, start: s, end: e})
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].start.Before(windows[j].start) })

	for _, iv := range intervals {
		end := iv.end(now)
		// first window that ends after the interval starts
		i := sort.Search(len(windows), func(i int) bool { return windows[i].end.After(iv.Start) })
		for ; i < len(windows) && windows[i].start.Before(end); i++ {
			totals[windows[i].key] += overlap(iv.Start, end, windows[i].start, windows[i].end)
		}
	}

	out := make(map[string]float64, len(totals))
	for k, v := range totals {
		out[k] = v.Hours()
	}
	return out
}
