package temporal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(day, hour int) time.Time {
	// October 2026: the 12th is a Monday.
	return time.Date(2026, time.October, day, hour, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestOverlapHoursScenario(t *testing.T) {
	sessions := []Interval{
		{Start: at(12, 22), End: ptr(at(13, 6))},
		{Start: at(13, 12), End: ptr(at(13, 14))},
	}
	tuesday := at(13, 0)

	assert.InDelta(t, 8.0, OverlapHours(sessions, tuesday, at(20, 0)), 1e-9)
	assert.InDelta(t, 2.0, OverlapHours(sessions, at(12, 0), at(20, 0)), 1e-9)
}

func TestOverlapHoursBounds(t *testing.T) {
	day := at(14, 0)
	now := at(20, 0)

	outside := []Interval{{Start: at(10, 1), End: ptr(at(11, 5))}}
	assert.Equal(t, 0.0, OverlapHours(outside, day, now))

	touching := []Interval{{Start: at(13, 0), End: ptr(at(14, 0))}}
	assert.Equal(t, 0.0, OverlapHours(touching, day, now))

	containing := []Interval{{Start: at(13, 5), End: ptr(at(16, 0))}}
	assert.Equal(t, 24.0, OverlapHours(containing, day, now))

	exact := []Interval{{Start: at(14, 0), End: ptr(at(15, 0))}}
	assert.Equal(t, 24.0, OverlapHours(exact, day, now))
}

func TestOverlapHoursOpenInterval(t *testing.T) {
	open := []Interval{{Start: at(14, 9)}}
	assert.InDelta(t, 3.0, OverlapHours(open, at(14, 0), at(14, 12)), 1e-9)
	assert.Equal(t, 0.0, OverlapHours(open, at(15, 0), at(14, 12)))
}

func TestOverlapHoursDisjointSumsMatch(t *testing.T) {
	a := Interval{Start: at(13, 1), End: ptr(at(13, 5))}
	b := Interval{Start: at(13, 20), End: ptr(at(14, 3))}
	day := at(13, 0)
	now := at(20, 0)

	separate := OverlapHours([]Interval{a}, day, now) + OverlapHours([]Interval{b}, day, now)
	together := OverlapHours([]Interval{a, b}, day, now)
	assert.InDelta(t, separate, together, 1e-9)
	assert.InDelta(t, 8.0, together, 1e-9)
}

func TestOverlapHoursBatchMatchesSingle(t *testing.T) {
	sessions := []Interval{
		{Start: at(10, 20), End: ptr(at(12, 4))},
		{Start: at(12, 22), End: ptr(at(13, 6))},
		{Start: at(13, 12), End: ptr(at(13, 14))},
		{Start: at(15, 18)},
	}
	now := at(16, 2)

	var days []time.Time
	for d := 16; d >= 9; d-- {
		days = append(days, at(d, 0))
	}

	batch := OverlapHoursBatch(sessions, days, now)
	assert.Len(t, batch, len(days))
	for _, d := range days {
		assert.InDelta(t, OverlapHours(sessions, d, now), batch[key(d)], 1e-9, "day %s", key(d))
	}
	assert.InDelta(t, 8.0, batch["2026-10-13"], 1e-9)
	assert.Equal(t, 0.0, batch["2026-10-09"])

	t.Run("same date twice", func(t *testing.T) {
		overnight := []Interval{{Start: at(13, 22), End: ptr(at(14, 6))}}
		batch := OverlapHoursBatch(overnight, []time.Time{at(14, 0), at(14, 3)}, now)
		assert.Len(t, batch, 1)
		assert.InDelta(t, OverlapHours(overnight, at(14, 0), now), batch["2026-10-14"], 1e-9)
		assert.InDelta(t, 6.0, batch["2026-10-14"], 1e-9)
	})
}
