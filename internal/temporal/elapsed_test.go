package temporal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/julianstephens/keel/internal/models"
)

func TestElapsed(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		now   time.Time
		want  models.Elapsed
	}{
		{
			name:  "mixed calendar span",
			start: time.Date(2023, time.March, 15, 8, 0, 0, 0, time.UTC),
			now:   time.Date(2024, time.May, 20, 9, 30, 15, 0, time.UTC),
			want: models.Elapsed{
				Days: 432, Hours: 1, Minutes: 30, Seconds: 15,
				Years: 1, Months: 2, RemainingDays: 5,
			},
		},
		{
			name:  "two calendar months across a leap february",
			start: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
			now:   time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
			want:  models.Elapsed{Days: 60, Months: 2},
		},
		{
			name:  "now before start",
			start: time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC),
			now:   time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
			want:  models.Elapsed{},
		},
		{
			name:  "under a day",
			start: time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC),
			now:   time.Date(2024, time.June, 1, 22, 5, 9, 0, time.UTC),
			want:  models.Elapsed{Hours: 12, Minutes: 5, Seconds: 9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Elapsed(tt.start, tt.now))
		})
	}
}

func TestElapsedDoesNotAverageMonths(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

	e := Elapsed(start, now)
	// 59 days / 30.44 would round down to one month.
	assert.Equal(t, 59, e.Days)
	assert.Equal(t, 2, e.Months)
	assert.Equal(t, 0, e.RemainingDays)
}

func TestWholeDaysSince(t *testing.T) {
	start := time.Date(2026, time.October, 5, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, 10, WholeDaysSince(start, today))
	assert.Equal(t, 0, WholeDaysSince(today, start))
}
