package practice

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/keel/internal/cli/clitest"
	"github.com/julianstephens/keel/internal/models"
)

func TestPracticeWeekDefaultsToCurrentPeriod(t *testing.T) {
	h := clitest.New(t)

	require.NoError(t, (&PracticeSetCmd{Slot: "MON", Content: "Read Seneca, letter 1"}).Run(h.Context))
	assert.Contains(t, h.Output(), "Saved week 42 mon")
	require.NoError(t, (&PracticeSetCmd{Slot: "review", Content: "Steady week"}).Run(h.Context))
	h.Output()

	require.NoError(t, (&PracticeWeekCmd{}).Run(h.Context))
	out := h.Output()
	assert.Contains(t, out, "Week 42")
	assert.Contains(t, out, "2026-10-12 to 2026-10-18")
	assert.Contains(t, out, "Read Seneca, letter 1")
	assert.Contains(t, out, "Steady week")
}

func TestPracticeHistoryAndDelete(t *testing.T) {
	h := clitest.New(t)

	require.NoError(t, (&PracticeHistoryCmd{}).Run(h.Context))
	assert.Contains(t, h.Output(), "No practice entries yet.")

	require.NoError(t, (&PracticeSetCmd{Slot: "tue", Content: "second", Period: 3}).Run(h.Context))
	require.NoError(t, (&PracticeSetCmd{Slot: "mon", Content: "first", Period: 1}).Run(h.Context))
	h.Output()

	require.NoError(t, (&PracticeHistoryCmd{}).Run(h.Context))
	out := h.Output()
	assert.Less(t, strings.Index(out, "Week 1"), strings.Index(out, "Week 3"))

	require.NoError(t, (&PracticeDeleteCmd{Slot: "tue", Period: 3}).Run(h.Context))
	repos, err := h.Repos()
	require.NoError(t, err)
	week, err := repos.Practice.EntriesForWeek(h.Ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, week)
}

func TestPracticeValidation(t *testing.T) {
	h := clitest.New(t)
	err := (&PracticeSetCmd{Slot: "sun", Content: "x"}).Run(h.Context)
	assert.ErrorIs(t, err, models.ErrInvalidSlot)

	err = (&PracticeSetCmd{Slot: "mon", Content: "x", Period: 53}).Run(h.Context)
	assert.ErrorIs(t, err, models.ErrInvalidPeriod)

	err = (&PracticeWeekCmd{Period: -1}).Run(h.Context)
	assert.ErrorIs(t, err, models.ErrInvalidPeriod)
}
