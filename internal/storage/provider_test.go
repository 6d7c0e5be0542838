package storage_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/keel/internal/models"
	"github.com/julianstephens/keel/internal/storage"
	"github.com/julianstephens/keel/internal/storage/kv"
	"github.com/julianstephens/keel/internal/storage/sqlite"
)

var base = time.Date(2026, time.October, 1, 8, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

type backendFactory func(t *testing.T) storage.Provider

func newSQLite(t *testing.T) storage.Provider {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "keel.db"))
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { store.Close() })
	return store
}

func newKV(t *testing.T) storage.Provider {
	t.Helper()
	p := kv.NewProvider(kv.NewStore(filepath.Join(t.TempDir(), "keel.kv.json")))
	require.NoError(t, p.Init(context.Background()))
	return p
}

// forEachBackend runs fn once per backend so both are held to the same contract.
func forEachBackend(t *testing.T, fn func(t *testing.T, p storage.Provider)) {
	backends := map[string]backendFactory{
		"sqlite": newSQLite,
		"kv":     newKV,
	}
	for name, factory := range backends {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func sampleCounter(id string, order int) models.Counter {
	return models.Counter{
		ID:                 id,
		DisplayName:        "Counter " + id,
		StartDate:          base,
		CurrentStreakStart: base,
		OrderIndex:         order,
		CreatedAt:          base.Add(time.Duration(order) * time.Minute),
		UpdatedAt:          base,
	}
}

func TestSettings(t *testing.T) {
	forEachBackend(t, func(t *testing.T, p storage.Provider) {
		ctx := context.Background()

		_, ok, err := p.GetSetting(ctx, "theme_mode")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, p.SetSetting(ctx, "theme_mode", json.RawMessage(`"dark"`)))
		require.NoError(t, p.SetSetting(ctx, "compact_view", json.RawMessage(`true`)))
		require.NoError(t, p.SetSetting(ctx, "theme_mode", json.RawMessage(`"light"`)))

		v, ok, err := p.GetSetting(ctx, "theme_mode")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.JSONEq(t, `"light"`, string(v))

		all, err := p.ListSettings(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "compact_view", all[0].Key)
		assert.Equal(t, "theme_mode", all[1].Key)

		require.NoError(t, p.DeleteSetting(ctx, "theme_mode"))
		_, ok, err = p.GetSetting(ctx, "theme_mode")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestCounters(t *testing.T) {
	forEachBackend(t, func(t *testing.T, p storage.Provider) {
		ctx := context.Background()

		b := sampleCounter("b", 1)
		a := sampleCounter("a", 0)
		a.PrivateName = strPtr("secret")
		a.LastRenewalAt = timePtr(base.Add(time.Hour))
		require.NoError(t, p.AddCounter(ctx, b))
		require.NoError(t, p.AddCounter(ctx, a))

		err := p.AddCounter(ctx, a)
		assert.ErrorIs(t, err, models.ErrDuplicateID)

		all, err := p.GetCounters(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "a", all[0].ID, "counters are ordered by order index")
		assert.Equal(t, a, all[0])

		got, err := p.GetCounter(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "secret", *got.PrivateName)
		assert.True(t, got.LastRenewalAt.Equal(base.Add(time.Hour)))

		got.DisplayName = "Renamed"
		got.PrivateName = nil
		require.NoError(t, p.UpdateCounter(ctx, got))
		got, err = p.GetCounter(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.DisplayName)
		assert.Nil(t, got.PrivateName)

		_, err = p.GetCounter(ctx, "missing")
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.ErrorIs(t, p.UpdateCounter(ctx, sampleCounter("missing", 0)), models.ErrNotFound)
		assert.ErrorIs(t, p.DeleteCounter(ctx, "missing"), models.ErrNotFound)
	})
}

func TestCounterHistoryCascade(t *testing.T) {
	forEachBackend(t, func(t *testing.T, p storage.Provider) {
		ctx := context.Background()
		require.NoError(t, p.AddCounter(ctx, sampleCounter("c", 0)))

		require.NoError(t, p.SetCounterDay(ctx, "c", "2026-10-03", false))
		require.NoError(t, p.SetCounterDay(ctx, "c", "2026-10-04", true))
		require.NoError(t, p.SetCounterDay(ctx, "c", "2026-10-04", false))

		h, err := p.GetCounterHistory(ctx, "c")
		require.NoError(t, err)
		assert.Equal(t, models.History{"2026-10-03": false, "2026-10-04": false}, h)

		require.NoError(t, p.DeleteCounterDay(ctx, "c", "2026-10-03"))
		h, err = p.GetCounterHistory(ctx, "c")
		require.NoError(t, err)
		assert.Equal(t, models.History{"2026-10-04": false}, h)

		assert.ErrorIs(t, p.SetCounterDay(ctx, "missing", "2026-10-03", false), models.ErrNotFound)

		require.NoError(t, p.DeleteCounter(ctx, "c"))
		h, err = p.GetCounterHistory(ctx, "c")
		require.NoError(t, err)
		assert.Empty(t, h, "history goes with its counter")

		// A new counter reusing the id starts clean.
		require.NoError(t, p.AddCounter(ctx, sampleCounter("c", 0)))
		h, err = p.GetCounterHistory(ctx, "c")
		require.NoError(t, err)
		assert.Empty(t, h)
	})
}

func TestSessions(t *testing.T) {
	forEachBackend(t, func(t *testing.T, p storage.Provider) {
		ctx := context.Background()

		closed := models.Session{
			ID: "s1", Kind: "fasting", StartAt: base, EndAt: timePtr(base.Add(16 * time.Hour)),
			CreatedAt: base, UpdatedAt: base,
		}
		open := models.Session{
			ID: "s2", Kind: "fasting", StartAt: base.Add(48 * time.Hour), Notes: strPtr("water only"),
			CreatedAt: base, UpdatedAt: base,
		}
		other := models.Session{
			ID: "s3", Kind: "sleep", StartAt: base.Add(24 * time.Hour), CreatedAt: base, UpdatedAt: base,
		}
		require.NoError(t, p.AddSession(ctx, closed))
		require.NoError(t, p.AddSession(ctx, open))
		require.NoError(t, p.AddSession(ctx, other), "open sessions of different kinds coexist")

		second := models.Session{ID: "s4", Kind: "fasting", StartAt: base.Add(50 * time.Hour), CreatedAt: base, UpdatedAt: base}
		assert.ErrorIs(t, p.AddSession(ctx, second), models.ErrOpenSessionExists)
		assert.ErrorIs(t, p.AddSession(ctx, closed), models.ErrDuplicateID)

		fasts, err := p.GetSessions(ctx, "fasting")
		require.NoError(t, err)
		require.Len(t, fasts, 2)
		assert.Equal(t, "s2", fasts[0].ID, "newest first")
		assert.Equal(t, open, fasts[0])

		all, err := p.GetSessions(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 3)

		active, err := p.GetOpenSession(ctx, "fasting")
		require.NoError(t, err)
		assert.Equal(t, "s2", active.ID)

		// Reopening the closed session would create a second open fast.
		reopened := closed
		reopened.EndAt = nil
		assert.ErrorIs(t, p.UpdateSession(ctx, reopened), models.ErrOpenSessionExists)

		active.EndAt = timePtr(active.StartAt.Add(12 * time.Hour))
		require.NoError(t, p.UpdateSession(ctx, active))
		_, err = p.GetOpenSession(ctx, "fasting")
		assert.ErrorIs(t, err, models.ErrNotFound)

		require.NoError(t, p.DeleteSession(ctx, "s1"))
		_, err = p.GetSession(ctx, "s1")
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.ErrorIs(t, p.DeleteSession(ctx, "s1"), models.ErrNotFound)
	})
}

func TestEntries(t *testing.T) {
	forEachBackend(t, func(t *testing.T, p storage.Provider) {
		ctx := context.Background()

		morning := models.Entry{
			ID: "e1", Type: "checkin", Day: "2026-10-01", CreatedAt: base, UpdatedAt: base,
			Fields: map[string]any{"mood": float64(4), "note": "ok"},
		}
		evening := models.Entry{
			ID: "e2", Type: "checkin", Day: "2026-10-01", CreatedAt: base.Add(10 * time.Hour), UpdatedAt: base,
		}
		inventory := models.Entry{
			ID: "e3", Type: "inventory", Day: "2026-10-02", CreatedAt: base.Add(24 * time.Hour), UpdatedAt: base,
			Notes: strPtr("resentments"),
		}
		for _, e := range []models.Entry{morning, evening, inventory} {
			require.NoError(t, p.AddEntry(ctx, e))
		}
		assert.ErrorIs(t, p.AddEntry(ctx, morning), models.ErrDuplicateID)

		checkins, err := p.GetEntries(ctx, "checkin")
		require.NoError(t, err)
		require.Len(t, checkins, 2)
		assert.Equal(t, "e2", checkins[0].ID)
		assert.Equal(t, morning, checkins[1])

		onDay, err := p.GetEntriesOnDay(ctx, "checkin", "2026-10-01")
		require.NoError(t, err)
		assert.Len(t, onDay, 2)

		onDay, err = p.GetEntriesOnDay(ctx, "", "2026-10-02")
		require.NoError(t, err)
		require.Len(t, onDay, 1)
		assert.Equal(t, "resentments", *onDay[0].Notes)

		morning.Fields["mood"] = float64(5)
		require.NoError(t, p.UpdateEntry(ctx, morning))
		got, err := p.GetEntry(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, float64(5), got.Fields["mood"])

		require.NoError(t, p.DeleteEntry(ctx, "e1"))
		assert.ErrorIs(t, p.DeleteEntry(ctx, "e1"), models.ErrNotFound)
		assert.ErrorIs(t, p.UpdateEntry(ctx, morning), models.ErrNotFound)
	})
}

func TestPracticeEntries(t *testing.T) {
	forEachBackend(t, func(t *testing.T, p storage.Provider) {
		ctx := context.Background()

		upsert := func(period int, slot models.PracticeSlot, content string) {
			require.NoError(t, p.UpsertPracticeEntry(ctx, models.PracticeEntry{
				Period: period, Slot: slot, Content: content, UpdatedAt: base,
			}))
		}
		upsert(3, models.SlotReview, "review")
		upsert(3, models.SlotMonday, "first")
		upsert(3, models.SlotMonday, "second")
		upsert(1, models.SlotFriday, "older")

		week, err := p.GetPracticeEntries(ctx, 3)
		require.NoError(t, err)
		require.Len(t, week, 2, "upsert replaces on the composite key")
		assert.Equal(t, models.SlotMonday, week[0].Slot)
		assert.Equal(t, "second", week[0].Content)
		assert.Equal(t, models.SlotReview, week[1].Slot)

		all, err := p.GetPracticeEntries(ctx, 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, 1, all[0].Period)

		require.NoError(t, p.DeletePracticeEntry(ctx, 3, models.SlotMonday))
		assert.ErrorIs(t, p.DeletePracticeEntry(ctx, 3, models.SlotMonday), models.ErrNotFound)
	})
}

func TestAtomicRollsBack(t *testing.T) {
	forEachBackend(t, func(t *testing.T, p storage.Provider) {
		ctx := context.Background()
		boom := errors.New("boom")

		err := p.Atomic(ctx, func(tx storage.Provider) error {
			require.NoError(t, tx.AddCounter(ctx, sampleCounter("x", 0)))
			require.NoError(t, tx.SetCounterDay(ctx, "x", "2026-10-02", false))

			// Writes are visible inside the unit.
			_, err := tx.GetCounter(ctx, "x")
			require.NoError(t, err)
			return boom
		})
		require.ErrorIs(t, err, boom)

		_, err = p.GetCounter(ctx, "x")
		assert.ErrorIs(t, err, models.ErrNotFound)

		err = p.Atomic(ctx, func(tx storage.Provider) error {
			return tx.AddCounter(ctx, sampleCounter("y", 0))
		})
		require.NoError(t, err)
		_, err = p.GetCounter(ctx, "y")
		assert.NoError(t, err)
	})
}

func TestClearAll(t *testing.T) {
	forEachBackend(t, func(t *testing.T, p storage.Provider) {
		ctx := context.Background()
		require.NoError(t, p.SetSetting(ctx, "compact_view", json.RawMessage(`true`)))
		require.NoError(t, p.AddCounter(ctx, sampleCounter("c", 0)))
		require.NoError(t, p.SetCounterDay(ctx, "c", "2026-10-02", false))
		require.NoError(t, p.AddEntry(ctx, models.Entry{ID: "e", Type: "checkin", Day: "2026-10-01", CreatedAt: base, UpdatedAt: base}))

		require.NoError(t, p.ClearAll(ctx))

		has, err := storage.HasData(ctx, p)
		require.NoError(t, err)
		assert.False(t, has)
	})
}

func TestSQLiteClearAllKeepsLedger(t *testing.T) {
	store := newSQLite(t).(*sqlite.Store)
	ctx := context.Background()
	require.NoError(t, store.ClearAll(ctx))

	st, err := store.MigrationStatus(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.Pending)
	assert.Equal(t, st.Latest, st.Current())
}

func TestKVPersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keel.kv.json")
	ctx := context.Background()

	first := kv.NewProvider(kv.NewStore(path))
	require.NoError(t, first.Init(ctx))
	require.NoError(t, first.AddCounter(ctx, sampleCounter("c", 0)))

	second := kv.NewProvider(kv.NewStore(path))
	require.NoError(t, second.Init(ctx))
	got, err := second.GetCounter(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, sampleCounter("c", 0), got)
}

func TestKVClearAllKeepsFolderHandle(t *testing.T) {
	p := newKV(t).(*kv.Provider)
	ctx := context.Background()
	require.NoError(t, p.Store().Set(kv.FolderHandleKey, json.RawMessage(`"token"`)))
	require.NoError(t, p.SetSetting(ctx, "theme_mode", json.RawMessage(`"dark"`)))

	listed, err := p.ListSettings(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1, "the handle is not listed as a setting")
	assert.Equal(t, "theme_mode", listed[0].Key)

	require.NoError(t, p.ClearAll(ctx))

	v, ok, err := p.Store().Get(kv.FolderHandleKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `"token"`, string(v))
	_, ok, err = p.GetSetting(ctx, "theme_mode")
	require.NoError(t, err)
	assert.False(t, ok)
}
