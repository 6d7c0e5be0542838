package repository

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/keel/internal/constants"
	"github.com/julianstephens/keel/internal/models"
	"github.com/julianstephens/keel/internal/temporal"
)

func TestSettingsDefaults(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		theme, err := f.Settings.ThemeMode(ctx)
		require.NoError(t, err)
		assert.Equal(t, constants.ThemeSystem, theme)

		visible, err := f.Settings.ModuleVisible(ctx, "fasting")
		require.NoError(t, err)
		assert.True(t, visible)

		order, err := f.Settings.Order(ctx, constants.OrderDashboard)
		require.NoError(t, err)
		assert.Nil(t, order)

		compact, err := f.Settings.CompactView(ctx)
		require.NoError(t, err)
		assert.False(t, compact)

		mode, err := f.Settings.PeriodMode(ctx)
		require.NoError(t, err)
		assert.Equal(t, temporal.PeriodCalendar, mode)

		_, ok, err := f.Settings.Goal(ctx, "fasting_hours")
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = f.Settings.PracticeStartDate(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestSettingsTypedAccessors(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		require.NoError(t, f.Settings.SetThemeMode(ctx, constants.ThemeDark))
		require.NoError(t, f.Settings.SetModuleVisible(ctx, "stoic", false))
		require.NoError(t, f.Settings.SetOrder(ctx, constants.OrderSections, []string{"counters", "fasting"}))
		require.NoError(t, f.Settings.SetGoal(ctx, "fasting_hours", 16))
		require.NoError(t, f.Settings.SetCompactView(ctx, true))
		assert.Equal(t, 5, f.notifier.Count())

		theme, err := f.Settings.ThemeMode(ctx)
		require.NoError(t, err)
		assert.Equal(t, constants.ThemeDark, theme)

		visible, err := f.Settings.ModuleVisible(ctx, "stoic")
		require.NoError(t, err)
		assert.False(t, visible)

		order, err := f.Settings.Order(ctx, constants.OrderSections)
		require.NoError(t, err)
		assert.Equal(t, []string{"counters", "fasting"}, order)

		goal, ok, err := f.Settings.Goal(ctx, "fasting_hours")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 16.0, goal)

		compact, err := f.Settings.CompactView(ctx)
		require.NoError(t, err)
		assert.True(t, compact)

		raw, ok, err := f.Settings.Raw(ctx, "module_visible.stoic")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.JSONEq(t, "false", string(raw))
	})
}

func TestSettingsValidation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		assert.ErrorIs(t, f.Settings.SetThemeMode(ctx, "sepia"), models.ErrInvalidInput)
		assert.ErrorIs(t, f.Settings.SetModuleVisible(ctx, "unknown", true), models.ErrInvalidInput)
		assert.ErrorIs(t, f.Settings.SetOrder(ctx, "sidebar", nil), models.ErrInvalidInput)
		assert.ErrorIs(t, f.Settings.SetGoal(ctx, "fasting_hours", 0), models.ErrInvalidInput)
		assert.ErrorIs(t, f.Settings.SetPeriodMode(ctx, "lunar"), models.ErrInvalidInput)
		assert.ErrorIs(t, f.Settings.SetRaw(ctx, "theme_mode", json.RawMessage(`{`)), models.ErrInvalidInput)
		assert.ErrorIs(t, f.Settings.Set(ctx, "", 1), models.ErrInvalidInput)
		assert.Zero(t, f.notifier.Count())
	})
}

func TestSettingsGeneric(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		type layout struct {
			Columns int      `json:"columns"`
			Hidden  []string `json:"hidden"`
		}

		got, err := Get(ctx, f.Settings, "layout", layout{Columns: 2})
		require.NoError(t, err)
		assert.Equal(t, layout{Columns: 2}, got)

		want := layout{Columns: 3, Hidden: []string{"stoic"}}
		require.NoError(t, f.Settings.Set(ctx, "layout", want))
		got, err = Get(ctx, f.Settings, "layout", layout{})
		require.NoError(t, err)
		assert.Equal(t, want, got)

		require.NoError(t, f.Settings.SetRaw(ctx, "theme_mode", json.RawMessage(`"light"`)))
		_, err = Get(ctx, f.Settings, "theme_mode", 0)
		assert.Error(t, err, "type mismatch is reported")

		all, err := f.Settings.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		require.NoError(t, f.Settings.Delete(ctx, "layout"))
		got, err = Get(ctx, f.Settings, "layout", layout{Columns: 1})
		require.NoError(t, err)
		assert.Equal(t, 1, got.Columns)
	})
}

func TestSettingsFolderHandle(t *testing.T) {
	f := newFixture(t, newSQLite(t))
	dir := t.TempDir()

	_, ok, err := f.Settings.FolderHandle()
	require.NoError(t, err)
	assert.False(t, ok)

	h, err := f.Settings.SetFolder(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, h.Path)

	got, ok, err := f.Settings.FolderHandle()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, dir, got.Path)

	// The handle is kept beside the database, not in it.
	all, err := f.Settings.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Zero(t, f.notifier.Count())

	require.NoError(t, f.Settings.ForgetFolder())
	_, ok, err = f.Settings.FolderHandle()
	require.NoError(t, err)
	assert.False(t, ok)

	bare := New(newKV(t), Options{})
	_, _, err = bare.Settings.FolderHandle()
	assert.ErrorIs(t, err, ErrNoHandleStore)
}

func TestSettingsFolderHandleIsNotAGenericSetting(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		dir := t.TempDir()
		_, err := f.Settings.SetFolder(dir)
		require.NoError(t, err)

		key := constants.SettingSyncFolderHandle
		assert.ErrorIs(t, f.Settings.Set(ctx, key, "elsewhere"), models.ErrInvalidInput)
		assert.ErrorIs(t, f.Settings.SetRaw(ctx, key, json.RawMessage(`"elsewhere"`)), models.ErrInvalidInput)
		assert.ErrorIs(t, f.Settings.Delete(ctx, key), models.ErrInvalidInput)
		assert.Zero(t, f.notifier.Count())

		got, ok, err := f.Settings.FolderHandle()
		require.NoError(t, err)
		assert.True(t, ok, "the grant survives")
		assert.Equal(t, dir, got.Path)

		require.NoError(t, f.Settings.SetCompactView(ctx, true))
		all, err := f.Settings.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, constants.SettingCompactView, all[0].Key)
	})
}
