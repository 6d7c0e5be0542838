package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/keel/internal/cli/clitest"
	"github.com/julianstephens/keel/internal/models"
	"github.com/julianstephens/keel/internal/temporal"
)

func TestSettingsList(t *testing.T) {
	h := clitest.New(t)

	require.NoError(t, (&SettingsListCmd{}).Run(h.Context))
	out := h.Output()
	assert.Contains(t, out, "theme_mode")
	assert.Contains(t, out, `"system" (default)`)
	assert.Contains(t, out, "compact_view")
}

func TestSettingsSetTypedKeys(t *testing.T) {
	h := clitest.New(t)

	tests := []struct {
		key, value, want string
	}{
		{"theme_mode", "dark", `"dark"`},
		{"theme_mode", `"light"`, `"light"`},
		{"compact_view", "on", "true"},
		{"module_visible.fasting", "false", "false"},
		{"order.counters", "b, a", `["b","a"]`},
		{"order.sections", `["x"]`, `["x"]`},
		{"goal.fasting", "16", "16"},
		{"practice_period_mode", "personal", `"personal"`},
		{"practice_start_date", "2026-10-01", `"2026-10-01"`},
		{"custom", `{"a":1}`, `{"a":1}`},
		{"nickname", "Sam", `"Sam"`},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			require.NoError(t, (&SettingsSetCmd{Key: tt.key, Value: tt.value}).Run(h.Context))
			h.Output()
			require.NoError(t, (&SettingsGetCmd{Key: tt.key}).Run(h.Context))
			assert.Equal(t, tt.want+"\n", h.Output())
		})
	}

	repos, err := h.Repos()
	require.NoError(t, err)
	mode, err := repos.Settings.PeriodMode(h.Ctx)
	require.NoError(t, err)
	assert.Equal(t, temporal.PeriodPersonal, mode)
}

func TestSettingsSetRejects(t *testing.T) {
	h := clitest.New(t)

	tests := []struct{ key, value string }{
		{"theme_mode", "purple"},
		{"compact_view", "maybe"},
		{"module_visible.email", "true"},
		{"order.widgets", "a"},
		{"goal.fasting", "-1"},
		{"goal.fasting", "lots"},
		{"practice_period_mode", "lunar"},
		{"sync_folder_handle", "/tmp"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			err := (&SettingsSetCmd{Key: tt.key, Value: tt.value}).Run(h.Context)
			assert.ErrorIs(t, err, models.ErrInvalidInput)
		})
	}
}

func TestSettingsGetDefaultsAndUnset(t *testing.T) {
	h := clitest.New(t)

	require.NoError(t, (&SettingsGetCmd{Key: "module_visible.stoic"}).Run(h.Context))
	assert.Contains(t, h.Output(), "true (default)")

	err := (&SettingsGetCmd{Key: "nothing"}).Run(h.Context)
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, (&SettingsSetCmd{Key: "theme_mode", Value: "dark"}).Run(h.Context))
	require.NoError(t, (&SettingsUnsetCmd{Key: "theme_mode"}).Run(h.Context))
	h.Output()
	require.NoError(t, (&SettingsGetCmd{Key: "theme_mode"}).Run(h.Context))
	assert.Contains(t, h.Output(), `"system" (default)`)
}
