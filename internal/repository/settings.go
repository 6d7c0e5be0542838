package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/julianstephens/keel/internal/cloud"
	"github.com/julianstephens/keel/internal/constants"
	"github.com/julianstephens/keel/internal/models"
	"github.com/julianstephens/keel/internal/temporal"
)

// ErrNoHandleStore is returned by folder handle accessors when the
// repositories were built without a handle store.
var ErrNoHandleStore = errors.New("no folder handle store configured")

// Settings stores JSON values under string keys and reads them back with a
// typed default.
type Settings struct {
	*base
	handles   cloud.HandleStore
	handleKey string
}

// Get decodes the setting at key into T, or returns def when it is unset.
func Get[T any](ctx context.Context, s *Settings, key string, def T) (T, error) {
	raw, ok, err := s.p.GetSetting(ctx, key)
	if err != nil {
		return def, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	if !ok {
		return def, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return def, fmt.Errorf("invalid value for setting %s: %w", key, err)
	}
	return v, nil
}

// checkWritable rejects keys that generic writes must not touch. The folder
// handle shares the fallback settings namespace and is only changed through
// SetFolder and ForgetFolder.
func checkWritable(key string) error {
	if strings.TrimSpace(key) == "" {
		return invalid("setting key is required")
	}
	if key == constants.SettingSyncFolderHandle {
		return invalid("%s is set by choosing a sync folder", key)
	}
	return nil
}

// Set stores value as JSON under key.
func (s *Settings) Set(ctx context.Context, key string, value any) error {
	if err := checkWritable(key); err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode setting %s: %w", key, err)
	}
	err = s.mutate(func() error {
		return s.p.SetSetting(ctx, key, raw)
	})
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

// Raw returns the stored JSON for key.
func (s *Settings) Raw(ctx context.Context, key string) (json.RawMessage, bool, error) {
	return s.p.GetSetting(ctx, key)
}

// SetRaw stores an already encoded JSON value.
func (s *Settings) SetRaw(ctx context.Context, key string, raw json.RawMessage) error {
	if err := checkWritable(key); err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return invalid("value for %s is not valid JSON", key)
	}
	return s.Set(ctx, key, v)
}

// Delete removes key. Deleting an unset key is not an error.
func (s *Settings) Delete(ctx context.Context, key string) error {
	if err := checkWritable(key); err != nil {
		return err
	}
	err := s.mutate(func() error {
		return s.p.DeleteSetting(ctx, key)
	})
	if err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}

func (s *Settings) List(ctx context.Context) ([]models.SettingEntry, error) {
	return s.p.ListSettings(ctx)
}

func (s *Settings) ThemeMode(ctx context.Context) (string, error) {
	return Get(ctx, s, constants.SettingThemeMode, constants.DefaultThemeMode)
}

func (s *Settings) SetThemeMode(ctx context.Context, mode string) error {
	switch mode {
	case constants.ThemeLight, constants.ThemeDark, constants.ThemeSystem:
		return s.Set(ctx, constants.SettingThemeMode, mode)
	default:
		return invalid("theme mode %q (expected %s, %s or %s)", mode,
			constants.ThemeLight, constants.ThemeDark, constants.ThemeSystem)
	}
}

func checkModule(module string) error {
	if !slices.Contains(constants.Modules, module) {
		return invalid("unknown module %q", module)
	}
	return nil
}

func (s *Settings) ModuleVisible(ctx context.Context, module string) (bool, error) {
	if err := checkModule(module); err != nil {
		return false, err
	}
	return Get(ctx, s, constants.SettingModuleVisible+module, constants.DefaultModuleVisible)
}

func (s *Settings) SetModuleVisible(ctx context.Context, module string, visible bool) error {
	if err := checkModule(module); err != nil {
		return err
	}
	return s.Set(ctx, constants.SettingModuleVisible+module, visible)
}

func checkOrderGroup(group string) error {
	if !slices.Contains(constants.OrderGroups, group) {
		return invalid("unknown ordering %q", group)
	}
	return nil
}

// Order returns the saved ordering of group, or nil.
func (s *Settings) Order(ctx context.Context, group string) ([]string, error) {
	if err := checkOrderGroup(group); err != nil {
		return nil, err
	}
	return Get[[]string](ctx, s, constants.SettingOrder+group, nil)
}

func (s *Settings) SetOrder(ctx context.Context, group string, ids []string) error {
	if err := checkOrderGroup(group); err != nil {
		return err
	}
	if ids == nil {
		ids = []string{}
	}
	return s.Set(ctx, constants.SettingOrder+group, ids)
}

// Goal returns the target stored for name.
func (s *Settings) Goal(ctx context.Context, name string) (float64, bool, error) {
	raw, ok, err := s.p.GetSetting(ctx, constants.SettingGoal+name)
	if err != nil || !ok {
		return 0, false, err
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false, fmt.Errorf("invalid goal %s: %w", name, err)
	}
	return v, true, nil
}

func (s *Settings) SetGoal(ctx context.Context, name string, target float64) error {
	if strings.TrimSpace(name) == "" {
		return invalid("goal name is required")
	}
	if target <= 0 {
		return invalid("goal target must be positive")
	}
	return s.Set(ctx, constants.SettingGoal+name, target)
}

func (s *Settings) CompactView(ctx context.Context) (bool, error) {
	return Get(ctx, s, constants.SettingCompactView, constants.DefaultCompactView)
}

func (s *Settings) SetCompactView(ctx context.Context, compact bool) error {
	return s.Set(ctx, constants.SettingCompactView, compact)
}

func (s *Settings) PeriodMode(ctx context.Context) (temporal.PeriodMode, error) {
	mode, err := Get(ctx, s, constants.SettingPracticePeriodMode, temporal.PeriodMode(constants.DefaultPeriodMode))
	if err != nil {
		return "", err
	}
	if !mode.Valid() {
		return temporal.PeriodCalendar, nil
	}
	return mode, nil
}

func (s *Settings) SetPeriodMode(ctx context.Context, mode temporal.PeriodMode) error {
	if !mode.Valid() {
		return invalid("period mode %q (expected %s or %s)", mode, temporal.PeriodCalendar, temporal.PeriodPersonal)
	}
	return s.Set(ctx, constants.SettingPracticePeriodMode, mode)
}

// PracticeStartDate returns midnight of the personal period start date.
func (s *Settings) PracticeStartDate(ctx context.Context) (time.Time, bool, error) {
	key, err := Get(ctx, s, constants.SettingPracticeStartDate, "")
	if err != nil || key == "" {
		return time.Time{}, false, err
	}
	day, err := temporal.ParseDateKey(key, s.loc)
	if err != nil {
		return time.Time{}, false, err
	}
	return day, true, nil
}

func (s *Settings) SetPracticeStartDate(ctx context.Context, day time.Time) error {
	return s.Set(ctx, constants.SettingPracticeStartDate, temporal.DateKey(day, s.loc))
}

func (s *Settings) folder() (*cloud.Folder, error) {
	if s.handles == nil {
		return nil, ErrNoHandleStore
	}
	return cloud.NewFolder(s.handles, s.handleKey), nil
}

// FolderHandle returns the sync folder the user granted, if any. The handle
// lives in the fallback store, not the synced database, so changing it does
// not notify.
func (s *Settings) FolderHandle() (cloud.FolderHandle, bool, error) {
	f, err := s.folder()
	if err != nil {
		return cloud.FolderHandle{}, false, err
	}
	return f.Handle()
}

// SetFolder grants access to dir for folder sync.
func (s *Settings) SetFolder(dir string) (cloud.FolderHandle, error) {
	f, err := s.folder()
	if err != nil {
		return cloud.FolderHandle{}, err
	}
	return f.Pick(dir)
}

// ForgetFolder removes the stored folder handle.
func (s *Settings) ForgetFolder() error {
	f, err := s.folder()
	if err != nil {
		return err
	}
	return f.Forget()
}
