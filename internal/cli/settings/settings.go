package settings

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/julianstephens/keel/internal/cli"
	"github.com/julianstephens/keel/internal/constants"
	"github.com/julianstephens/keel/internal/models"
	"github.com/julianstephens/keel/internal/repository"
	"github.com/julianstephens/keel/internal/temporal"
)

type SettingsCmd struct {
	Get   SettingsGetCmd   `cmd:"" help:"Print one setting."`
	Set   SettingsSetCmd   `cmd:"" help:"Change a setting."`
	Unset SettingsUnsetCmd `cmd:"" help:"Reset a setting to its default."`
	List  SettingsListCmd  `cmd:"" help:"List current settings." default:"1"`
}

// defaults are shown for keys that have never been written.
var defaults = map[string]any{
	constants.SettingThemeMode:          constants.DefaultThemeMode,
	constants.SettingCompactView:        constants.DefaultCompactView,
	constants.SettingPracticePeriodMode: constants.DefaultPeriodMode,
}

func defaultFor(key string) (any, bool) {
	if v, ok := defaults[key]; ok {
		return v, true
	}
	if strings.HasPrefix(key, constants.SettingModuleVisible) {
		return constants.DefaultModuleVisible, true
	}
	return nil, false
}

type SettingsGetCmd struct {
	Key string `arg:"" help:"Setting key."`
}

func (c *SettingsGetCmd) Run(ctx *cli.Context) error {
	repos, err := ctx.Repos()
	if err != nil {
		return err
	}
	raw, ok, err := repos.Settings.Raw(ctx.Ctx, c.Key)
	if err != nil {
		return err
	}
	if ok {
		ctx.Println(string(raw))
		return nil
	}
	if def, ok := defaultFor(c.Key); ok {
		b, err := json.Marshal(def)
		if err != nil {
			return err
		}
		ctx.Printf("%s %s\n", b, cli.Muted("(default)"))
		return nil
	}
	return fmt.Errorf("setting %s: %w", c.Key, models.ErrNotFound)
}

type SettingsSetCmd struct {
	Key   string `arg:"" help:"Setting key."`
	Value string `arg:"" help:"New value. JSON is accepted; anything else is stored as a string."`
}

func (c *SettingsSetCmd) Run(ctx *cli.Context) error {
	repos, err := ctx.Repos()
	if err != nil {
		return err
	}
	if err := apply(ctx, repos.Settings, c.Key, c.Value); err != nil {
		return err
	}
	ctx.Println(cli.Success("Set %s", c.Key))
	return nil
}

// apply routes known keys through their typed setters so values are
// validated the same way everywhere.
func apply(ctx *cli.Context, s *repository.Settings, key, value string) error {
	value = strings.TrimSpace(value)
	switch {
	case key == constants.SettingSyncFolderHandle:
		return fmt.Errorf("use 'keel sync pick-folder' to choose a sync folder: %w", models.ErrInvalidInput)
	case key == constants.SettingThemeMode:
		return s.SetThemeMode(ctx.Ctx, unquote(value))
	case key == constants.SettingCompactView:
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		return s.SetCompactView(ctx.Ctx, b)
	case key == constants.SettingPracticePeriodMode:
		return s.SetPeriodMode(ctx.Ctx, temporal.PeriodMode(unquote(value)))
	case key == constants.SettingPracticeStartDate:
		day, err := cli.ParseDate(unquote(value), ctx.Now(), ctx.Location())
		if err != nil {
			return err
		}
		return s.SetPracticeStartDate(ctx.Ctx, day)
	case strings.HasPrefix(key, constants.SettingModuleVisible):
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		return s.SetModuleVisible(ctx.Ctx, strings.TrimPrefix(key, constants.SettingModuleVisible), b)
	case strings.HasPrefix(key, constants.SettingOrder):
		var ids []string
		if err := json.Unmarshal([]byte(value), &ids); err != nil {
			ids = splitList(value)
		}
		return s.SetOrder(ctx.Ctx, strings.TrimPrefix(key, constants.SettingOrder), ids)
	case strings.HasPrefix(key, constants.SettingGoal):
		target, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("goal must be a number: %w", models.ErrInvalidInput)
		}
		return s.SetGoal(ctx.Ctx, strings.TrimPrefix(key, constants.SettingGoal), target)
	}

	if json.Valid([]byte(value)) {
		return s.SetRaw(ctx.Ctx, key, json.RawMessage(value))
	}
	return s.Set(ctx.Ctx, key, value)
}

func unquote(s string) string {
	var v string
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("expected true or false, got %q: %w", s, models.ErrInvalidInput)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type SettingsUnsetCmd struct {
	Key string `arg:"" help:"Setting key."`
}

func (c *SettingsUnsetCmd) Run(ctx *cli.Context) error {
	repos, err := ctx.Repos()
	if err != nil {
		return err
	}
	if err := repos.Settings.Delete(ctx.Ctx, c.Key); err != nil {
		return err
	}
	ctx.Println(cli.Success("Unset %s", c.Key))
	return nil
}

type SettingsListCmd struct{}

func (c *SettingsListCmd) Run(ctx *cli.Context) error {
	repos, err := ctx.Repos()
	if err != nil {
		return err
	}
	entries, err := repos.Settings.List(ctx.Ctx)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(entries))
	ctx.Println(cli.Title("Current Settings"))
	for _, e := range entries {
		seen[e.Key] = true
		ctx.Printf("  %-28s %s\n", e.Key, e.Value)
	}
	for _, key := range []string{constants.SettingThemeMode, constants.SettingCompactView, constants.SettingPracticePeriodMode} {
		if seen[key] {
			continue
		}
		b, err := json.Marshal(defaults[key])
		if err != nil {
			return err
		}
		ctx.Printf("  %-28s %s %s\n", key, b, cli.Muted("(default)"))
	}

	if handle, ok, err := repos.Settings.FolderHandle(); err == nil && ok {
		ctx.Printf("\n  Sync folder: %s\n", handle.Path)
	}
	return nil
}
