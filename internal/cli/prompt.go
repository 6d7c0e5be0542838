package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/keel/internal/config"
)

// ErrNotInteractive is returned when a prompt is needed but stdin is not a
// terminal.
var ErrNotInteractive = errors.New("input required but not running interactively")

// Confirm asks a yes/no question. Without a terminal it returns
// ErrNotInteractive so scripts pass an explicit flag instead.
func (c *Context) Confirm(title, description string) (bool, error) {
	if !c.Interactive {
		return false, ErrNotInteractive
	}
	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).WithTheme(huh.ThemeDracula()).Run()
	return ok, err
}

// PromptFolder asks for a directory path and checks that it exists.
func (c *Context) PromptFolder(title string) (string, error) {
	if !c.Interactive {
		return "", ErrNotInteractive
	}
	var dir string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				Description("The database is stored as keel.db inside this folder.").
				Value(&dir).
				Validate(func(s string) error {
					s = strings.TrimSpace(s)
					if s == "" {
						return fmt.Errorf("folder cannot be empty")
					}
					info, err := os.Stat(expand(s))
					if err != nil {
						return err
					}
					if !info.IsDir() {
						return fmt.Errorf("%s is not a directory", s)
					}
					return nil
				}),
		),
	).WithTheme(huh.ThemeDracula()).Run()
	if err != nil {
		return "", err
	}
	return expand(strings.TrimSpace(dir)), nil
}

func expand(path string) string {
	if p, err := config.ExpandHome(path); err == nil {
		return p
	}
	return path
}
