package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/julianstephens/keel/internal/app"
	"github.com/julianstephens/keel/internal/config"
	"github.com/julianstephens/keel/internal/repository"
	"golang.org/x/term"
)

// Context is handed to every command. Storage is opened on first use so
// commands such as init can prepare the data dir beforehand.
type Context struct {
	Ctx     context.Context
	Config  *config.Config
	Options app.Options
	Out     io.Writer

	// Interactive allows prompts; tests and pipes run without them.
	Interactive bool

	app *app.App
}

// NewContext returns a context writing to stdout.
func NewContext(ctx context.Context, cfg *config.Config) *Context {
	return &Context{
		Ctx:         ctx,
		Config:      cfg,
		Out:         os.Stdout,
		Interactive: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

// App starts the application on first call and returns it afterwards.
func (c *Context) App() (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	a, err := app.Start(c.Ctx, c.Config, c.Options)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

// Repos is a shorthand for App().Repos.
func (c *Context) Repos() (*repository.Set, error) {
	a, err := c.App()
	if err != nil {
		return nil, err
	}
	return a.Repos, nil
}

// Started reports whether storage has been opened.
func (c *Context) Started() bool {
	return c.app != nil
}

// Close shuts the application down if it was started.
func (c *Context) Close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Shutdown(c.Ctx)
	c.app = nil
	return err
}

// Now returns the current time from the configured clock.
func (c *Context) Now() time.Time {
	if c.Options.Now != nil {
		return c.Options.Now()
	}
	return time.Now()
}

// Location returns the user's configured location.
func (c *Context) Location() *time.Location {
	return c.Config.Location()
}

func (c *Context) Printf(format string, args ...any) {
	fmt.Fprintf(c.Out, format, args...)
}

func (c *Context) Println(args ...any) {
	fmt.Fprintln(c.Out, args...)
}
