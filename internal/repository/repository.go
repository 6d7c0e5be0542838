// Package repository holds the domain operations used by the CLI. Each
// repository works against an injected storage.Provider, so callers never
// know which backend is active, and reports every successful mutation to a
// Notifier so the database can be synced.
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/keel/internal/cloud"
	"github.com/julianstephens/keel/internal/models"
	"github.com/julianstephens/keel/internal/storage"
)

// Notifier is told about every successful mutation. cloudsync.Engine
// satisfies it.
type Notifier interface {
	Notify()
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func()

func (f NotifierFunc) Notify() { f() }

type nopNotifier struct{}

func (nopNotifier) Notify() {}

// Options configures the repositories. Zero values select the system clock,
// the local timezone and no notifications.
type Options struct {
	Notifier Notifier
	Now      func() time.Time
	Location *time.Location

	// Handles and HandleKey locate the sync folder handle. It is kept outside
	// the provider so it can be read before the database opens.
	Handles   cloud.HandleStore
	HandleKey string
}

// Set bundles the repositories sharing one provider.
type Set struct {
	Counters *Counters
	Sessions *Sessions
	Entries  *Entries
	Practice *Practice
	Settings *Settings
}

// New builds every repository on top of p.
func New(p storage.Provider, opts Options) *Set {
	b := &base{p: p, notifier: opts.Notifier, now: opts.Now, loc: opts.Location}
	if b.notifier == nil {
		b.notifier = nopNotifier{}
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.loc == nil {
		b.loc = time.Local
	}

	settings := &Settings{base: b, handles: opts.Handles, handleKey: opts.HandleKey}
	return &Set{
		Counters: &Counters{base: b},
		Sessions: &Sessions{base: b},
		Entries:  &Entries{base: b},
		Practice: &Practice{base: b, settings: settings},
		Settings: settings,
	}
}

// base carries what every repository shares.
type base struct {
	p        storage.Provider
	notifier Notifier
	now      func() time.Time
	loc      *time.Location
}

// stamp returns the current instant as stored: UTC, millisecond precision.
func (b *base) stamp() time.Time {
	return normalize(b.now())
}

// today returns the current instant in the user's location.
func (b *base) today() time.Time {
	return b.now().In(b.loc)
}

// mutate runs fn and notifies once when it succeeds.
func (b *base) mutate(fn func() error) error {
	if err := fn(); err != nil {
		return err
	}
	b.notifier.Notify()
	return nil
}

// atomic runs fn inside a provider transaction and notifies once when it
// commits.
func (b *base) atomic(ctx context.Context, fn func(p storage.Provider) error) error {
	return b.mutate(func() error {
		return b.p.Atomic(ctx, fn)
	})
}

// normalize drops the monotonic clock, location and sub-millisecond part so
// both backends return identical values.
func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func normalizePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	n := normalize(*t)
	return &n
}

// optionalText applies a patch value: nil keeps current, blank clears.
func optionalText(current, patch *string) *string {
	if patch == nil {
		return current
	}
	v := strings.TrimSpace(*patch)
	if v == "" {
		return nil
	}
	return &v
}

func cleanText(s *string) *string {
	return optionalText(nil, s)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), models.ErrInvalidInput)
}
