// Package storage defines the persistence contract shared by the relational
// and key-value backends, and the logic that picks between them.
package storage

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/julianstephens/keel/internal/models"
)

// Backend names a Provider implementation.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendKV     Backend = "kv"
)

// Provider is implemented by every storage backend. Both backends return
// the same shapes and the same sentinel errors from models, so repositories
// never branch on the backend.
//
// Lookups and mutations that target a missing id return models.ErrNotFound.
// Inserting an existing id returns models.ErrDuplicateID. Adding a second
// open session of a kind returns models.ErrOpenSessionExists.
type Provider interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Backend() Backend
	Path() string

	// Settings
	GetSetting(ctx context.Context, key string) (json.RawMessage, bool, error)
	SetSetting(ctx context.Context, key string, value json.RawMessage) error
	DeleteSetting(ctx context.Context, key string) error
	ListSettings(ctx context.Context) ([]models.SettingEntry, error)

	// Counters, ordered by OrderIndex then CreatedAt.
	GetCounters(ctx context.Context) ([]models.Counter, error)
	GetCounter(ctx context.Context, id string) (models.Counter, error)
	AddCounter(ctx context.Context, c models.Counter) error
	UpdateCounter(ctx context.Context, c models.Counter) error
	DeleteCounter(ctx context.Context, id string) error
	GetCounterHistory(ctx context.Context, counterID string) (models.History, error)
	SetCounterDay(ctx context.Context, counterID, day string, maintained bool) error
	DeleteCounterDay(ctx context.Context, counterID, day string) error

	// Sessions, newest start first. An empty kind matches every kind.
	GetSessions(ctx context.Context, kind string) ([]models.Session, error)
	GetSession(ctx context.Context, id string) (models.Session, error)
	GetOpenSession(ctx context.Context, kind string) (models.Session, error)
	AddSession(ctx context.Context, s models.Session) error
	UpdateSession(ctx context.Context, s models.Session) error
	DeleteSession(ctx context.Context, id string) error

	// Entries, newest first. An empty type matches every type.
	GetEntries(ctx context.Context, entryType string) ([]models.Entry, error)
	GetEntriesOnDay(ctx context.Context, entryType, day string) ([]models.Entry, error)
	GetEntry(ctx context.Context, id string) (models.Entry, error)
	AddEntry(ctx context.Context, e models.Entry) error
	UpdateEntry(ctx context.Context, e models.Entry) error
	DeleteEntry(ctx context.Context, id string) error

	// Practice entries, ordered by period then slot. Period 0 lists all.
	UpsertPracticeEntry(ctx context.Context, p models.PracticeEntry) error
	GetPracticeEntries(ctx context.Context, period int) ([]models.PracticeEntry, error)
	DeletePracticeEntry(ctx context.Context, period int, slot models.PracticeSlot) error

	// ClearAll removes every domain record. Schema bookkeeping survives.
	ClearAll(ctx context.Context) error

	// Atomic runs fn against a view of the provider whose writes commit
	// together, or not at all when fn returns an error.
	Atomic(ctx context.Context, fn func(Provider) error) error
}

// SortPractice orders practice entries by period and then by slot order
// within the week.
func SortPractice(entries []models.PracticeEntry) {
	rank := make(map[models.PracticeSlot]int, len(models.PracticeSlots))
	for i, s := range models.PracticeSlots {
		rank[s] = i
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Period != b.Period {
			return a.Period < b.Period
		}
		return rank[a.Slot] < rank[b.Slot]
	})
}
