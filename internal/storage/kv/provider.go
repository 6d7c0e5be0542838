package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/julianstephens/keel/internal/constants"
	"github.com/julianstephens/keel/internal/models"
	"github.com/julianstephens/keel/internal/storage"
)

// Namespaces of the fallback key space.
const (
	NamespaceSettings = "settings"
	NamespaceCounters = "counters"
	NamespaceHistory  = "history"
	NamespaceSessions = "sessions"
	NamespaceEntries  = "entries"
	NamespacePractice = "practice"
)

// FolderHandleKey holds the sync folder handle. It lives in the fallback
// store regardless of the active backend so it can be read before the
// database is opened.
var FolderHandleKey = Key(NamespaceSettings, constants.SettingSyncFolderHandle)

var domainNamespaces = []string{
	NamespaceSettings, NamespaceCounters, NamespaceHistory,
	NamespaceSessions, NamespaceEntries, NamespacePractice,
}

// Provider stores domain records in a Store. It enforces the constraints the
// relational schema would: unique ids, one open session per kind, composite
// practice keys and history removal together with its counter.
type Provider struct {
	store *Store
	tx    *Tx
}

var _ storage.Provider = (*Provider)(nil)

func NewProvider(store *Store) *Provider {
	return &Provider{store: store}
}

func (p *Provider) Init(ctx context.Context) error {
	if p.tx != nil {
		return nil
	}
	return p.store.Load()
}

func (p *Provider) Close() error {
	return nil
}

func (p *Provider) Backend() storage.Backend {
	return storage.BackendKV
}

func (p *Provider) Path() string {
	return p.store.Path()
}

// Store returns the underlying key-value store.
func (p *Provider) Store() *Store {
	return p.store
}

func (p *Provider) view(fn func(tx *Tx) error) error {
	if p.tx != nil {
		return fn(p.tx)
	}
	return p.store.View(fn)
}

func (p *Provider) update(fn func(tx *Tx) error) error {
	if p.tx != nil {
		return fn(p.tx)
	}
	return p.store.Update(fn)
}

// Atomic runs fn against a copy of the key space that replaces the stored
// one only when fn succeeds.
func (p *Provider) Atomic(ctx context.Context, fn func(storage.Provider) error) error {
	return p.update(func(tx *Tx) error {
		return fn(&Provider{store: p.store, tx: tx})
	})
}

// ClearAll removes every domain namespace. The sync folder handle is
// configuration, not data, and survives.
func (p *Provider) ClearAll(ctx context.Context) error {
	return p.update(func(tx *Tx) error {
		for _, ns := range domainNamespaces {
			for _, k := range tx.Keys(Prefix(ns)) {
				if k == FolderHandleKey {
					continue
				}
				if err := tx.Remove(k); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// list decodes every value of namespace into a fresh T.
func list[T any](tx *Tx, namespace string) ([]T, error) {
	keys := tx.Keys(Prefix(namespace))
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		var v T
		if _, err := tx.GetJSON(k, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Settings

func (p *Provider) GetSetting(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var (
		value json.RawMessage
		found bool
	)
	err := p.view(func(tx *Tx) error {
		value, found = tx.Get(Key(NamespaceSettings, key))
		return nil
	})
	return value, found, err
}

func (p *Provider) SetSetting(ctx context.Context, key string, value json.RawMessage) error {
	return p.update(func(tx *Tx) error {
		return tx.Set(Key(NamespaceSettings, key), value)
	})
}

func (p *Provider) DeleteSetting(ctx context.Context, key string) error {
	return p.update(func(tx *Tx) error {
		return tx.Remove(Key(NamespaceSettings, key))
	})
}

// ListSettings lists the domain settings. The folder handle is left out.
func (p *Provider) ListSettings(ctx context.Context) ([]models.SettingEntry, error) {
	var out []models.SettingEntry
	err := p.view(func(tx *Tx) error {
		prefix := Prefix(NamespaceSettings)
		for _, k := range tx.Keys(prefix) {
			if k == FolderHandleKey {
				continue
			}
			v, _ := tx.Get(k)
			out = append(out, models.SettingEntry{Key: strings.TrimPrefix(k, prefix), Value: v})
		}
		return nil
	})
	return out, err
}

// Counters

func (p *Provider) GetCounters(ctx context.Context) ([]models.Counter, error) {
	var counters []models.Counter
	err := p.view(func(tx *Tx) error {
		var err error
		counters, err = list[models.Counter](tx, NamespaceCounters)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(counters, func(i, j int) bool {
		if counters[i].OrderIndex != counters[j].OrderIndex {
			return counters[i].OrderIndex < counters[j].OrderIndex
		}
		return counters[i].CreatedAt.Before(counters[j].CreatedAt)
	})
	return counters, nil
}

func getCounter(tx *Tx, id string) (models.Counter, error) {
	var c models.Counter
	ok, err := tx.GetJSON(Key(NamespaceCounters, id), &c)
	if err != nil {
		return models.Counter{}, err
	}
	if !ok {
		return models.Counter{}, fmt.Errorf("counter %s: %w", id, models.ErrNotFound)
	}
	return c, nil
}

func (p *Provider) GetCounter(ctx context.Context, id string) (models.Counter, error) {
	var c models.Counter
	err := p.view(func(tx *Tx) error {
		var err error
		c, err = getCounter(tx, id)
		return err
	})
	return c, err
}

func (p *Provider) AddCounter(ctx context.Context, c models.Counter) error {
	return p.update(func(tx *Tx) error {
		key := Key(NamespaceCounters, c.ID)
		if _, ok := tx.Get(key); ok {
			return fmt.Errorf("counter %s: %w", c.ID, models.ErrDuplicateID)
		}
		return tx.SetJSON(key, c)
	})
}

func (p *Provider) UpdateCounter(ctx context.Context, c models.Counter) error {
	return p.update(func(tx *Tx) error {
		if _, err := getCounter(tx, c.ID); err != nil {
			return err
		}
		return tx.SetJSON(Key(NamespaceCounters, c.ID), c)
	})
}

func (p *Provider) DeleteCounter(ctx context.Context, id string) error {
	return p.update(func(tx *Tx) error {
		if _, err := getCounter(tx, id); err != nil {
			return err
		}
		if err := tx.Remove(Key(NamespaceCounters, id)); err != nil {
			return err
		}
		return tx.Remove(Key(NamespaceHistory, id))
	})
}

func (p *Provider) GetCounterHistory(ctx context.Context, counterID string) (models.History, error) {
	history := models.History{}
	err := p.view(func(tx *Tx) error {
		_, err := tx.GetJSON(Key(NamespaceHistory, counterID), &history)
		return err
	})
	return history, err
}

func (p *Provider) SetCounterDay(ctx context.Context, counterID, day string, maintained bool) error {
	return p.update(func(tx *Tx) error {
		if _, err := getCounter(tx, counterID); err != nil {
			return err
		}
		key := Key(NamespaceHistory, counterID)
		history := models.History{}
		if _, err := tx.GetJSON(key, &history); err != nil {
			return err
		}
		history[day] = maintained
		return tx.SetJSON(key, history)
	})
}

func (p *Provider) DeleteCounterDay(ctx context.Context, counterID, day string) error {
	return p.update(func(tx *Tx) error {
		key := Key(NamespaceHistory, counterID)
		history := models.History{}
		ok, err := tx.GetJSON(key, &history)
		if err != nil || !ok {
			return err
		}
		delete(history, day)
		if len(history) == 0 {
			return tx.Remove(key)
		}
		return tx.SetJSON(key, history)
	})
}

// Sessions

func (p *Provider) GetSessions(ctx context.Context, kind string) ([]models.Session, error) {
	var sessions []models.Session
	err := p.view(func(tx *Tx) error {
		all, err := list[models.Session](tx, NamespaceSessions)
		if err != nil {
			return err
		}
		for _, s := range all {
			if kind == "" || s.Kind == kind {
				sessions = append(sessions, s)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].StartAt.After(sessions[j].StartAt)
	})
	return sessions, nil
}

func getSession(tx *Tx, id string) (models.Session, error) {
	var s models.Session
	ok, err := tx.GetJSON(Key(NamespaceSessions, id), &s)
	if err != nil {
		return models.Session{}, err
	}
	if !ok {
		return models.Session{}, fmt.Errorf("session %s: %w", id, models.ErrNotFound)
	}
	return s, nil
}

func openSession(tx *Tx, kind string) (models.Session, bool, error) {
	all, err := list[models.Session](tx, NamespaceSessions)
	if err != nil {
		return models.Session{}, false, err
	}
	for _, s := range all {
		if s.Kind == kind && s.Open() {
			return s, true, nil
		}
	}
	return models.Session{}, false, nil
}

func checkOpenConflict(tx *Tx, sess models.Session) error {
	if !sess.Open() {
		return nil
	}
	open, ok, err := openSession(tx, sess.Kind)
	if err != nil {
		return err
	}
	if ok && open.ID != sess.ID {
		return fmt.Errorf("%s: %w", sess.Kind, models.ErrOpenSessionExists)
	}
	return nil
}

func (p *Provider) GetSession(ctx context.Context, id string) (models.Session, error) {
	var s models.Session
	err := p.view(func(tx *Tx) error {
		var err error
		s, err = getSession(tx, id)
		return err
	})
	return s, err
}

func (p *Provider) GetOpenSession(ctx context.Context, kind string) (models.Session, error) {
	var s models.Session
	err := p.view(func(tx *Tx) error {
		open, ok, err := openSession(tx, kind)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("open session of kind %s: %w", kind, models.ErrNotFound)
		}
		s = open
		return nil
	})
	return s, err
}

func (p *Provider) AddSession(ctx context.Context, s models.Session) error {
	return p.update(func(tx *Tx) error {
		key := Key(NamespaceSessions, s.ID)
		if _, ok := tx.Get(key); ok {
			return fmt.Errorf("session %s: %w", s.ID, models.ErrDuplicateID)
		}
		if err := checkOpenConflict(tx, s); err != nil {
			return err
		}
		return tx.SetJSON(key, s)
	})
}

func (p *Provider) UpdateSession(ctx context.Context, s models.Session) error {
	return p.update(func(tx *Tx) error {
		if _, err := getSession(tx, s.ID); err != nil {
			return err
		}
		if err := checkOpenConflict(tx, s); err != nil {
			return err
		}
		return tx.SetJSON(Key(NamespaceSessions, s.ID), s)
	})
}

func (p *Provider) DeleteSession(ctx context.Context, id string) error {
	return p.update(func(tx *Tx) error {
		if _, err := getSession(tx, id); err != nil {
			return err
		}
		return tx.Remove(Key(NamespaceSessions, id))
	})
}

// Entries

func (p *Provider) filterEntries(match func(models.Entry) bool) ([]models.Entry, error) {
	var entries []models.Entry
	err := p.view(func(tx *Tx) error {
		all, err := list[models.Entry](tx, NamespaceEntries)
		if err != nil {
			return err
		}
		for _, e := range all {
			if match(e) {
				entries = append(entries, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

func (p *Provider) GetEntries(ctx context.Context, entryType string) ([]models.Entry, error) {
	return p.filterEntries(func(e models.Entry) bool {
		return entryType == "" || e.Type == entryType
	})
}

func (p *Provider) GetEntriesOnDay(ctx context.Context, entryType, day string) ([]models.Entry, error) {
	return p.filterEntries(func(e models.Entry) bool {
		return (entryType == "" || e.Type == entryType) && e.Day == day
	})
}

func getEntry(tx *Tx, id string) (models.Entry, error) {
	var e models.Entry
	ok, err := tx.GetJSON(Key(NamespaceEntries, id), &e)
	if err != nil {
		return models.Entry{}, err
	}
	if !ok {
		return models.Entry{}, fmt.Errorf("entry %s: %w", id, models.ErrNotFound)
	}
	return e, nil
}

func (p *Provider) GetEntry(ctx context.Context, id string) (models.Entry, error) {
	var e models.Entry
	err := p.view(func(tx *Tx) error {
		var err error
		e, err = getEntry(tx, id)
		return err
	})
	return e, err
}

func (p *Provider) AddEntry(ctx context.Context, e models.Entry) error {
	return p.update(func(tx *Tx) error {
		key := Key(NamespaceEntries, e.ID)
		if _, ok := tx.Get(key); ok {
			return fmt.Errorf("entry %s: %w", e.ID, models.ErrDuplicateID)
		}
		return tx.SetJSON(key, e)
	})
}

func (p *Provider) UpdateEntry(ctx context.Context, e models.Entry) error {
	return p.update(func(tx *Tx) error {
		if _, err := getEntry(tx, e.ID); err != nil {
			return err
		}
		return tx.SetJSON(Key(NamespaceEntries, e.ID), e)
	})
}

func (p *Provider) DeleteEntry(ctx context.Context, id string) error {
	return p.update(func(tx *Tx) error {
		if _, err := getEntry(tx, id); err != nil {
			return err
		}
		return tx.Remove(Key(NamespaceEntries, id))
	})
}

// Practice

func practiceKey(period int, slot models.PracticeSlot) string {
	return Key(NamespacePractice, strconv.Itoa(period), string(slot))
}

func (p *Provider) UpsertPracticeEntry(ctx context.Context, entry models.PracticeEntry) error {
	return p.update(func(tx *Tx) error {
		return tx.SetJSON(practiceKey(entry.Period, entry.Slot), entry)
	})
}

func (p *Provider) GetPracticeEntries(ctx context.Context, period int) ([]models.PracticeEntry, error) {
	var entries []models.PracticeEntry
	err := p.view(func(tx *Tx) error {
		prefix := Prefix(NamespacePractice)
		if period > 0 {
			prefix = Prefix(NamespacePractice) + strconv.Itoa(period) + ":"
		}
		for _, k := range tx.Keys(prefix) {
			var e models.PracticeEntry
			if _, err := tx.GetJSON(k, &e); err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	storage.SortPractice(entries)
	return entries, nil
}

func (p *Provider) DeletePracticeEntry(ctx context.Context, period int, slot models.PracticeSlot) error {
	return p.update(func(tx *Tx) error {
		key := practiceKey(period, slot)
		if _, ok := tx.Get(key); !ok {
			return fmt.Errorf("practice entry %d/%s: %w", period, slot, models.ErrNotFound)
		}
		return tx.Remove(key)
	})
}
