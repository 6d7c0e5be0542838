// Package kv is the key-value fallback backend. Store is a flat map of
// namespaced keys to JSON values kept in a single file; Provider implements
// storage.Provider on top of it.
package kv

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/julianstephens/keel/internal/constants"
)

// Key builds a namespaced key: keel:<namespace>[:<id>...].
func Key(namespace string, parts ...string) string {
	k := constants.AppName + ":" + namespace
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// Prefix returns the prefix shared by every key of namespace.
func Prefix(namespace string) string {
	return Key(namespace) + ":"
}

type Store struct {
	path string

	mu     sync.Mutex
	data   map[string]json.RawMessage
	loaded bool
}

func NewStore(path string) *Store {
	return &Store{
		path: path,
	}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the backing file. A missing file is an empty store.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.data = make(map[string]json.RawMessage)
			s.loaded = true
			return nil
		}
		return fmt.Errorf("failed to read storage: %w", err)
	}

	m := make(map[string]json.RawMessage)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("failed to parse storage: %w", err)
		}
	}
	s.data = m
	s.loaded = true
	return nil
}

func (s *Store) ensureLoaded() error {
	if s.loaded {
		return nil
	}
	return s.load()
}

func (s *Store) save(m map[string]json.RawMessage) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize storage: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to write storage: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write storage: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write storage: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write storage: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write storage: %w", err)
	}
	return nil
}

// Tx is a view of the key space handed to View and Update callbacks.
type Tx struct {
	data     map[string]json.RawMessage
	writable bool
}

// Get returns the raw value for key.
func (tx *Tx) Get(key string) (json.RawMessage, bool) {
	v, ok := tx.data[key]
	return v, ok
}

// GetJSON decodes the value for key into v.
func (tx *Tx) GetJSON(key string, v any) (bool, error) {
	raw, ok := tx.data[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// Set stores a raw JSON value.
func (tx *Tx) Set(key string, value json.RawMessage) error {
	if !tx.writable {
		return fmt.Errorf("kv: write in read-only view")
	}
	if !json.Valid(value) {
		return fmt.Errorf("kv: value for %s is not valid JSON", key)
	}
	tx.data[key] = append(json.RawMessage(nil), value...)
	return nil
}

// SetJSON encodes v and stores it under key.
func (tx *Tx) SetJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return tx.Set(key, data)
}

// Remove deletes key. Removing a missing key is not an error.
func (tx *Tx) Remove(key string) error {
	if !tx.writable {
		return fmt.Errorf("kv: write in read-only view")
	}
	delete(tx.data, key)
	return nil
}

// Keys returns every key starting with prefix, sorted.
func (tx *Tx) Keys(prefix string) []string {
	var keys []string
	for k := range tx.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// View runs fn against the current key space without copying it.
func (s *Store) View(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return err
	}
	return fn(&Tx{data: s.data})
}

// Update runs fn against a copy of the key space. The copy replaces the
// store and is written to disk only when fn succeeds.
func (s *Store) Update(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return err
	}

	next := make(map[string]json.RawMessage, len(s.data))
	for k, v := range s.data {
		next[k] = v
	}
	if err := fn(&Tx{data: next, writable: true}); err != nil {
		return err
	}
	if err := s.save(next); err != nil {
		return err
	}
	s.data = next
	return nil
}

// Get returns the raw value stored under key.
func (s *Store) Get(key string) (json.RawMessage, bool, error) {
	var (
		value json.RawMessage
		found bool
	)
	err := s.View(func(tx *Tx) error {
		value, found = tx.Get(key)
		return nil
	})
	return value, found, err
}

// Set stores value under key.
func (s *Store) Set(key string, value json.RawMessage) error {
	return s.Update(func(tx *Tx) error {
		return tx.Set(key, value)
	})
}

// Remove deletes key.
func (s *Store) Remove(key string) error {
	return s.Update(func(tx *Tx) error {
		return tx.Remove(key)
	})
}

// Keys lists keys with the given prefix.
func (s *Store) Keys(prefix string) ([]string, error) {
	var keys []string
	err := s.View(func(tx *Tx) error {
		keys = tx.Keys(prefix)
		return nil
	})
	return keys, err
}

// Clear removes every key.
func (s *Store) Clear() error {
	return s.Update(func(tx *Tx) error {
		for k := range tx.data {
			delete(tx.data, k)
		}
		return nil
	})
}
