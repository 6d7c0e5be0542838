package kv

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "keel:settings", Key(NamespaceSettings))
	assert.Equal(t, "keel:practice:3:1", Key(NamespacePractice, "3", "1"))
	assert.Equal(t, "keel:counters:", Prefix(NamespaceCounters))
	assert.Equal(t, "keel:settings:sync_folder_handle", FolderHandleKey)
}

func TestStoreMissingFileIsEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nested", "keel.kv.json"))
	require.NoError(t, s.Load())

	keys, err := s.Keys("")
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, s.Set("keel:a", json.RawMessage(`1`)))
	assert.FileExists(t, s.Path())
}

func TestStoreSetGetRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keel.kv.json")
	s := NewStore(path)

	require.NoError(t, s.Set("keel:b", json.RawMessage(`{"x":1}`)))
	require.NoError(t, s.Set("keel:a", json.RawMessage(`"hello"`)))
	require.NoError(t, s.Set("other", json.RawMessage(`true`)))

	v, ok, err := s.Get("keel:a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `"hello"`, string(v))

	keys, err := s.Keys("keel:")
	require.NoError(t, err)
	assert.Equal(t, []string{"keel:a", "keel:b"}, keys)

	reloaded := NewStore(path)
	require.NoError(t, reloaded.Load())
	v, ok, err = reloaded.Get("keel:b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"x":1}`, string(v))

	require.NoError(t, s.Remove("keel:b"))
	require.NoError(t, s.Remove("keel:missing"))
	_, ok, err = s.Get("keel:b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreRejectsInvalidJSON(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "keel.kv.json"))
	assert.Error(t, s.Set("keel:a", json.RawMessage(`not json`)))
}

func TestStoreUpdateRollsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keel.kv.json")
	s := NewStore(path)
	require.NoError(t, s.Set("keel:a", json.RawMessage(`1`)))

	boom := errors.New("boom")
	err := s.Update(func(tx *Tx) error {
		require.NoError(t, tx.Set("keel:b", json.RawMessage(`2`)))
		require.NoError(t, tx.Remove("keel:a"))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, ok, err := s.Get("keel:a")
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = s.Get("keel:b")
	require.NoError(t, err)
	assert.False(t, ok)

	reloaded := NewStore(path)
	keys, err := reloaded.Keys("")
	require.NoError(t, err)
	assert.Equal(t, []string{"keel:a"}, keys)
}

func TestViewIsReadOnly(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "keel.kv.json"))
	err := s.View(func(tx *Tx) error {
		return tx.Set("keel:a", json.RawMessage(`1`))
	})
	assert.Error(t, err)
	err = s.View(func(tx *Tx) error {
		return tx.Remove("keel:a")
	})
	assert.Error(t, err)
}

func TestStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keel.kv.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0600))
	assert.Error(t, NewStore(path).Load())
}

func TestStoreClear(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "keel.kv.json"))
	require.NoError(t, s.Set("keel:a", json.RawMessage(`1`)))
	require.NoError(t, s.Set("keel:b", json.RawMessage(`2`)))
	require.NoError(t, s.Clear())

	keys, err := s.Keys("")
	require.NoError(t, err)
	assert.Empty(t, keys)
}
