package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackvote/backend/internal/ledger"
)

func sampleTable() ledger.Table {
	return ledger.Table{
		"a": {Likes: 2, Dislikes: 1, Voters: []string{"Ana", "Lee", "Sam"}},
		"b": {Likes: 0, Dislikes: 0, Voters: []string{}},
		"c": {Likes: 0, Dislikes: 1, Voters: []string{"Sam"}},
	}
}

// roundTrip exercises the behaviour both backends share.
func roundTrip(t *testing.T, s ledger.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	want := sampleTable()
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// A second save replaces the table rather than merging into it.
	next := ledger.Table{"a": {Likes: 0, Dislikes: 0, Voters: []string{}}}
	require.NoError(t, s.Save(ctx, next))

	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, next, got)
}

func TestFileStore_RoundTrip(t *testing.T) {
	roundTrip(t, NewFileStore(filepath.Join(t.TempDir(), "votes.json")))
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "votes.db"))
	require.NoError(t, err)
	defer s.Close()

	roundTrip(t, s)
}

func TestSQLiteStore_ReopenKeepsState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "votes.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), sampleTable()))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleTable(), got)
}

func TestFileStore_LegacyLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "votes.json")
	legacy := `{"a": {"like": 1, "dislike": 0, "voters": ["Sam"]}, "b": {"like": 0, "dislike": 0}}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	got, err := NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ledger.Record{Likes: 1, Voters: []string{"Sam"}}, got["a"])
	assert.Equal(t, ledger.Record{}, got["b"])
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "votes.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a": {"like": 1,`), 0o644))

	_, err := NewFileStore(path).Load(context.Background())
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestFileStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "votes.json"))

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Save(context.Background(), sampleTable()))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "votes.json", entries[0].Name())
}

func TestFileStore_SaveFailureKeepsPreviousFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "votes.json")
	s := NewFileStore(path)
	require.NoError(t, s.Save(context.Background(), sampleTable()))

	// Point the store at a directory that does not exist so the temp file
	// cannot be created.
	broken := NewFileStore(filepath.Join(dir, "missing", "votes.json"))
	assert.Error(t, broken.Save(context.Background(), ledger.Table{}))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleTable(), got)
}

func TestFileStore_SaveHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewFileStore(filepath.Join(t.TempDir(), "votes.json"))
	assert.ErrorIs(t, s.Save(ctx, sampleTable()), context.Canceled)
}

func TestWriteJSONAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, WriteJSONAtomic(path, []string{"Ana", "Sam"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"Ana"`))

	assert.Error(t, WriteJSONAtomic(path, func() {}), "unencodable values are rejected")
	data2, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, data2)
}
