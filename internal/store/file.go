// Package store persists the vote table. FileStore keeps a single JSON file;
// SQLiteStore keeps the table in a SQLite database. Both replace the whole
// table atomically on every Save and never retry on their own.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/trackvote/backend/internal/ledger"
)

var (
	// ErrNotFound is returned by Load when nothing has been saved yet.
	ErrNotFound = ledger.ErrNotFound

	// ErrCorrupt is returned by Load when the saved data cannot be decoded.
	ErrCorrupt = errors.New("saved vote state is corrupt")
)

// FileStore saves the table as JSON at Path.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Load(_ context.Context) (ledger.Table, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.Path, err)
	}

	var t ledger.Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.Path, err)
	}
	if t == nil {
		t = ledger.Table{}
	}
	return t, nil
}

func (s *FileStore) Save(ctx context.Context, t ledger.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return WriteJSONAtomic(s.Path, t)
}

// WriteJSONAtomic encodes v and replaces path with it. The data goes to a
// temporary file in the same directory which is synced and then renamed over
// path, so readers see either the old or the new content, never a mix.
func WriteJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	committed = true

	// Persist the rename itself. Not every platform supports syncing a
	// directory, so a failure here is ignored.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		d.Close()
	}
	return nil
}
