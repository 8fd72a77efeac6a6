// Package roster keeps the list of voter names people pick from. It is an
// input to voting only; the ledger never reads it.
package roster

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/trackvote/backend/internal/store"
)

var ErrEmptyName = errors.New("names must not be blank")

// Roster is safe for concurrent use.
type Roster struct {
	mu    sync.RWMutex
	path  string
	names []string
}

// Load reads the roster from path. A missing file yields an empty roster.
func Load(path string) (*Roster, error) {
	r := &Roster{path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("failed to decode roster: %w", err)
	}
	r.names, err = normalize(names)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Names returns the roster in display order.
func (r *Roster) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.names...)
}

// Contains reports whether name, after trimming, is on the roster.
func (r *Roster) Contains(name string) bool {
	name = strings.TrimSpace(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, n := range r.names {
		if n == name {
			return true
		}
	}
	return false
}

// Replace swaps in a new list and saves it. Names are trimmed and duplicates
// dropped; a blank name rejects the whole update.
func (r *Roster) Replace(names []string) ([]string, error) {
	cleaned, err := normalize(names)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := store.WriteJSONAtomic(r.path, cleaned); err != nil {
		return nil, fmt.Errorf("failed to save roster: %w", err)
	}
	r.names = cleaned
	return append([]string{}, cleaned...), nil
}

func normalize(names []string) ([]string, error) {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			return nil, ErrEmptyName
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}
