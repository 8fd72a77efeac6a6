// Package catalog holds the immutable list of voteable tracks loaded at startup.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Item is a single voteable track.
type Item struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	Popularity int    `json:"popularity"`
}

// Source supplies the ordered item list for a playlist.
type Source interface {
	PlaylistItems(ctx context.Context, playlistID string) ([]Item, error)
}

// Snapshot is an ordered, read-only view of the catalog. It is safe for
// concurrent use because nothing mutates it after NewSnapshot returns.
type Snapshot struct {
	items []Item
	index map[string]int
}

// NewSnapshot builds a snapshot in the given order. Items without an ID are
// dropped and repeated IDs keep their first position.
func NewSnapshot(items []Item) *Snapshot {
	s := &Snapshot{
		items: make([]Item, 0, len(items)),
		index: make(map[string]int, len(items)),
	}
	for _, it := range items {
		it.ID = strings.TrimSpace(it.ID)
		if it.ID == "" {
			continue
		}
		if _, dup := s.index[it.ID]; dup {
			continue
		}
		if it.Popularity < 0 {
			it.Popularity = 0
		}
		s.index[it.ID] = len(s.items)
		s.items = append(s.items, it)
	}
	return s
}

// Items returns a copy of the catalog in playlist order.
func (s *Snapshot) Items() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// IDs returns the item IDs in playlist order.
func (s *Snapshot) IDs() []string {
	ids := make([]string, len(s.items))
	for i, it := range s.items {
		ids[i] = it.ID
	}
	return ids
}

// Lookup returns the item with the given ID.
func (s *Snapshot) Lookup(id string) (Item, bool) {
	i, ok := s.index[id]
	if !ok {
		return Item{}, false
	}
	return s.items[i], true
}

func (s *Snapshot) Len() int { return len(s.items) }

// LoadFile reads a JSON array of items, used when running without Spotify.
func LoadFile(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode catalog file: %w", err)
	}
	return items, nil
}
