// Package stats derives top-N rankings from the catalog and a ledger snapshot.
// It keeps no state; every call recomputes from its inputs.
package stats

import (
	"sort"

	"github.com/trackvote/backend/internal/catalog"
	"github.com/trackvote/backend/internal/ledger"
)

// DefaultTopN is the list length shown when the caller does not choose one.
const DefaultTopN = 10

// Entry is one ranked item.
type Entry struct {
	ItemID string
	Name   string
	Artist string
	Value  int
}

// Statistics groups the three rankings.
type Statistics struct {
	TopLiked    []Entry
	TopDisliked []Entry
	TopPopular  []Entry
}

// Compute returns all three rankings for the same snapshot.
func Compute(items []catalog.Item, table ledger.Table, n int) Statistics {
	return Statistics{
		TopLiked:    TopLiked(items, table, n),
		TopDisliked: TopDisliked(items, table, n),
		TopPopular:  TopPopular(items, n),
	}
}

func TopLiked(items []catalog.Item, table ledger.Table, n int) []Entry {
	return top(items, n, func(it catalog.Item) int { return table[it.ID].Likes })
}

func TopDisliked(items []catalog.Item, table ledger.Table, n int) []Entry {
	return top(items, n, func(it catalog.Item) int { return table[it.ID].Dislikes })
}

func TopPopular(items []catalog.Item, n int) []Entry {
	return top(items, n, func(it catalog.Item) int { return it.Popularity })
}

// top ranks items by metric, highest first. Ties keep playlist order.
func top(items []catalog.Item, n int, metric func(catalog.Item) int) []Entry {
	if n <= 0 {
		return []Entry{}
	}
	entries := make([]Entry, len(items))
	for i, it := range items {
		entries[i] = Entry{ItemID: it.ID, Name: it.Name, Artist: it.Artist, Value: metric(it)}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Value > entries[j].Value
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
