package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownItem     = errors.New("unknown item")
	ErrInvalidVoter    = errors.New("voter name is required")
	ErrDuplicateVote   = errors.New("voter has already voted on this item")
	ErrInvalidCategory = errors.New("category must be 'like' or 'dislike'")

	// ErrNotFound is returned by a Store that holds no saved state yet.
	ErrNotFound = errors.New("no saved vote state")

	// ErrPersistence marks a mutation that was applied in memory but could
	// not be written to the store.
	ErrPersistence = errors.New("vote state not persisted")
)

// PersistenceError wraps a store failure that followed a committed mutation.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", ErrPersistence, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// Category is the direction of a vote.
type Category string

const (
	Like    Category = "like"
	Dislike Category = "dislike"
)

// ParseCategory accepts "like" or "dislike", ignoring case and surrounding space.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case Like:
		return Like, nil
	case Dislike:
		return Dislike, nil
	default:
		return "", ErrInvalidCategory
	}
}

// Record is the persisted vote state of one item. The JSON layout matches
// the votes.json files written by earlier deployments.
type Record struct {
	Likes    int      `json:"like"`
	Dislikes int      `json:"dislike"`
	Voters   []string `json:"voters"`
}

// Count returns the tally for one category.
func (r Record) Count(c Category) int {
	if c == Dislike {
		return r.Dislikes
	}
	return r.Likes
}

// Table maps item IDs to their records.
type Table map[string]Record

// Store persists the whole table. Save must be atomic with respect to Load.
type Store interface {
	Load(ctx context.Context) (Table, error)
	Save(ctx context.Context, t Table) error
}

// EventKind distinguishes per-item updates from a full reset.
type EventKind string

const (
	EventItemUpdated EventKind = "item_updated"
	EventAllReset    EventKind = "all_reset"
)

// Event describes a committed ledger mutation.
type Event struct {
	Kind     EventKind `json:"type"`
	ItemID   string    `json:"trackId,omitempty"`
	Category Category  `json:"action,omitempty"`
	Count    int       `json:"count,omitempty"`
}

// Notifier receives events after each committed mutation. Publish must not block.
type Notifier interface {
	Publish(ev Event)
}
