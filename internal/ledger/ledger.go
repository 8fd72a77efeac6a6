// Package ledger owns the in-memory vote table. It is the only writer of vote
// state and guarantees that each voter votes at most once per item.
//
// Every mutation runs under one write lock that covers the check, the
// increment, the store write and the event publish. Snapshot takes the read
// lock and therefore never observes a partially applied mutation.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

const defaultSaveTimeout = 5 * time.Second

type record struct {
	likes    int
	dislikes int
	voters   map[string]struct{}
}

func newRecord() *record {
	return &record{voters: make(map[string]struct{})}
}

// Ledger is safe for concurrent use.
type Ledger struct {
	mu      sync.RWMutex
	records map[string]*record

	// known is built once in New and never written again.
	known map[string]struct{}

	store       Store
	notifier    Notifier
	saveTimeout time.Duration
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithSaveTimeout bounds each store write. Non-positive values are ignored.
func WithSaveTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.saveTimeout = d
		}
	}
}

type nopNotifier struct{}

func (nopNotifier) Publish(Event) {}

// New loads saved state from store and merges it with the catalog item IDs.
// Items missing from the saved state start at zero; saved items that are no
// longer in the catalog are kept but cannot receive new votes. A store that
// fails to load is logged and the ledger starts empty.
func New(ctx context.Context, itemIDs []string, store Store, notifier Notifier, opts ...Option) *Ledger {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	l := &Ledger{
		records:     make(map[string]*record),
		known:       make(map[string]struct{}, len(itemIDs)),
		store:       store,
		notifier:    notifier,
		saveTimeout: defaultSaveTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.bootstrap(ctx, itemIDs)
	return l
}

func (l *Ledger) bootstrap(ctx context.Context, itemIDs []string) {
	loaded, err := l.store.Load(ctx)
	clean := true
	switch {
	case err == nil:
		slog.InfoContext(ctx, "loaded saved vote state", slog.Int("items", len(loaded)))
	case errors.Is(err, ErrNotFound):
		slog.InfoContext(ctx, "no saved vote state, starting fresh")
	default:
		slog.ErrorContext(ctx, "failed to load saved vote state, starting with empty tallies", slog.Any("error", err))
		loaded, clean = nil, false
	}

	for id, saved := range loaded {
		rec, ok := recordFrom(saved)
		if !ok {
			slog.WarnContext(ctx, "discarding inconsistent vote record",
				slog.String("item_id", id),
				slog.Int("likes", saved.Likes),
				slog.Int("dislikes", saved.Dislikes),
				slog.Int("voters", len(saved.Voters)),
			)
			rec = newRecord()
		}
		l.records[id] = rec
	}

	for _, id := range itemIDs {
		l.known[id] = struct{}{}
		if _, ok := l.records[id]; !ok {
			l.records[id] = newRecord()
		}
	}

	// A failed load leaves the old file in place until the first vote
	// overwrites it, so it can still be inspected.
	if !clean {
		return
	}
	if err := l.save(ctx); err != nil {
		slog.WarnContext(ctx, "failed to save merged vote state", slog.Any("error", err))
	}
}

// recordFrom converts a saved record, reporting false if it breaks the
// one-vote-per-voter invariant.
func recordFrom(saved Record) (*record, bool) {
	if saved.Likes < 0 || saved.Dislikes < 0 {
		return nil, false
	}
	rec := newRecord()
	for _, v := range saved.Voters {
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, false
		}
		rec.voters[v] = struct{}{}
	}
	if saved.Likes+saved.Dislikes != len(rec.voters) {
		return nil, false
	}
	rec.likes = saved.Likes
	rec.dislikes = saved.Dislikes
	return rec, true
}

// RegisterVote records one vote and returns the new count for the category.
//
// If the store write fails the vote stays counted and is still broadcast; the
// returned error then satisfies errors.Is(err, ErrPersistence) and the count
// is valid. Cancelling ctx does not interrupt a mutation once it has started.
func (l *Ledger) RegisterVote(ctx context.Context, itemID string, category Category, voter string) (int, error) {
	if _, ok := l.known[itemID]; !ok {
		return 0, ErrUnknownItem
	}
	voter = strings.TrimSpace(voter)
	if voter == "" {
		return 0, ErrInvalidVoter
	}
	if category != Like && category != Dislike {
		return 0, ErrInvalidCategory
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec := l.records[itemID]
	if _, voted := rec.voters[voter]; voted {
		return 0, ErrDuplicateVote
	}

	var count int
	if category == Like {
		rec.likes++
		count = rec.likes
	} else {
		rec.dislikes++
		count = rec.dislikes
	}
	rec.voters[voter] = struct{}{}

	err := l.persist(ctx)
	l.notifier.Publish(Event{Kind: EventItemUpdated, ItemID: itemID, Category: category, Count: count})
	return count, err
}

// Reset zeroes every record and clears every voter set. The only possible
// error is a *PersistenceError; the reset itself always applies.
func (l *Ledger) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id := range l.records {
		l.records[id] = newRecord()
	}

	err := l.persist(ctx)
	l.notifier.Publish(Event{Kind: EventAllReset})
	return err
}

// Snapshot returns a deep copy of the table. Voter lists are sorted.
func (l *Ledger) Snapshot() Table {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tableLocked()
}

// Known reports whether the item can receive votes.
func (l *Ledger) Known(itemID string) bool {
	_, ok := l.known[itemID]
	return ok
}

func (l *Ledger) tableLocked() Table {
	t := make(Table, len(l.records))
	for id, rec := range l.records {
		voters := make([]string, 0, len(rec.voters))
		for v := range rec.voters {
			voters = append(voters, v)
		}
		sort.Strings(voters)
		t[id] = Record{Likes: rec.likes, Dislikes: rec.dislikes, Voters: voters}
	}
	return t
}

// persist must be called with the write lock held.
func (l *Ledger) persist(ctx context.Context) error {
	if err := l.save(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to persist vote state", slog.Any("error", err))
		return &PersistenceError{Err: err}
	}
	return nil
}

func (l *Ledger) save(ctx context.Context) error {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.saveTimeout)
	defer cancel()
	return l.store.Save(saveCtx, l.tableLocked())
}
