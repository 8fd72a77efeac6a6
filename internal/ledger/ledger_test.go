package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	saved   Table
	loadErr error
	saveErr error
	saves   int
}

func (s *memStore) Load(context.Context) (Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.saved == nil {
		return nil, ErrNotFound
	}
	return copyTable(s.saved), nil
}

func (s *memStore) Save(_ context.Context, t Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = copyTable(t)
	return nil
}

func (s *memStore) snapshot() Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyTable(s.saved)
}

func copyTable(t Table) Table {
	out := make(Table, len(t))
	for k, v := range t {
		out[k] = Record{Likes: v.Likes, Dislikes: v.Dislikes, Voters: append([]string(nil), v.Voters...)}
	}
	return out
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Publish(ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) all() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Event(nil), n.events...)
}

func assertInvariant(t *testing.T, table Table) {
	t.Helper()
	for id, rec := range table {
		assert.Equal(t, len(rec.Voters), rec.Likes+rec.Dislikes, "item %s breaks likes+dislikes == |voters|", id)
	}
}

func newTestLedger(t *testing.T, ids ...string) (*Ledger, *memStore, *recordingNotifier) {
	t.Helper()
	store := &memStore{}
	notifier := &recordingNotifier{}
	return New(context.Background(), ids, store, notifier), store, notifier
}

func TestRegisterVote_Scenario(t *testing.T) {
	l, _, _ := newTestLedger(t, "a", "b")
	ctx := context.Background()

	n, err := l.RegisterVote(ctx, "a", Like, "Sam")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = l.RegisterVote(ctx, "a", Like, "Sam")
	assert.ErrorIs(t, err, ErrDuplicateVote)

	n, err = l.RegisterVote(ctx, "b", Dislike, "Sam")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	snap := l.Snapshot()
	assert.Equal(t, Record{Likes: 1, Dislikes: 0, Voters: []string{"Sam"}}, snap["a"])
	assert.Equal(t, Record{Likes: 0, Dislikes: 1, Voters: []string{"Sam"}}, snap["b"])
}

func TestRegisterVote_DuplicateAcrossCategories(t *testing.T) {
	l, _, notifier := newTestLedger(t, "a")
	ctx := context.Background()

	_, err := l.RegisterVote(ctx, "a", Dislike, "Ana")
	require.NoError(t, err)

	_, err = l.RegisterVote(ctx, "a", Like, "Ana")
	assert.ErrorIs(t, err, ErrDuplicateVote)

	_, err = l.RegisterVote(ctx, "a", Dislike, "  Ana  ")
	assert.ErrorIs(t, err, ErrDuplicateVote, "voter names are compared after trimming")

	snap := l.Snapshot()
	assert.Equal(t, 0, snap["a"].Likes)
	assert.Equal(t, 1, snap["a"].Dislikes)
	assert.Len(t, notifier.all(), 1, "rejected votes must not broadcast")
}

func TestRegisterVote_Rejections(t *testing.T) {
	l, store, notifier := newTestLedger(t, "a")
	savesBefore := store.saves
	ctx := context.Background()

	tests := []struct {
		name     string
		itemID   string
		category Category
		voter    string
		want     error
	}{
		{"unknown item", "zzz", Like, "Sam", ErrUnknownItem},
		{"empty voter", "a", Like, "", ErrInvalidVoter},
		{"blank voter", "a", Like, "   ", ErrInvalidVoter},
		{"bad category", "a", Category("meh"), "Sam", ErrInvalidCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.RegisterVote(ctx, tt.itemID, tt.category, tt.voter)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, savesBefore, store.saves)
	assert.Empty(t, notifier.all())
	assertInvariant(t, l.Snapshot())
}

func TestRegisterVote_PersistsAndPublishes(t *testing.T) {
	l, store, notifier := newTestLedger(t, "a")

	n, err := l.RegisterVote(context.Background(), "a", Like, "Sam")
	require.NoError(t, err)

	assert.Equal(t, Record{Likes: 1, Voters: []string{"Sam"}}, store.snapshot()["a"])
	assert.Equal(t, []Event{{Kind: EventItemUpdated, ItemID: "a", Category: Like, Count: n}}, notifier.all())
}

func TestRegisterVote_PersistenceFailureKeepsVote(t *testing.T) {
	l, store, notifier := newTestLedger(t, "a")
	store.saveErr = errors.New("disk full")

	n, err := l.RegisterVote(context.Background(), "a", Like, "Sam")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)

	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.EqualError(t, pe.Err, "disk full")

	assert.Equal(t, 1, n)
	assert.Equal(t, 1, l.Snapshot()["a"].Likes, "in-memory vote is not rolled back")
	assert.Len(t, notifier.all(), 1, "vote is still broadcast")

	_, err = l.RegisterVote(context.Background(), "a", Dislike, "Sam")
	assert.ErrorIs(t, err, ErrDuplicateVote)
}

func TestRegisterVote_CancelledContextStillApplies(t *testing.T) {
	l, store, _ := newTestLedger(t, "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := l.RegisterVote(ctx, "a", Like, "Sam")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, store.snapshot()["a"].Likes)
}

func TestReset(t *testing.T) {
	l, store, notifier := newTestLedger(t, "a", "b")
	ctx := context.Background()

	for _, v := range []string{"Sam", "Ana", "Lee"} {
		_, err := l.RegisterVote(ctx, "a", Like, v)
		require.NoError(t, err)
		_, err = l.RegisterVote(ctx, "b", Dislike, v)
		require.NoError(t, err)
	}

	require.NoError(t, l.Reset(ctx))

	for id, rec := range l.Snapshot() {
		assert.Zero(t, rec.Likes, id)
		assert.Zero(t, rec.Dislikes, id)
		assert.Empty(t, rec.Voters, id)
	}
	for _, rec := range store.snapshot() {
		assert.Zero(t, rec.Likes+rec.Dislikes)
	}

	events := notifier.all()
	assert.Equal(t, Event{Kind: EventAllReset}, events[len(events)-1])

	// Voters may vote again after a reset.
	n, err := l.RegisterVote(ctx, "a", Dislike, "Sam")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Reset is idempotent.
	require.NoError(t, l.Reset(ctx))
	require.NoError(t, l.Reset(ctx))
	assert.Zero(t, l.Snapshot()["a"].Dislikes)
}

func TestReset_PersistenceFailure(t *testing.T) {
	l, store, notifier := newTestLedger(t, "a")
	_, err := l.RegisterVote(context.Background(), "a", Like, "Sam")
	require.NoError(t, err)

	store.saveErr = errors.New("read-only file system")
	err = l.Reset(context.Background())
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Zero(t, l.Snapshot()["a"].Likes)
	assert.Equal(t, EventAllReset, notifier.all()[1].Kind)
}

func TestNew_BootstrapMerge(t *testing.T) {
	store := &memStore{saved: Table{
		"a":       {Likes: 2, Dislikes: 1, Voters: []string{"Ana", "Lee", "Sam"}},
		"retired": {Likes: 1, Voters: []string{"Sam"}},
	}}

	l := New(context.Background(), []string{"a", "b"}, store, nil)
	snap := l.Snapshot()

	assert.Equal(t, Record{Likes: 2, Dislikes: 1, Voters: []string{"Ana", "Lee", "Sam"}}, snap["a"])
	assert.Equal(t, Record{Voters: []string{}}, snap["b"])
	assert.Equal(t, 1, snap["retired"].Likes, "entries outside the catalog are retained")

	_, err := l.RegisterVote(context.Background(), "retired", Like, "Ana")
	assert.ErrorIs(t, err, ErrUnknownItem)

	_, err = l.RegisterVote(context.Background(), "a", Like, "Sam")
	assert.ErrorIs(t, err, ErrDuplicateVote, "loaded voters are enforced")

	saved := store.snapshot()
	assert.Contains(t, saved, "b", "merged table is written back")
	assert.Contains(t, saved, "retired")
}

func TestNew_InconsistentRecordIsZeroed(t *testing.T) {
	store := &memStore{saved: Table{
		"a": {Likes: 4, Dislikes: 0, Voters: nil},
		"b": {Likes: 2, Voters: []string{"Sam", "Sam"}},
		"c": {Likes: 1, Voters: []string{"Ana"}},
	}}

	l := New(context.Background(), []string{"a", "b", "c"}, store, nil)
	snap := l.Snapshot()

	assert.Zero(t, snap["a"].Likes)
	assert.Zero(t, snap["b"].Likes)
	assert.Equal(t, 1, snap["c"].Likes)
	assertInvariant(t, snap)
}

func TestNew_LoadFailureStartsEmpty(t *testing.T) {
	store := &memStore{loadErr: errors.New("unexpected end of JSON input")}

	l := New(context.Background(), []string{"a"}, store, nil)

	assert.Equal(t, Record{Voters: []string{}}, l.Snapshot()["a"])
	assert.Zero(t, store.saves, "a broken file is not overwritten at startup")

	_, err := l.RegisterVote(context.Background(), "a", Like, "Sam")
	require.NoError(t, err)
	assert.Equal(t, 1, store.saves)
}

func TestConcurrentDistinctVoters(t *testing.T) {
	l, store, notifier := newTestLedger(t, "a")
	const n = 100

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := l.RegisterVote(context.Background(), "a", Like, fmt.Sprintf("voter-%d", i)); err != nil {
				failures.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Zero(t, failures.Load())
	snap := l.Snapshot()
	assert.Equal(t, n, snap["a"].Likes)
	assert.Len(t, snap["a"].Voters, n)
	assert.Equal(t, n, store.snapshot()["a"].Likes, "last save holds the final table")

	counts := make(map[int]bool)
	for _, ev := range notifier.all() {
		counts[ev.Count] = true
	}
	assert.Len(t, counts, n, "every accepted vote publishes a distinct count")
}

func TestConcurrentDuplicateVoters(t *testing.T) {
	l, _, _ := newTestLedger(t, "a")
	const distinct, repeats = 10, 8

	var wg sync.WaitGroup
	var ok, dup atomic.Int32
	for i := 0; i < distinct*repeats; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cat := Like
			if i%2 == 0 {
				cat = Dislike
			}
			_, err := l.RegisterVote(context.Background(), "a", cat, fmt.Sprintf("voter-%d", i%distinct))
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrDuplicateVote):
				dup.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(distinct), ok.Load())
	assert.Equal(t, int32(distinct*(repeats-1)), dup.Load())
	snap := l.Snapshot()
	assert.Equal(t, distinct, snap["a"].Likes+snap["a"].Dislikes)
	assertInvariant(t, snap)
}

func TestConcurrentResetAndVotes(t *testing.T) {
	l, _, _ := newTestLedger(t, "a", "b")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			item := "a"
			if i%2 == 1 {
				item = "b"
			}
			_, _ = l.RegisterVote(ctx, item, Like, fmt.Sprintf("voter-%d", i))
		}(i)
		go func() {
			defer wg.Done()
			assertInvariant(t, l.Snapshot())
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = l.Reset(ctx)
	}()
	wg.Wait()

	assertInvariant(t, l.Snapshot())

	require.NoError(t, l.Reset(ctx))
	for _, rec := range l.Snapshot() {
		assert.Zero(t, rec.Likes+rec.Dislikes)
		assert.Empty(t, rec.Voters)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	l, _, _ := newTestLedger(t, "a")
	_, err := l.RegisterVote(context.Background(), "a", Like, "Sam")
	require.NoError(t, err)

	snap := l.Snapshot()
	snap["a"].Voters[0] = "Mallory"
	delete(snap, "a")

	assert.Equal(t, []string{"Sam"}, l.Snapshot()["a"].Voters)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Like ")
	require.NoError(t, err)
	assert.Equal(t, Like, c)

	c, err = ParseCategory("dislike")
	require.NoError(t, err)
	assert.Equal(t, Dislike, c)

	_, err = ParseCategory("love")
	assert.ErrorIs(t, err, ErrInvalidCategory)
}

func TestKnown(t *testing.T) {
	l, _, _ := newTestLedger(t, "a")
	assert.True(t, l.Known("a"))
	assert.False(t, l.Known("b"))
}
