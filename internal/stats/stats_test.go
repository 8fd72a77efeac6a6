package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackvote/backend/internal/catalog"
	"github.com/trackvote/backend/internal/ledger"
)

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ItemID
	}
	return out
}

func TestScenario(t *testing.T) {
	items := []catalog.Item{
		{ID: "a", Name: "Alpha", Artist: "X", Popularity: 50},
		{ID: "b", Name: "Beta", Artist: "Y", Popularity: 90},
	}
	table := ledger.Table{
		"a": {Likes: 1, Voters: []string{"Sam"}},
		"b": {Dislikes: 1, Voters: []string{"Sam"}},
	}

	assert.Equal(t, []Entry{{ItemID: "b", Name: "Beta", Artist: "Y", Value: 90}}, TopPopular(items, 1))
	assert.Equal(t, []Entry{{ItemID: "a", Name: "Alpha", Artist: "X", Value: 1}}, TopLiked(items, table, 1))
	assert.Equal(t, []Entry{{ItemID: "b", Name: "Beta", Artist: "Y", Value: 1}}, TopDisliked(items, table, 1))
}

func TestTiesKeepCatalogOrder(t *testing.T) {
	items := []catalog.Item{
		{ID: "c", Popularity: 10},
		{ID: "a", Popularity: 30},
		{ID: "d", Popularity: 10},
		{ID: "b", Popularity: 30},
	}
	table := ledger.Table{
		"d": {Likes: 2},
		"b": {Likes: 2},
	}

	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(TopPopular(items, 10)))
	assert.Equal(t, []string{"d", "b", "c", "a"}, ids(TopLiked(items, table, 10)))
	assert.Equal(t, []string{"c", "a", "d", "b"}, ids(TopDisliked(items, table, 10)), "all zero keeps playlist order")
}

func TestTruncation(t *testing.T) {
	items := []catalog.Item{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	assert.Len(t, TopPopular(items, 2), 2)
	assert.Len(t, TopPopular(items, 50), 3)
	assert.Empty(t, TopPopular(items, 0))
	assert.NotNil(t, TopPopular(items, -1))
	assert.Empty(t, TopPopular(nil, 5))
}

func TestMissingRecordCountsAsZero(t *testing.T) {
	items := []catalog.Item{{ID: "a"}, {ID: "b"}}
	table := ledger.Table{"b": {Likes: 3}}

	got := TopLiked(items, table, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ItemID)
	assert.Equal(t, 0, got[1].Value)
}

func TestCompute(t *testing.T) {
	items := []catalog.Item{{ID: "a", Popularity: 5}, {ID: "b", Popularity: 7}}
	table := ledger.Table{"a": {Likes: 1}, "b": {Dislikes: 4}}

	s := Compute(items, table, DefaultTopN)

	assert.Equal(t, []string{"a", "b"}, ids(s.TopLiked))
	assert.Equal(t, []string{"b", "a"}, ids(s.TopDisliked))
	assert.Equal(t, []string{"b", "a"}, ids(s.TopPopular))
}
