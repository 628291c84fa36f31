package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchURL(t *testing.T) {
	assert.Equal(t, "https://www.google.com/maps/search/coffee%20shops%20in%20Paris",
		SearchURL("https://www.google.com/maps/", "coffee shops in Paris"))
}

func TestLoop_StopsAtCap(t *testing.T) {
	page := &feedPage{initial: 5, growth: []int{10, 20, 30, 40}}
	var reports []int
	loop := NewLoop(page, testLoopConfig(), func(q string, n int) {
		assert.Equal(t, "coffee", q)
		reports = append(reports, n)
	})

	refs, err := loop.Discover(context.Background(), "coffee", 15)
	require.NoError(t, err)

	assert.Len(t, refs, 15)
	assert.Equal(t, 2, page.scrolls)
	assert.Equal(t, []int{10, 20}, reports)
	assert.Equal(t, []string{"https://www.google.com/maps/search/coffee"}, page.navigated)
	for _, r := range refs {
		assert.Equal(t, "coffee", r.Query)
	}
	assert.Equal(t, "0x0:0x0", refs[0].ID)
}

func TestLoop_StopsOnStall(t *testing.T) {
	page := &feedPage{initial: 5, growth: []int{8, 8, 8, 8, 8}}
	loop := NewLoop(page, testLoopConfig(), nil)

	refs, err := loop.Discover(context.Background(), "tea", 30)
	require.NoError(t, err)

	// 5 -> 8 grows, then two unchanged rounds hit the stall limit.
	assert.Equal(t, 3, page.scrolls)
	assert.Len(t, refs, 8)
}

func TestLoop_BoundedRounds(t *testing.T) {
	page := &feedPage{initial: 1, growth: []int{2, 3, 4, 5, 6, 7, 8, 9, 10}}
	cfg := testLoopConfig()
	loop := NewLoop(page, cfg, nil)

	refs, err := loop.Discover(context.Background(), "bars", 100)
	require.NoError(t, err)

	assert.Equal(t, cfg.MaxRounds, page.scrolls)
	assert.Len(t, refs, 7)
}

func TestLoop_NoResults(t *testing.T) {
	page := &feedPage{initial: 0}
	loop := NewLoop(page, testLoopConfig(), nil)

	refs, err := loop.Discover(context.Background(), "nothing matches", 10)
	require.NoError(t, err)
	assert.Empty(t, refs)
	assert.Equal(t, 0, page.scrolls)
}

func TestLoop_NavigationFailureIsEmpty(t *testing.T) {
	page := &feedPage{initial: 10, navErr: errors.New("navigation timeout")}
	loop := NewLoop(page, testLoopConfig(), nil)

	refs, err := loop.Discover(context.Background(), "coffee", 10)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestLoop_ScrollFailureKeepsVisible(t *testing.T) {
	page := &feedPage{initial: 4, scrollErr: errors.New("detached")}
	loop := NewLoop(page, testLoopConfig(), nil)

	refs, err := loop.Discover(context.Background(), "coffee", 10)
	require.NoError(t, err)
	assert.Len(t, refs, 4)
}

func TestLoop_FoldsDuplicateAnchors(t *testing.T) {
	page := &feedPage{initial: 6, dupEvery: 2}
	loop := NewLoop(page, testLoopConfig(), nil)

	refs, err := loop.Discover(context.Background(), "coffee", 10)
	require.NoError(t, err)

	// Anchors: P0 P1 P1 P3 P3 P5 -> P0 P1 P3 P5.
	require.Len(t, refs, 4)
	ids := []string{refs[0].ID, refs[1].ID, refs[2].ID, refs[3].ID}
	assert.Equal(t, []string{"0x0:0x0", "0x1:0x1", "0x3:0x3", "0x5:0x5"}, ids)
}

func TestLoop_ZeroCap(t *testing.T) {
	page := &feedPage{initial: 6}
	refs, err := NewLoop(page, testLoopConfig(), nil).Discover(context.Background(), "coffee", 0)
	require.NoError(t, err)
	assert.Empty(t, refs)
	assert.Empty(t, page.navigated)
}

func TestLoop_Cancelled(t *testing.T) {
	page := &feedPage{initial: 6}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testLoopConfig()
	cfg.SearchSettle = 1
	_, err := NewLoop(page, cfg, nil).Discover(ctx, "coffee", 10)
	assert.ErrorIs(t, err, context.Canceled)
}
