package main

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/maps-cli/internal/model"
	"github.com/sells-group/maps-cli/internal/pipeline"
	"github.com/sells-group/maps-cli/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "maps.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// fakeScraper returns a canned result and records queries.
type fakeScraper struct {
	mu      sync.Mutex
	places  []model.Place
	err     error
	queries []string
}

func (f *fakeScraper) Run(_ context.Context, query string, total int, progress pipeline.Progress) (*pipeline.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if progress != nil {
		progress.Message("Searching: " + query)
		progress.Fraction(1)
	}
	places := f.places
	if len(places) > total {
		places = places[:total]
	}
	return &pipeline.Result{
		Query:      query,
		Total:      total,
		Candidates: len(f.places),
		Visited:    len(places),
		Places:     places,
	}, f.err
}

func (f *fakeScraper) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func samplePlaces(n int) []model.Place {
	out := make([]model.Place, n)
	for i := range out {
		p := model.NewPlace()
		p.Name = "Place " + string(rune('A'+i))
		p.SourceURL = "https://maps.test/place/" + string(rune('a'+i))
		out[i] = p
	}
	return out
}

func storeFilterAll() store.RunFilter {
	return store.RunFilter{Limit: 100}
}
