package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/maps-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func testPlaces() []model.Place {
	a := model.NewPlace()
	a.Name = "Cafe de Flore"
	a.Address = "172 Bd Saint-Germain"
	a.ReviewsCount = intPtr(1234)
	a.ReviewsAverage = floatPtr(4.3)
	a.SourceURL = "https://maps.test/place/flore"

	b := model.NewPlace()
	b.Name = "Les Deux Magots"
	b.StoreDelivery = model.FlagYes
	b.SourceURL = "https://maps.test/place/magots"
	return []model.Place{a, b}
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "coffee paris", 30)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning))
	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, got.Status)
	assert.Equal(t, "coffee paris", got.Query)
	assert.Equal(t, 30, got.Total)

	require.NoError(t, st.CompleteRun(ctx, run.ID, model.RunResult{
		Status:     model.RunStatusComplete,
		Candidates: 28,
		Places:     25,
	}))
	got, err = st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, 28, got.Candidates)
	assert.Equal(t, 25, got.PlacesCount)
	assert.Empty(t, got.Error)
}

func TestSQLite_FailedRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "coffee", 10)
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, run.ID, model.RunResult{
		Status: model.RunStatusFailed,
		Error:  "browser: session init failed",
	}))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "browser: session init failed", got.Error)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_UpdateRunStatus_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateRunStatus(context.Background(), "missing", model.RunStatusRunning)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_ListRuns_Filter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateRun(ctx, "coffee shops in paris", 10)
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "bakery", 10)
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunStatus(ctx, a.ID, model.RunStatusComplete))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	done, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, a.ID, done[0].ID)

	bakery, err := st.ListRuns(ctx, RunFilter{Query: "bakery"})
	require.NoError(t, err)
	require.Len(t, bakery, 1)
	assert.Equal(t, "bakery", bakery[0].Query)

	coffee, err := st.ListRuns(ctx, RunFilter{Query: "Coffee"})
	require.NoError(t, err)
	require.Len(t, coffee, 1)
	assert.Equal(t, a.ID, coffee[0].ID)

	none, err := st.ListRuns(ctx, RunFilter{Query: "tea"})
	require.NoError(t, err)
	assert.Empty(t, none)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_ListRuns_QueryWildcardsLiteral(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	pct, err := st.CreateRun(ctx, "100% juice bars", 10)
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "1000 juice bars", 10)
	require.NoError(t, err)
	under, err := st.CreateRun(ctx, "snake_case cafes", 10)
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "snakeXcase cafes", 10)
	require.NoError(t, err)

	runs, err := st.ListRuns(ctx, RunFilter{Query: "100%"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, pct.ID, runs[0].ID)

	runs, err = st.ListRuns(ctx, RunFilter{Query: "e_c"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, under.ID, runs[0].ID)
}

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, "%coffee%", containsPattern("coffee"))
	assert.Equal(t, `%50\% off\_now\\%`, containsPattern(`50% off_now\`))
}

func TestSQLite_ListRuns_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	runs, err := st.ListRuns(context.Background(), RunFilter{})
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestSQLite_SaveAndListPlaces(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "coffee", 10)
	require.NoError(t, err)
	require.NoError(t, st.SavePlaces(ctx, run.ID, testPlaces()))

	got, err := st.ListPlaces(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, testPlaces(), got)
	assert.Nil(t, got[1].ReviewsCount)
	assert.Nil(t, got[1].ReviewsAverage)
	assert.Equal(t, model.FlagYes, got[1].StoreDelivery)
}

func TestSQLite_SavePlaces_Replaces(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "coffee", 10)
	require.NoError(t, err)
	require.NoError(t, st.SavePlaces(ctx, run.ID, testPlaces()))
	require.NoError(t, st.SavePlaces(ctx, run.ID, testPlaces()[:1]))

	got, err := st.ListPlaces(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Cafe de Flore", got[0].Name)
}

func TestSQLite_ListPlaces_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.ListPlaces(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}
