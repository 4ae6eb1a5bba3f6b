package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/airport-borders/internal/geo"
	"github.com/sells-group/airport-borders/internal/model"
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

func testRegions(t *testing.T) []geo.Region {
	t.Helper()
	outer := geo.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	hole := geo.Ring{{4, 4}, {6, 4}, {6, 6}, {4, 6}}
	r0, err := geo.NewRegion(0, []geo.Ring{outer, hole})
	require.NoError(t, err)
	r2, err := geo.NewRegion(2, []geo.Ring{{{20, 0}, {21, 0}, {21, 1}, {20, 1}}})
	require.NoError(t, err)
	return []geo.Region{r0, {ID: 1}, r2}
}

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	input := model.RunInput{AirportsPath: "a.csv", BordersPath: "b.geo.json", ThresholdMeters: 50000, Concurrency: 2}
	run, err := st.CreateRun(ctx, input)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, input, got.Input)
	assert.Nil(t, got.FinishedAt)

	stats := geo.Stats{Points: 3, Regions: 2, Contained: 1, Proximity: 1, Unassigned: 1}
	require.NoError(t, st.FinishRun(ctx, run.ID, model.RunStatusComplete, stats, nil))

	got, err = st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, stats, got.Stats)
	assert.Empty(t, got.Error)
	require.NotNil(t, got.FinishedAt)
	assert.False(t, got.FinishedAt.Before(got.CreatedAt))
}

func TestSQLite_FinishRunFailed(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, model.RunInput{})
	require.NoError(t, err)
	require.NoError(t, st.FinishRun(ctx, run.ID, model.RunStatusFailed, geo.Stats{}, errors.New("boom")))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
}

func TestSQLite_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = st.FinishRun(ctx, "missing", model.RunStatusComplete, geo.Stats{}, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		run, err := st.CreateRun(ctx, model.RunInput{Concurrency: i})
		require.NoError(t, err)
		if i == 0 {
			require.NoError(t, st.FinishRun(ctx, run.ID, model.RunStatusComplete, geo.Stats{}, nil))
		}
	}

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	running, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusRunning})
	require.NoError(t, err)
	assert.Len(t, running, 2)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	offset, err := st.ListRuns(ctx, RunFilter{Limit: 10, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, offset, 1)

	recent, err := st.ListRuns(ctx, RunFilter{CreatedAfter: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	assert.Len(t, recent, 3)

	future, err := st.ListRuns(ctx, RunFilter{CreatedAfter: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, future)
}

func TestSQLite_Regions(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, model.RunInput{})
	require.NoError(t, err)
	require.NoError(t, st.SaveRegions(ctx, run.ID, testRegions(t)))

	regions, err := st.LoadRegions(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, regions, 3)

	assert.Equal(t, 0, regions[0].ID)
	assert.True(t, regions[0].Polygon.Contains(2, 2))
	assert.False(t, regions[0].Polygon.Contains(5, 5), "hole survives the round trip")
	assert.Nil(t, regions[1].Polygon)
	assert.Equal(t, 2, regions[2].ID)
	assert.True(t, regions[2].Polygon.Contains(20.5, 0.5))
}

func TestSQLite_Assignments(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, model.RunInput{})
	require.NoError(t, err)

	res := &geo.Result{
		Assignments: map[int][]string{0: {"AAAA", "BBBB"}},
		Unassigned:  []string{"ZZZZ"},
		Matches:     []geo.Match{{PointID: "BBBB", RegionID: 0, DistanceMeters: 42.5}},
	}
	rows := model.NewAssignments(run.ID, res)
	require.NoError(t, st.SaveAssignments(ctx, rows))

	got, err := st.GetAssignments(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	back := model.ToResult(got)
	assert.Equal(t, res.Assignments, back.Assignments)
	assert.Equal(t, res.Unassigned, back.Unassigned)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	st, err := Open(ctx, "sqlite", filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	_, err = st.CreateRun(ctx, model.RunInput{})
	require.NoError(t, err)

	_, err = Open(ctx, "oracle", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestEncodePolygon_Nil(t *testing.T) {
	data, err := encodePolygon(nil)
	require.NoError(t, err)
	assert.Nil(t, data)

	r, err := decodeRegion(4, nil)
	require.NoError(t, err)
	assert.Equal(t, geo.Region{ID: 4}, r)

	_, err = decodeRegion(4, []byte{0x01, 0x02})
	require.Error(t, err)
}
