package services_test

import (
	"context"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gormazar/gormazar-api/config"
	"github.com/gormazar/gormazar-api/metrics"
	"github.com/gormazar/gormazar-api/services"
	"github.com/gormazar/gormazar-api/testutil"
)

func newTracker(t *testing.T) *services.Tracker {
	t.Helper()
	return testutil.NewTracker(t, testutil.NewTestDB(t), nil)
}

func markerScans(t *testing.T, tr *services.Tracker) map[string]int64 {
	t.Helper()
	markers, err := tr.Markers(context.Background())
	require.NoError(t, err)
	out := make(map[string]int64, len(markers))
	for _, m := range markers {
		out[m.ID] = m.Scans
	}
	return out
}

func TestBootstrapSeedsDefaultMarkers(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	tr := testutil.NewTracker(t, db, nil)

	assert.Equal(t, int64(3), tr.TotalMarkers())
	markers, err := tr.Markers(ctx)
	require.NoError(t, err)
	require.Len(t, markers, 3)
	for _, m := range markers {
		assert.Zero(t, m.Scans)
	}

	summary, err := tr.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.UniqueUsers)
	assert.Zero(t, summary.SessionsCount)
	assert.Zero(t, summary.AverageSessionTime)
}

func TestBootstrapIsIdempotentAndKeepsCounts(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	tr := testutil.NewTracker(t, db, nil)

	_, err := tr.RegisterUser(ctx, "dev-1")
	require.NoError(t, err)
	_, err = tr.Scan(ctx, "irlSoldier", "dev-1")
	require.NoError(t, err)

	again := services.NewTracker(db, nil)
	seeds := []config.MarkerSeed{config.DefaultMarkers[0]}
	seeds = append(seeds, config.DefaultMarkers...)
	require.NoError(t, again.Bootstrap(ctx, seeds))

	assert.Equal(t, int64(3), again.TotalMarkers())
	scans := markerScans(t, again)
	assert.Equal(t, int64(1), scans["irlSoldier"])

	summary, err := again.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.UniqueUsers)
}

func TestBootstrapSanitizesMarkerNames(t *testing.T) {
	ctx := context.Background()
	tr := services.NewTracker(testutil.NewTestDB(t), nil)
	require.NoError(t, tr.Bootstrap(ctx, []config.MarkerSeed{
		{ID: "m1", Name: "<b>Tower</b> <script>alert(1)</script>gate"},
	}))

	markers, err := tr.Markers(ctx)
	require.NoError(t, err)
	require.Len(t, markers, 1)
	assert.Equal(t, "Tower gate", markers[0].Name)
}

func TestRegisterUserIsIdempotent(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t)
	before := promtest.ToFloat64(metrics.Registrations.WithLabelValues("created"))

	created, err := tr.RegisterUser(ctx, "dev-1")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = tr.RegisterUser(ctx, "dev-1")
	require.NoError(t, err)
	assert.False(t, created)

	summary, err := tr.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.UniqueUsers)
	assert.Equal(t, before+1, promtest.ToFloat64(metrics.Registrations.WithLabelValues("created")))

	u, err := tr.User(ctx, "dev-1")
	require.NoError(t, err)
	assert.Empty(t, u.Scanned)
	assert.False(t, u.Completed)
	assert.Zero(t, u.TotalTime)
}

func TestRegisterUserRejectsBadIDs(t *testing.T) {
	tr := newTracker(t)
	long := make([]byte, services.MaxUserIDLen+1)
	for i := range long {
		long[i] = 'a'
	}

	for _, id := range []string{"", string(long)} {
		_, err := tr.RegisterUser(context.Background(), id)
		assert.ErrorIs(t, err, services.ErrInvalidRequest)
	}
}

// Scenario: a visitor registers and scans all three markers.
func TestScanCompletesAfterEveryMarker(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t)
	_, err := tr.RegisterUser(ctx, "dev-1")
	require.NoError(t, err)
	before := promtest.ToFloat64(metrics.Completions)

	res, err := tr.Scan(ctx, "irlSoldier", "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "Soldier in north wall", res.Name)
	assert.Equal(t, int64(1), res.Scans)
	assert.Equal(t, []string{"irlSoldier"}, res.UserScanned)

	_, err = tr.Scan(ctx, "irlDate", "dev-1")
	require.NoError(t, err)
	u, err := tr.User(ctx, "dev-1")
	require.NoError(t, err)
	assert.False(t, u.Completed)

	res, err = tr.Scan(ctx, "irlMonk", "dev-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"irlSoldier", "irlDate", "irlMonk"}, res.UserScanned)

	u, err = tr.User(ctx, "dev-1")
	require.NoError(t, err)
	assert.True(t, u.Completed)

	summary, err := tr.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.UsersCompleted)
	assert.Equal(t, before+1, promtest.ToFloat64(metrics.Completions))
}

func TestRescanGrowsMarkerCountOnly(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t)
	_, err := tr.RegisterUser(ctx, "dev-1")
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		res, err := tr.Scan(ctx, "irlDate", "dev-1")
		require.NoError(t, err)
		assert.Equal(t, int64(i), res.Scans)
		assert.Equal(t, []string{"irlDate"}, res.UserScanned)
	}
}

func TestCompletionCountedOnceOnRescan(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t)
	_, err := tr.RegisterUser(ctx, "dev-1")
	require.NoError(t, err)

	for _, id := range []string{"irlMonk", "irlDate", "irlSoldier", "irlSoldier", "irlMonk"} {
		_, err := tr.Scan(ctx, id, "dev-1")
		require.NoError(t, err)
	}

	summary, err := tr.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.UsersCompleted)
}

// Scenario: a scan from a device that never registered.
func TestScanByUnregisteredUserKeepsMarkerCount(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t)

	_, err := tr.Scan(ctx, "irlSoldier", "ghost")
	require.ErrorIs(t, err, services.ErrUserNotFound)
	assert.ErrorIs(t, err, services.ErrNotFound)

	assert.Equal(t, int64(1), markerScans(t, tr)["irlSoldier"])
	_, err = tr.User(ctx, "ghost")
	assert.ErrorIs(t, err, services.ErrUserNotFound)
}

// Scenario: a scan of a marker id that was never seeded.
func TestScanUnknownMarkerHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t)
	_, err := tr.RegisterUser(ctx, "dev-1")
	require.NoError(t, err)

	_, err = tr.Scan(ctx, "irlDragon", "dev-1")
	require.ErrorIs(t, err, services.ErrMarkerNotFound)

	for _, n := range markerScans(t, tr) {
		assert.Zero(t, n)
	}
	u, err := tr.User(ctx, "dev-1")
	require.NoError(t, err)
	assert.Empty(t, u.Scanned)
}

func TestScanWithoutUserIDIsRejected(t *testing.T) {
	tr := newTracker(t)

	_, err := tr.Scan(context.Background(), "irlSoldier", "")
	require.ErrorIs(t, err, services.ErrInvalidRequest)
	assert.Zero(t, markerScans(t, tr)["irlSoldier"])
}

// Scenario: three sessions end with durations 10, 20 and 30.
func TestEndSessionRunningAverage(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t)

	want := []struct {
		duration float64
		average  float64
	}{
		{10, 10},
		{20, 15},
		{30, 20},
	}
	for i, w := range want {
		res, err := tr.EndSession(ctx, "dev-1", w.duration)
		require.NoError(t, err)
		assert.Equal(t, w.duration, res.SessionDuration)
		assert.InDelta(t, w.average, res.AverageSessionTime, 1e-9)
		assert.Equal(t, int64(i+1), res.SessionsCount)
	}

	summary, err := tr.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.SessionsCount)
	assert.InDelta(t, 20, summary.AverageSessionTime, 1e-9)
}

func TestEndSessionRejectsNegativeDuration(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t)

	_, err := tr.EndSession(ctx, "dev-1", -1)
	require.ErrorIs(t, err, services.ErrInvalidRequest)

	summary, err := tr.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.SessionsCount)
}

func TestUpdateSessionTime(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t)
	for _, id := range []string{"dev-1", "dev-2"} {
		_, err := tr.RegisterUser(ctx, id)
		require.NoError(t, err)
	}

	res, err := tr.UpdateSessionTime(ctx, "dev-1", 30)
	require.NoError(t, err)
	assert.Equal(t, 30.0, res.SessionTime)
	assert.Equal(t, 30.0, res.TotalTime)
	assert.InDelta(t, 15, res.AverageTime, 1e-9)

	res, err = tr.UpdateSessionTime(ctx, "dev-1", 12.5)
	require.NoError(t, err)
	assert.Equal(t, 42.5, res.TotalTime)

	res, err = tr.UpdateSessionTime(ctx, "dev-2", 0)
	require.NoError(t, err)
	assert.Zero(t, res.TotalTime)
	assert.InDelta(t, 21.25, res.AverageTime, 1e-9)

	summary, err := tr.Stats(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 21.25, summary.AverageUserTime, 1e-9)
}

func TestUpdateSessionTimeUnknownUser(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t)

	_, err := tr.UpdateSessionTime(ctx, "ghost", 5)
	require.ErrorIs(t, err, services.ErrUserNotFound)

	summary, err := tr.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.AverageUserTime)
}

func TestStatsListsMarkersInOrder(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t)
	_, err := tr.RegisterUser(ctx, "dev-1")
	require.NoError(t, err)
	_, err = tr.Scan(ctx, "irlMonk", "dev-1")
	require.NoError(t, err)

	summary, err := tr.Stats(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(summary.Markers))
	for _, m := range summary.Markers {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"irlDate", "irlMonk", "irlSoldier"}, ids)
	assert.Equal(t, int64(1), summary.Markers[1].Scans)
}
