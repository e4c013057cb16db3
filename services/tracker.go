package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"gorm.io/gorm"

	"github.com/gormazar/gormazar-api/config"
	"github.com/gormazar/gormazar-api/metrics"
	"github.com/gormazar/gormazar-api/models"
	"github.com/gormazar/gormazar-api/store"
	"github.com/gormazar/gormazar-api/utils"
)

// MaxUserIDLen bounds client supplied device identifiers.
const MaxUserIDLen = 128

const statsCacheKey = "gormazar:stats:summary"

// Tracker runs the registration, scan and session use cases against the stores.
// It keeps no domain state between requests; totalMarkers is fixed at bootstrap.
type Tracker struct {
	db       *gorm.DB
	markers  *store.MarkerStore
	users    *store.UserStore
	stats    *store.StatsStore
	activity *store.ActivityStore
	cache    *utils.Cache

	totalMarkers atomic.Int64
	// statsGen moves on every invalidation; a summary read under an older
	// generation is not written back to the cache.
	statsGen atomic.Uint64
}

// ScanResult is returned for an accepted marker scan.
type ScanResult struct {
	Name        string   `json:"name"`
	Scans       int64    `json:"scans"`
	UserScanned []string `json:"user_scanned"`
}

// SessionResult is returned when a session ends.
type SessionResult struct {
	SessionDuration    float64 `json:"session_duration"`
	AverageSessionTime float64 `json:"average_session_time"`
	SessionsCount      int64   `json:"sessions_count"`
}

// SessionTimeResult is returned when a user's cumulative time is updated.
type SessionTimeResult struct {
	SessionTime float64 `json:"session_time"`
	TotalTime   float64 `json:"total_time"`
	AverageTime float64 `json:"average_time"`
}

// StatsSummary is the public view of the global aggregate.
type StatsSummary struct {
	UniqueUsers        int64           `json:"unique_users"`
	UsersCompleted     int64           `json:"users_completed"`
	SessionsCount      int64           `json:"sessions_count"`
	AverageSessionTime float64         `json:"average_session_time"`
	AverageUserTime    float64         `json:"average_user_time"`
	Markers            []models.Marker `json:"markers"`
}

// UserView is the public view of one user.
type UserView struct {
	UserID    string   `json:"user_id"`
	Scanned   []string `json:"scanned"`
	Completed bool     `json:"completed"`
	TotalTime float64  `json:"total_time"`
}

// NewTracker builds a Tracker over db. cache may be nil.
func NewTracker(db *gorm.DB, cache *utils.Cache) *Tracker {
	return &Tracker{
		db:       db,
		markers:  store.NewMarkerStore(db),
		users:    store.NewUserStore(db),
		stats:    store.NewStatsStore(db),
		activity: store.NewActivityStore(db),
		cache:    cache,
	}
}

// Bootstrap seeds markers, creates the stats row and fixes the completion threshold.
// Safe to run on every start.
func (t *Tracker) Bootstrap(ctx context.Context, seeds []config.MarkerSeed) error {
	rows := make([]models.Marker, 0, len(seeds))
	for _, s := range seeds {
		rows = append(rows, models.Marker{ID: s.ID, Name: utils.SanitizeText(s.Name)})
	}
	rows = utils.UniqueBy(rows, func(m models.Marker) string { return m.ID })

	created, err := t.markers.Seed(ctx, rows)
	if err != nil {
		return err
	}
	if err := t.stats.Ensure(ctx); err != nil {
		return err
	}
	n, err := t.markers.Count(ctx)
	if err != nil {
		return fmt.Errorf("count markers: %w", err)
	}
	t.totalMarkers.Store(n)
	t.invalidate(ctx)

	utils.Sugar.Infof("bootstrap done: %d markers known, %d seeded", n, created)
	return nil
}

// TotalMarkers is the scanned-set size at which a user completes the hunt.
func (t *Tracker) TotalMarkers() int64 {
	return t.totalMarkers.Load()
}

// RegisterUser creates the user if it is new. created is false when the id was
// already registered; the unique-user counter moves only with an actual creation.
func (t *Tracker) RegisterUser(ctx context.Context, userID string) (bool, error) {
	if err := checkUserID(userID); err != nil {
		return false, err
	}

	var created bool
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = t.users.WithTx(tx).Register(ctx, userID)
		if err != nil || !created {
			return err
		}
		return t.stats.WithTx(tx).IncrementUniqueUsers(ctx)
	})
	if err != nil {
		return false, fmt.Errorf("register %s: %w", userID, err)
	}

	if created {
		metrics.Registrations.WithLabelValues("created").Inc()
		t.invalidate(ctx)
		utils.Sugar.Infow("user registered", "user_id", userID)
	} else {
		metrics.Registrations.WithLabelValues("existing").Inc()
	}
	return created, nil
}

// Scan counts one scan of markerID by userID.
//
// The marker counter is incremented first and is not rolled back when the user
// turns out to be unregistered: the scan happened, only its attribution failed.
func (t *Tracker) Scan(ctx context.Context, markerID, userID string) (ScanResult, error) {
	if userID == "" {
		return ScanResult{}, fmt.Errorf("%w: missing user_id", ErrInvalidRequest)
	}

	marker, err := t.markers.RecordScan(ctx, markerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ScanResult{}, fmt.Errorf("%w: %s", ErrMarkerNotFound, markerID)
		}
		return ScanResult{}, fmt.Errorf("record scan %s: %w", markerID, err)
	}
	metrics.MarkerScans.WithLabelValues(marker.ID).Inc()
	t.invalidate(ctx)

	scanned, justCompleted, err := t.addScan(ctx, userID, marker.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Sugar.Warnw("scan by unregistered user; marker count kept", "user_id", userID, "marker", marker.ID)
			return ScanResult{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return ScanResult{}, fmt.Errorf("add scan for %s: %w", userID, err)
	}
	if justCompleted {
		metrics.Completions.Inc()
		utils.Sugar.Infow("user completed the hunt", "user_id", userID)
	}

	return ScanResult{
		Name:        marker.Name,
		Scans:       marker.Scans,
		UserScanned: scanned,
	}, nil
}

// addScan extends the user's set and, when it has reached every known marker,
// performs the one-time completion together with the completed-users increment.
func (t *Tracker) addScan(ctx context.Context, userID, markerID string) ([]string, bool, error) {
	scanned, err := t.users.AddScan(ctx, userID, markerID)
	if err != nil {
		return nil, false, err
	}

	total := t.totalMarkers.Load()
	if total == 0 || int64(len(scanned)) < total {
		return scanned, false, nil
	}

	var justCompleted bool
	err = t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		justCompleted, err = t.users.WithTx(tx).MarkCompleted(ctx, userID)
		if err != nil || !justCompleted {
			return err
		}
		return t.stats.WithTx(tx).IncrementCompletedUsers(ctx)
	})
	if err != nil {
		return nil, false, err
	}
	return scanned, justCompleted, nil
}

// EndSession records one finished session. The average is derived from the
// running sum and count, so concurrent calls commute.
func (t *Tracker) EndSession(ctx context.Context, userID string, duration float64) (SessionResult, error) {
	if err := checkSeconds("duration", duration); err != nil {
		return SessionResult{}, err
	}

	st, err := t.stats.RecordSession(ctx, duration)
	if err != nil {
		return SessionResult{}, fmt.Errorf("record session: %w", err)
	}
	metrics.SessionDuration.Observe(duration)
	t.invalidate(ctx)
	utils.Sugar.Debugw("session ended", "user_id", userID, "duration", duration)

	return SessionResult{
		SessionDuration:    duration,
		AverageSessionTime: st.AverageSessionTime(),
		SessionsCount:      st.SessionsCount,
	}, nil
}

// UpdateSessionTime adds seconds to a registered user's cumulative time and
// returns the mean cumulative time across users.
func (t *Tracker) UpdateSessionTime(ctx context.Context, userID string, seconds float64) (SessionTimeResult, error) {
	if err := checkSeconds("session_time", seconds); err != nil {
		return SessionTimeResult{}, err
	}

	var (
		total float64
		st    models.GlobalStats
	)
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		total, err = t.users.WithTx(tx).AddSessionTime(ctx, userID, seconds)
		if err != nil {
			return err
		}
		stats := t.stats.WithTx(tx)
		if err := stats.AddUserTime(ctx, seconds); err != nil {
			return err
		}
		st, err = stats.Get(ctx)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return SessionTimeResult{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return SessionTimeResult{}, fmt.Errorf("update session time for %s: %w", userID, err)
	}
	t.invalidate(ctx)

	return SessionTimeResult{
		SessionTime: seconds,
		TotalTime:   total,
		AverageTime: st.AverageUserTime(),
	}, nil
}

// Stats returns the global aggregate with per-marker counts.
func (t *Tracker) Stats(ctx context.Context) (StatsSummary, error) {
	var summary StatsSummary
	if t.cache.GetJSON(ctx, statsCacheKey, &summary) {
		return summary, nil
	}

	gen := t.statsGen.Load()
	summary, err := t.loadStats(ctx)
	if err != nil {
		return StatsSummary{}, err
	}
	t.cacheStats(ctx, gen, summary)
	return summary, nil
}

func (t *Tracker) loadStats(ctx context.Context) (StatsSummary, error) {
	st, err := t.stats.Get(ctx)
	if err != nil {
		return StatsSummary{}, fmt.Errorf("load stats: %w", err)
	}
	markers, err := t.markers.List(ctx)
	if err != nil {
		return StatsSummary{}, fmt.Errorf("list markers: %w", err)
	}
	return StatsSummary{
		UniqueUsers:        st.UniqueUsers,
		UsersCompleted:     st.UsersCompleted,
		SessionsCount:      st.SessionsCount,
		AverageSessionTime: st.AverageSessionTime(),
		AverageUserTime:    st.AverageUserTime(),
		Markers:            markers,
	}, nil
}

// cacheStats stores summary unless a mutation invalidated the cache after gen was
// taken. An invalidation racing the write is caught by the second check.
func (t *Tracker) cacheStats(ctx context.Context, gen uint64, summary StatsSummary) {
	if t.statsGen.Load() != gen {
		return
	}
	t.cache.SetJSON(ctx, statsCacheKey, summary)
	if t.statsGen.Load() != gen {
		t.cache.Delete(ctx, statsCacheKey)
	}
}

// Markers lists every known marker.
func (t *Tracker) Markers(ctx context.Context) ([]models.Marker, error) {
	return t.markers.List(ctx)
}

// User returns one registered user.
func (t *Tracker) User(ctx context.Context, userID string) (UserView, error) {
	if err := checkUserID(userID); err != nil {
		return UserView{}, err
	}
	u, scanned, err := t.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return UserView{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return UserView{}, err
	}
	return UserView{
		UserID:    u.ID,
		Scanned:   scanned,
		Completed: u.Completed,
		TotalTime: u.TotalTime,
	}, nil
}

func (t *Tracker) invalidate(ctx context.Context) {
	t.statsGen.Add(1)
	t.cache.Delete(ctx, statsCacheKey)
}

func checkUserID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidRequest)
	}
	if len(id) > MaxUserIDLen {
		return fmt.Errorf("%w: user id longer than %d characters", ErrInvalidRequest, MaxUserIDLen)
	}
	return nil
}
