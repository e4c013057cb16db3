package services

import (
	"context"
	"math"
	"time"

	"github.com/gormazar/gormazar-api/metrics"
	"github.com/gormazar/gormazar-api/utils"
)

// AuditReport compares stored counters with values recomputed from user rows.
type AuditReport struct {
	UniqueUsers       int64
	Users             int64
	UsersCompleted    int64
	CompletedUsers    int64
	TotalUserTime     float64
	RecomputedTime    float64
	RecomputedAverage float64
}

// Consistent reports whether every stored counter matches its recomputed value.
func (r AuditReport) Consistent() bool {
	return r.UniqueUsers == r.Users &&
		r.UsersCompleted == r.CompletedUsers &&
		math.Abs(r.TotalUserTime-r.RecomputedTime) <= 1e-6*math.Max(1, math.Abs(r.RecomputedTime))
}

// Audit recomputes the user-derived aggregates. It never rewrites counters.
func (t *Tracker) Audit(ctx context.Context) (AuditReport, error) {
	st, err := t.stats.Get(ctx)
	if err != nil {
		return AuditReport{}, err
	}
	users, completed, err := t.stats.CountUsers(ctx)
	if err != nil {
		return AuditReport{}, err
	}
	avg, sum, err := t.stats.ComputeAverageFromUserTimes(ctx)
	if err != nil {
		return AuditReport{}, err
	}

	r := AuditReport{
		UniqueUsers:       st.UniqueUsers,
		Users:             users,
		UsersCompleted:    st.UsersCompleted,
		CompletedUsers:    completed,
		TotalUserTime:     st.TotalUserTime,
		RecomputedTime:    sum,
		RecomputedAverage: avg,
	}
	metrics.StatsDrift.WithLabelValues("unique_users").Set(float64(r.UniqueUsers - r.Users))
	metrics.StatsDrift.WithLabelValues("users_completed").Set(float64(r.UsersCompleted - r.CompletedUsers))
	metrics.StatsDrift.WithLabelValues("total_user_time").Set(r.TotalUserTime - r.RecomputedTime)
	return r, nil
}

// StartAuditor runs Audit every interval until ctx is done. Drift is logged, not repaired.
func StartAuditor(ctx context.Context, t *Tracker, interval time.Duration) {
	utils.StartPeriodic(ctx, "stats audit", interval, func(ctx context.Context) error {
		r, err := t.Audit(ctx)
		if err != nil {
			return err
		}
		if !r.Consistent() {
			utils.Sugar.Warnw("stats drift detected",
				"unique_users", r.UniqueUsers, "user_rows", r.Users,
				"users_completed", r.UsersCompleted, "completed_rows", r.CompletedUsers,
				"total_user_time", r.TotalUserTime, "recomputed_time", r.RecomputedTime)
		}
		return nil
	})
}
