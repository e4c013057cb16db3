package services

import (
	"context"
	"fmt"
	"time"

	"github.com/gormazar/gormazar-api/models"
	"github.com/gormazar/gormazar-api/utils"
)

// DayLayout formats activity days.
const DayLayout = "2006-01-02"

// MaxActivityDays bounds the window accepted by DailyActivity.
const MaxActivityDays = 366

// RecordActivity counts one successful write on route for the current local day.
func (t *Tracker) RecordActivity(ctx context.Context, route string) error {
	return t.activity.Record(ctx, time.Now().Format(DayLayout), route)
}

// DailyActivity returns per-route counters for the last days days, today included.
func (t *Tracker) DailyActivity(ctx context.Context, days int) ([]models.DailyActivity, error) {
	if days <= 0 || days > MaxActivityDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", ErrInvalidRequest, MaxActivityDays)
	}
	from := time.Now().AddDate(0, 0, -(days - 1)).Format(DayLayout)
	return t.activity.Since(ctx, from)
}

// PruneActivity drops counters older than retentionDays.
func (t *Tracker) PruneActivity(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	before := time.Now().AddDate(0, 0, -retentionDays).Format(DayLayout)
	return t.activity.Prune(ctx, before)
}

// StartActivityPruner removes expired activity rows every interval.
func StartActivityPruner(ctx context.Context, t *Tracker, interval time.Duration, retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	utils.StartPeriodic(ctx, "activity prune", interval, func(ctx context.Context) error {
		n, err := t.PruneActivity(ctx, retentionDays)
		if err != nil {
			return err
		}
		if n > 0 {
			utils.Sugar.Infof("pruned %d activity rows older than %d days", n, retentionDays)
		}
		return nil
	})
}
