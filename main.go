package main

import (
	"context"

	"github.com/gormazar/gormazar-api/config"
	"github.com/gormazar/gormazar-api/models"
	"github.com/gormazar/gormazar-api/routes"
	"github.com/gormazar/gormazar-api/services"
	"github.com/gormazar/gormazar-api/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db := config.InitDatabase(&models.Marker{}, &models.User{}, &models.UserScan{}, &models.GlobalStats{}, &models.DailyActivity{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rc := utils.GetRedis()
	cache := utils.NewCache(rc, cfg.Redis.CacheTTL)
	tracker := services.NewTracker(db, cache)
	if err := tracker.Bootstrap(ctx, cfg.Markers); err != nil {
		utils.Sugar.Fatalf("bootstrap failed: %v", err)
	}

	services.StartAuditor(ctx, tracker, cfg.App.AuditInterval)
	services.StartActivityPruner(ctx, tracker, cfg.App.ActivityPruneInterval, cfg.App.ActivityRetentionDays)

	r := routes.SetupRouter(cfg, tracker, rc)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.App.Port)
	if err := utils.GraceServer(ctx, ":"+cfg.App.Port, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
