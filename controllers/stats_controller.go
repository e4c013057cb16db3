package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gormazar/gormazar-api/services"
	"github.com/gormazar/gormazar-api/utils"
)

// StatsController exposes the global aggregate and marker counters.
type StatsController struct {
	tracker *services.Tracker
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(tracker *services.Tracker) *StatsController {
	return &StatsController{tracker: tracker}
}

// GetStats returns unique users, completions, session count and averages.
func (s *StatsController) GetStats(ctx *gin.Context) {
	summary, err := s.tracker.Stats(ctx.Request.Context())
	if err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50060, "failed to load stats")
		return
	}
	utils.JSON(ctx, http.StatusOK, summary)
}

// ListMarkers returns every marker with its scan count.
func (s *StatsController) ListMarkers(ctx *gin.Context) {
	markers, err := s.tracker.Markers(ctx.Request.Context())
	if err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50061, "failed to list markers")
		return
	}
	utils.JSON(ctx, http.StatusOK, gin.H{"markers": markers})
}

// GetDaily returns per-day write counters for the last ?days= days (default 7).
func (s *StatsController) GetDaily(ctx *gin.Context) {
	days, err := strconv.Atoi(ctx.DefaultQuery("days", "7"))
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid 'days' value")
		return
	}
	rows, err := s.tracker.DailyActivity(ctx.Request.Context(), days)
	if err != nil {
		if errors.Is(err, services.ErrInvalidRequest) {
			utils.Error(ctx, http.StatusBadRequest, 40001, err.Error())
			return
		}
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50062, "failed to load activity")
		return
	}
	utils.JSON(ctx, http.StatusOK, gin.H{"days": days, "activity": rows})
}
