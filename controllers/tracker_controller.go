package controllers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gormazar/gormazar-api/services"
	"github.com/gormazar/gormazar-api/utils"
)

// TrackerController serves the device-facing registration, scan and session endpoints.
type TrackerController struct {
	tracker *services.Tracker
	guard   *utils.RegistrationGuard
}

// NewTrackerController creates a new TrackerController instance. guard may be nil.
func NewTrackerController(tracker *services.Tracker, guard *utils.RegistrationGuard) *TrackerController {
	return &TrackerController{tracker: tracker, guard: guard}
}

// Welcome answers GET /.
func (t *TrackerController) Welcome(ctx *gin.Context) {
	utils.JSON(ctx, http.StatusOK, gin.H{"message": "Welcome to GormazAR's API"})
}

// RegisterUser registers a device id; repeating it is harmless.
func (t *TrackerController) RegisterUser(ctx *gin.Context) {
	userID := ctx.Param("userId")
	reqCtx := ctx.Request.Context()
	ip := ctx.ClientIP()

	if !t.guard.Allow(reqCtx, ip) {
		// Devices that already exist may still re-register
		if _, err := t.tracker.User(reqCtx, userID); err == nil {
			utils.JSON(ctx, http.StatusOK, gin.H{"message": "User already registered", "created": false})
			return
		}
		utils.Error(ctx, http.StatusTooManyRequests, 42902, "too many registrations from this address")
		return
	}

	created, err := t.tracker.RegisterUser(reqCtx, userID)
	if err != nil {
		respondError(ctx, err, http.StatusNotFound, 50010, "failed to register user")
		return
	}
	if !created {
		utils.JSON(ctx, http.StatusOK, gin.H{"message": "User already registered", "created": false})
		return
	}
	t.guard.Record(reqCtx, ip)
	utils.JSON(ctx, http.StatusCreated, gin.H{
		"message": fmt.Sprintf("User %s successfully registered", userID),
		"created": true,
	})
}

// Increment counts a scan of the marker in the path by the user in the form.
func (t *TrackerController) Increment(ctx *gin.Context) {
	var req struct {
		UserID string `form:"user_id" binding:"max=128"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	res, err := t.tracker.Scan(ctx.Request.Context(), ctx.Param("markerId"), req.UserID)
	if err != nil {
		// Unknown markers and users are client errors on this route
		respondError(ctx, err, http.StatusBadRequest, 50020, "failed to record scan")
		return
	}
	utils.JSON(ctx, http.StatusOK, res)
}

// EndSession records a finished session's duration.
func (t *TrackerController) EndSession(ctx *gin.Context) {
	duration, err := services.ParseSeconds("duration", ctx.PostForm("duration"))
	if err != nil {
		respondError(ctx, err, http.StatusNotFound, 50030, "failed to end session")
		return
	}

	res, err := t.tracker.EndSession(ctx.Request.Context(), ctx.Param("userId"), duration)
	if err != nil {
		respondError(ctx, err, http.StatusNotFound, 50030, "failed to end session")
		return
	}
	utils.JSON(ctx, http.StatusOK, res)
}

// UpdateTime adds to a registered user's cumulative session time.
func (t *TrackerController) UpdateTime(ctx *gin.Context) {
	seconds, err := services.ParseSeconds("session_time", ctx.PostForm("session_time"))
	if err != nil {
		respondError(ctx, err, http.StatusNotFound, 50040, "failed to update session time")
		return
	}

	res, err := t.tracker.UpdateSessionTime(ctx.Request.Context(), ctx.Param("userId"), seconds)
	if err != nil {
		respondError(ctx, err, http.StatusNotFound, 50040, "failed to update session time")
		return
	}
	utils.JSON(ctx, http.StatusOK, res)
}

// GetUser returns a user's scanned markers, completion flag and cumulative time.
func (t *TrackerController) GetUser(ctx *gin.Context) {
	res, err := t.tracker.User(ctx.Request.Context(), ctx.Param("userId"))
	if err != nil {
		respondError(ctx, err, http.StatusNotFound, 50050, "failed to load user")
		return
	}
	utils.JSON(ctx, http.StatusOK, res)
}

// respondError maps service errors onto the error envelope. notFoundStatus lets each
// route choose between 400 and 404 for unknown references.
func respondError(ctx *gin.Context, err error, notFoundStatus, internalCode int, internalMsg string) {
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		utils.Error(ctx, http.StatusBadRequest, 40001, err.Error())
	case errors.Is(err, services.ErrMarkerNotFound):
		utils.Error(ctx, notFoundStatus, notFoundCode(notFoundStatus, 2), err.Error())
	case errors.Is(err, services.ErrUserNotFound):
		utils.Error(ctx, notFoundStatus, notFoundCode(notFoundStatus, 3), err.Error())
	default:
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, internalCode, internalMsg)
	}
}

func notFoundCode(status, n int) int {
	return status*100 + n
}
