package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gormazar/gormazar-api/utils"
)

// ActivityRecorder stores one hit for a route on the current day.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, route string) error
}

// RecordActivity counts successful POST requests per day and matched route.
func RecordActivity(rec ActivityRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method != http.MethodPost {
			return
		}
		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		route := c.FullPath()
		if route == "" {
			return
		}
		if err := rec.RecordActivity(c.Request.Context(), route); err != nil {
			utils.Sugar.Warnf("record activity route=%s err=%v", route, err)
		}
	}
}
