package utils

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const guardOpTimeout = 500 * time.Millisecond

// RegistrationGuard caps how many new devices one client IP may register per day.
// Counters live in Redis. A nil guard allows everything and Redis errors fail open.
type RegistrationGuard struct {
	rc        *redis.Client
	maxPerDay int
	now       func() time.Time
}

// NewRegistrationGuard returns nil when rc is nil or maxPerDay is not positive.
func NewRegistrationGuard(rc *redis.Client, maxPerDay int) *RegistrationGuard {
	if rc == nil || maxPerDay <= 0 {
		return nil
	}
	return &RegistrationGuard{rc: rc, maxPerDay: maxPerDay, now: time.Now}
}

func regKey(parts ...string) string {
	return "gormazar:reg:" + strings.Join(parts, ":")
}

func (g *RegistrationGuard) dayKey(ip string) string {
	return regKey("day", ip, g.now().Format("20060102"))
}

// Allow reports whether ip is still under today's registration cap.
func (g *RegistrationGuard) Allow(ctx context.Context, ip string) bool {
	if g == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, guardOpTimeout)
	defer cancel()
	n, err := g.rc.Get(ctx, g.dayKey(ip)).Int()
	if errors.Is(err, redis.Nil) {
		return true
	}
	if err != nil {
		Sugar.Debugf("registration guard read failed ip=%s err=%v", ip, err)
		return true
	}
	return n < g.maxPerDay
}

// Record counts one successful registration for ip. The counter expires at the end of the day.
func (g *RegistrationGuard) Record(ctx context.Context, ip string) {
	if g == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, guardOpTimeout)
	defer cancel()
	key := g.dayKey(ip)
	now := g.now()
	endOfDay := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	// One MULTI so the counter never exists without its expiry
	if _, err := g.rc.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		pipe.ExpireAt(ctx, key, endOfDay)
		return nil
	}); err != nil {
		Sugar.Debugf("registration guard write failed ip=%s err=%v", ip, err)
	}
}
