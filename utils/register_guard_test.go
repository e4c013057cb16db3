package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGuard(t *testing.T, limit int) (*miniredis.Miniredis, *RegistrationGuard) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return mr, NewRegistrationGuard(rc, limit)
}

func TestRegistrationGuardDisabled(t *testing.T) {
	assert.Nil(t, NewRegistrationGuard(nil, 5))
	_, g := newTestGuard(t, 0)
	assert.Nil(t, g)

	g.Record(context.Background(), "1.2.3.4")
	assert.True(t, g.Allow(context.Background(), "1.2.3.4"))
}

func TestRegistrationGuardCapsPerIP(t *testing.T) {
	ctx := context.Background()
	mr, g := newTestGuard(t, 2)
	day1 := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return day1 }
	mr.SetTime(day1)

	for i := 0; i < 2; i++ {
		require.True(t, g.Allow(ctx, "1.2.3.4"))
		g.Record(ctx, "1.2.3.4")
	}
	assert.False(t, g.Allow(ctx, "1.2.3.4"))
	assert.True(t, g.Allow(ctx, "5.6.7.8"))

	key := "gormazar:reg:day:1.2.3.4:20240501"
	require.True(t, mr.Exists(key))
	val, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "2", val)
	assert.Equal(t, 6*time.Hour, mr.TTL(key))

	// a new day starts a new counter
	g.now = func() time.Time { return time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC) }
	assert.True(t, g.Allow(ctx, "1.2.3.4"))
}

func TestRegistrationGuardCounterExpiresAtEndOfDay(t *testing.T) {
	ctx := context.Background()
	mr, g := newTestGuard(t, 1)
	now := time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC)
	g.now = func() time.Time { return now }
	mr.SetTime(now)

	g.Record(ctx, "1.2.3.4")
	key := "gormazar:reg:day:1.2.3.4:20240501"
	require.True(t, mr.Exists(key))
	assert.Equal(t, 30*time.Minute, mr.TTL(key))
	assert.False(t, g.Allow(ctx, "1.2.3.4"))

	mr.FastForward(31 * time.Minute)
	assert.False(t, mr.Exists(key))
}

func TestRegistrationGuardFailsOpen(t *testing.T) {
	mr, g := newTestGuard(t, 1)
	mr.Close()

	g.Record(context.Background(), "1.2.3.4")
	assert.True(t, g.Allow(context.Background(), "1.2.3.4"))
}

func TestStartPeriodic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan struct{}, 10)
	StartPeriodic(ctx, "test job", 5*time.Millisecond, func(context.Context) error {
		select {
		case calls <- struct{}{}:
		default:
		}
		return nil
	})

	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatal("periodic job did not run")
		}
	}
}

func TestStartPeriodicDisabled(t *testing.T) {
	ran := make(chan struct{}, 1)
	StartPeriodic(context.Background(), "off", 0, func(context.Context) error {
		ran <- struct{}{}
		return nil
	})
	select {
	case <-ran:
		t.Fatal("disabled job ran")
	case <-time.After(20 * time.Millisecond):
	}
}
