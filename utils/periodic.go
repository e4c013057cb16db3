package utils

import (
	"context"
	"time"
)

// StartPeriodic launches a background goroutine that runs fn every interval until
// ctx is done. The first run happens one interval after start. Failures are logged
// and never stop the loop. A non-positive interval disables the job.
func StartPeriodic(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if err := fn(ctx); err != nil {
				Sugar.Warnf("%s failed: %v", name, err)
			}
		}
	}()
}
