package monitoring

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// MonitorBackendHealth probes the backend on every interval until ctx is
// done, storing the latest result in healthy.
func MonitorBackendHealth(ctx context.Context, checker HealthChecker, healthy *atomic.Bool, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	probe := func() {
		isHealthy := checker.HealthCheck(ctx)
		wasHealthy := healthy.Swap(isHealthy)
		if isHealthy {
			BackendHealthy.Set(1)
		} else {
			BackendHealthy.Set(0)
		}
		if wasHealthy && !isHealthy {
			slog.Warn("[HealthCheck] Backend is unhealthy")
		} else if !wasHealthy && isHealthy {
			slog.Info("[HealthCheck] Backend is healthy")
		}
	}

	probe()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}
