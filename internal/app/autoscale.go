package app

import (
	"context"
	"time"

	"github.com/iruldev/xyprissgo/internal/autoscaler"
	"github.com/iruldev/xyprissgo/internal/cluster"
	"github.com/iruldev/xyprissgo/internal/observability"
)

// defaultAutoscaleInterval is used when no HealthCheck interval is
// configured; metrics come from the same heartbeats that drive health
// checking, so reusing that cadence keeps one tick driving both.
const defaultAutoscaleInterval = 10 * time.Second

// runAutoscaleLoop periodically scores cluster-wide metrics aggregated
// from the supervisor's worker descriptors and applies the resulting
// decision via ScaleUp/ScaleDown, until stopCh closes.
func (a *App) runAutoscaleLoop(ctx context.Context, stopCh <-chan struct{}) {
	interval := a.cfg.Cluster.HealthCheck.Interval
	if interval <= 0 {
		interval = defaultAutoscaleInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			a.tickAutoscale(ctx)
		}
	}
}

func (a *App) tickAutoscale(ctx context.Context) {
	descs := a.supervisor.Descriptors()
	decision := a.scaler.Evaluate(aggregateMetrics(descs), len(descs))
	if decision.Action == autoscaler.ActionNone {
		return
	}

	err := a.scaler.Execute(ctx, decision, func(ctx context.Context, delta int) error {
		if delta > 0 {
			return a.supervisor.ScaleUp(ctx, delta)
		}
		return a.supervisor.ScaleDown(ctx, -delta)
	})
	a.scaler.RecordOutcome(decision.Action, err == nil)
	if err != nil {
		a.logger.Warn("autoscale apply failed", observability.Err(err), observability.String("action", string(decision.Action)))
	}
}

// aggregateMetrics reduces per-worker descriptors to one cluster-wide
// Metrics sample. Only QueueLength (summed Inflight) carries live load:
// worker heartbeats report CPU and memory as zero, and AvgResponseTime,
// ErrorRate and IdleTime have no per-worker source and stay zero.
func aggregateMetrics(descs []cluster.Descriptor) autoscaler.Metrics {
	if len(descs) == 0 {
		return autoscaler.Metrics{}
	}

	var cpuSum, memSum float64
	var inflightSum int
	for _, d := range descs {
		cpuSum += d.CPUPercent
		memSum += d.MemPercent
		inflightSum += d.Inflight
	}

	n := float64(len(descs))
	return autoscaler.Metrics{
		AvgCPUPercent: cpuSum / n,
		AvgMemPercent: memSum / n,
		QueueLength:   inflightSum,
		ActiveWorkers: len(descs),
	}
}
