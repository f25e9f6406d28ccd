package autoscaler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iruldev/xyprissgo/internal/config"
)

func testConfig() config.AutoScalingSection {
	return config.AutoScalingSection{
		Enabled:    true,
		MinWorkers: 1,
		MaxWorkers: 8,
		ScaleStep:  1,
		ScaleUpThreshold: config.ScaleThreshold{
			CPU:          70,
			Memory:       80,
			ResponseTime: 200 * time.Millisecond,
			QueueLength:  50,
		},
		ScaleDownThreshold: config.ScaleThreshold{
			CPU:      20,
			Memory:   30,
			IdleTime: time.Minute,
		},
		CooldownPeriod: 0,
	}
}

func TestAutoScaler_ScalesUpWhenCombinedScoreMeetsThreshold(t *testing.T) {
	a := New(testConfig(), nil)

	// cpu (+30) and responseTime (+35) = 65 >= 50
	m := Metrics{AvgCPUPercent: 90, AvgResponseTime: 500 * time.Millisecond}
	d := a.Evaluate(m, 2)

	assert.Equal(t, ActionScaleUp, d.Action)
	assert.Equal(t, 65, d.Score)
	assert.Equal(t, 1, d.Delta)
}

func TestAutoScaler_ScalesDownWhenCombinedScoreMeetsThreshold(t *testing.T) {
	a := New(testConfig(), nil)

	// cpu (+20), mem (+15), and idle (+30) = 65 >= 40, with enough
	// margin that a neutral success rate still clears minConfidence.
	m := Metrics{AvgCPUPercent: 5, AvgMemPercent: 5, IdleTime: 2 * time.Minute}
	d := a.Evaluate(m, 4)

	assert.Equal(t, ActionScaleDown, d.Action)
	assert.Equal(t, -1, d.Delta)
}

func TestAutoScaler_NoActionWhenNoThresholdCrossed(t *testing.T) {
	a := New(testConfig(), nil)

	m := Metrics{AvgCPUPercent: 50, AvgMemPercent: 50}
	d := a.Evaluate(m, 3)

	assert.Equal(t, ActionNone, d.Action)
}

func TestAutoScaler_RespectsMaxWorkersBound(t *testing.T) {
	a := New(testConfig(), nil)

	m := Metrics{AvgCPUPercent: 90, AvgResponseTime: 500 * time.Millisecond}
	d := a.Evaluate(m, 8)

	assert.Equal(t, ActionNone, d.Action)
}

func TestAutoScaler_RespectsMinWorkersBound(t *testing.T) {
	a := New(testConfig(), nil)

	m := Metrics{AvgCPUPercent: 5, AvgMemPercent: 5, IdleTime: 2 * time.Minute}
	d := a.Evaluate(m, 1)

	assert.Equal(t, ActionNone, d.Action)
	assert.Contains(t, d.Reason, "minWorkers")
}

func TestAutoScaler_RespectsCooldownBetweenActions(t *testing.T) {
	cfg := testConfig()
	cfg.CooldownPeriod = time.Hour
	a := New(cfg, nil)

	m := Metrics{AvgCPUPercent: 90, AvgResponseTime: 500 * time.Millisecond}
	first := a.Evaluate(m, 2)
	require.Equal(t, ActionScaleUp, first.Action)

	err := a.Execute(context.Background(), first, func(context.Context, int) error { return nil })
	require.NoError(t, err)

	second := a.Evaluate(m, 2)
	assert.Equal(t, ActionNone, second.Action)
	assert.Contains(t, second.Reason, "cooldown")
}

func TestAutoScaler_LowSuccessRateLowersConfidenceBelowThreshold(t *testing.T) {
	a := New(testConfig(), nil)

	for i := 0; i < successHistoryWindow; i++ {
		a.RecordOutcome(ActionScaleUp, false)
	}

	// cpu (+30) + mem (+25) = 55, clears the raw 50 scale-up threshold,
	// but an all-failure history for this action pulls confidence down
	// from 55 to 44 (55 * (1 - 0.2)), below minConfidence (60).
	m := Metrics{AvgCPUPercent: 90, AvgMemPercent: 90}
	d := a.Evaluate(m, 2)

	assert.Equal(t, ActionNone, d.Action)
	assert.Contains(t, d.Reason, "confidence")
}

func TestAutoScaler_ExecuteEmitsExecutingAndCompletedEvents(t *testing.T) {
	a := New(testConfig(), nil)
	decision := Decision{Action: ActionScaleUp, Delta: 1}

	err := a.Execute(context.Background(), decision, func(context.Context, int) error { return nil })
	require.NoError(t, err)

	first := <-a.Events()
	second := <-a.Events()
	assert.Equal(t, EventScalingExecuting, first.Kind)
	assert.Equal(t, EventScalingCompleted, second.Kind)
}
