package autoscaler

import "github.com/iruldev/xyprissgo/internal/config"

// scaleUpScore weighs each over-threshold metric toward a scale-up
// decision; see AutoScaler.Evaluate for the combine-and-threshold step.
func scaleUpScore(m Metrics, t config.ScaleThreshold) int {
	score := 0
	if t.CPU > 0 && m.AvgCPUPercent > t.CPU {
		score += 30
	}
	if t.Memory > 0 && m.AvgMemPercent > t.Memory {
		score += 25
	}
	if t.ResponseTime > 0 && m.AvgResponseTime > t.ResponseTime {
		score += 35
	}
	if t.QueueLength > 0 && m.QueueLength > t.QueueLength {
		score += 40
	}
	return score
}

// scaleDownScore weighs each under-threshold/idle metric toward a
// scale-down decision.
func scaleDownScore(m Metrics, t config.ScaleThreshold) int {
	score := 0
	if t.CPU > 0 && m.AvgCPUPercent < t.CPU {
		score += 20
	}
	if t.Memory > 0 && m.AvgMemPercent < t.Memory {
		score += 15
	}
	if t.IdleTime > 0 && m.IdleTime > t.IdleTime {
		score += 30
	}
	return score
}

const (
	scaleUpThresholdScore   = 50
	scaleDownThresholdScore = 40
	minConfidence           = 60
)
