package autoscaler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iruldev/xyprissgo/internal/config"
	"github.com/iruldev/xyprissgo/internal/observability"
)

const successHistoryWindow = 20

// AutoScaler turns a Metrics sample into a scale Decision, defaulting to
// ActionNone whenever the score is too low, the confidence dips below
// minConfidence, the cooldown hasn't elapsed, or the bounds would be
// violated.
type AutoScaler struct {
	cfg    config.AutoScalingSection
	logger observability.Logger

	mu         sync.Mutex
	lastAction time.Time
	history    map[Action][]bool

	events chan Event
}

// New builds an AutoScaler from its config section.
func New(cfg config.AutoScalingSection, logger observability.Logger) *AutoScaler {
	if logger == nil {
		logger = observability.NewNopLoggerInterface()
	}
	return &AutoScaler{
		cfg:     cfg,
		logger:  logger,
		history: map[Action][]bool{},
		events:  make(chan Event, 32),
	}
}

// Events returns the channel Event values are published on.
func (a *AutoScaler) Events() <-chan Event {
	return a.events
}

// Evaluate scores m and returns a Decision. currentWorkers is compared
// against cfg.MinWorkers/MaxWorkers to clamp the resulting Delta; a
// Decision that would cross a bound is downgraded to ActionNone.
func (a *AutoScaler) Evaluate(m Metrics, currentWorkers int) Decision {
	a.mu.Lock()
	sinceLast := time.Since(a.lastAction)
	a.mu.Unlock()

	cooldown := a.cfg.CooldownPeriod
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}
	if !a.lastAction.IsZero() && sinceLast < cooldown {
		return Decision{Action: ActionNone, Reason: "cooldown period has not elapsed"}
	}

	upScore := scaleUpScore(m, a.cfg.ScaleUpThreshold)
	downScore := scaleDownScore(m, a.cfg.ScaleDownThreshold)

	var action Action
	var score int
	switch {
	case upScore >= scaleUpThresholdScore:
		action, score = ActionScaleUp, upScore
	case downScore >= scaleDownThresholdScore:
		action, score = ActionScaleDown, downScore
	default:
		return Decision{Action: ActionNone, Reason: "no threshold crossed"}
	}

	confidence := a.confidenceFor(action, score)
	if confidence < minConfidence {
		return Decision{Action: ActionNone, Score: score, Confidence: confidence, Reason: "confidence below threshold"}
	}

	step := a.cfg.ScaleStep
	if step <= 0 {
		step = 1
	}

	minWorkers := a.cfg.MinWorkers
	maxWorkers := a.cfg.MaxWorkers

	var delta int
	switch action {
	case ActionScaleUp:
		delta = step
		if maxWorkers > 0 && currentWorkers+delta > maxWorkers {
			return Decision{Action: ActionNone, Score: score, Confidence: confidence, Reason: "scale-up would exceed maxWorkers"}
		}
	case ActionScaleDown:
		delta = -step
		if currentWorkers+delta < minWorkers {
			return Decision{Action: ActionNone, Score: score, Confidence: confidence, Reason: "scale-down would go below minWorkers"}
		}
	}

	return Decision{
		Action:     action,
		Score:      score,
		Confidence: confidence,
		Delta:      delta,
		Reason:     fmt.Sprintf("%s score %d, confidence %.1f", action, score, confidence),
	}
}

// confidenceFor adjusts a raw score by the recent success rate of the
// same action, within a ±10-20% band, per spec.
func (a *AutoScaler) confidenceFor(action Action, score int) float64 {
	rate := a.successRate(action)
	adjustment := (rate - 0.5) * 0.4 // maps rate in [0,1] to [-0.2, 0.2]
	confidence := float64(score) * (1 + adjustment)
	if confidence > 100 {
		confidence = 100
	}
	if confidence < 0 {
		confidence = 0
	}
	return confidence
}

func (a *AutoScaler) successRate(action Action) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	hist := a.history[action]
	if len(hist) == 0 {
		return 0.5
	}
	successes := 0
	for _, ok := range hist {
		if ok {
			successes++
		}
	}
	return float64(successes) / float64(len(hist))
}

// RecordOutcome feeds back whether a past scale action (as applied by
// the caller, typically via cluster.Supervisor) turned out well, so
// later Evaluate calls adjust confidence for that Action accordingly.
func (a *AutoScaler) RecordOutcome(action Action, success bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	hist := append(a.history[action], success)
	if len(hist) > successHistoryWindow {
		hist = hist[len(hist)-successHistoryWindow:]
	}
	a.history[action] = hist
}

// Execute runs apply (the actual worker-count change, e.g.
// cluster.Supervisor spawn/stop) for decision, bracketing it with
// scaling:executing/completed events and a recorded duration, and
// stamps the cooldown clock on return regardless of outcome.
func (a *AutoScaler) Execute(ctx context.Context, decision Decision, apply func(ctx context.Context, delta int) error) error {
	if decision.Action == ActionNone {
		return nil
	}

	a.emit(Event{Kind: EventScalingExecuting, Decision: decision})
	start := time.Now()

	err := apply(ctx, decision.Delta)

	a.mu.Lock()
	a.lastAction = time.Now()
	a.mu.Unlock()

	a.emit(Event{Kind: EventScalingCompleted, Decision: decision, Err: err, Duration: time.Since(start)})
	return err
}

func (a *AutoScaler) emit(ev Event) {
	ev.Timestamp = time.Now()
	select {
	case a.events <- ev:
	default:
	}
}
