package engine

import (
	"math"
	"time"

	"fleetwatch/internal/models"
)

// EvaluateCondition decides whether a single condition holds for the given
// window at time now. It is a pure query: missing telemetry or insufficient
// history is not an error, it evaluates to false ("not yet triggered").
func EvaluateCondition(c models.Condition, w *Window, now time.Time) bool {
	if w == nil {
		return false
	}

	if c.Operator == models.OperatorChangeRate {
		return evaluateChangeRate(c, w)
	}

	latest, ok := w.Latest()
	if !ok {
		return false
	}
	if !compare(c, latest.Value) {
		return false
	}
	if c.TimeWindowMinutes == 0 {
		return true
	}

	// Sustained-window semantics: the comparison must have held without
	// interruption for the whole trailing window. A single non-conforming
	// sample resets the held-since clock.
	heldSince := latest.Timestamp
	samples := w.Samples()
	for i := len(samples) - 1; i >= 0; i-- {
		if !compare(c, samples[i].Value) {
			break
		}
		heldSince = samples[i].Timestamp
	}
	window := time.Duration(c.TimeWindowMinutes) * time.Minute
	return now.Sub(heldSince) >= window
}

func compare(c models.Condition, value float64) bool {
	switch c.Operator {
	case models.OperatorGT:
		return value > c.Value
	case models.OperatorLT:
		return value < c.Value
	case models.OperatorGTE:
		return value >= c.Value
	case models.OperatorLTE:
		return value <= c.Value
	case models.OperatorEQ:
		return value == c.Value
	case models.OperatorNEQ:
		return value != c.Value
	case models.OperatorBetween:
		if c.ValueTo == nil {
			return false
		}
		return value >= c.Value && value <= *c.ValueTo
	default:
		return false
	}
}

// evaluateChangeRate compares the absolute per-minute rate of change across
// the window against the threshold. It needs two samples spanning the window;
// anything less evaluates to false.
func evaluateChangeRate(c models.Condition, w *Window) bool {
	if c.TimeWindowMinutes <= 0 {
		return false
	}
	latest, ok := w.Latest()
	if !ok {
		return false
	}

	window := time.Duration(c.TimeWindowMinutes) * time.Minute
	windowStart := latest.Timestamp.Add(-window)

	var start *SamplePoint
	for i, s := range w.Samples() {
		if s.Timestamp.After(windowStart) {
			break
		}
		start = &w.Samples()[i]
	}
	if start == nil || start.Timestamp.Equal(latest.Timestamp) {
		return false
	}

	rate := (latest.Value - start.Value) / float64(c.TimeWindowMinutes)
	return math.Abs(rate) > c.Value
}
