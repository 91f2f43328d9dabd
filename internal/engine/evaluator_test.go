package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fleetwatch/internal/models"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func windowWith(points ...SamplePoint) *Window {
	w := newWindow(2 * time.Hour)
	for _, p := range points {
		w.Append(p.Value, p.Timestamp)
	}
	return w
}

func at(minutes float64) time.Time {
	return t0.Add(time.Duration(minutes * float64(time.Minute)))
}

func TestEvaluateCondition_Instantaneous(t *testing.T) {
	gt80 := models.Condition{TelemetryTag: "temperature", Operator: models.OperatorGT, Value: 80}

	tests := []struct {
		name   string
		cond   models.Condition
		values []float64
		want   bool
	}{
		{"gt above threshold", gt80, []float64{85}, true},
		{"gt at threshold", gt80, []float64{80}, false},
		{"gt below threshold", gt80, []float64{75}, false},
		{"gt uses latest sample only", gt80, []float64{95, 70}, false},
		{"lt", models.Condition{TelemetryTag: "t", Operator: models.OperatorLT, Value: 10}, []float64{5}, true},
		{"gte at threshold", models.Condition{TelemetryTag: "t", Operator: models.OperatorGTE, Value: 80}, []float64{80}, true},
		{"lte at threshold", models.Condition{TelemetryTag: "t", Operator: models.OperatorLTE, Value: 80}, []float64{80}, true},
		{"eq exact", models.Condition{TelemetryTag: "t", Operator: models.OperatorEQ, Value: 42}, []float64{42}, true},
		{"eq near miss", models.Condition{TelemetryTag: "t", Operator: models.OperatorEQ, Value: 42}, []float64{42.0001}, false},
		{"neq", models.Condition{TelemetryTag: "t", Operator: models.OperatorNEQ, Value: 42}, []float64{41}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWindow(2 * time.Hour)
			for i, v := range tt.values {
				w.Append(v, at(float64(i)))
			}
			got := EvaluateCondition(tt.cond, w, at(float64(len(tt.values))))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateCondition_BetweenBoundsAreInclusive(t *testing.T) {
	upper := 20.0
	between := models.Condition{TelemetryTag: "t", Operator: models.OperatorBetween, Value: 10, ValueTo: &upper}

	tests := []struct {
		value float64
		want  bool
	}{
		{10, true},
		{20, true},
		{15, true},
		{9.999, false},
		{20.001, false},
	}
	for _, tt := range tests {
		w := windowWith(SamplePoint{Value: tt.value, Timestamp: t0})
		assert.Equal(t, tt.want, EvaluateCondition(between, w, t0), "value %v", tt.value)
	}
}

func TestEvaluateCondition_MissingDataIsFalse(t *testing.T) {
	cond := models.Condition{TelemetryTag: "t", Operator: models.OperatorGT, Value: 1}

	assert.False(t, EvaluateCondition(cond, nil, t0), "no window for the tag")
	assert.False(t, EvaluateCondition(cond, newWindow(time.Hour), t0), "empty window")
}

func TestEvaluateCondition_SustainedWindow(t *testing.T) {
	cond := models.Condition{
		TelemetryTag: "temperature", Operator: models.OperatorGT, Value: 80,
		TimeWindowMinutes: 5,
	}

	t.Run("held for the whole window", func(t *testing.T) {
		w := windowWith(
			SamplePoint{85, at(0)},
			SamplePoint{86, at(1)},
			SamplePoint{87, at(3)},
			SamplePoint{88, at(5)},
		)
		assert.True(t, EvaluateCondition(cond, w, at(5)))
	})

	t.Run("a mid-window dip resets the held-since clock", func(t *testing.T) {
		// Above threshold 4 of 5 minutes, but the dip at minute 2 restarts
		// the streak: at minute 5 the condition has only held 3 minutes.
		w := windowWith(
			SamplePoint{85, at(0)},
			SamplePoint{86, at(1)},
			SamplePoint{79, at(2)},
			SamplePoint{87, at(3)},
			SamplePoint{88, at(4)},
			SamplePoint{88, at(5)},
		)
		assert.False(t, EvaluateCondition(cond, w, at(5)))

		// Two more minutes of conformance and the streak is long enough.
		w.Append(89, at(7))
		w.Append(89, at(8))
		assert.True(t, EvaluateCondition(cond, w, at(8)))
	})

	t.Run("not held long enough yet", func(t *testing.T) {
		w := windowWith(SamplePoint{85, at(0)}, SamplePoint{86, at(2)})
		assert.False(t, EvaluateCondition(cond, w, at(2)))
	})

	t.Run("latest sample below threshold", func(t *testing.T) {
		w := windowWith(
			SamplePoint{85, at(0)},
			SamplePoint{86, at(5)},
			SamplePoint{10, at(6)},
		)
		assert.False(t, EvaluateCondition(cond, w, at(6)))
	})
}

func TestEvaluateCondition_ChangeRate(t *testing.T) {
	// Rate threshold of 2 units/minute over a 10 minute window.
	cond := models.Condition{
		TelemetryTag: "pressure", Operator: models.OperatorChangeRate, Value: 2,
		TimeWindowMinutes: 10,
	}

	t.Run("steep rise exceeds rate", func(t *testing.T) {
		w := windowWith(SamplePoint{100, at(0)}, SamplePoint{150, at(10)})
		assert.True(t, EvaluateCondition(cond, w, at(10))) // 5 units/min
	})

	t.Run("steep fall exceeds rate on absolute value", func(t *testing.T) {
		w := windowWith(SamplePoint{150, at(0)}, SamplePoint{100, at(10)})
		assert.True(t, EvaluateCondition(cond, w, at(10)))
	})

	t.Run("gentle drift does not", func(t *testing.T) {
		w := windowWith(SamplePoint{100, at(0)}, SamplePoint{110, at(10)})
		assert.False(t, EvaluateCondition(cond, w, at(10))) // 1 unit/min
	})

	t.Run("single sample is insufficient data", func(t *testing.T) {
		w := windowWith(SamplePoint{100, at(0)})
		assert.False(t, EvaluateCondition(cond, w, at(0)))
	})

	t.Run("samples not spanning the window are insufficient", func(t *testing.T) {
		w := windowWith(SamplePoint{100, at(5)}, SamplePoint{150, at(10)})
		assert.False(t, EvaluateCondition(cond, w, at(10)))
	})
}
