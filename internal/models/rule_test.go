package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func baseRule() AlertRule {
	return AlertRule{
		ID: "R1", Name: "overheat", RuleType: RuleTypeThreshold,
		Scope:    RuleScope{DeviceIDs: []string{"D1"}},
		Severity: SeverityHigh, Enabled: true,
		ConditionGroups: []ConditionGroup{{
			LogicOperator: LogicAND,
			Conditions: []Condition{
				{TelemetryTag: "temperature", Operator: OperatorGT, Value: 80},
			},
		}},
	}
}

func TestAlertRule_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AlertRule)
		wantErr string
	}{
		{"valid", func(r *AlertRule) {}, ""},
		{"missing name", func(r *AlertRule) { r.Name = "" }, "name is required"},
		{"unknown rule type", func(r *AlertRule) { r.RuleType = "vibes" }, "unknown rule type"},
		{"unknown severity", func(r *AlertRule) { r.Severity = "catastrophic" }, "unknown severity"},
		{"no condition groups", func(r *AlertRule) { r.ConditionGroups = nil }, "at least one condition group"},
		{"empty group", func(r *AlertRule) {
			r.ConditionGroups[0].Conditions = nil
		}, "at least one condition"},
		{"unknown logic operator", func(r *AlertRule) {
			r.ConditionGroups[0].LogicOperator = "XOR"
		}, "unknown logic operator"},
		{"missing tag", func(r *AlertRule) {
			r.ConditionGroups[0].Conditions[0].TelemetryTag = ""
		}, "telemetry tag is required"},
		{"unknown operator", func(r *AlertRule) {
			r.ConditionGroups[0].Conditions[0].Operator = "approx"
		}, "unknown operator"},
		{"negative window", func(r *AlertRule) {
			r.ConditionGroups[0].Conditions[0].TimeWindowMinutes = -1
		}, "must not be negative"},
		{"between without upper bound", func(r *AlertRule) {
			r.ConditionGroups[0].Conditions[0].Operator = OperatorBetween
		}, "requires an upper bound"},
		{"between inverted bounds", func(r *AlertRule) {
			c := &r.ConditionGroups[0].Conditions[0]
			c.Operator = OperatorBetween
			c.Value = 20
			c.ValueTo = ptr(10)
		}, "exceeds upper bound"},
		{"change_rate without window", func(r *AlertRule) {
			r.ConditionGroups[0].Conditions[0].Operator = OperatorChangeRate
		}, "requires a time window"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := baseRule()
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCondition_Describe(t *testing.T) {
	gt := Condition{TelemetryTag: "temperature", Operator: OperatorGT, Value: 80}
	assert.Equal(t, "temperature gt 80", gt.Describe())

	frac := Condition{TelemetryTag: "pressure", Operator: OperatorLTE, Value: 1.5}
	assert.Equal(t, "pressure lte 1.5", frac.Describe())

	between := Condition{TelemetryTag: "level", Operator: OperatorBetween, Value: 10, ValueTo: ptr(20)}
	assert.Equal(t, "level between 10 and 20", between.Describe())
}

func TestAlertRule_ReferencesTag(t *testing.T) {
	r := baseRule()
	r.ConditionGroups = append(r.ConditionGroups, ConditionGroup{
		LogicOperator: LogicOR,
		Conditions:    []Condition{{TelemetryTag: "humidity", Operator: OperatorLT, Value: 40}},
	})

	assert.True(t, r.ReferencesTag("temperature"))
	assert.True(t, r.ReferencesTag("humidity"))
	assert.False(t, r.ReferencesTag("pressure"))
}

func TestRuleScope_Matches(t *testing.T) {
	pump := &Device{ID: "D1", Type: "pump", LocationID: "loc-1"}

	tests := []struct {
		name  string
		scope RuleScope
		want  bool
	}{
		{"device id", RuleScope{DeviceIDs: []string{"D1"}}, true},
		{"other device id", RuleScope{DeviceIDs: []string{"D9"}}, false},
		{"device type", RuleScope{DeviceType: "pump"}, true},
		{"location", RuleScope{LocationID: "loc-1"}, true},
		{"union of selectors", RuleScope{DeviceIDs: []string{"D9"}, LocationID: "loc-1"}, true},
		{"empty scope matches nothing", RuleScope{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.scope.Matches(pump))
		})
	}
}

func TestSeverity_Display(t *testing.T) {
	assert.Equal(t, SeverityDisplay{Label: "Critical", Color: "#FF0000", Rank: 0}, SeverityCritical.Display())
	assert.Equal(t, "High", SeverityHigh.Display().Label)
	assert.Equal(t, 3, SeverityLow.Display().Rank)

	unknown := Severity("mystery").Display()
	assert.Equal(t, "mystery", unknown.Label)
	assert.Greater(t, unknown.Rank, SeverityLow.Display().Rank, "unknown sorts after known severities")
}

func TestEscalationPolicy_Validate(t *testing.T) {
	valid := EscalationPolicy{
		ID: "p1", Name: "default",
		Levels: []EscalationLevel{
			{Level: 1, Role: "ops", DelayMinutes: 5},
			{Level: 2, Role: "manager", DelayMinutes: 15},
		},
		SLAMinutes: 60,
	}
	assert.NoError(t, valid.Validate())

	misnumbered := valid
	misnumbered.Levels = []EscalationLevel{{Level: 2, Role: "ops", DelayMinutes: 5}}
	assert.ErrorContains(t, misnumbered.Validate(), "1-based")

	noSLA := valid
	noSLA.SLAMinutes = 0
	assert.ErrorContains(t, noSLA.Validate(), "sla minutes")
}

func TestNotificationChannel_Validate(t *testing.T) {
	webhook := NotificationChannel{ID: "ch1", Name: "hook", Type: ChannelWebhook, Target: "http://example.invalid"}
	assert.NoError(t, webhook.Validate())

	noTarget := webhook
	noTarget.Target = ""
	assert.ErrorContains(t, noTarget.Validate(), "requires a target")

	email := NotificationChannel{ID: "ch2", Name: "mail", Type: ChannelEmail, Recipients: []string{"ops@example.com"}}
	assert.NoError(t, email.Validate())

	emptyEmail := email
	emptyEmail.Recipients = nil
	assert.ErrorContains(t, emptyEmail.Validate(), "requires recipients")

	bogus := NotificationChannel{ID: "ch3", Name: "pigeon", Type: "carrier_pigeon", Target: "roof"}
	assert.ErrorContains(t, bogus.Validate(), "unknown channel type")
}
