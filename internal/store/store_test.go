package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetwatch/internal/models"
)

func validRule(id string) models.AlertRule {
	return models.AlertRule{
		ID: id, Name: "rule-" + id, RuleType: models.RuleTypeThreshold,
		Scope:    models.RuleScope{DeviceIDs: []string{"D1"}},
		Severity: models.SeverityHigh, Enabled: true,
		ConditionGroups: []models.ConditionGroup{{
			LogicOperator: models.LogicAND,
			Conditions: []models.Condition{
				{TelemetryTag: "temperature", Operator: models.OperatorGT, Value: 80},
			},
		}},
	}
}

func TestMemoryStore_Lookups(t *testing.T) {
	m := NewMemoryStore()
	m.AddRule(validRule("R1"))
	m.AddPolicy(models.EscalationPolicy{ID: "p1", Name: "default",
		Levels: []models.EscalationLevel{{Level: 1, Role: "ops", DelayMinutes: 5}}, SLAMinutes: 60})
	m.AddChannel(models.NotificationChannel{ID: "ch1", Name: "hook",
		Type: models.ChannelWebhook, Target: "http://example.invalid", Enabled: true})
	m.AddDevice(models.Device{ID: "D1", Name: "Pump 7"})

	rules, err := m.GetRules()
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "R1", rules[0].ID)

	p, err := m.GetPolicy("p1")
	require.NoError(t, err)
	assert.Equal(t, 60, p.SLAMinutes)

	ch, err := m.GetChannel("ch1")
	require.NoError(t, err)
	assert.Equal(t, models.ChannelWebhook, ch.Type)

	d, err := m.GetDevice("D1")
	require.NoError(t, err)
	assert.Equal(t, "Pump 7", d.Name)

	_, err = m.GetPolicy("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.GetChannel("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.GetDevice("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_GetRulesReturnsCopy(t *testing.T) {
	m := NewMemoryStore()
	m.AddRule(validRule("R1"))

	rules, err := m.GetRules()
	require.NoError(t, err)
	rules[0].Name = "mutated"

	again, err := m.GetRules()
	require.NoError(t, err)
	assert.Equal(t, "rule-R1", again[0].Name, "callers must not see each other's mutations")
}

func TestMemoryStore_ReplaceSwapsSnapshot(t *testing.T) {
	m := NewMemoryStore()
	m.AddRule(validRule("R1"))
	m.AddPolicy(models.EscalationPolicy{ID: "p1", Name: "old",
		Levels: []models.EscalationLevel{{Level: 1, Role: "ops", DelayMinutes: 5}}, SLAMinutes: 60})

	m.Replace(
		[]models.AlertRule{validRule("R2")},
		[]models.EscalationPolicy{{ID: "p2", Name: "new",
			Levels: []models.EscalationLevel{{Level: 1, Role: "ops", DelayMinutes: 1}}, SLAMinutes: 30}},
		nil, nil,
	)

	rules, err := m.GetRules()
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "R2", rules[0].ID)

	_, err = m.GetPolicy("p1")
	assert.ErrorIs(t, err, ErrNotFound, "replace drops entries absent from the new snapshot")
	_, err = m.GetPolicy("p2")
	assert.NoError(t, err)
}

const sampleConfig = `{
  "rules": [{
    "id": "R1",
    "name": "overheat",
    "rule_type": "threshold",
    "scope": {"device_ids": ["D1"]},
    "severity": "high",
    "enabled": true,
    "escalation_policy_id": "p1",
    "notification_channel_ids": ["ch1"],
    "condition_groups": [{
      "logic_operator": "AND",
      "conditions": [{"telemetry_tag": "temperature", "operator": "gt", "value": 80}]
    }]
  }],
  "policies": [{
    "id": "p1",
    "name": "default",
    "levels": [{"level": 1, "role": "ops", "delay_minutes": 5}],
    "sla_minutes": 60
  }],
  "channels": [{
    "id": "ch1",
    "name": "ops-webhook",
    "type": "webhook",
    "target": "http://example.invalid/hook",
    "enabled": true
  }],
  "devices": [{"id": "D1", "name": "Pump 7", "location_id": "loc-1"}]
}`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	cf, err := LoadFile(writeTempConfig(t, sampleConfig))
	require.NoError(t, err)
	require.Len(t, cf.Rules, 1)
	assert.Equal(t, "overheat", cf.Rules[0].Name)
	require.Len(t, cf.Policies, 1)
	require.Len(t, cf.Channels, 1)
	require.Len(t, cf.Devices, 1)

	m := NewMemoryStore()
	cf.Apply(m)
	rules, err := m.GetRules()
	require.NoError(t, err)
	assert.Len(t, rules, 1)
	_, err = m.GetDevice("D1")
	assert.NoError(t, err)
}

func TestLoadFile_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "malformed json",
			content: `{"rules": [`,
			wantErr: "parse config file",
		},
		{
			name:    "invalid rule rejects whole file",
			content: `{"rules": [{"id": "R1", "name": "bad", "rule_type": "threshold", "severity": "high", "condition_groups": []}]}`,
			wantErr: "at least one condition group",
		},
		{
			name:    "invalid policy",
			content: `{"policies": [{"id": "p1", "name": "bad", "levels": [], "sla_minutes": 60}]}`,
			wantErr: "at least one escalation level",
		},
		{
			name:    "invalid channel",
			content: `{"channels": [{"id": "ch1", "name": "bad", "type": "carrier_pigeon", "target": "x"}]}`,
			wantErr: "unknown channel type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeTempConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
