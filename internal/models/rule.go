package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

type RuleType string

const (
	RuleTypeThreshold   RuleType = "threshold"
	RuleTypeCondition   RuleType = "condition"
	RuleTypeTimeWindow  RuleType = "time_window"
	RuleTypeDeviceState RuleType = "device_state"
	RuleTypeHeartbeat   RuleType = "heartbeat"
	RuleTypeAnomaly     RuleType = "anomaly"
	RuleTypeCrossDevice RuleType = "cross_device"
)

type Operator string

const (
	OperatorGT         Operator = "gt"
	OperatorLT         Operator = "lt"
	OperatorEQ         Operator = "eq"
	OperatorNEQ        Operator = "neq"
	OperatorGTE        Operator = "gte"
	OperatorLTE        Operator = "lte"
	OperatorBetween    Operator = "between"
	OperatorChangeRate Operator = "change_rate"
)

type LogicOperator string

const (
	LogicAND LogicOperator = "AND"
	LogicOR  LogicOperator = "OR"
)

// Condition compares one telemetry tag against a threshold. With
// TimeWindowMinutes > 0 the comparison must hold continuously for the whole
// window before the condition contributes true.
type Condition struct {
	TelemetryTag      string   `json:"telemetry_tag"`
	Operator          Operator `json:"operator"`
	Value             float64  `json:"value"`
	ValueTo           *float64 `json:"value_to,omitempty"` // upper bound, between only
	TimeWindowMinutes int      `json:"time_window_minutes"`
}

// ConditionGroup combines its conditions with one operator. The same operator
// also joins the group's verdict to the accumulated verdict of all prior
// groups in the rule (left-to-right fold).
type ConditionGroup struct {
	LogicOperator LogicOperator `json:"logic_operator"`
	Conditions    []Condition   `json:"conditions"`
}

// RuleScope selects the devices a rule applies to. Selectors compose as a
// union; a scope with no selectors matches nothing.
type RuleScope struct {
	DeviceIDs  []string `json:"device_ids,omitempty"`
	DeviceType string   `json:"device_type,omitempty"`
	LocationID string   `json:"location_id,omitempty"`
}

func (s RuleScope) Matches(d *Device) bool {
	for _, id := range s.DeviceIDs {
		if id == d.ID {
			return true
		}
	}
	if s.DeviceType != "" && s.DeviceType == d.Type {
		return true
	}
	if s.LocationID != "" && s.LocationID == d.LocationID {
		return true
	}
	return false
}

type AlertRule struct {
	ID                     string           `json:"id" gorm:"primaryKey"`
	Name                   string           `json:"name" gorm:"uniqueIndex;not null"`
	Description            string           `json:"description"`
	RuleType               RuleType         `json:"rule_type" gorm:"not null"`
	Scope                  RuleScope        `json:"scope" gorm:"serializer:json"`
	ConditionGroups        []ConditionGroup `json:"condition_groups" gorm:"serializer:json"`
	Severity               Severity         `json:"severity" gorm:"not null"`
	EscalationPolicyID     string           `json:"escalation_policy_id"`
	NotificationChannelIDs []string         `json:"notification_channel_ids" gorm:"serializer:json"`
	AssignedTeam           string           `json:"assigned_team"`
	Enabled                bool             `json:"enabled" gorm:"default:true"`
	CreatedAt              time.Time        `json:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at"`
	DeletedAt              gorm.DeletedAt   `json:"-" gorm:"index"`
}

var ruleTypes = map[RuleType]bool{
	RuleTypeThreshold:   true,
	RuleTypeCondition:   true,
	RuleTypeTimeWindow:  true,
	RuleTypeDeviceState: true,
	RuleTypeHeartbeat:   true,
	RuleTypeAnomaly:     true,
	RuleTypeCrossDevice: true,
}

var operators = map[Operator]bool{
	OperatorGT:         true,
	OperatorLT:         true,
	OperatorEQ:         true,
	OperatorNEQ:        true,
	OperatorGTE:        true,
	OperatorLTE:        true,
	OperatorBetween:    true,
	OperatorChangeRate: true,
}

// Validate rejects malformed rules at save time so they never reach the
// evaluation path.
func (r *AlertRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if !ruleTypes[r.RuleType] {
		return fmt.Errorf("unknown rule type %q", r.RuleType)
	}
	if !ValidSeverity(r.Severity) {
		return fmt.Errorf("unknown severity %q", r.Severity)
	}
	if len(r.ConditionGroups) == 0 {
		return fmt.Errorf("rule requires at least one condition group")
	}
	for gi, g := range r.ConditionGroups {
		if g.LogicOperator != LogicAND && g.LogicOperator != LogicOR {
			return fmt.Errorf("group %d: unknown logic operator %q", gi, g.LogicOperator)
		}
		if len(g.Conditions) == 0 {
			return fmt.Errorf("group %d: requires at least one condition", gi)
		}
		for ci, c := range g.Conditions {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("group %d condition %d: %w", gi, ci, err)
			}
		}
	}
	return nil
}

func (c *Condition) Validate() error {
	if c.TelemetryTag == "" {
		return fmt.Errorf("telemetry tag is required")
	}
	if !operators[c.Operator] {
		return fmt.Errorf("unknown operator %q", c.Operator)
	}
	if c.TimeWindowMinutes < 0 {
		return fmt.Errorf("time window must not be negative")
	}
	if c.Operator == OperatorBetween {
		if c.ValueTo == nil {
			return fmt.Errorf("between requires an upper bound")
		}
		if c.Value > *c.ValueTo {
			return fmt.Errorf("between lower bound %g exceeds upper bound %g", c.Value, *c.ValueTo)
		}
	}
	if c.Operator == OperatorChangeRate && c.TimeWindowMinutes == 0 {
		return fmt.Errorf("change_rate requires a time window")
	}
	return nil
}

// Describe renders the condition in the form used for trigger descriptions,
// e.g. "temperature gt 80".
func (c *Condition) Describe() string {
	if c.Operator == OperatorBetween && c.ValueTo != nil {
		return fmt.Sprintf("%s between %g and %g", c.TelemetryTag, c.Value, *c.ValueTo)
	}
	return fmt.Sprintf("%s %s %g", c.TelemetryTag, c.Operator, c.Value)
}

// ReferencesTag reports whether any condition in the rule reads the tag.
// Used for edge-triggered re-evaluation.
func (r *AlertRule) ReferencesTag(tag string) bool {
	for _, g := range r.ConditionGroups {
		for _, c := range g.Conditions {
			if c.TelemetryTag == tag {
				return true
			}
		}
	}
	return false
}
