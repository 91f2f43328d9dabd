package models

import (
	"time"

	"gorm.io/gorm"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// SeverityDisplay carries the UI label and color for a severity. Lookup is a
// direct table keyed on the typed enum, never on composed strings.
type SeverityDisplay struct {
	Label string
	Color string
	Rank  int // lower is more severe
}

var severityDisplay = map[Severity]SeverityDisplay{
	SeverityCritical: {Label: "Critical", Color: "#FF0000", Rank: 0},
	SeverityHigh:     {Label: "High", Color: "#FF8C00", Rank: 1},
	SeverityMedium:   {Label: "Medium", Color: "#FFCC00", Rank: 2},
	SeverityLow:      {Label: "Low", Color: "#36A64F", Rank: 3},
}

func (s Severity) Display() SeverityDisplay {
	if d, ok := severityDisplay[s]; ok {
		return d
	}
	return SeverityDisplay{Label: string(s), Color: "#808080", Rank: 4}
}

func ValidSeverity(s Severity) bool {
	_, ok := severityDisplay[s]
	return ok
}

type InstanceStatus string

const (
	StatusActive       InstanceStatus = "active"
	StatusAcknowledged InstanceStatus = "acknowledged"
	StatusResolved     InstanceStatus = "resolved"
	StatusSuppressed   InstanceStatus = "suppressed"
)

// Terminal reports whether no further transition is valid out of the status.
// Suppressed is terminal for notification purposes; the instance stays
// queryable.
func (s InstanceStatus) Terminal() bool {
	return s == StatusResolved || s == StatusSuppressed
}

// AlertInstance is one runtime occurrence of a rule firing for a device.
// Severity is copied from the rule at open time; later rule edits do not
// change open instances.
type AlertInstance struct {
	ID                     string         `json:"id" gorm:"primaryKey"`
	RuleID                 string         `json:"rule_id" gorm:"index"`
	RuleName               string         `json:"rule_name"`
	DeviceID               string         `json:"device_id" gorm:"index"`
	DeviceName             string         `json:"device_name"`
	LocationID             string         `json:"location_id" gorm:"index"`
	LocationName           string         `json:"location_name"`
	Severity               Severity       `json:"severity"`
	TriggerCondition       string         `json:"trigger_condition"`
	StartTime              time.Time      `json:"start_time"`
	EndTime                *time.Time     `json:"end_time,omitempty"`
	LastEscalatedAt        *time.Time     `json:"last_escalated_at,omitempty"`
	CurrentEscalationLevel int            `json:"current_escalation_level"` // 0 = not yet escalated
	Status                 InstanceStatus `json:"status" gorm:"index"`
	AssignedTo             string         `json:"assigned_to,omitempty"`
	SLABreached            bool           `json:"sla_breached"`
	AcknowledgedAt         *time.Time     `json:"acknowledged_at,omitempty"`
	ResolvedAt             *time.Time     `json:"resolved_at,omitempty"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
	DeletedAt              gorm.DeletedAt `json:"-" gorm:"index"`
}

// Duration is the open lifetime of the instance: start to resolution, or
// start to now while the instance is still open.
func (a *AlertInstance) Duration(now time.Time) time.Duration {
	if a.EndTime != nil {
		return a.EndTime.Sub(a.StartTime)
	}
	return now.Sub(a.StartTime)
}
