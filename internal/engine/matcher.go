package engine

import (
	"strings"
	"time"

	"fleetwatch/internal/models"
)

// Match evaluates a rule's condition-group tree against the device's current
// window state. Disabled rules and devices outside the rule scope never
// match. On a match the description lists every condition that evaluated
// true, e.g. "temperature gt 80".
func Match(rule *models.AlertRule, device *models.Device, ws *WindowSet, now time.Time) (bool, string) {
	if !rule.Enabled || !rule.Scope.Matches(device) {
		return false, ""
	}
	if len(rule.ConditionGroups) == 0 {
		return false, ""
	}

	var fired []string
	evalGroup := func(g models.ConditionGroup) bool {
		if len(g.Conditions) == 0 {
			return false
		}
		result := evalCondition(g.Conditions[0], device.ID, ws, now, &fired)
		for _, c := range g.Conditions[1:] {
			v := evalCondition(c, device.ID, ws, now, &fired)
			if g.LogicOperator == models.LogicAND {
				result = result && v
			} else {
				result = result || v
			}
		}
		return result
	}

	// Fold left across groups. Each group's operator does double duty: it
	// combines the conditions inside the group and joins the group's verdict
	// to the accumulated verdict of all prior groups.
	acc := evalGroup(rule.ConditionGroups[0])
	for _, g := range rule.ConditionGroups[1:] {
		v := evalGroup(g)
		if g.LogicOperator == models.LogicAND {
			acc = acc && v
		} else {
			acc = acc || v
		}
	}

	if !acc {
		return false, ""
	}
	return true, strings.Join(fired, "; ")
}

func evalCondition(c models.Condition, deviceID string, ws *WindowSet, now time.Time, fired *[]string) bool {
	v := EvaluateCondition(c, ws.Get(deviceID, c.TelemetryTag), now)
	if v {
		*fired = append(*fired, c.Describe())
	}
	return v
}
