package alert

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"fleetwatch/internal/metrics"
	"fleetwatch/internal/models"
	"fleetwatch/internal/notify"
)

type checkKind int

const (
	checkEscalation checkKind = iota
	checkSLA
)

// scheduledCheck is one pending timer entry: advance an instance to a level,
// or test its SLA deadline.
type scheduledCheck struct {
	fireAt     time.Time
	instanceID string
	levelIdx   int
	kind       checkKind
	index      int // heap bookkeeping
}

type checkQueue []*scheduledCheck

func (q checkQueue) Len() int            { return len(q) }
func (q checkQueue) Less(i, j int) bool  { return q[i].fireAt.Before(q[j].fireAt) }
func (q checkQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i]; q[i].index = i; q[j].index = j }
func (q *checkQueue) Push(x interface{}) { c := x.(*scheduledCheck); c.index = len(*q); *q = append(*q, c) }
func (q *checkQueue) Pop() interface{} {
	old := *q
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return c
}

// escalationState is the per-instance snapshot taken at open time. Policy
// edits never retroactively change instances already escalating.
type escalationState struct {
	policy     models.EscalationPolicy
	channelIDs []string
}

// Scheduler advances open, unacknowledged instances through their escalation
// levels on a timer and tracks SLA breach. It keeps a single priority queue
// of (fireAt, instanceId, level) entries rather than one OS timer per
// instance; the interface stays storage-agnostic.
type Scheduler struct {
	mu     sync.Mutex
	queue  checkQueue
	states map[string]*escalationState

	manager    *Manager
	dispatcher *notify.Dispatcher
	logger     *zap.Logger
	clock      func() time.Time
	wake       chan struct{}
}

func NewScheduler(manager *Manager, dispatcher *notify.Dispatcher, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		states:     make(map[string]*escalationState),
		manager:    manager,
		dispatcher: dispatcher,
		logger:     logger,
		clock:      time.Now,
		wake:       make(chan struct{}, 1),
	}
}

// SetClock overrides the time source. Tests only.
func (s *Scheduler) SetClock(clock func() time.Time) { s.clock = clock }

// ScheduleChecks enqueues the first escalation check at startTime plus the
// first level's delay, and the SLA deadline check at startTime plus the
// policy budget.
func (s *Scheduler) ScheduleChecks(inst *models.AlertInstance, rule *models.AlertRule, policy *models.EscalationPolicy) {
	s.mu.Lock()
	s.states[inst.ID] = &escalationState{
		policy:     *policy,
		channelIDs: append([]string(nil), rule.NotificationChannelIDs...),
	}
	heap.Push(&s.queue, &scheduledCheck{
		fireAt:     inst.StartTime.Add(time.Duration(policy.Levels[0].DelayMinutes) * time.Minute),
		instanceID: inst.ID,
		levelIdx:   0,
		kind:       checkEscalation,
	})
	heap.Push(&s.queue, &scheduledCheck{
		fireAt:     inst.StartTime.Add(time.Duration(policy.SLAMinutes) * time.Minute),
		instanceID: inst.ID,
		kind:       checkSLA,
	})
	s.mu.Unlock()
	s.poke()
}

// CancelChecks drops all pending checks for an instance. Entries already in
// the queue are discarded lazily at fire time.
func (s *Scheduler) CancelChecks(instanceID string) {
	s.mu.Lock()
	delete(s.states, instanceID)
	s.mu.Unlock()
}

func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run drives the queue until ctx is cancelled, sleeping until the next entry
// is due.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		s.mu.Lock()
		var wait time.Duration = time.Hour
		if len(s.queue) > 0 {
			wait = s.queue[0].fireAt.Sub(s.clock())
			if wait < 0 {
				wait = 0
			}
		}
		s.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
			s.RunDue(s.clock())
		}
	}
}

// RunDue processes every check due at or before now. Exported so tests can
// drive the queue with a synthetic clock.
func (s *Scheduler) RunDue(now time.Time) {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.queue[0].fireAt.After(now) {
			s.mu.Unlock()
			return
		}
		chk := heap.Pop(&s.queue).(*scheduledCheck)
		state, ok := s.states[chk.instanceID]
		s.mu.Unlock()

		if !ok {
			continue // cancelled
		}
		switch chk.kind {
		case checkSLA:
			s.runSLACheck(chk, state, now)
		case checkEscalation:
			s.runEscalationCheck(chk, state, now)
		}
	}
}

func (s *Scheduler) runEscalationCheck(chk *scheduledCheck, state *escalationState, now time.Time) {
	level := state.policy.Levels[chk.levelIdx]

	inst, ok := s.manager.AdvanceEscalation(chk.instanceID, level.Level, now)
	if !ok {
		// No longer active: the transition won the race. Drop remaining
		// checks for the instance.
		s.CancelChecks(chk.instanceID)
		return
	}

	metrics.EscalationsTotal.Inc()
	s.logger.Info("alert escalated",
		zap.String("instance_id", inst.ID),
		zap.Int("level", level.Level),
		zap.String("role", level.Role))

	lvl := level.Level
	s.dispatcher.Dispatch(context.Background(), state.channelIDs, notify.Event{
		Kind:               notify.EventEscalated,
		AlertID:            inst.ID,
		RuleID:             inst.RuleID,
		RuleName:           inst.RuleName,
		DeviceID:           inst.DeviceID,
		DeviceName:         inst.DeviceName,
		Severity:           inst.Severity,
		TriggerDescription: inst.TriggerCondition,
		EscalationLevel:    &lvl,
		Role:               level.Role,
		Timestamp:          now,
	})

	// Next check is relative to this escalation, not cumulative from open.
	// After the last level the instance stays active until acknowledged or
	// resolved, with no further checks.
	nextIdx := chk.levelIdx + 1
	if nextIdx >= len(state.policy.Levels) {
		return
	}
	s.mu.Lock()
	if _, still := s.states[chk.instanceID]; still {
		heap.Push(&s.queue, &scheduledCheck{
			fireAt:     now.Add(time.Duration(state.policy.Levels[nextIdx].DelayMinutes) * time.Minute),
			instanceID: chk.instanceID,
			levelIdx:   nextIdx,
			kind:       checkEscalation,
		})
	}
	s.mu.Unlock()
	s.poke()
}

func (s *Scheduler) runSLACheck(chk *scheduledCheck, state *escalationState, now time.Time) {
	inst, ok := s.manager.MarkSLABreached(chk.instanceID, now)
	if !ok {
		return
	}

	metrics.SLABreaches.Inc()
	s.logger.Warn("alert SLA breached",
		zap.String("instance_id", inst.ID),
		zap.String("rule_id", inst.RuleID),
		zap.Int("sla_minutes", state.policy.SLAMinutes))

	s.dispatcher.Dispatch(context.Background(), state.channelIDs, notify.Event{
		Kind:               notify.EventSLABreached,
		AlertID:            inst.ID,
		RuleID:             inst.RuleID,
		RuleName:           inst.RuleName,
		DeviceID:           inst.DeviceID,
		DeviceName:         inst.DeviceName,
		Severity:           inst.Severity,
		TriggerDescription: inst.TriggerCondition,
		Timestamp:          now,
	})
}
