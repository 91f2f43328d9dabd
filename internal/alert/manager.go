// Package alert owns the lifecycle of alert instances. The Manager is the
// only component allowed to mutate instance state; the Scheduler advances
// open instances through their escalation levels.
package alert

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fleetwatch/internal/metrics"
	"fleetwatch/internal/models"
	"fleetwatch/internal/notify"
	"fleetwatch/internal/store"
)

var (
	ErrNotFound          = errors.New("alert instance not found")
	ErrInvalidTransition = errors.New("invalid alert transition")
)

// Repository is the optional durable sink for instance snapshots. Persistence
// failures are logged, never allowed to block lifecycle bookkeeping.
type Repository interface {
	SaveInstance(*models.AlertInstance) error
}

// CheckScheduler is what the manager needs from the escalation scheduler:
// checks are scheduled at open and cancelled atomically with any transition
// out of active.
type CheckScheduler interface {
	ScheduleChecks(inst *models.AlertInstance, rule *models.AlertRule, policy *models.EscalationPolicy)
	CancelChecks(instanceID string)
}

type Manager struct {
	mu        sync.RWMutex
	instances map[string]*models.AlertInstance
	open      map[string]string // dedup key ruleID+deviceID -> instance id

	store      store.Store
	dispatcher *notify.Dispatcher
	scheduler  CheckScheduler
	repo       Repository
	logger     *zap.Logger
	clock      func() time.Time
}

func NewManager(st store.Store, dispatcher *notify.Dispatcher, logger *zap.Logger) *Manager {
	return &Manager{
		instances:  make(map[string]*models.AlertInstance),
		open:       make(map[string]string),
		store:      st,
		dispatcher: dispatcher,
		logger:     logger,
		clock:      time.Now,
	}
}

// SetScheduler wires the escalation scheduler after construction; manager and
// scheduler reference each other.
func (m *Manager) SetScheduler(s CheckScheduler) { m.scheduler = s }

// SetRepository attaches the durable instance store.
func (m *Manager) SetRepository(r Repository) { m.repo = r }

// SetClock overrides the time source. Tests only.
func (m *Manager) SetClock(clock func() time.Time) { m.clock = clock }

func dedupKey(ruleID, deviceID string) string {
	return ruleID + "\x00" + deviceID
}

// HandleVerdict processes a positive rule-matcher verdict. While an instance
// for the (rule, device) pair is open the verdict coalesces into it; a
// verdict with no open instance opens a new one, copying severity and team
// from the rule as of now. Returns the instance and whether it was newly
// opened.
func (m *Manager) HandleVerdict(ctx context.Context, rule *models.AlertRule, device *models.Device, description string, now time.Time) (*models.AlertInstance, bool) {
	m.mu.Lock()
	key := dedupKey(rule.ID, device.ID)

	if id, ok := m.open[key]; ok {
		existing := m.instances[id]
		if existing.Status == models.StatusActive || existing.Status == models.StatusAcknowledged {
			existing.TriggerCondition = description
			existing.UpdatedAt = now
			snapshot := *existing
			m.mu.Unlock()
			m.persist(&snapshot)
			return &snapshot, false
		}
		// Suppressed instances hold the dedup key and swallow re-triggers,
		// otherwise muting a device during maintenance would immediately
		// re-open a fresh instance.
		snapshot := *existing
		m.mu.Unlock()
		return &snapshot, false
	}

	inst := &models.AlertInstance{
		ID:               uuid.NewString(),
		RuleID:           rule.ID,
		RuleName:         rule.Name,
		DeviceID:         device.ID,
		DeviceName:       device.Name,
		LocationID:       device.LocationID,
		LocationName:     device.LocationName,
		Severity:         rule.Severity,
		TriggerCondition: description,
		StartTime:        now,
		Status:           models.StatusActive,
		AssignedTo:       rule.AssignedTeam,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	m.instances[inst.ID] = inst
	m.open[key] = inst.ID
	snapshot := *inst
	m.mu.Unlock()

	metrics.AlertsOpened.WithLabelValues(string(inst.Severity)).Inc()
	m.logger.Info("alert instance opened",
		zap.String("instance_id", inst.ID),
		zap.String("rule_id", rule.ID),
		zap.String("device_id", device.ID),
		zap.String("severity", string(inst.Severity)))

	m.persist(&snapshot)

	if rule.EscalationPolicyID != "" && m.scheduler != nil {
		policy, err := m.store.GetPolicy(rule.EscalationPolicyID)
		if err != nil {
			m.logger.Error("escalation policy lookup failed, instance will not escalate",
				zap.String("instance_id", inst.ID),
				zap.String("policy_id", rule.EscalationPolicyID),
				zap.Error(err))
		} else {
			m.scheduler.ScheduleChecks(&snapshot, rule, policy)
		}
	}

	m.dispatcher.Dispatch(ctx, rule.NotificationChannelIDs, notify.Event{
		Kind:               notify.EventTriggered,
		AlertID:            snapshot.ID,
		RuleID:             rule.ID,
		RuleName:           rule.Name,
		DeviceID:           device.ID,
		DeviceName:         device.Name,
		Severity:           snapshot.Severity,
		TriggerDescription: description,
		Timestamp:          now,
	})

	return &snapshot, true
}

// Acknowledge moves an active instance to acknowledged, records the owner and
// stops escalation. The instance remains open.
func (m *Manager) Acknowledge(id, by string) error {
	m.mu.Lock()
	inst, ok := m.instances[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if inst.Status != models.StatusActive {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	now := m.clock()
	inst.Status = models.StatusAcknowledged
	inst.AssignedTo = by
	inst.AcknowledgedAt = &now
	inst.UpdatedAt = now
	snapshot := *inst
	m.cancelChecksLocked(id)
	m.mu.Unlock()

	m.logger.Info("alert acknowledged", zap.String("instance_id", id), zap.String("by", by))
	m.persist(&snapshot)
	return nil
}

// Resolve closes an active or acknowledged instance. Terminal.
func (m *Manager) Resolve(id string) error {
	m.mu.Lock()
	inst, ok := m.instances[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if inst.Status != models.StatusActive && inst.Status != models.StatusAcknowledged {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	now := m.clock()
	inst.Status = models.StatusResolved
	inst.ResolvedAt = &now
	inst.EndTime = &now
	inst.UpdatedAt = now
	snapshot := *inst
	delete(m.open, dedupKey(inst.RuleID, inst.DeviceID))
	m.cancelChecksLocked(id)
	m.mu.Unlock()

	m.logger.Info("alert resolved", zap.String("instance_id", id))
	m.persist(&snapshot)
	return nil
}

// Suppress mutes an active instance, e.g. during maintenance. Terminal for
// notification purposes: no escalation, excluded from default active views,
// still queryable.
func (m *Manager) Suppress(id string) error {
	m.mu.Lock()
	inst, ok := m.instances[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if inst.Status != models.StatusActive {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	now := m.clock()
	inst.Status = models.StatusSuppressed
	inst.UpdatedAt = now
	snapshot := *inst
	m.cancelChecksLocked(id)
	m.mu.Unlock()

	m.logger.Info("alert suppressed", zap.String("instance_id", id))
	m.persist(&snapshot)
	return nil
}

// cancelChecksLocked is called with m.mu held; the scheduler takes only its
// own lock, so the transition and the cancellation are atomic with respect to
// fired timers (which re-check status through AdvanceEscalation).
func (m *Manager) cancelChecksLocked(id string) {
	if m.scheduler != nil {
		m.scheduler.CancelChecks(id)
	}
}

// AdvanceEscalation is the scheduler's compare-and-set: it only applies if
// the instance is still active. A timer firing concurrently with a resolve
// loses the race here.
func (m *Manager) AdvanceEscalation(id string, level int, now time.Time) (*models.AlertInstance, bool) {
	m.mu.Lock()
	inst, ok := m.instances[id]
	if !ok || inst.Status != models.StatusActive {
		m.mu.Unlock()
		return nil, false
	}
	inst.CurrentEscalationLevel = level
	inst.LastEscalatedAt = &now
	inst.UpdatedAt = now
	snapshot := *inst
	m.mu.Unlock()

	m.persist(&snapshot)
	return &snapshot, true
}

// MarkSLABreached sets the breach flag exactly once, and only while the
// instance is still active. Not a status transition.
func (m *Manager) MarkSLABreached(id string, now time.Time) (*models.AlertInstance, bool) {
	m.mu.Lock()
	inst, ok := m.instances[id]
	if !ok || inst.Status != models.StatusActive || inst.SLABreached {
		m.mu.Unlock()
		return nil, false
	}
	inst.SLABreached = true
	inst.UpdatedAt = now
	snapshot := *inst
	m.mu.Unlock()

	m.persist(&snapshot)
	return &snapshot, true
}

func (m *Manager) Get(id string) (*models.AlertInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[id]
	if !ok {
		return nil, ErrNotFound
	}
	snapshot := *inst
	return &snapshot, nil
}

// ListFilter narrows the instance list. Zero values mean "no filter", except
// that suppressed instances only show up when asked for by status or via
// IncludeSuppressed.
type ListFilter struct {
	Status            models.InstanceStatus
	Severity          models.Severity
	LocationID        string
	DeviceID          string
	Search            string
	IncludeSuppressed bool
}

func (f ListFilter) matches(inst *models.AlertInstance) bool {
	if f.Status != "" {
		if inst.Status != f.Status {
			return false
		}
	} else if inst.Status == models.StatusSuppressed && !f.IncludeSuppressed {
		return false
	}
	if f.Severity != "" && inst.Severity != f.Severity {
		return false
	}
	if f.LocationID != "" && inst.LocationID != f.LocationID {
		return false
	}
	if f.DeviceID != "" && inst.DeviceID != f.DeviceID {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(inst.DeviceName), needle) &&
			!strings.Contains(strings.ToLower(inst.RuleName), needle) &&
			!strings.Contains(strings.ToLower(inst.TriggerCondition), needle) {
			return false
		}
	}
	return true
}

// List returns matching instances ordered by severity, then most recent
// first.
func (m *Manager) List(f ListFilter) []models.AlertInstance {
	m.mu.RLock()
	out := make([]models.AlertInstance, 0, len(m.instances))
	for _, inst := range m.instances {
		if f.matches(inst) {
			out = append(out, *inst)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].Severity.Display().Rank, out[j].Severity.Display().Rank
		if ri != rj {
			return ri < rj
		}
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out
}

func (m *Manager) persist(inst *models.AlertInstance) {
	if m.repo == nil {
		return
	}
	if err := m.repo.SaveInstance(inst); err != nil {
		m.logger.Error("instance persistence failed",
			zap.String("instance_id", inst.ID), zap.Error(err))
	}
}
