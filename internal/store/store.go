// Package store supplies rule, policy and channel definitions to the engine.
// The engine treats these as read-mostly reference data behind interfaces so
// it can run against fixed in-memory fixtures in tests.
package store

import (
	"errors"
	"sync"

	"fleetwatch/internal/models"
)

var ErrNotFound = errors.New("not found")

// Store is the engine's read view of alerting configuration. Edits take
// effect for future evaluations only; already-open instances keep the
// severity and policy they were opened with.
type Store interface {
	GetRules() ([]models.AlertRule, error)
	GetPolicy(id string) (*models.EscalationPolicy, error)
	GetChannel(id string) (*models.NotificationChannel, error)
}

// DeviceRegistry resolves device reference data for scope checks and
// instance labeling.
type DeviceRegistry interface {
	GetDevice(id string) (*models.Device, error)
}

// MemoryStore is a fixture-backed Store and DeviceRegistry. It is also the
// live backing for file-driven deployments, where the watcher swaps the whole
// snapshot on reload.
type MemoryStore struct {
	mu       sync.RWMutex
	rules    []models.AlertRule
	policies map[string]models.EscalationPolicy
	channels map[string]models.NotificationChannel
	devices  map[string]models.Device
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		policies: make(map[string]models.EscalationPolicy),
		channels: make(map[string]models.NotificationChannel),
		devices:  make(map[string]models.Device),
	}
}

func (m *MemoryStore) GetRules() ([]models.AlertRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.AlertRule, len(m.rules))
	copy(out, m.rules)
	return out, nil
}

func (m *MemoryStore) GetPolicy(id string) (*models.EscalationPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.policies[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *MemoryStore) GetChannel(id string) (*models.NotificationChannel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.channels[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *MemoryStore) GetDevice(id string) (*models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (m *MemoryStore) AddRule(r models.AlertRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, r)
}

func (m *MemoryStore) AddPolicy(p models.EscalationPolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[p.ID] = p
}

func (m *MemoryStore) AddChannel(c models.NotificationChannel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[c.ID] = c
}

func (m *MemoryStore) AddDevice(d models.Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[d.ID] = d
}

// Replace swaps the whole configuration snapshot atomically. Used by the
// rule-file watcher on reload.
func (m *MemoryStore) Replace(rules []models.AlertRule, policies []models.EscalationPolicy,
	channels []models.NotificationChannel, devices []models.Device) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rules = rules
	m.policies = make(map[string]models.EscalationPolicy, len(policies))
	for _, p := range policies {
		m.policies[p.ID] = p
	}
	m.channels = make(map[string]models.NotificationChannel, len(channels))
	for _, c := range channels {
		m.channels[c.ID] = c
	}
	m.devices = make(map[string]models.Device, len(devices))
	for _, d := range devices {
		m.devices[d.ID] = d
	}
}
