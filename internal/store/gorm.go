package store

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"fleetwatch/internal/models"
)

// GormStore is the database-backed Store and DeviceRegistry, plus the CRUD
// surface used by the API layer. Malformed definitions are rejected here, at
// save time, so they never reach the evaluation path.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetRules() ([]models.AlertRule, error) {
	var rules []models.AlertRule
	if err := s.db.Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("fetch rules: %w", err)
	}
	return rules, nil
}

func (s *GormStore) GetPolicy(id string) (*models.EscalationPolicy, error) {
	var p models.EscalationPolicy
	if err := s.db.First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch policy %s: %w", id, err)
	}
	return &p, nil
}

func (s *GormStore) GetChannel(id string) (*models.NotificationChannel, error) {
	var c models.NotificationChannel
	if err := s.db.First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch channel %s: %w", id, err)
	}
	return &c, nil
}

func (s *GormStore) GetDevice(id string) (*models.Device, error) {
	var d models.Device
	if err := s.db.First(&d, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch device %s: %w", id, err)
	}
	return &d, nil
}

func (s *GormStore) CreateRule(r *models.AlertRule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return s.db.Create(r).Error
}

func (s *GormStore) UpdateRule(r *models.AlertRule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	return s.db.Save(r).Error
}

func (s *GormStore) DeleteRule(id string) error {
	return s.db.Delete(&models.AlertRule{}, "id = ?", id).Error
}

func (s *GormStore) GetRule(id string) (*models.AlertRule, error) {
	var r models.AlertRule
	if err := s.db.First(&r, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *GormStore) ListRules(enabled *bool) ([]models.AlertRule, error) {
	var rules []models.AlertRule
	query := s.db
	if enabled != nil {
		query = query.Where("enabled = ?", *enabled)
	}
	if err := query.Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *GormStore) CreatePolicy(p *models.EscalationPolicy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return s.db.Create(p).Error
}

func (s *GormStore) ListPolicies() ([]models.EscalationPolicy, error) {
	var policies []models.EscalationPolicy
	if err := s.db.Find(&policies).Error; err != nil {
		return nil, err
	}
	return policies, nil
}

func (s *GormStore) CreateChannel(c *models.NotificationChannel) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return s.db.Create(c).Error
}

func (s *GormStore) ListChannels() ([]models.NotificationChannel, error) {
	var channels []models.NotificationChannel
	if err := s.db.Find(&channels).Error; err != nil {
		return nil, err
	}
	return channels, nil
}

func (s *GormStore) UpsertDevice(d *models.Device) error {
	return s.db.Save(d).Error
}

// SaveInstance persists an alert instance snapshot. The in-memory manager
// stays authoritative for runtime state; this is the durable copy the UI and
// CLI read after restarts.
func (s *GormStore) SaveInstance(inst *models.AlertInstance) error {
	return s.db.Save(inst).Error
}
