package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// EscalationLevel is one rung of an escalation ladder: notify role after
// delayMinutes, counted from the previous escalation (not cumulative from
// alert open).
type EscalationLevel struct {
	Level        int    `json:"level"` // 1-based, strictly increasing
	Role         string `json:"role"`
	DelayMinutes int    `json:"delay_minutes"`
}

type EscalationPolicy struct {
	ID          string            `json:"id" gorm:"primaryKey"`
	Name        string            `json:"name" gorm:"uniqueIndex;not null"`
	Description string            `json:"description"`
	Levels      []EscalationLevel `json:"levels" gorm:"serializer:json"`
	SLAMinutes  int               `json:"sla_minutes"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	DeletedAt   gorm.DeletedAt    `json:"-" gorm:"index"`
}

func (p *EscalationPolicy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("policy name is required")
	}
	if len(p.Levels) == 0 {
		return fmt.Errorf("policy requires at least one escalation level")
	}
	for i, l := range p.Levels {
		if l.Level != i+1 {
			return fmt.Errorf("levels must be 1-based and strictly increasing, got %d at position %d", l.Level, i)
		}
		if l.Role == "" {
			return fmt.Errorf("level %d: role is required", l.Level)
		}
		if l.DelayMinutes < 0 {
			return fmt.Errorf("level %d: delay must not be negative", l.Level)
		}
	}
	if p.SLAMinutes <= 0 {
		return fmt.Errorf("sla minutes must be positive")
	}
	return nil
}

type ChannelType string

const (
	ChannelEmail   ChannelType = "email"
	ChannelSMS     ChannelType = "sms"
	ChannelWebhook ChannelType = "webhook"
	ChannelPush    ChannelType = "push"
	ChannelSlack   ChannelType = "slack"
)

var channelTypes = map[ChannelType]bool{
	ChannelEmail:   true,
	ChannelSMS:     true,
	ChannelWebhook: true,
	ChannelPush:    true,
	ChannelSlack:   true,
}

// NotificationChannel is one configured delivery target. Target is the
// channel endpoint: a webhook/provider URL, a slack channel name, or unused
// for email where Recipients carries the addresses.
type NotificationChannel struct {
	ID         string         `json:"id" gorm:"primaryKey"`
	Name       string         `json:"name" gorm:"uniqueIndex;not null"`
	Type       ChannelType    `json:"type" gorm:"not null"`
	Target     string         `json:"target"`
	Recipients []string       `json:"recipients,omitempty" gorm:"serializer:json"`
	Enabled    bool           `json:"enabled" gorm:"default:true"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}

func (c *NotificationChannel) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("channel name is required")
	}
	if !channelTypes[c.Type] {
		return fmt.Errorf("unknown channel type %q", c.Type)
	}
	switch c.Type {
	case ChannelEmail:
		if len(c.Recipients) == 0 {
			return fmt.Errorf("email channel requires recipients")
		}
	default:
		if c.Target == "" {
			return fmt.Errorf("%s channel requires a target", c.Type)
		}
	}
	return nil
}
