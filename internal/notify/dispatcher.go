package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fleetwatch/internal/metrics"
	"fleetwatch/internal/models"
	"fleetwatch/internal/store"
)

type EventKind string

const (
	EventTriggered   EventKind = "triggered"
	EventEscalated   EventKind = "escalated"
	EventSLABreached EventKind = "sla_breached"
)

// Event is the payload handed to every channel sender.
type Event struct {
	Kind               EventKind       `json:"kind"`
	AlertID            string          `json:"alert_id"`
	RuleID             string          `json:"rule_id"`
	RuleName           string          `json:"rule_name"`
	DeviceID           string          `json:"device_id"`
	DeviceName         string          `json:"device_name"`
	Severity           models.Severity `json:"severity"`
	TriggerDescription string          `json:"trigger_description"`
	EscalationLevel    *int            `json:"escalation_level,omitempty"`
	Role               string          `json:"role,omitempty"`
	Timestamp          time.Time       `json:"timestamp"`
}

// Sender delivers one event to one channel.
type Sender interface {
	Send(ctx context.Context, ch *models.NotificationChannel, ev Event) error
}

// DeliveryFailure records one channel that could not be reached after the
// immediate re-attempt.
type DeliveryFailure struct {
	ChannelID string
	Err       error
}

func (f DeliveryFailure) Error() string {
	return fmt.Sprintf("channel %s: %v", f.ChannelID, f.Err)
}

// Dispatcher fans one event out to the configured channels. One channel's
// outage never blocks the others and never fails the dispatch as a whole:
// failures come back as a partial-failure list. There is no retry beyond one
// immediate re-attempt per channel; sustained failure is someone else's
// alerting problem.
type Dispatcher struct {
	store   store.Store
	senders map[models.ChannelType]Sender
	timeout time.Duration
	logger  *zap.Logger
}

func NewDispatcher(st store.Store, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:   st,
		senders: make(map[models.ChannelType]Sender),
		timeout: timeout,
		logger:  logger,
	}
}

func (d *Dispatcher) Register(t models.ChannelType, s Sender) {
	d.senders[t] = s
}

func (d *Dispatcher) Dispatch(ctx context.Context, channelIDs []string, ev Event) []DeliveryFailure {
	var failures []DeliveryFailure

	for _, id := range channelIDs {
		ch, err := d.store.GetChannel(id)
		if err != nil {
			d.logger.Warn("notification channel lookup failed",
				zap.String("channel_id", id), zap.Error(err))
			failures = append(failures, DeliveryFailure{ChannelID: id, Err: err})
			continue
		}
		if !ch.Enabled {
			continue
		}

		sender, ok := d.senders[ch.Type]
		if !ok {
			err := fmt.Errorf("no sender for channel type %q", ch.Type)
			d.logger.Warn("notification skipped", zap.String("channel_id", id), zap.Error(err))
			failures = append(failures, DeliveryFailure{ChannelID: id, Err: err})
			continue
		}

		if err := d.send(ctx, sender, ch, ev); err != nil {
			metrics.NotificationFailures.WithLabelValues(string(ch.Type)).Inc()
			d.logger.Error("notification delivery failed",
				zap.String("channel_id", id),
				zap.String("channel_type", string(ch.Type)),
				zap.String("alert_id", ev.AlertID),
				zap.Error(err))
			failures = append(failures, DeliveryFailure{ChannelID: id, Err: err})
			continue
		}
		metrics.NotificationsSent.WithLabelValues(string(ch.Type)).Inc()
	}

	return failures
}

// send attempts delivery with a bounded per-channel timeout and one immediate
// re-attempt, so one slow channel cannot stall the dispatch loop.
func (d *Dispatcher) send(ctx context.Context, sender Sender, ch *models.NotificationChannel, ev Event) error {
	attempt := func() error {
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		return sender.Send(sendCtx, ch, ev)
	}

	err := attempt()
	if err == nil {
		return nil
	}
	if retryErr := attempt(); retryErr == nil {
		return nil
	}
	return err
}
