package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/slack-go/slack"

	"fleetwatch/internal/models"
)

// SlackSender posts the event as an attachment to the slack channel named by
// the notification channel's target.
type SlackSender struct {
	client *slack.Client
}

func NewSlackSender(token string) *SlackSender {
	return &SlackSender{client: slack.New(token)}
}

func (s *SlackSender) Send(ctx context.Context, ch *models.NotificationChannel, ev Event) error {
	display := ev.Severity.Display()

	fields := []slack.AttachmentField{
		{Title: "Device", Value: ev.DeviceName, Short: true},
		{Title: "Severity", Value: display.Label, Short: true},
		{Title: "Rule", Value: ev.RuleName, Short: true},
		{Title: "Condition", Value: ev.TriggerDescription, Short: true},
	}
	if ev.EscalationLevel != nil {
		fields = append(fields,
			slack.AttachmentField{Title: "Escalation Level", Value: strconv.Itoa(*ev.EscalationLevel), Short: true},
			slack.AttachmentField{Title: "Notify", Value: ev.Role, Short: true},
		)
	}

	attachment := slack.Attachment{
		Color:  display.Color,
		Title:  fmt.Sprintf("FleetWatch %s: %s", ev.Kind, ev.RuleName),
		Fields: fields,
		Footer: "FleetWatch Alerting",
		Ts:     json.Number(strconv.FormatInt(ev.Timestamp.Unix(), 10)),
	}

	_, _, err := s.client.PostMessageContext(
		ctx,
		ch.Target,
		slack.MsgOptionAttachments(attachment),
	)
	return err
}
