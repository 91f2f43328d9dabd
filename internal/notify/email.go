package notify

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/gomail.v2"

	"fleetwatch/internal/models"
)

// EmailSender delivers events over SMTP to the channel's recipients.
type EmailSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewEmailSender(host string, port int, from, password string) *EmailSender {
	return &EmailSender{
		dialer: gomail.NewDialer(host, port, from, password),
		from:   from,
	}
}

func (s *EmailSender) Send(ctx context.Context, ch *models.NotificationChannel, ev Event) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", ch.Recipients...)
	m.SetHeader("Subject", fmt.Sprintf("[%s] %s alert: %s",
		ev.Severity.Display().Label, ev.Kind, ev.RuleName))

	body := fmt.Sprintf(`Alert: %s
Device: %s (%s)
Severity: %s
Condition: %s
Time: %s
`, ev.RuleName, ev.DeviceName, ev.DeviceID,
		ev.Severity.Display().Label, ev.TriggerDescription,
		ev.Timestamp.Format(time.RFC3339))

	if ev.EscalationLevel != nil {
		body += fmt.Sprintf("Escalation Level: %d (notify %s)\n", *ev.EscalationLevel, ev.Role)
	}
	m.SetBody("text/plain", body)

	// gomail has no context support; honor cancellation around the blocking
	// dial-and-send.
	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
