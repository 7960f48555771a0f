// Package email delivers the urgent-notification email channel over SMTP.
package email

import (
	"context"
	"fmt"
	"html"
	"time"

	"tradelink_backend/platform/config"
	"tradelink_backend/platform/logger"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender sends notification emails via a direct SMTP connection using
// go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
	log       *logger.Logger
}

// NewSMTPSender creates a sender from the email configuration.
func NewSMTPSender(cfg config.EmailConfig, log *logger.Logger) *SMTPSender {
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
		log:       log,
	}
}

// SendNotification sends one message per recipient as BCC-free individual
// sends, so one bad address does not sink the batch.
func (s *SMTPSender) SendNotification(ctx context.Context, recipients []string, title, message string) error {
	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	body := fmt.Sprintf("<h2>%s</h2><p>%s</p>", html.EscapeString(title), html.EscapeString(message))

	var firstErr error
	for _, recipient := range recipients {
		msg := gomail.NewMsg()
		if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
			return fmt.Errorf("smtp from: %w", err)
		}
		if err := msg.To(recipient); err != nil {
			if s.log != nil {
				s.log.Warn("skipping invalid notification recipient", "recipient", recipient, "error", err)
			}
			continue
		}
		msg.Subject(title)
		msg.SetBodyString(gomail.TypeTextHTML, body)

		if err := client.DialAndSendWithContext(ctx, msg); err != nil {
			if s.log != nil {
				s.log.Error("notification email failed", "recipient", recipient, "error", err)
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("smtp send: %w", err)
			}
		}
	}
	return firstErr
}
