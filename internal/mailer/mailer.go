// Package mailer delivers transactional email over SMTP. Delivery failures
// are logged, never surfaced to the request that triggered the send.
package mailer

import (
	"fmt"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/smartcitybq/traffic-admin/internal/config"
)

// Mailer sends transactional email using the configured SMTP relay.
type Mailer struct {
	cfg config.SMTPConfig
}

// New constructs a Mailer from SMTP settings.
func New(cfg config.SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

// Enabled reports whether an SMTP relay is configured.
func (m *Mailer) Enabled() bool {
	return m != nil && strings.TrimSpace(m.cfg.Host) != ""
}

// Send delivers one HTML email synchronously.
func (m *Mailer) Send(to, subject, htmlBody string) error {
	if !m.Enabled() {
		return fmt.Errorf("mailer: smtp not configured")
	}

	msg := gomail.NewMessage()
	from := m.cfg.From
	if from == "" {
		from = m.cfg.Username
	}
	if m.cfg.FromName != "" {
		msg.SetHeader("From", msg.FormatAddress(from, m.cfg.FromName))
	} else {
		msg.SetHeader("From", from)
	}
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	dialer := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)
	if errSend := dialer.DialAndSend(msg); errSend != nil {
		return fmt.Errorf("mailer: send to %s: %w", to, errSend)
	}
	return nil
}

// SendAsync delivers an email on a background goroutine, logging failures.
func (m *Mailer) SendAsync(to, subject, htmlBody string) {
	if !m.Enabled() {
		log.Debugf("mailer disabled, dropping email to %s", to)
		return
	}
	go func() {
		if errSend := m.Send(to, subject, htmlBody); errSend != nil {
			log.WithError(errSend).Warnf("email delivery failed for %s", to)
		}
	}()
}

// ChangePasswordLink builds the console URL a user follows to set a new
// password from a reset token.
func (m *Mailer) ChangePasswordLink(token string) string {
	base := strings.TrimRight(m.cfg.ChangePasswordURL, "/")
	if base == "" {
		return ""
	}
	return base + "?token=" + url.QueryEscape(token)
}

// SendWelcome emails a freshly created user its set-password link.
func (m *Mailer) SendWelcome(to, name, token string) {
	link := m.ChangePasswordLink(token)
	m.SendAsync(to, "Welcome to the traffic console", welcomeHTML(name, link))
}

// SendPasswordReset emails a reset link after an administrator reissues a
// user's reset token.
func (m *Mailer) SendPasswordReset(to, name, token string) {
	link := m.ChangePasswordLink(token)
	m.SendAsync(to, "Password reset requested", passwordResetHTML(name, link))
}
