package notifier

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// MailerConfig holds SMTP settings for the gomail dispatcher.
type MailerConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer dispatches notification events as SMTP mail via gomail.
type Mailer struct {
	cfg MailerConfig
}

func NewMailer(cfg MailerConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

func (m *Mailer) Dispatch(event, recipient string, payload map[string]string) (bool, error) {
	subject, body, err := renderEvent(event, payload)
	if err != nil {
		return false, err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", recipient)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	dialer := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)
	if err := dialer.DialAndSend(msg); err != nil {
		return false, err
	}
	return true, nil
}

func renderEvent(event string, payload map[string]string) (subject, body string, err error) {
	switch event {
	case EventWelcome:
		subject = "Welcome to the studio platform"
		body = fmt.Sprintf(
			"Hello %s,\n\nYour account has been created.\nTemporary password: %s\n\nYou will be asked to change it on first login.\n",
			payload["name"], payload["password"],
		)
	case EventNewPassword:
		subject = "Your password has been reset"
		body = fmt.Sprintf(
			"Hello %s,\n\nA new temporary password was issued for your account: %s\n\nYou will be asked to change it on next login.\n",
			payload["name"], payload["password"],
		)
	default:
		return "", "", fmt.Errorf("unknown notification event %q", event)
	}
	return subject, body, nil
}
