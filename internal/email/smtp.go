package email

import (
	"fmt"
	"log/slog"
	"net/smtp"
)

type SMTPSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

func NewSMTPSender(host string, port int, user, password, from string) *SMTPSender {
	return &SMTPSender{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		From:     from,
	}
}

func (s *SMTPSender) SendPurgeReport(email, downloadURL string, report string) {
	// Run in background to not block the request
	go func() {
		addr := fmt.Sprintf("%s:%d", s.Host, s.Port)

		// PlainAuth is enough for simple relays; modern providers want app
		// passwords or API-based delivery.
		var auth smtp.Auth
		if s.User != "" && s.Password != "" {
			auth = smtp.PlainAuth("", s.User, s.Password, s.Host)
		}

		subject := "Purge Completed"
		body := fmt.Sprintf("Hello,\n\nYour purge request has completed.\n\n%s\n\nArchive of the removed rows:\n%s\n\nThe archive retention depends on your storage policy.\n", report, downloadURL)

		msg := []byte(fmt.Sprintf("To: %s\r\n"+
			"Subject: %s\r\n"+
			"\r\n"+
			"%s\r\n", email, subject, body))

		slog.Info("Sending email via SMTP", "to", email, "host", s.Host)

		if err := smtp.SendMail(addr, auth, s.From, []string{email}, msg); err != nil {
			slog.Error("Failed to send email", "error", err, "to", email)
		} else {
			slog.Info("Email sent successfully", "to", email)
		}
	}()
}
