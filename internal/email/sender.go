package email

import (
	"log/slog"
	"time"
)

// Sender delivers purge completion notifications. Implementations must not
// block the request that finished the purge.
type Sender interface {
	SendPurgeReport(email, downloadURL string, report string)
}

// LogSender logs notifications instead of mailing them. Used when no SMTP
// host is configured (local development).
type LogSender struct{}

func NewLogSender() *LogSender {
	return &LogSender{}
}

// SendPurgeReport sends the notification asynchronously.
func (s *LogSender) SendPurgeReport(email, downloadURL string, report string) {
	go func() {
		// Simulate network latency so callers cannot rely on delivery order.
		time.Sleep(100 * time.Millisecond)
		slog.Info("EMAIL SENT",
			"to", email,
			"url", downloadURL,
			"report", report,
		)
	}()
}
