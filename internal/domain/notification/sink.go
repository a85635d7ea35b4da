package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"provision/pkg/logger"
)

// Sink delivers a rendered message. Sinks must be safe for concurrent use.
type Sink interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// LogSink writes every notification to the structured log. Always installed,
// so dispatched events are observable even without a mail server.
type LogSink struct{}

// Name implements Sink.
func (LogSink) Name() string { return "log" }

// Send implements Sink.
func (LogSink) Send(ctx context.Context, msg Message) error {
	logger.Info(ctx, "notification",
		"event", string(msg.Event),
		"subject", msg.Subject,
		"recipients", strings.Join(msg.Recipients, ","),
		"body", msg.Body,
	)
	return nil
}

// SMTPSink delivers notifications by plain SMTP.
type SMTPSink struct {
	addr string
	from string
}

// NewSMTPSink creates a sink for host:port, sending as from.
func NewSMTPSink(host string, port int, from string) *SMTPSink {
	return &SMTPSink{
		addr: fmt.Sprintf("%s:%d", host, port),
		from: from,
	}
}

// Name implements Sink.
func (s *SMTPSink) Name() string { return "smtp" }

// Send implements Sink.
func (s *SMTPSink) Send(ctx context.Context, msg Message) error {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.Recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")

	if err := smtp.SendMail(s.addr, nil, s.from, msg.Recipients, []byte(b.String())); err != nil {
		return fmt.Errorf("send mail via %s: %w", s.addr, err)
	}
	return nil
}
