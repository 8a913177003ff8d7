package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/Priya8975/price-tracker/internal/domain"
)

// Mailer delivers rendered messages through a relay.
type Mailer interface {
	Deliver(ctx context.Context, msg Message) error
	// Relay names the outbound relay for circuit breaking and rate limits.
	Relay() string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPMailer sends mail over SMTP, upgrading to TLS when the relay offers
// STARTTLS. Relay replies in the 5xx range are permanent failures; every
// other error is transient.
type SMTPMailer struct {
	cfg  SMTPConfig
	addr string
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPMailer{
		cfg:  cfg,
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
	}
}

func (m *SMTPMailer) Relay() string {
	return m.addr
}

func (m *SMTPMailer) Deliver(ctx context.Context, msg Message) error {
	dialer := net.Dialer{Timeout: m.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", m.addr)
	if err != nil {
		return domain.Wrap(domain.KindTransient, err, "dialing mail relay")
	}

	deadline := time.Now().Add(m.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return classify(err, "greeting mail relay")
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
			return classify(err, "starting tls")
		}
	}
	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := c.Auth(auth); err != nil {
			return classify(err, "authenticating")
		}
	}

	if err := c.Mail(m.cfg.From); err != nil {
		return classify(err, "MAIL FROM")
	}
	if err := c.Rcpt(msg.To); err != nil {
		return classify(err, "RCPT TO")
	}

	w, err := c.Data()
	if err != nil {
		return classify(err, "DATA")
	}
	if _, err := w.Write(m.compose(msg)); err != nil {
		return classify(err, "writing message")
	}
	if err := w.Close(); err != nil {
		return classify(err, "finishing message")
	}

	return c.Quit()
}

func (m *SMTPMailer) compose(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", singleLine(m.cfg.From))
	fmt.Fprintf(&b, "To: %s\r\n", singleLine(msg.To))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", singleLine(msg.Subject)))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}

// singleLine folds every run of whitespace, line breaks included, into
// one space so a value cannot start a new header.
func singleLine(v string) string {
	return strings.Join(strings.Fields(v), " ")
}

func classify(err error, step string) error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) && tpErr.Code >= 500 {
		return domain.Wrap(domain.KindPermanent, err, step)
	}
	return domain.Wrap(domain.KindTransient, err, step)
}

// LogMailer writes messages to the log instead of sending them. It is
// used when no relay is configured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Relay() string {
	return "log"
}

func (m *LogMailer) Deliver(_ context.Context, msg Message) error {
	m.logger.Info("email", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}
