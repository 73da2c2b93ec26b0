package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/verdict/pkg/observability"
)

// Message is a plain-text email
type Message struct {
	Subject string
	Body    string
	From    string
	To      []string
}

// Validate checks that every address parses
func (m Message) Validate() error {
	if len(m.To) == 0 {
		return fmt.Errorf("message has no recipients")
	}
	if _, err := mail.ParseAddress(m.From); err != nil {
		return fmt.Errorf("invalid sender %q: %w", m.From, err)
	}
	for _, to := range m.To {
		if _, err := mail.ParseAddress(to); err != nil {
			return fmt.Errorf("invalid recipient %q: %w", to, err)
		}
	}
	return nil
}

func (m Message) bytes() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(m.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(m.Body)
	return []byte(b.String())
}

// Mailer delivers messages
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// DefaultSMTPTimeout bounds a whole delivery when SMTPConfig.Timeout is unset
const DefaultSMTPTimeout = 10 * time.Second

// SMTPConfig configures an SMTPMailer
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// SMTPMailer sends mail through an SMTP relay
type SMTPMailer struct {
	host    string
	addr    string
	auth    smtp.Auth
	timeout time.Duration
	dialer  net.Dialer
}

// NewSMTPMailer creates an SMTP mailer. PLAIN auth is used when a username is configured.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultSMTPTimeout
	}
	m := &SMTPMailer{
		host:    cfg.Host,
		addr:    net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		timeout: timeout,
		dialer:  net.Dialer{Timeout: timeout},
	}
	if cfg.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return m
}

// Send delivers msg. The dial and every protocol exchange stop at the earlier of the
// ctx deadline and the configured timeout.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	conn, err := m.dialer.DialContext(ctx, "tcp", m.addr)
	if err != nil {
		if cerr := contextErr(ctx); cerr != nil {
			return fmt.Errorf("failed to dial %s: %w", m.addr, cerr)
		}
		return fmt.Errorf("failed to dial %s: %w", m.addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return fmt.Errorf("failed to set deadline on %s: %w", m.addr, err)
		}
	}
	// unblocks reads and writes when ctx is cancelled before its deadline
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if err := m.deliver(conn, msg); err != nil {
		if cerr := contextErr(ctx); cerr != nil {
			return fmt.Errorf("failed to send mail via %s: %w", m.addr, cerr)
		}
		return fmt.Errorf("failed to send mail via %s: %w", m.addr, err)
	}
	return nil
}

// contextErr reports a passed deadline even before the ctx timer has fired
func contextErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return context.DeadlineExceeded
	}
	return nil
}

func (m *SMTPMailer) deliver(conn net.Conn, msg Message) error {
	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			return err
		}
	}
	if m.auth != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("smtp: server doesn't support AUTH")
		}
		if err := c.Auth(m.auth); err != nil {
			return err
		}
	}

	if err := c.Mail(msg.From); err != nil {
		return err
	}
	for _, to := range msg.To {
		if err := c.Rcpt(to); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg.bytes()); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// LogMailer writes messages to the log instead of delivering them
type LogMailer struct {
	logger *observability.Logger
}

// NewLogMailer creates a mailer for development setups
func NewLogMailer(logger *observability.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs msg
func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	m.logger.WithFields(map[string]interface{}{
		"from":    msg.From,
		"to":      strings.Join(msg.To, ","),
		"subject": msg.Subject,
		"body":    msg.Body,
	}).Info("mail delivered to log")
	return nil
}
