package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"github.com/example/product-catalog/domain/notification"
)

// Mail is a rendered transactional message.
type Mail struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer sends rendered mail.
type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// MailChannel renders a message from the event type and payload and hands
// it to a Mailer.
type MailChannel struct {
	mailer Mailer
	from   string
}

var _ notification.Channel = (*MailChannel)(nil)

// NewMailChannel creates a mail channel sending as from.
func NewMailChannel(mailer Mailer, from string) *MailChannel {
	return &MailChannel{mailer: mailer, from: from}
}

// Kind returns notification.ChannelMail.
func (c *MailChannel) Kind() notification.ChannelKind {
	return notification.ChannelMail
}

// Deliver renders and sends one message.
func (c *MailChannel) Deliver(ctx context.Context, r notification.Recipient, event notification.EventType, payload json.RawMessage) error {
	if r.Email == "" {
		return fmt.Errorf("recipient %s has no email address", r.UserID)
	}

	subject, body, err := Render(event, r, payload)
	if err != nil {
		return err
	}
	return c.mailer.Send(ctx, Mail{From: c.from, To: r.Email, Subject: subject, Body: body})
}

// Render builds the subject and plain-text body for an event.
func Render(event notification.EventType, r notification.Recipient, payload json.RawMessage) (string, string, error) {
	greeting := "Hello"
	if r.Name != "" {
		greeting = "Hello " + r.Name
	}

	switch event {
	case notification.EventProductCreated:
		var p notification.ProductPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return "", "", fmt.Errorf("failed to decode product payload: %w", err)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%s,\n\nA new product was added to the catalog.\n\n", greeting)
		fmt.Fprintf(&b, "Name:  %s\n", p.Name)
		fmt.Fprintf(&b, "Price: %s\n", p.PriceFormatted)
		if p.PublishAt != nil {
			fmt.Fprintf(&b, "Publishes at: %s\n", p.PublishAt.UTC().Format(time.RFC3339))
		} else {
			b.WriteString("Status: draft\n")
		}
		return "New product created", b.String(), nil

	case notification.EventUserRegistered:
		var u notification.UserPayload
		if err := json.Unmarshal(payload, &u); err != nil {
			return "", "", fmt.Errorf("failed to decode user payload: %w", err)
		}
		body := fmt.Sprintf("%s,\n\n%s <%s> registered an account.\n", greeting, u.Name, u.Email)
		return "New user registered", body, nil

	default:
		return "", "", fmt.Errorf("no mail template for event %q", event)
	}
}

// LogMailer writes mail to the log instead of sending it. It keeps the last
// messages for inspection.
type LogMailer struct {
	mu   sync.Mutex
	sent []Mail
}

// NewLogMailer creates a LogMailer.
func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

// Send logs the message.
func (l *LogMailer) Send(_ context.Context, m Mail) error {
	l.mu.Lock()
	l.sent = append(l.sent, m)
	l.mu.Unlock()

	log.Printf("[mail] To: %s Subject: %s", m.To, m.Subject)
	return nil
}

// Sent returns a copy of every message sent so far.
func (l *LogMailer) Sent() []Mail {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Mail, len(l.sent))
	copy(out, l.sent)
	return out
}

// SMTPMailer sends mail through a plain SMTP relay.
type SMTPMailer struct {
	addr    string
	auth    smtp.Auth
	timeout time.Duration
}

// NewSMTPMailer creates a mailer for addr (host:port). auth may be nil.
func NewSMTPMailer(addr string, auth smtp.Auth) *SMTPMailer {
	return &SMTPMailer{addr: addr, auth: auth, timeout: 10 * time.Second}
}

// Send delivers one message. The dial honours ctx; the whole exchange is
// bounded by the mailer timeout.
func (s *SMTPMailer) Send(ctx context.Context, m Mail) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to dial smtp server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	host, _, _ := net.SplitHostPort(s.addr)
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to start smtp session: %w", err)
	}
	defer c.Close()

	if s.auth != nil {
		if err := c.Auth(s.auth); err != nil {
			return fmt.Errorf("smtp auth failed: %w", err)
		}
	}
	if err := c.Mail(m.From); err != nil {
		return fmt.Errorf("smtp MAIL FROM failed: %w", err)
	}
	if err := c.Rcpt(m.To); err != nil {
		return fmt.Errorf("smtp RCPT TO failed: %w", err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA failed: %w", err)
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		m.From, m.To, m.Subject, strings.ReplaceAll(m.Body, "\n", "\r\n"))
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}
	return c.Quit()
}
