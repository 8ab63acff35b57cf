package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

const (
	dialTimeout        = 10 * time.Second
	defaultSendTimeout = 30 * time.Second
)

// SMTPMailer sends reminder emails through an SMTP relay.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// Timeout bounds a whole SMTP conversation when ctx has no earlier
	// deadline. Zero means 30s.
	Timeout time.Duration

	// send defaults to m.sendMail.
	send func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// Configured reports whether a relay and sender address are set.
func (m *SMTPMailer) Configured() bool {
	return m != nil && m.Host != "" && m.From != ""
}

// SendReminderEmail renders r and sends it to a single recipient.
func (m *SMTPMailer) SendReminderEmail(ctx context.Context, to string, r Reminder) error {
	if !m.Configured() {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject, body, err := RenderEmail(r)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}

	send := m.send
	if send == nil {
		send = m.sendMail
	}

	port := m.Port
	if port == 0 {
		port = 587
	}
	addr := net.JoinHostPort(m.Host, strconv.Itoa(port))

	if err := send(ctx, addr, auth, m.From, []string{to}, buildMessage(m.From, to, subject, body)); err != nil {
		return fmt.Errorf("sending email to %s: %w", to, err)
	}
	return nil
}

// sendMail is smtp.SendMail bound to ctx: the dial honours ctx, the
// connection carries a deadline and is closed as soon as ctx is done.
func (m *SMTPMailer) sendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) (err error) {
	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	timeout := m.Timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return err
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer func() {
		if err != nil && ctx.Err() != nil {
			err = errors.Join(ctx.Err(), err)
		}
	}()

	c, err := smtp.NewClient(conn, m.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.Host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("smtp: server doesn't support AUTH")
		}
		if err := c.Auth(a); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}
