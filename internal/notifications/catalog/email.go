// internal/notifications/catalog/email.go
package catalog

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// MailServer is the SMTP endpoint of an email template.
type MailServer struct {
	Host     string
	Port     int
	Username string
	Password string
	UseTLS   bool
	UseSSL   bool
	Timeout  time.Duration
}

// Mailer submits one message to one server.
type Mailer interface {
	SendMail(ctx context.Context, server MailServer, from string, to []string, msg []byte) error
}

// SMTPMailer talks to the server with net/smtp: implicit TLS when UseSSL, STARTTLS when
// UseTLS, PLAIN auth when a username is set.
type SMTPMailer struct{}

func (SMTPMailer) SendMail(ctx context.Context, server MailServer, from string, to []string, msg []byte) error {
	addr := net.JoinHostPort(server.Host, strconv.Itoa(server.Port))
	dialer := &net.Dialer{Timeout: server.Timeout}

	var (
		conn net.Conn
		err  error
	)
	if server.UseSSL {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: server.Host}}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if server.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(server.Timeout))
	}

	client, err := smtp.NewClient(conn, server.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if server.UseTLS {
		if err := client.StartTLS(&tls.Config{ServerName: server.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if server.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", server.Username, server.Password, server.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close message: %w", err)
	}
	return client.Quit()
}

func emailEntry() *Entry {
	return &Entry{
		Type:  "email",
		Label: "Email",
		Parameters: map[string]Parameter{
			"host":       {Label: "Host", Type: TypeString, Required: true},
			"port":       {Label: "Port", Type: TypeInt, Required: true, Default: 25},
			"username":   {Label: "Username", Type: TypeString, Default: ""},
			"password":   {Label: "Password", Type: TypePassword, Default: "", Sensitive: true},
			"use_tls":    {Label: "Use TLS", Type: TypeBool, Default: false},
			"use_ssl":    {Label: "Use SSL", Type: TypeBool, Default: false},
			"sender":     {Label: "Sender Email", Type: TypeString, Required: true},
			"recipients": {Label: "Recipient List", Type: TypeList, Required: true},
			"timeout":    {Label: "Timeout", Type: TypeInt, Default: 30},
		},
		RecipientParameter: "recipients",
		SenderParameter:    "sender",
		build:              buildEmail,
	}
}

type emailBackend struct {
	mailer Mailer
	server MailServer
}

func buildEmail(deps *Dependencies, p Params) (Backend, error) {
	if err := p.require("host"); err != nil {
		return nil, err
	}
	port, ok := p.Int("port")
	if !ok || port <= 0 {
		return nil, fmt.Errorf("port must be a positive integer")
	}
	timeout, ok := p.Int("timeout")
	if !ok || timeout <= 0 {
		timeout = 30
	}
	if p.Bool("use_tls") && p.Bool("use_ssl") {
		return nil, fmt.Errorf("use_tls and use_ssl are mutually exclusive")
	}

	return &emailBackend{
		mailer: deps.Mailer,
		server: MailServer{
			Host:     p.String("host"),
			Port:     port,
			Username: p.String("username"),
			Password: p.String("password"),
			UseTLS:   p.Bool("use_tls"),
			UseSSL:   p.Bool("use_ssl"),
			Timeout:  time.Duration(timeout) * time.Second,
		},
	}, nil
}

func (b *emailBackend) FormatBody(body map[string]interface{}) interface{} {
	return textBody(body)
}

// Send mails each recipient separately so the count reflects reached addresses. Every
// address is checked before the first message goes out.
func (b *emailBackend) Send(ctx context.Context, msg Message) (int, error) {
	from, err := parseAddress(msg.Sender)
	if err != nil {
		return 0, fmt.Errorf("sender: %w", err)
	}
	rcpts := make([]*mail.Address, 0, len(msg.Recipients))
	for _, r := range msg.Recipients {
		addr, err := parseAddress(r)
		if err != nil {
			return 0, fmt.Errorf("recipient: %w", err)
		}
		rcpts = append(rcpts, addr)
	}

	sent := 0
	for _, rcpt := range rcpts {
		raw := composeMail(from.String(), rcpt.String(), msg.Subject, bodyText(msg.Body))
		if err := b.mailer.SendMail(ctx, b.server, from.Address, []string{rcpt.Address}, raw); err != nil {
			return sent, fmt.Errorf("send email to %s: %w", rcpt.Address, err)
		}
		sent++
	}
	return sent, nil
}

// parseAddress accepts one RFC 5322 address. Line breaks are refused outright since the
// value ends up in a header.
func parseAddress(s string) (*mail.Address, error) {
	if strings.ContainsAny(s, "\r\n") {
		return nil, fmt.Errorf("address %q contains a line break", s)
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return addr, nil
}

func composeMail(from, to, subject, body string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	buf.WriteString(body)
	return buf.Bytes()
}
