// Package email delivers speaker notifications over SMTP.
package email

import (
	"context"
	"fmt"
	"mime"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"

	"confops/internal/services"
)

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	// From is the envelope sender; FromName only decorates the header.
	From     string
	FromName string
}

// Recipient is one addressee.
type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Message is a plain-text mail to one or more recipients.
type Message struct {
	To      []Recipient
	Subject string
	Body    string
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Sender sends messages through one SMTP server.
type Sender struct {
	cfg  Config
	auth smtp.Auth
	send SendFunc
}

// Option customizes the sender.
type Option func(*Sender)

// WithSendFunc replaces smtp.SendMail.
func WithSendFunc(fn SendFunc) Option {
	return func(s *Sender) {
		if fn != nil {
			s.send = fn
		}
	}
}

// NewSender builds a sender. Authentication is used when both user and
// password are set.
func NewSender(cfg Config, opts ...Option) *Sender {
	var auth smtp.Auth
	if cfg.User != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
	}
	s := &Sender{cfg: cfg, auth: auth, send: smtp.SendMail}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send delivers msg to every recipient in one transaction.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(s.cfg.Host) == "" || strings.TrimSpace(s.cfg.From) == "" {
		return services.Wrap(services.ErrConfiguration, "email", "send", "email.host and email.from are required", nil)
	}
	rcpts := make([]string, 0, len(msg.To))
	for _, r := range msg.To {
		if addr := strings.TrimSpace(r.Email); addr != "" {
			rcpts = append(rcpts, addr)
		}
	}
	if len(rcpts) == 0 {
		return services.Wrap(services.ErrValidation, "email", "send", "message has no recipients", nil)
	}
	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	if err := s.send(addr, s.auth, s.cfg.From, rcpts, s.build(msg)); err != nil {
		return services.Wrap(services.ErrExternalTool, "email", "send", fmt.Sprintf("deliver via %s", addr), err)
	}
	return nil
}

func (s *Sender) build(msg Message) []byte {
	from := mail.Address{Name: sanitizeHeader(s.cfg.FromName), Address: sanitizeHeader(s.cfg.From)}
	to := make([]string, 0, len(msg.To))
	for _, r := range msg.To {
		if strings.TrimSpace(r.Email) == "" {
			continue
		}
		to = append(to, (&mail.Address{Name: sanitizeHeader(r.Name), Address: sanitizeHeader(r.Email)}).String())
	}
	lines := []string{
		"From: " + from.String(),
		"To: " + strings.Join(to, ", "),
		"Subject: " + mime.QEncoding.Encode("utf-8", sanitizeHeader(msg.Subject)),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"Content-Transfer-Encoding: 8bit",
		"",
		strings.ReplaceAll(msg.Body, "\n", "\r\n"),
	}
	return []byte(strings.Join(lines, "\r\n"))
}

func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return strings.TrimSpace(s)
}
