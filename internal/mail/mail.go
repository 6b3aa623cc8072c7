package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	netmail "net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/parcel/internal/config"
)

// ErrInvalidAddress marks a sender or recipient that is not a valid email
// address. Resending the same message cannot succeed.
var ErrInvalidAddress = errors.New("invalid email address")

// Message is a plain-text email.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Sender delivers messages through the configured transport.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Module provides the configured Sender to Fx.
var Module = fx.Provide(NewSender)

// NewSender selects the mail transport (log or smtp).
func NewSender(cfg config.Config, logger *zap.Logger) (Sender, error) {
	switch cfg.Notification.MailDriver {
	case "log":
		logger.Info("mail driver is log; messages will not leave the process")
		return &logSender{logger: logger}, nil
	case "smtp":
		return newSMTPSender(cfg.Notification.SMTP), nil
	default:
		return nil, fmt.Errorf("unsupported mail driver: %s", cfg.Notification.MailDriver)
	}
}

type logSender struct {
	logger *zap.Logger
}

func (s *logSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("mail sent",
		zap.String("from", msg.From),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}

type smtpSender struct {
	addr string
	host string
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func newSMTPSender(cfg config.SMTP) *smtpSender {
	s := &smtpSender{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		host: cfg.Host,
		send: smtp.SendMail,
	}
	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return s
}

func (s *smtpSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	from, err := netmail.ParseAddress(msg.From)
	if err != nil {
		return fmt.Errorf("parse sender %q: %w: %w", msg.From, ErrInvalidAddress, err)
	}
	to, err := netmail.ParseAddress(msg.To)
	if err != nil {
		return fmt.Errorf("parse recipient %q: %w: %w", msg.To, ErrInvalidAddress, err)
	}

	body := render(from, to, msg.Subject, msg.Body, time.Now())
	if err := s.send(s.addr, s.auth, from.Address, []string{to.Address}, body); err != nil {
		return fmt.Errorf("smtp send to %s: %w", s.addr, err)
	}
	return nil
}

func render(from, to *netmail.Address, subject, body string, at time.Time) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from.String())
	fmt.Fprintf(&buf, "To: %s\r\n", to.String())
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", at.Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	buf.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return buf.Bytes()
}
