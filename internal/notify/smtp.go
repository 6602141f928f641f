package notify

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"
)

// SMTPConfig configures the email backend. Host, Username, Password, and
// To are required.
type SMTPConfig struct {
	Host     string
	Port     int // default 587
	Username string
	Password string
	From     string // default Username
	To       string
	AppName  string // default "telcine"
}

// SMTPNotifier emails the operator about each viewer.
type SMTPNotifier struct {
	config SMTPConfig
}

// NewSMTP validates the configuration and returns the backend.
func NewSMTP(cfg SMTPConfig) (*SMTPNotifier, error) {
	if cfg.Host == "" || cfg.Username == "" || cfg.Password == "" || cfg.To == "" {
		return nil, fmt.Errorf("%w: smtp needs host, username, password, and a destination address", ErrMisconfigured)
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.AppName == "" {
		cfg.AppName = "telcine"
	}
	return &SMTPNotifier{config: cfg}, nil
}

func (n *SMTPNotifier) Name() string { return "smtp" }

// Notify sends the email. net/smtp cannot be canceled mid-send; the
// dispatcher's goroutine-per-delivery keeps that from mattering to
// sessions.
func (n *SMTPNotifier) Notify(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(n.config.Host, strconv.Itoa(n.config.Port))
	auth := smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Host)
	if err := smtp.SendMail(addr, auth, n.config.From, []string{n.config.To}, n.message(ev)); err != nil {
		return fmt.Errorf("notify: smtp send: %w", err)
	}
	return nil
}

func (n *SMTPNotifier) message(ev Event) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", n.config.From)
	fmt.Fprintf(&b, "To: %s\r\n", n.config.To)
	fmt.Fprintf(&b, "Subject: Notification from %s\r\n", n.config.AppName)
	fmt.Fprintf(&b, "Date: %s\r\n", ev.Time.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "%s tuned in over %s.\r\n", ev.RemoteAddr, ev.Transport)
	if ev.Movie != "" {
		fmt.Fprintf(&b, "Now showing: %s\r\n", ev.Movie)
	}
	fmt.Fprintf(&b, "Session %s at %s.\r\n", ev.SessionID, ev.Time.Format(time.RFC1123Z))
	return b.Bytes()
}
