package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"os"
	"strconv"
	"strings"
	"time"

	"signup-verify/internal/account/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var emailTemplate = template.Must(template.ParseFS(templateFS, "templates/verification_email.html"))

const (
	verificationSubject = "Verify your email address"
	defaultSMTPTimeout  = 10 * time.Second
)

// SMTPConfig configures SMTPSender. Auth is PLAIN when Username is set.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// BaseURL, when set, is used to link to the verify page (e.g. https://example.com).
	BaseURL string
	// Timeout bounds one delivery from dial to QUIT. Defaults to 10s.
	Timeout time.Duration
}

type sendMailFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends the verification code as an HTML email over SMTP.
type SMTPSender struct {
	cfg      SMTPConfig
	sendMail sendMailFunc
}

// NewSMTPSender returns a Sender that delivers through cfg.Host:cfg.Port.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("notify: SMTP host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSMTPTimeout
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.From == "" {
		return nil, errors.New("notify: SMTP from address is required")
	}
	return &SMTPSender{cfg: cfg, sendMail: sendMail}, nil
}

func (s *SMTPSender) Send(ctx context.Context, account *domain.Account) error {
	if account == nil || account.Email == "" {
		return errors.New("notify: account has no email address")
	}
	if !domain.IsCode(account.VerificationCode) {
		return errors.New("notify: account has no verification code")
	}
	if strings.ContainsAny(account.Email, "\r\n") {
		return errors.New("notify: invalid recipient address")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := s.buildMessage(account)
	if err != nil {
		return err
	}
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	if err := s.sendMail(ctx, addr, auth, s.cfg.From, []string{account.Email}, msg); err != nil {
		return fmt.Errorf("notify: smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) buildMessage(account *domain.Account) ([]byte, error) {
	data := struct {
		Username  string
		Code      string
		VerifyURL string
	}{
		Username: account.Username,
		Code:     account.VerificationCode,
	}
	if s.cfg.BaseURL != "" {
		data.VerifyURL = strings.TrimRight(s.cfg.BaseURL, "/") + "/verify/" + account.ID
	}
	var body bytes.Buffer
	if err := emailTemplate.Execute(&body, data); err != nil {
		return nil, fmt.Errorf("notify: render email: %w", err)
	}

	var msg bytes.Buffer
	msg.WriteString("From: <" + s.cfg.From + ">\r\n")
	msg.WriteString("To: " + account.Email + "\r\n")
	msg.WriteString("Subject: " + verificationSubject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

// sendMail does what smtp.SendMail does, bound to ctx. The dial honours ctx,
// the connection deadline is ctx's deadline, and cancellation closes the connection.
func sendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return err
		}
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	err = converse(conn, host, a, from, to, msg)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %v", ctx.Err(), err)
	case errors.Is(err, os.ErrDeadlineExceeded):
		// The socket deadline can fire just before ctx is marked done.
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	default:
		return err
	}
}

func converse(conn net.Conn, host string, a smtp.Auth, from string, to []string, msg []byte) error {
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("server does not support AUTH")
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
