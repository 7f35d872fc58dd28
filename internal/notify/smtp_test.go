package notify

import (
	"context"
	"errors"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"signup-verify/internal/account/domain"
)

type sentMail struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  string

	// deadline is the time left on ctx when the transport was called.
	deadline time.Duration
}

func newTestSender(t *testing.T, cfg SMTPConfig, sendErr error) (*SMTPSender, *[]sentMail) {
	t.Helper()
	s, err := NewSMTPSender(cfg)
	if err != nil {
		t.Fatalf("NewSMTPSender: %v", err)
	}
	var sent []sentMail
	s.sendMail = func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		m := sentMail{addr: addr, auth: a, from: from, to: to, msg: string(msg)}
		if d, ok := ctx.Deadline(); ok {
			m.deadline = time.Until(d)
		}
		sent = append(sent, m)
		return sendErr
	}
	return s, &sent
}

func pendingAccount() *domain.Account {
	return &domain.Account{ID: "acc-1", Username: "alice", Email: "alice@example.com", VerificationCode: "482913"}
}

func TestNewSMTPSender_Validation(t *testing.T) {
	if _, err := NewSMTPSender(SMTPConfig{}); err == nil {
		t.Error("missing host should fail")
	}
	if _, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com"}); err == nil {
		t.Error("missing from should fail")
	}
	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Username: "mailer@example.com"})
	if err != nil {
		t.Fatalf("NewSMTPSender: %v", err)
	}
	if s.cfg.Port != 587 || s.cfg.From != "mailer@example.com" || s.cfg.Timeout != 10*time.Second {
		t.Errorf("defaults not applied: %+v", s.cfg)
	}
}

func TestSMTPSender_Send(t *testing.T) {
	s, sent := newTestSender(t, SMTPConfig{
		Host: "smtp.example.com", Port: 2525, Username: "mailer", Password: "pw",
		From: "noreply@example.com", BaseURL: "https://app.example.com/",
	}, nil)

	if err := s.Send(context.Background(), pendingAccount()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(*sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(*sent))
	}
	m := (*sent)[0]
	if m.addr != "smtp.example.com:2525" {
		t.Errorf("addr = %q", m.addr)
	}
	if m.auth == nil {
		t.Error("PLAIN auth expected when username is set")
	}
	if m.deadline <= 0 || m.deadline > 10*time.Second {
		t.Errorf("transport should run under the send timeout, time left = %v", m.deadline)
	}
	if m.from != "noreply@example.com" || len(m.to) != 1 || m.to[0] != "alice@example.com" {
		t.Errorf("envelope from=%q to=%v", m.from, m.to)
	}
	for _, want := range []string{
		"To: alice@example.com\r\n",
		"Subject: " + verificationSubject,
		"Content-Type: text/html",
		"482913",
		"https://app.example.com/verify/acc-1",
	} {
		if !strings.Contains(m.msg, want) {
			t.Errorf("message missing %q:\n%s", want, m.msg)
		}
	}
}

func TestSMTPSender_NoAuthWithoutUsername(t *testing.T) {
	s, sent := newTestSender(t, SMTPConfig{Host: "localhost", Port: 1025, From: "noreply@example.com"}, nil)
	if err := s.Send(context.Background(), pendingAccount()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if (*sent)[0].auth != nil {
		t.Error("no auth expected without username")
	}
	if strings.Contains((*sent)[0].msg, "/verify/") {
		t.Error("no link expected without BaseURL")
	}
}

func TestSMTPSender_TransportError(t *testing.T) {
	cause := errors.New("connection refused")
	s, _ := newTestSender(t, SMTPConfig{Host: "localhost", From: "noreply@example.com"}, cause)
	err := s.Send(context.Background(), pendingAccount())
	if !errors.Is(err, cause) {
		t.Fatalf("Send = %v, want wrapped transport error", err)
	}
}

func TestSMTPSender_RejectsBadInput(t *testing.T) {
	s, sent := newTestSender(t, SMTPConfig{Host: "localhost", From: "noreply@example.com"}, nil)
	testCases := []struct {
		name string
		acc  *domain.Account
	}{
		{"nil account", nil},
		{"no email", &domain.Account{VerificationCode: "482913"}},
		{"no code", &domain.Account{Email: "alice@example.com"}},
		{"header injection", &domain.Account{Email: "alice@example.com\r\nBcc: x@y.z", VerificationCode: "482913"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := s.Send(context.Background(), tc.acc); err == nil {
				t.Error("expected error")
			}
		})
	}
	if len(*sent) != 0 {
		t.Errorf("nothing should be sent, got %d", len(*sent))
	}
}

func TestSMTPSender_CancelledContext(t *testing.T) {
	s, sent := newTestSender(t, SMTPConfig{Host: "localhost", From: "noreply@example.com"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Send(ctx, pendingAccount()); !errors.Is(err, context.Canceled) {
		t.Fatalf("Send = %v, want context.Canceled", err)
	}
	if len(*sent) != 0 {
		t.Error("nothing should be sent after cancel")
	}
}

// listenConfig points an SMTPConfig at ln.
func listenConfig(t *testing.T, ln net.Listener) SMTPConfig {
	t.Helper()
	host, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split listener addr: %v", err)
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		t.Fatalf("listener port: %v", err)
	}
	return SMTPConfig{Host: host, Port: p, From: "noreply@example.com"}
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	return ln
}

// acceptSilently accepts connections and never writes the 220 greeting.
func acceptSilently(ln net.Listener) {
	var conns []net.Conn
	defer func() {
		for _, c := range conns {
			_ = c.Close()
		}
	}()
	for {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		conns = append(conns, c)
	}
}

// serveOneMessage speaks just enough SMTP for one plain delivery and sends the DATA payload on got.
func serveOneMessage(ln net.Listener, got chan<- string) {
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	tp := textproto.NewConn(conn)
	_ = tp.PrintfLine("220 mail.test ESMTP")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		verb, _, _ := strings.Cut(line, " ")
		switch strings.ToUpper(verb) {
		case "EHLO", "HELO", "MAIL", "RCPT":
			_ = tp.PrintfLine("250 OK")
		case "DATA":
			_ = tp.PrintfLine("354 end with <CRLF>.<CRLF>")
			body, err := tp.ReadDotBytes()
			if err != nil {
				return
			}
			got <- string(body)
			_ = tp.PrintfLine("250 queued")
		case "QUIT":
			_ = tp.PrintfLine("221 bye")
			return
		default:
			_ = tp.PrintfLine("502 not implemented")
		}
	}
}

func TestSMTPSender_DeliversOverTCP(t *testing.T) {
	ln := listen(t)
	got := make(chan string, 1)
	go serveOneMessage(ln, got)

	s, err := NewSMTPSender(listenConfig(t, ln))
	if err != nil {
		t.Fatalf("NewSMTPSender: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Send(ctx, pendingAccount()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case body := <-got:
		if !strings.Contains(body, "482913") || !strings.Contains(body, "To: alice@example.com") {
			t.Errorf("unexpected message:\n%s", body)
		}
	case <-time.After(time.Second):
		t.Fatal("server did not receive a message")
	}
}

func TestSMTPSender_ServerNeverGreets(t *testing.T) {
	testCases := []struct {
		name    string
		timeout time.Duration
		ctx     func() (context.Context, context.CancelFunc)
	}{
		{
			name: "caller deadline",
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 200*time.Millisecond)
			},
		},
		{
			name:    "configured timeout",
			timeout: 200 * time.Millisecond,
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithCancel(context.Background())
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ln := listen(t)
			go acceptSilently(ln)

			cfg := listenConfig(t, ln)
			cfg.Timeout = tc.timeout
			s, err := NewSMTPSender(cfg)
			if err != nil {
				t.Fatalf("NewSMTPSender: %v", err)
			}
			ctx, cancel := tc.ctx()
			defer cancel()

			start := time.Now()
			err = s.Send(ctx, pendingAccount())
			if elapsed := time.Since(start); elapsed > 2*time.Second {
				t.Fatalf("Send blocked for %v", elapsed)
			}
			if !errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("Send = %v, want context.DeadlineExceeded", err)
			}
		})
	}
}

func TestSMTPSender_CancelDuringGreeting(t *testing.T) {
	ln := listen(t)
	go acceptSilently(ln)

	s, err := NewSMTPSender(listenConfig(t, ln))
	if err != nil {
		t.Fatalf("NewSMTPSender: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	err = s.Send(ctx, pendingAccount())
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Send blocked for %v after cancel", elapsed)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Send = %v, want context.Canceled", err)
	}
}
