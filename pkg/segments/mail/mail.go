// Package mail provides an IMAP unread-count segment.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"gitlab.com/tinyland/lab/barpulse/pkg/notify"
	"gitlab.com/tinyland/lab/barpulse/pkg/segments"
)

// Defaults for the IMAP connection.
const (
	DefaultPort    = 993
	DefaultMailbox = "INBOX"
	DialTimeout    = 10 * time.Second
)

// ErrPasswordCommand is returned by New when the password command fails.
// It is a configuration error and should stop startup.
var ErrPasswordCommand = errors.New("password command failed")

// Config describes the IMAP account.
type Config struct {
	Host            string
	Port            int
	User            string
	PasswordCommand string
	Mailbox         string
}

// Session is an authenticated IMAP connection.
type Session interface {
	Unseen(mailbox string) (uint32, error)
	Close() error
}

// Dialer opens an authenticated Session.
type Dialer func(ctx context.Context, cfg Config, password string) (Session, error)

// PasswordFunc runs the password command and returns its output.
type PasswordFunc func(ctx context.Context, command string) (string, error)

type imapSession struct {
	c *client.Client
}

func (s *imapSession) Unseen(mailbox string) (uint32, error) {
	st, err := s.c.Status(mailbox, []imap.StatusItem{imap.StatusUnseen})
	if err != nil {
		return 0, err
	}
	return st.Unseen, nil
}

func (s *imapSession) Close() error {
	return s.c.Logout()
}

func dialIMAP(_ context.Context, cfg Config, password string) (Session, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	c, err := client.DialWithDialerTLS(&net.Dialer{Timeout: DialTimeout}, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	c.Timeout = DialTimeout
	if err := c.Login(cfg.User, password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("login %s: %w", cfg.User, err)
	}
	return &imapSession{c: c}, nil
}

func runPasswordCommand(ctx context.Context, command string) (string, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return strings.TrimRight(string(out), "\r\n"), nil
}

// IMAP reports the unseen message count of one mailbox. The session is
// opened lazily and discarded after any error.
//
// Values: unread.
type IMAP struct {
	segments.Base
	cfg      Config
	password string
	dial     Dialer
	notifier notify.Notifier

	mu      sync.Mutex
	session Session
}

// Option configures an IMAP segment.
type Option func(*imapOptions)

type imapOptions struct {
	dial     Dialer
	password PasswordFunc
}

// WithDialer replaces the go-imap dialer.
func WithDialer(d Dialer) Option {
	return func(o *imapOptions) { o.dial = d }
}

// WithPasswordFunc replaces the shell used to run the password command.
func WithPasswordFunc(p PasswordFunc) Option {
	return func(o *imapOptions) { o.password = p }
}

// New creates a mail segment. The password command runs once, here; its
// failure is returned wrapped in ErrPasswordCommand.
func New(ctx context.Context, opts segments.Options, cfg Config, n notify.Notifier, iopts ...Option) (*IMAP, error) {
	base, err := segments.NewBase("mail", opts)
	if err != nil {
		return nil, err
	}
	if cfg.Host == "" {
		return nil, errors.New("mail: host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = DefaultMailbox
	}
	if n == nil {
		n = notify.Nop{}
	}

	o := imapOptions{dial: dialIMAP, password: runPasswordCommand}
	for _, opt := range iopts {
		opt(&o)
	}

	var password string
	if cfg.PasswordCommand != "" {
		password, err = o.password(ctx, cfg.PasswordCommand)
		if err != nil {
			return nil, fmt.Errorf("mail: %w: %v", ErrPasswordCommand, err)
		}
	}

	return &IMAP{Base: base, cfg: cfg, password: password, dial: o.dial, notifier: n}, nil
}

func (m *IMAP) unseen(ctx context.Context) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		s, err := m.dial(ctx, m.cfg, m.password)
		if err != nil {
			return 0, err
		}
		m.session = s
	}
	n, err := m.session.Unseen(m.cfg.Mailbox)
	if err != nil {
		_ = m.session.Close()
		m.session = nil
		return 0, err
	}
	return n, nil
}

// Close logs out of the IMAP server.
func (m *IMAP) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	err := m.session.Close()
	m.session = nil
	return err
}

// Poll implements segments.Segment.
func (m *IMAP) Poll(ctx context.Context, notifyUser bool) (segments.Values, error) {
	unread, err := m.unseen(ctx)
	if err != nil {
		return nil, fmt.Errorf("mail: %w", err)
	}
	if notifyUser {
		_ = m.notifier.Notify(ctx, notify.Notification{
			Summary: "Mail",
			Body:    fmt.Sprintf("%d unread in %s", unread, m.cfg.Mailbox),
		})
	}
	return segments.Values{"unread": unread}, nil
}
