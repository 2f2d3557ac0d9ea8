// handlers/api/client.go
package api

import (
	"crypto/tls"
	"fmt"
	"net"
	"sync"

	"aliasmail/config"
	"aliasmail/utils"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// Session is the part of an IMAP connection the mailbox needs. *client.Client
// implements it; tests substitute a fake.
type Session interface {
	State() imap.ConnState
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	Expunge(ch chan uint32) error
	Close() error
	Logout() error
}

// Dialer opens and authenticates a new session.
type Dialer func(cfg config.IMAPConfig) (Session, error)

// DialIMAP connects over implicit TLS (plain TCP when cfg.TLS is false) and logs in.
// cfg.Timeout bounds both the connect and every subsequent command.
func DialIMAP(cfg config.IMAPConfig) (Session, error) {
	addr := cfg.Address()
	netDialer := &net.Dialer{Timeout: cfg.Timeout.Duration}

	var (
		c   *client.Client
		err error
	)
	if cfg.TLS {
		c, err = client.DialWithDialerTLS(netDialer, addr, &tls.Config{
			ServerName:         cfg.Server,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		})
	} else {
		c, err = client.DialWithDialer(netDialer, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("connection error: %w", err)
	}
	c.Timeout = cfg.Timeout.Duration

	if err := c.Login(cfg.Username, cfg.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("login error: %w", err)
	}

	return c, nil
}

// Client owns the single connection to the shared mailbox. The connection is opened
// lazily, reused across calls, and re-established on the next call after it drops.
// Every operation runs under mu because one IMAP connection cannot carry
// interleaved SELECT/SEARCH/CLOSE sequences.
type Client struct {
	cfg  config.IMAPConfig
	dial Dialer
	log  *utils.Logger

	mu     sync.Mutex
	closed bool

	sessMu  sync.RWMutex
	session Session
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithDialer replaces the network dialer.
func WithDialer(d Dialer) ClientOption {
	return func(c *Client) { c.dial = d }
}

// WithLogger replaces the global logger.
func WithLogger(l *utils.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// NewClient creates a disconnected client. No network I/O happens until Open or the
// first operation.
func NewClient(cfg config.IMAPConfig, opts ...ClientOption) *Client {
	c := &Client{
		cfg:  cfg,
		dial: DialIMAP,
		log:  utils.Log,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.Folder == "" {
		c.cfg.Folder = "INBOX"
	}
	c.log = c.log.WithField("mailbox", c.cfg.Username)
	return c
}

// Open connects eagerly. A failure leaves the client disconnected; the next call retries.
func (c *Client) Open() error {
	return c.EnsureConnected()
}

// EnsureConnected guarantees a live, authenticated session, dialing a fresh one when
// there is none or the current one has dropped. There is no backoff: every call on a
// disconnected client is a new attempt.
func (c *Client) EnsureConnected() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.ensureConnectedLocked()
	return err
}

// IsConnected reports the session state without attempting to connect.
func (c *Client) IsConnected() bool {
	c.sessMu.RLock()
	s := c.session
	c.sessMu.RUnlock()

	return s != nil && alive(s)
}

// Close logs out and marks the client closed. Later operations return ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	s := c.current()
	if s == nil {
		return nil
	}
	c.setSession(nil)

	if !alive(s) {
		return nil
	}
	if err := s.Logout(); err != nil {
		c.log.Error("Error logging out of mailbox: %v", err)
		return err
	}
	c.log.Info("Mailbox connection closed")
	return nil
}

func alive(s Session) bool {
	return s.State()&(imap.AuthenticatedState|imap.SelectedState) != 0
}

func (c *Client) current() Session {
	c.sessMu.RLock()
	defer c.sessMu.RUnlock()
	return c.session
}

func (c *Client) setSession(s Session) {
	c.sessMu.Lock()
	c.session = s
	c.sessMu.Unlock()
}

// ensureConnectedLocked must be called with mu held.
func (c *Client) ensureConnectedLocked() (Session, error) {
	if c.closed {
		return nil, ErrClosed
	}

	if s := c.current(); s != nil {
		if alive(s) {
			return s, nil
		}
		c.log.Info("Mailbox connection lost, reconnecting")
		c.setSession(nil)
	}

	s, err := c.dial(c.cfg)
	if err != nil {
		c.log.Error("Connecting to %s failed: %v", c.cfg.Address(), err)
		return nil, unavailable(err)
	}

	c.setSession(s)
	c.log.Info("Connected to %s", c.cfg.Address())
	return s, nil
}

// withFolder selects the configured folder, runs fn and closes the folder again on every
// exit path. The session itself stays open for reuse. A read-write folder is expunged of
// \Deleted messages by the close.
func (c *Client) withFolder(readOnly bool, fn func(s Session) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.ensureConnectedLocked()
	if err != nil {
		return err
	}

	if _, err := s.Select(c.cfg.Folder, readOnly); err != nil {
		return unavailable(fmt.Errorf("error selecting folder %s: %w", c.cfg.Folder, err))
	}

	defer func() {
		if s.State() != imap.SelectedState {
			return
		}
		if err := s.Close(); err != nil {
			c.log.Error("Error closing folder %s: %v", c.cfg.Folder, err)
		}
	}()

	return fn(s)
}
