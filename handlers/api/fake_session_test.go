package api

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"time"

	"aliasmail/config"
	"aliasmail/utils"

	"github.com/emersion/go-imap"
)

type fakeMessage struct {
	uid     uint32
	from    *imap.Address
	to      []string
	date    time.Time
	raw     string
	noBody  bool
	deleted bool
}

// fakeSession is an in-memory Session. UidSearch mimics real servers by matching the
// To header as a case-insensitive substring.
type fakeSession struct {
	mu       sync.Mutex
	state    imap.ConnState
	messages []*fakeMessage
	nextUID  uint32
	readOnly bool

	selectErr  error
	searchErr  error
	fetchErr   error
	expungeErr error
	storeErr   map[uint32]error

	selects  int
	closes   int
	expunges int
	logouts  int
}

func newFakeSession() *fakeSession {
	return &fakeSession{state: imap.AuthenticatedState, nextUID: 1}
}

func (s *fakeSession) add(to string, date time.Time, raw string) *fakeMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := &fakeMessage{
		uid:  s.nextUID,
		from: &imap.Address{PersonalName: "Sender", MailboxName: "noreply", HostName: "example.com"},
		to:   []string{to},
		date: date,
		raw:  raw,
	}
	s.nextUID++
	s.messages = append(s.messages, m)
	return m
}

func (s *fakeSession) drop() {
	s.mu.Lock()
	s.state = imap.LogoutState
	s.mu.Unlock()
}

func (s *fakeSession) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *fakeSession) State() imap.ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *fakeSession) Select(name string, readOnly bool) (*imap.MailboxStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selects++
	if s.selectErr != nil {
		return nil, s.selectErr
	}
	s.state = imap.SelectedState
	s.readOnly = readOnly
	return &imap.MailboxStatus{Name: name, ReadOnly: readOnly}, nil
}

func (s *fakeSession) UidSearch(criteria *imap.SearchCriteria) ([]uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.searchErr != nil {
		return nil, s.searchErr
	}
	needle := strings.ToLower(criteria.Header.Get("To"))
	var uids []uint32
	for _, m := range s.messages {
		for _, to := range m.to {
			if strings.Contains(strings.ToLower(to), needle) {
				uids = append(uids, m.uid)
				break
			}
		}
	}
	return uids, nil
}

func (s *fakeSession) UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
	defer close(ch)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fetchErr != nil {
		return s.fetchErr
	}

	withBody := false
	for _, item := range items {
		if strings.HasPrefix(string(item), "BODY") {
			withBody = true
		}
	}

	for _, m := range s.messages {
		if !seqset.Contains(m.uid) {
			continue
		}
		msg := &imap.Message{
			Uid: m.uid,
			Envelope: &imap.Envelope{
				Date: m.date,
				From: []*imap.Address{m.from},
			},
			Body: map[*imap.BodySectionName]imap.Literal{},
		}
		for _, to := range m.to {
			name, host, _ := strings.Cut(to, "@")
			msg.Envelope.To = append(msg.Envelope.To, &imap.Address{MailboxName: name, HostName: host})
		}
		if withBody && !m.noBody {
			msg.Body[&imap.BodySectionName{}] = bytes.NewBufferString(m.raw)
		}
		ch <- msg
	}
	return nil
}

func (s *fakeSession) UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return errors.New("mailbox is read-only")
	}
	for _, m := range s.messages {
		if !seqset.Contains(m.uid) {
			continue
		}
		if err := s.storeErr[m.uid]; err != nil {
			return err
		}
		m.deleted = true
	}
	return nil
}

func (s *fakeSession) Expunge(ch chan uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expunges++
	if s.expungeErr != nil {
		return s.expungeErr
	}
	s.purge()
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closes++
	if !s.readOnly {
		s.purge()
	}
	s.state = imap.AuthenticatedState
	return nil
}

func (s *fakeSession) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logouts++
	s.state = imap.LogoutState
	return nil
}

func (s *fakeSession) purge() {
	kept := s.messages[:0]
	for _, m := range s.messages {
		if !m.deleted {
			kept = append(kept, m)
		}
	}
	s.messages = kept
}

// fakeDialer hands out sessions in order, or fails with err.
type fakeDialer struct {
	mu       sync.Mutex
	sessions []*fakeSession
	err      error
	dials    int
}

func (d *fakeDialer) dial(cfg config.IMAPConfig) (Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials++
	if d.err != nil {
		return nil, d.err
	}
	if len(d.sessions) == 0 {
		return nil, errors.New("no more sessions")
	}
	s := d.sessions[0]
	if len(d.sessions) > 1 {
		d.sessions = d.sessions[1:]
	}
	s.mu.Lock()
	s.state = imap.AuthenticatedState
	s.mu.Unlock()
	return s, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func testLogger() *utils.Logger {
	var buf bytes.Buffer
	return utils.NewLogger(&buf, utils.DEBUG)
}

func testIMAPConfig() config.IMAPConfig {
	return config.IMAPConfig{
		Server:   "imap.example.com",
		Port:     993,
		Username: "shared@example.com",
		Password: "secret",
		TLS:      true,
		Folder:   "INBOX",
	}
}

func newTestClient(d *fakeDialer) *Client {
	return NewClient(testIMAPConfig(), WithDialer(d.dial), WithLogger(testLogger()))
}

func newTestMailbox(s *fakeSession) (*Mailbox, *fakeDialer) {
	d := &fakeDialer{sessions: []*fakeSession{s}}
	parser, err := NewParser("")
	if err != nil {
		panic(err)
	}
	m := NewMailbox(newTestClient(d), parser,
		WithMailboxLogger(testLogger()),
		WithWaitDefaults(3, time.Millisecond),
	)
	return m, d
}

func plainMessage(body string) string {
	return "Content-Type: text/plain; charset=utf-8\r\n\r\n" + body
}

func htmlMessage(body string) string {
	return "Content-Type: text/html; charset=utf-8\r\n\r\n" + body
}

func alternativeMessage(plain, html string) string {
	return "Content-Type: multipart/alternative; boundary=BOUNDARY\r\n\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n\r\n" +
		plain + "\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n\r\n" +
		html + "\r\n" +
		"--BOUNDARY--\r\n"
}
