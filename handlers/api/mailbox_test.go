package api

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestGetVerificationCode(t *testing.T) {
	s := newFakeSession()
	s.add("a@x.test", base, plainMessage("Welcome aboard, nothing to see here."))
	s.add("a@x.test", base.Add(time.Minute), plainMessage("Your verification code is ...123456... thanks"))
	s.add("a@x.test", base.Add(2*time.Minute), plainMessage("Newsletter without any digits"))
	m, _ := newTestMailbox(s)

	code, err := m.GetVerificationCode("a@x.test")
	require.NoError(t, err)
	assert.Equal(t, "123456", code)
}

func TestGetVerificationCodePrefersNewestMessage(t *testing.T) {
	s := newFakeSession()
	// Insert newest first so server order disagrees with send time.
	s.add("a@x.test", base.Add(time.Hour), plainMessage("verification code 222222"))
	s.add("a@x.test", base, plainMessage("verification code 111111"))
	m, _ := newTestMailbox(s)

	code, err := m.GetVerificationCode("a@x.test")
	require.NoError(t, err)
	assert.Equal(t, "222222", code)
}

func TestGetVerificationCodeIsolatesAliases(t *testing.T) {
	s := newFakeSession()
	s.add("aa@x.test", base.Add(time.Hour), plainMessage("verification code 999999"))
	s.add("a@x.test", base, plainMessage("verification code 123456"))
	m, _ := newTestMailbox(s)

	code, err := m.GetVerificationCode("a@x.test")
	require.NoError(t, err)
	assert.Equal(t, "123456", code)

	_, err = m.GetVerificationCode("b@x.test")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetVerificationCodeSkipsUnparseableMessages(t *testing.T) {
	s := newFakeSession()
	s.add("a@x.test", base, plainMessage("verification code 123456"))
	broken := s.add("a@x.test", base.Add(time.Hour), "")
	broken.noBody = true
	s.add("a@x.test", base.Add(2*time.Hour), "this line is not a header\r\n\r\nverification 999999")
	m, _ := newTestMailbox(s)

	code, err := m.GetVerificationCode("a@x.test")
	require.NoError(t, err)
	assert.Equal(t, "123456", code)
}

func TestGetVerificationCodeNotFound(t *testing.T) {
	s := newFakeSession()
	s.add("a@x.test", base, plainMessage("verification pending, no digits"))
	m, _ := newTestMailbox(s)

	_, err := m.GetVerificationCode("a@x.test")
	assert.ErrorIs(t, err, ErrNotFound)

	var mbErr *MailboxError
	require.True(t, errors.As(err, &mbErr))
	assert.Equal(t, "verification-code", mbErr.Op)
	assert.Equal(t, "a@x.test", mbErr.Alias)
}

func TestGetVerificationCodeUnavailable(t *testing.T) {
	m, d := newTestMailbox(newFakeSession())
	d.err = errors.New("connection refused")

	_, err := m.GetVerificationCode("a@x.test")
	assert.ErrorIs(t, err, ErrMailboxUnavailable)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestGetVerificationURL(t *testing.T) {
	s := newFakeSession()
	s.add("a@x.test", base, plainMessage("Click [Verify email](https://example.com/verify-email?x=1)"))
	m, _ := newTestMailbox(s)

	link, err := m.GetVerificationURL("a@x.test")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/verify-email?x=1", link)
}

func TestGetLatestMessagePrefersHTML(t *testing.T) {
	s := newFakeSession()
	s.add("a@x.test", base, plainMessage("older"))
	s.add("a@x.test", base.Add(time.Hour), alternativeMessage("plain body", "<p>html body</p>"))
	m, _ := newTestMailbox(s)

	content, err := m.GetLatestMessage("a@x.test")
	require.NoError(t, err)
	assert.Equal(t, "Sender <noreply@example.com>", content.Sender)
	assert.Equal(t, "<p>html body</p>", content.Body)
	assert.Equal(t, "html body", content.Preview)
	assert.Equal(t, base.Add(time.Hour).In(time.Local).Format("2006-01-02 15:04:05"), content.SentTime)

	_, err = m.GetLatestMessage("nobody@x.test")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListMessagesClampsPage(t *testing.T) {
	s := newFakeSession()
	for i := 0; i < 3; i++ {
		s.add("a@x.test", base.Add(time.Duration(i)*time.Minute), plainMessage("message"))
	}
	m, _ := newTestMailbox(s)

	page, err := m.ListMessages("a@x.test", 5, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Number)
	assert.True(t, page.First)
	assert.True(t, page.Last)
	assert.Equal(t, 3, page.TotalElements)
	assert.Equal(t, 1, page.TotalPages)
	assert.Len(t, page.Content, 3)
}

func TestListMessagesEmpty(t *testing.T) {
	m, _ := newTestMailbox(newFakeSession())

	page, err := m.ListMessages("a@x.test", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Content)
	assert.Equal(t, 0, page.TotalElements)
	assert.Equal(t, 0, page.Number)
}

func TestDeleteAllMessagesNothingToDelete(t *testing.T) {
	s := newFakeSession()
	s.add("other@x.test", base, plainMessage("keep me"))
	m, _ := newTestMailbox(s)

	deleted, err := m.DeleteAllMessages("a@x.test")
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
	assert.Equal(t, 0, s.expunges)
	assert.Equal(t, 1, s.count())
}

func TestDeleteAllMessages(t *testing.T) {
	s := newFakeSession()
	s.add("a@x.test", base, plainMessage("one"))
	s.add("aa@x.test", base, plainMessage("not mine"))
	s.add("a@x.test", base, plainMessage("two"))
	m, _ := newTestMailbox(s)

	deleted, err := m.DeleteAllMessages("a@x.test")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.Equal(t, 1, s.expunges)
	assert.Equal(t, 1, s.closes)
	assert.Equal(t, 1, s.count())
}

func TestDeleteAllMessagesBestEffort(t *testing.T) {
	s := newFakeSession()
	s.add("a@x.test", base, plainMessage("one"))
	failing := s.add("a@x.test", base, plainMessage("two"))
	s.add("a@x.test", base, plainMessage("three"))
	s.storeErr = map[uint32]error{failing.uid: errors.New("NO store failed")}
	m, _ := newTestMailbox(s)

	deleted, err := m.DeleteAllMessages("a@x.test")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.Equal(t, 1, s.count())
}

func TestDeleteAllMessagesExpungeFailureStillPurgesOnClose(t *testing.T) {
	s := newFakeSession()
	s.add("a@x.test", base, plainMessage("one"))
	s.expungeErr = errors.New("NO expunge failed")
	m, _ := newTestMailbox(s)

	deleted, err := m.DeleteAllMessages("a@x.test")
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.Equal(t, 0, s.count())
}

func TestDeleteAllMessagesUnavailable(t *testing.T) {
	m, d := newTestMailbox(newFakeSession())
	d.err = errors.New("connection refused")

	deleted, err := m.DeleteAllMessages("a@x.test")
	assert.Equal(t, -1, deleted)
	assert.ErrorIs(t, err, ErrMailboxUnavailable)
}

func TestMailboxIsConnected(t *testing.T) {
	m, d := newTestMailbox(newFakeSession())
	assert.False(t, m.IsConnected())
	assert.Equal(t, 0, d.count())

	_, _ = m.ListMessages("a@x.test", 0, 10)
	assert.True(t, m.IsConnected())
}
