package api

import (
	"time"

	"aliasmail/models"
	"aliasmail/utils"

	"github.com/google/uuid"
)

// Mailbox exposes the alias-scoped operations over the shared mailbox. It holds no
// per-alias state; every call searches the server afresh.
type Mailbox struct {
	client *Client
	parser *Parser
	log    *utils.Logger

	waitAttempts int
	waitInterval time.Duration
}

// MailboxOption customizes a Mailbox.
type MailboxOption func(*Mailbox)

// WithWaitDefaults sets the attempts and interval used by the Wait* operations.
func WithWaitDefaults(attempts int, interval time.Duration) MailboxOption {
	return func(m *Mailbox) {
		m.waitAttempts = attempts
		m.waitInterval = interval
	}
}

// WithMailboxLogger replaces the global logger.
func WithMailboxLogger(l *utils.Logger) MailboxOption {
	return func(m *Mailbox) { m.log = l }
}

func NewMailbox(client *Client, parser *Parser, opts ...MailboxOption) *Mailbox {
	m := &Mailbox{
		client:       client,
		parser:       parser,
		log:          utils.Log,
		waitAttempts: 20,
		waitInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mailbox) opLog(op, alias string) *utils.Logger {
	return m.log.WithFields(map[string]interface{}{
		"op":    op,
		"alias": alias,
		"op_id": uuid.New().String(),
	})
}

// search returns the alias's messages, or ErrNotFound when there are none.
func (m *Mailbox) search(op, alias string, log *utils.Logger) ([]models.Message, error) {
	msgs, err := m.client.Search(alias)
	if err != nil {
		log.Error("Search failed: %v", err)
		return nil, &MailboxError{Op: op, Alias: alias, Err: err}
	}
	if len(msgs) == 0 {
		log.Info("No messages for alias")
		return nil, &MailboxError{Op: op, Alias: alias, Err: ErrNotFound}
	}
	log.Debug("Found %d messages", len(msgs))
	return msgs, nil
}

// GetVerificationCode returns the code from the newest message that carries one.
func (m *Mailbox) GetVerificationCode(alias string) (string, error) {
	const op = "verification-code"
	log := m.opLog(op, alias)

	msgs, err := m.search(op, alias, log)
	if err != nil {
		return "", err
	}
	code, ok := m.parser.FindCode(msgs, log)
	if !ok {
		log.Info("No verification code in %d messages", len(msgs))
		return "", &MailboxError{Op: op, Alias: alias, Err: ErrNotFound}
	}
	return code, nil
}

// GetVerificationURL returns the confirmation link from the newest message that carries one.
func (m *Mailbox) GetVerificationURL(alias string) (string, error) {
	const op = "verification-url"
	log := m.opLog(op, alias)

	msgs, err := m.search(op, alias, log)
	if err != nil {
		return "", err
	}
	link, ok := m.parser.FindURL(msgs, log)
	if !ok {
		log.Info("No verification url in %d messages", len(msgs))
		return "", &MailboxError{Op: op, Alias: alias, Err: ErrNotFound}
	}
	return link, nil
}

// GetLatestMessage returns the newest message to alias, HTML body preferred.
func (m *Mailbox) GetLatestMessage(alias string) (models.EmailContent, error) {
	const op = "latest-message"
	log := m.opLog(op, alias)

	msgs, err := m.search(op, alias, log)
	if err != nil {
		return models.EmailContent{}, err
	}
	latest := sortNewestFirst(msgs)[0]
	log.Debug("Latest message is uid %d", latest.UID)
	return ToEmailContent(latest), nil
}

// ListMessages returns one page of the alias's messages, newest first. An alias with no
// messages yields an empty page, not ErrNotFound.
func (m *Mailbox) ListMessages(alias string, page, size int) (*models.Page[models.EmailContent], error) {
	const op = "list-messages"
	log := m.opLog(op, alias)

	msgs, err := m.client.Search(alias)
	if err != nil {
		log.Error("Search failed: %v", err)
		return nil, &MailboxError{Op: op, Alias: alias, Err: err}
	}
	result := Paginate(msgs, page, size)
	log.Debug("Page %d/%d with %d of %d messages", result.Number, result.TotalPages, len(result.Content), result.TotalElements)
	return result, nil
}

// DeleteAllMessages removes every message addressed to alias and returns the count.
// It returns -1 with the error when the mailbox could not be reached.
func (m *Mailbox) DeleteAllMessages(alias string) (int, error) {
	const op = "delete-all"
	log := m.opLog(op, alias)

	deleted, err := m.client.DeleteAll(alias)
	if err != nil {
		log.Error("Delete failed: %v", err)
		return -1, &MailboxError{Op: op, Alias: alias, Err: err}
	}
	log.Info("Deleted %d messages", deleted)
	return deleted, nil
}

// IsConnected reports the connection state without connecting.
func (m *Mailbox) IsConnected() bool {
	return m.client.IsConnected()
}
