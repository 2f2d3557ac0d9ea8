package api

import (
	"errors"
	"fmt"
)

// Error kinds returned by the mailbox operations. Use errors.Is to tell them apart:
// callers retry on ErrMailboxUnavailable and keep polling on ErrNotFound.
var (
	// ErrMailboxUnavailable means the server could not be reached or authentication failed.
	ErrMailboxUnavailable = errors.New("mailbox unavailable")

	// ErrNotFound means no message for the alias, or no code/link matched yet.
	ErrNotFound = errors.New("not found")

	// ErrParseFailure marks a single message that could not be decoded. Scans recover from
	// it by moving to the next candidate; it is never returned from a scan.
	ErrParseFailure = errors.New("message could not be parsed")

	// ErrClosed is returned after Close has been called on the client.
	ErrClosed = errors.New("mailbox client closed")
)

// MailboxError records the operation and alias an error kind occurred for.
type MailboxError struct {
	Op    string
	Alias string
	Err   error
}

func (e *MailboxError) Error() string {
	if e.Alias == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Alias, e.Err)
}

func (e *MailboxError) Unwrap() error {
	return e.Err
}

// unavailable wraps a transport/protocol failure as ErrMailboxUnavailable, keeping the cause.
func unavailable(err error) error {
	if err == nil || errors.Is(err, ErrMailboxUnavailable) || errors.Is(err, ErrClosed) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrMailboxUnavailable, err)
}
