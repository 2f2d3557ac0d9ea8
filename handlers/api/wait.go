package api

import (
	"context"
	"errors"
	"time"
)

// Attempt describes one finished poll of a wait loop.
type Attempt struct {
	Number int
	Max    int
	Err    error // nil on the successful attempt
}

type waitConfig struct {
	attempts  int
	interval  time.Duration
	onAttempt func(Attempt)
}

// WaitOption configures WaitForVerificationCode and WaitForVerificationURL.
type WaitOption func(*waitConfig)

// WithAttempts sets the maximum number of polls.
func WithAttempts(n int) WaitOption {
	return func(c *waitConfig) {
		c.attempts = n
	}
}

// WithInterval sets the pause between polls.
func WithInterval(d time.Duration) WaitOption {
	return func(c *waitConfig) {
		c.interval = d
	}
}

// OnAttempt registers a callback run after every poll.
func OnAttempt(fn func(Attempt)) WaitOption {
	return func(c *waitConfig) {
		c.onAttempt = fn
	}
}

// WaitForVerificationCode polls GetVerificationCode until it yields a code, the attempts
// run out, or ctx is done. Both ErrNotFound and ErrMailboxUnavailable are retried.
func (m *Mailbox) WaitForVerificationCode(ctx context.Context, alias string, opts ...WaitOption) (string, error) {
	return m.wait(ctx, opts, func() (string, error) {
		return m.GetVerificationCode(alias)
	})
}

// WaitForVerificationURL is WaitForVerificationCode for confirmation links.
func (m *Mailbox) WaitForVerificationURL(ctx context.Context, alias string, opts ...WaitOption) (string, error) {
	return m.wait(ctx, opts, func() (string, error) {
		return m.GetVerificationURL(alias)
	})
}

func (m *Mailbox) wait(ctx context.Context, opts []WaitOption, poll func() (string, error)) (string, error) {
	cfg := &waitConfig{
		attempts: m.waitAttempts,
		interval: m.waitInterval,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.attempts < 1 {
		cfg.attempts = 1
	}

	var lastErr error
	for n := 1; n <= cfg.attempts; n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		result, err := poll()
		if cfg.onAttempt != nil {
			cfg.onAttempt(Attempt{Number: n, Max: cfg.attempts, Err: err})
		}
		if err == nil {
			return result, nil
		}
		if errors.Is(err, ErrClosed) {
			return "", err
		}
		lastErr = err

		if n == cfg.attempts {
			break
		}
		timer := time.NewTimer(cfg.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return "", lastErr
}
