package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"time"

	"aliasmail/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

// StreamEvent is one Server-Sent Event of a wait stream.
type StreamEvent struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"` // "attempt", "result"
	Attempt     int       `json:"attempt,omitempty"`
	MaxAttempts int       `json:"maxAttempts,omitempty"`
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	Value       string    `json:"value,omitempty"`
	Time        time.Time `json:"time"`
}

type waitFunc func(ctx context.Context, alias string, opts ...WaitOption) (string, error)

// HandleVerificationCodeStream runs the code wait loop and streams its progress.
func (h *Handler) HandleVerificationCodeStream(c *fiber.Ctx) error {
	return h.stream(c, "verification code", h.svc.WaitForVerificationCode)
}

// HandleVerificationURLStream runs the link wait loop and streams its progress.
func (h *Handler) HandleVerificationURLStream(c *fiber.Ctx) error {
	return h.stream(c, "verification url", h.svc.WaitForVerificationURL)
}

func (h *Handler) stream(c *fiber.Ctx, what string, wait waitFunc) error {
	alias, err := emailAddress(c)
	if err != nil {
		return err
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	streamID := uuid.New().String()
	log := utils.Log.WithFields(map[string]interface{}{
		"stream": streamID,
		"alias":  alias,
	})
	log.Info("Wait stream opened for %s", what)

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		send := func(ev StreamEvent) error {
			ev.ID = streamID
			ev.Time = time.Now()
			data, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			if _, err := w.WriteString("data: " + string(data) + "\n\n"); err != nil {
				return err
			}
			return w.Flush()
		}

		result, err := wait(ctx, alias, OnAttempt(func(a Attempt) {
			ev := StreamEvent{
				Type:        "attempt",
				Attempt:     a.Number,
				MaxAttempts: a.Max,
				Success:     a.Err == nil,
				Message:     attemptMessage(what, a),
			}
			if err := send(ev); err != nil {
				// Client went away; stop polling.
				log.Info("Wait stream closed by client: %v", err)
				cancel()
			}
		}))

		final := StreamEvent{Type: "result", Success: err == nil, Value: result}
		switch {
		case err == nil:
			final.Message = what + " found"
		case errors.Is(err, context.Canceled):
			return
		case errors.Is(err, ErrNotFound):
			final.Message = "No " + what + " found"
		default:
			final.Message = "Mailbox unavailable, please try again later"
		}
		if err := send(final); err != nil {
			log.Warn("Error sending final event: %v", err)
		}
		log.Info("Wait stream finished: success=%t", final.Success)
	}))

	return nil
}

func attemptMessage(what string, a Attempt) string {
	switch {
	case a.Err == nil:
		return what + " found"
	case errors.Is(a.Err, ErrNotFound):
		return "Waiting for " + what
	default:
		return "Mailbox unavailable, retrying"
	}
}
