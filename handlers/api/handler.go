package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"aliasmail/models"
	"aliasmail/utils"

	"github.com/gofiber/fiber/v2"
)

// Service is the mailbox surface the HTTP handlers need. *Mailbox implements it.
type Service interface {
	GetVerificationCode(alias string) (string, error)
	GetVerificationURL(alias string) (string, error)
	GetLatestMessage(alias string) (models.EmailContent, error)
	ListMessages(alias string, page, size int) (*models.Page[models.EmailContent], error)
	DeleteAllMessages(alias string) (int, error)
	IsConnected() bool
	WaitForVerificationCode(ctx context.Context, alias string, opts ...WaitOption) (string, error)
	WaitForVerificationURL(ctx context.Context, alias string, opts ...WaitOption) (string, error)
}

const defaultPageSize = 10

// Handler serves the temp-email API. It performs no authentication; callers are
// expected to sit behind whatever gate issues aliases.
type Handler struct {
	svc    Service
	domain string
}

func NewHandler(svc Service, domain string) *Handler {
	return &Handler{svc: svc, domain: domain}
}

// Register mounts the API routes and the health check on r.
func (h *Handler) Register(r fiber.Router) {
	temp := r.Group("/api/temp-email")
	{
		temp.Get("/verification-code", h.HandleVerificationCode)
		temp.Get("/verification-code/stream", h.HandleVerificationCodeStream)
		temp.Get("/verification-url", h.HandleVerificationURL)
		temp.Get("/verification-url/stream", h.HandleVerificationURLStream)
		temp.Get("/latest-message", h.HandleLatestMessage)
		temp.Get("/messages", h.HandleMessages)
		temp.Post("/delete-all-emails", h.HandleDeleteAll)
		temp.Get("/generate", h.HandleGenerate)
	}

	r.Get("/health", h.HandleHealth)
}

// emailAddress reads the required emailAddress query parameter. The value is copied
// because fiber reuses the request buffers once the handler returns.
func emailAddress(c *fiber.Ctx) (string, error) {
	alias := strings.TrimSpace(c.Query("emailAddress"))
	if alias == "" {
		return "", utils.BadRequestError("emailAddress is required", nil)
	}
	return strings.Clone(alias), nil
}

// mailboxFailure answers "nothing yet" with 200 so polling clients keep retrying, and
// anything else with 503.
func mailboxFailure(c *fiber.Ctx, err error, notFound string) error {
	if errors.Is(err, ErrNotFound) {
		return c.JSON(fiber.Map{
			"success": false,
			"message": notFound,
		})
	}
	return utils.ServiceUnavailableError("Mailbox unavailable, please try again later", err)
}

func (h *Handler) HandleVerificationCode(c *fiber.Ctx) error {
	alias, err := emailAddress(c)
	if err != nil {
		return err
	}

	var code string
	if c.QueryBool("wait", false) {
		code, err = h.svc.WaitForVerificationCode(c.UserContext(), alias)
	} else {
		code, err = h.svc.GetVerificationCode(alias)
	}
	if err != nil {
		return mailboxFailure(c, err, "No verification code found")
	}

	return c.JSON(fiber.Map{
		"success":          true,
		"verificationCode": code,
		"message":          "Verification code found",
	})
}

func (h *Handler) HandleVerificationURL(c *fiber.Ctx) error {
	alias, err := emailAddress(c)
	if err != nil {
		return err
	}

	var link string
	if c.QueryBool("wait", false) {
		link, err = h.svc.WaitForVerificationURL(c.UserContext(), alias)
	} else {
		link, err = h.svc.GetVerificationURL(alias)
	}
	if err != nil {
		return mailboxFailure(c, err, "No verification url found")
	}

	return c.JSON(fiber.Map{
		"success":         true,
		"verificationUrl": link,
		"message":         "Verification url found",
	})
}

// HandleLatestMessage returns the newest message. With sanitize=true the HTML body is
// cleaned for direct embedding.
func (h *Handler) HandleLatestMessage(c *fiber.Ctx) error {
	alias, err := emailAddress(c)
	if err != nil {
		return err
	}

	content, err := h.svc.GetLatestMessage(alias)
	if err != nil {
		return mailboxFailure(c, err, "No message found")
	}
	if c.QueryBool("sanitize", false) {
		content.Body = utils.SanitizeHTML(content.Body)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    content,
	})
}

func (h *Handler) HandleMessages(c *fiber.Ctx) error {
	alias, err := emailAddress(c)
	if err != nil {
		return err
	}

	page, err := h.svc.ListMessages(alias, c.QueryInt("page", 0), c.QueryInt("size", defaultPageSize))
	if err != nil {
		return mailboxFailure(c, err, "No messages found")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    page,
	})
}

func (h *Handler) HandleDeleteAll(c *fiber.Ctx) error {
	alias, err := emailAddress(c)
	if err != nil {
		return err
	}

	deleted, err := h.svc.DeleteAllMessages(alias)
	if err != nil {
		return mailboxFailure(c, err, "No emails to delete")
	}

	message := "No emails to delete"
	if deleted > 0 {
		message = fmt.Sprintf("Deleted %d emails", deleted)
	}
	return c.JSON(fiber.Map{
		"success":      true,
		"deletedCount": deleted,
		"message":      message,
	})
}

func (h *Handler) HandleGenerate(c *fiber.Ctx) error {
	alias, err := GenerateAlias(h.domain)
	if err != nil {
		return utils.InternalServerError("Could not generate an email address", err)
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"emailAddress": alias,
	})
}

func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":        "ok",
		"imapConnected": h.svc.IsConnected(),
		"time":          time.Now().Format(time.RFC3339),
	})
}

// ErrorHandler renders every error in the {success, message} envelope. Only the
// user-facing message of an AppError reaches the client; the cause is logged.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var appErr *utils.AppError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &appErr):
		code = appErr.Code
		message = appErr.Message
		utils.Log.Error("Application error: %v", appErr)
	case errors.As(err, &fiberErr):
		code = fiberErr.Code
		message = fiberErr.Message
	default:
		utils.Log.Error("Unhandled error: %v", err)
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
