package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aliasmail/config"
	"aliasmail/handlers/api"
	"aliasmail/middleware"
	"aliasmail/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		utils.Log.Error("Failed to load config: %v", err)
		os.Exit(1)
	}

	level, err := utils.ParseLevel(cfg.Log.Level)
	if err != nil {
		utils.Log.Warn("Invalid log level %q, using INFO", cfg.Log.Level)
	}
	utils.Log.SetLevel(level)
	utils.Log.Info("Initializing aliasmail...")

	parser, err := api.NewParser(cfg.Verification.ProviderURLPattern)
	if err != nil {
		utils.Log.Error("Failed to build verification parser: %v", err)
		os.Exit(1)
	}

	client := api.NewClient(cfg.IMAP)
	if err := client.Open(); err != nil {
		// Not fatal: the next request retries the connection.
		utils.Log.Warn("Initial mailbox connection failed: %v", err)
	}

	mailbox := api.NewMailbox(client, parser,
		api.WithWaitDefaults(cfg.Verification.WaitAttempts, cfg.Verification.WaitInterval.Duration),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := fiber.New(fiber.Config{
		AppName:      "aliasmail",
		ErrorHandler: api.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	app.Use(middleware.RateLimiter(ctx, cfg.RateLimit.Requests, cfg.RateLimit.Window.Duration))

	api.NewHandler(mailbox, cfg.Alias.Domain).Register(app)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Not found",
		})
	})

	go func() {
		<-ctx.Done()
		utils.Log.Info("Shutting down...")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			utils.Log.Error("Error shutting down server: %v", err)
		}
	}()

	utils.Log.Info("Starting server on port %d...", cfg.Server.Port)
	if err := app.Listen(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		utils.Log.Error("Error starting server: %v", err)
	}

	if err := client.Close(); err != nil {
		utils.Log.Error("Error closing mailbox: %v", err)
	}
	utils.Log.Info("Stopped")
}
