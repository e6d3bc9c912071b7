package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/meeting-stt/internal/cleanup"
	"github.com/codebuildervaibhav/meeting-stt/internal/config"
	"github.com/codebuildervaibhav/meeting-stt/internal/handlers"
)

const version = "1.0.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cleanup.EnsureTempDirExists(cfg.Storage.TempDir); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}

	slog.Info("initializing components")
	a, err := wire(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	cleanupScheduler := cleanup.NewScheduler(
		cfg.Storage.TempDir,
		cfg.Cleanup.IntervalMinutes,
		cfg.Cleanup.MaxAgeHours,
	)
	cleanupScheduler.Start()
	defer cleanupScheduler.Stop()

	app := newApp(a, cfg)

	go func() {
		<-ctx.Done()
		slog.Info("shutting down gracefully")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	slog.Info("server starting", "addr", addr, "version", version)
	if err := app.Listen(addr); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func newApp(a *components, cfg *config.Config) *fiber.App {
	timeout := time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second

	app := fiber.New(fiber.Config{
		BodyLimit:             cfg.Limits.MaxFileSizeMB * cfg.Limits.MaxBatchFiles * 1024 * 1024,
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
		Output: io.MultiWriter(os.Stdout, logBuffer),
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	svc := a.service
	handlers.RegisterRoutes(app,
		handlers.NewUploadHandler(svc, cfg.Limits.MaxFileSizeMB, cfg.Limits.MaxBatchFiles, timeout),
		handlers.NewMeetingHandler(svc, timeout),
		handlers.NewExportHandler(svc, timeout),
		handlers.NewStreamHandler(svc, cfg.Limits.MaxFileSizeMB, timeout),
	)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": version,
		})
	})

	// Get server logs
	app.Get("/logs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"logs": logBuffer.GetLogs(),
		})
	})

	return app
}
