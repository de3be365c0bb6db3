package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/rs/zerolog"

	"github.com/eightyone/botdock/internal/adapters/builder"
	"github.com/eightyone/botdock/internal/adapters/docker"
	apphttp "github.com/eightyone/botdock/internal/adapters/http"
	"github.com/eightyone/botdock/internal/config"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("service", "deployd").Logger()

	cfg, err := config.LoadDeployd()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	containers, err := docker.NewAdapter(log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Docker")
	}
	images, err := builder.NewBuilderAdapter(log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create builder")
	}

	deployments := apphttp.NewDeploymentHandler(containers, images, cfg, log)
	proxy := apphttp.NewProxyHandler(containers)

	app := fiber.New(fiber.Config{
		AppName:               "deployd",
		DisableStartupMessage: true,
	})
	app.Use(logger.New())

	// Subdomain traffic goes to the deployments; everything else is the API.
	app.Use(proxy.ProxyRequest)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/metrics", apphttp.MetricsHandler())

	api := app.Group("/api/v1")
	api.Get("/deployments", deployments.ListDeployments)
	api.Post("/deployments", deployments.CreateDeployment)
	api.Delete("/deployments/:id", deployments.StopDeployment)
	api.Get("/deployments/:id/logs", deployments.GetDeploymentLogs)

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("deployd listening")
		if err := app.Listen(cfg.Addr()); err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	if err := app.Shutdown(); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}
