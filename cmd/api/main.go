package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/bootstrap"
	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/config"
	httpHandlers "github.com/ANIKETSHETTY47/smart-ventilation-system/internal/http"
	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/logging"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer rt.Close()
	rt.Start(ctx)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(recover.New())

	store := session.New(session.Config{Expiration: 2 * time.Hour})
	httpHandlers.Register(app, rt.Services, store, httpHandlers.Options{
		Room:         cfg.Aggregation.Room,
		PredictEvery: cfg.Aggregation.PredictInterval,
	})

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
	}()

	log.Info().Str("addr", cfg.APIAddr).Str("room", cfg.Aggregation.Room).Msg("api listening")
	if err := app.Listen(cfg.APIAddr); err != nil {
		log.Error().Err(err).Msg("server exit")
	}
	stop()
	rt.Wait()
	log.Info().Msg("api stopped")
}
