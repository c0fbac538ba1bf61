package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/bootstrap"
	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/config"
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
	log.Info().
		Dur("predict_every", cfg.Aggregation.PredictInterval).
		Dur("clear_every", cfg.Aggregation.ClearInterval).
		Msg("ingestor running; Ctrl+C to stop")

	<-ctx.Done()
	rt.Wait()
	log.Info().Int64("dropped", rt.Subscriber.Dropped()).Msg("ingestor stopped")
}
