package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/config"
	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/ingest"
	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/logging"
)

// span is an inclusive range a simulated value is drawn from.
type span struct{ min, max float64 }

func (s span) draw(r *rand.Rand) float64 { return s.min + r.Float64()*(s.max-s.min) }

var (
	temperature = span{10, 27}
	humidity    = span{30, 62}
	co2         = span{402, 600}
	tvoc        = span{100, 380}
	ambient     = span{-5, 30}
)

func main() {
	viper.SetDefault("SIM_INTERVAL", "5s")
	viper.SetDefault("SIM_COUNT", 0)

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := ingest.Connect(ingest.ClientConfig{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID + "-simulator",
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
	}, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("mqtt connect")
	}
	defer client.Disconnect(250)

	interval := viper.GetDuration("SIM_INTERVAL")
	count := viper.GetInt("SIM_COUNT")
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for sent := 0; count == 0 || sent < count; sent++ {
		now := time.Now()
		for _, t := range cfg.MQTT.TVOCTopics {
			publish(client, t, now, map[string]float64{"tvoc": tvoc.draw(rnd)})
		}
		for _, t := range cfg.MQTT.AmbientTopics {
			publish(client, t, now, map[string]float64{"ambient_temp": ambient.draw(rnd)})
		}
		for _, t := range cfg.MQTT.ClimateTopics {
			publish(client, t, now, map[string]float64{
				"co2":         co2.draw(rnd),
				"temperature": temperature.draw(rnd),
				"humidity":    humidity.draw(rnd),
			})
		}

		select {
		case <-ctx.Done():
			log.Info().Int("rounds", sent+1).Msg("simulation interrupted")
			return
		case <-ticker.C:
		}
	}
	log.Info().Int("rounds", count).Msg("simulation done")
}

func publish(c mqtt.Client, topic string, at time.Time, object map[string]float64) {
	payload, err := ingest.EncodeUplink(at, object)
	if err != nil {
		log.Error().Err(err).Msg("encode uplink")
		return
	}
	token := c.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		log.Warn().Err(token.Error()).Str("topic", topic).Msg("publish failed")
	}
}
