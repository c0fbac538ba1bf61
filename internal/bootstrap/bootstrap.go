// Package bootstrap wires the configured stores, models, sinks and MQTT
// transport into a runnable service.
package bootstrap

import (
	"context"
	"fmt"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/aggregator"
	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/archive"
	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/cloud"
	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/config"
	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/database"
	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/events"
	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/ingest"
	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/predict"
	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/repository"
	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/sensorapi"
	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/service"
)

type Runtime struct {
	Config     *config.Config
	Services   *service.Services
	Runner     *aggregator.Runner
	Subscriber *ingest.Subscriber

	mqtt    mqtt.Client
	closers []func() error
	wg      sync.WaitGroup
}

// Build connects every configured backend. Optional backends (ClickHouse,
// Kafka, AWS) are skipped when not configured.
func Build(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	rt := &Runtime{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	db, err := database.Connect(cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	rt.closers = append(rt.closers, db.Close)
	if err := database.Migrate(ctx, db); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	repos := repository.New(db)

	var (
		source   service.SensorSource = repos
		feedback service.FeedbackSink = repos
	)
	if cfg.DataSource == "api" {
		client := sensorapi.New(cfg.API)
		source, feedback = client, client
	}
	log.Info().Str("source", cfg.DataSource).Msg("sensor data source selected")

	models, err := predict.LoadAll(cfg.Models.Files)
	if err != nil {
		return nil, err
	}
	registry := predict.NewRegistry(models...)

	deps := service.Deps{
		Source:       source,
		Feedback:     feedback,
		Climate:      repos,
		ReadingSinks: []service.ReadingSink{repos},
		Room:         cfg.Aggregation.Room,
		Location:     cfg.Aggregation.Location,
	}
	var sinks []aggregator.PredictionSink

	if cfg.AWS.UseCloud {
		awsCfg, err := cloud.LoadConfig(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, err
		}
		if cfg.Models.LambdaFunction != "" {
			registry.Add(predict.NewLambdaModel(cfg.Models.LambdaFunction, cfg.Models.LambdaFunction,
				cfg.Models.LambdaFeatures, cloud.NewLambdaClient(awsCfg)))
		}
		if cfg.AWS.PredictionTable != "" {
			sinks = append(sinks, cloud.NewPredictionStore(awsCfg, cfg.AWS.PredictionTable, cfg.Aggregation.Room))
		}
		if cfg.AWS.S3Bucket != "" {
			deps.Reports = cloud.NewReportStore(awsCfg, cfg.AWS.S3Bucket)
		}
		if cfg.AWS.SNSTopicArn != "" {
			notifier := cloud.NewNotifier(awsCfg, cfg.AWS.SNSTopicArn)
			deps.Contact = notifier
			sinks = append(sinks, cloud.NewCO2Alerter(notifier, cfg.Aggregation.Room,
				cfg.AWS.CO2AlertThreshold, cfg.AWS.AlertCooldown))
		}
		log.Info().Str("region", cfg.AWS.Region).Msg("cloud services enabled")
	}
	if registry.Len() == 0 {
		return nil, fmt.Errorf("no models configured")
	}
	log.Info().Strs("models", registry.Names()).Msg("models loaded")

	if cfg.ClickHouse.Addr != "" {
		store, err := archive.Open(ctx, archive.Options{
			Addr:     cfg.ClickHouse.Addr,
			Database: cfg.ClickHouse.Database,
			Username: cfg.ClickHouse.Username,
			Password: cfg.ClickHouse.Password,
			Room:     cfg.Aggregation.Room,
		})
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, store.Close)
		deps.ReadingSinks = append(deps.ReadingSinks, store)
		sinks = append(sinks, store)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Aggregation.Room)
		rt.closers = append(rt.closers, kp.Close)
		sinks = append(sinks, kp)
	}

	buf := aggregator.NewBuffer(registry, aggregator.Options{
		MaxPoints: cfg.Aggregation.MaxPoints,
		Location:  cfg.Aggregation.Location,
	})
	deps.Buffer = buf
	rt.Services = service.New(deps)

	rt.Subscriber = ingest.NewSubscriber(
		ingest.Routes(cfg.MQTT.ClimateTopics, cfg.MQTT.TVOCTopics, cfg.MQTT.AmbientTopics),
		cfg.Aggregation.Location,
		cfg.MQTT.QueueSize,
	)
	client, err := ingest.Connect(ingest.ClientConfig{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
	}, func(c mqtt.Client) {
		if err := rt.Subscriber.SubscribeAll(c); err != nil {
			log.Error().Err(err).Msg("subscribe failed")
		}
	})
	if err != nil {
		return nil, err
	}
	rt.mqtt = client
	if cfg.MQTT.RecommendationTopic != "" {
		sinks = append(sinks, ingest.NewPublisher(client, cfg.MQTT.RecommendationTopic))
	}

	rt.Runner = aggregator.NewRunner(buf, cfg.Aggregation.PredictInterval, cfg.Aggregation.ClearInterval, sinks...)
	ok = true
	return rt, nil
}

// Start launches the ingest consumer and the aggregation schedule.
func (rt *Runtime) Start(ctx context.Context) {
	rt.wg.Add(2)
	go func() {
		defer rt.wg.Done()
		rt.Services.Ingest.Run(ctx, rt.Subscriber.Queue())
	}()
	go func() {
		defer rt.wg.Done()
		rt.Runner.Run(ctx)
	}()
}

// Wait blocks until the goroutines started by Start have returned.
func (rt *Runtime) Wait() { rt.wg.Wait() }

func (rt *Runtime) Close() {
	if rt.mqtt != nil {
		rt.mqtt.Disconnect(250)
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
	rt.closers = nil
}
