package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/domain"
)

type recommendationMessage struct {
	PredictionID   string               `json:"prediction_id"`
	CreatedAt      time.Time            `json:"created_at"`
	Recommendation string               `json:"recommendation"`
	Predictions    map[string]float64   `json:"predictions"`
	Features       domain.FeatureVector `json:"features"`
}

// Publisher pushes each prediction as a window recommendation on a topic.
type Publisher struct {
	client mqtt.Client
	topic  string
	qos    byte
}

func NewPublisher(c mqtt.Client, topic string) *Publisher {
	return &Publisher{client: c, topic: topic, qos: 1}
}

func (p *Publisher) PublishPrediction(ctx context.Context, pred domain.Prediction) error {
	body, err := json.Marshal(recommendationMessage{
		PredictionID:   pred.ID,
		CreatedAt:      pred.CreatedAt,
		Recommendation: pred.Recommendation(),
		Predictions:    pred.Values,
		Features:       pred.Features,
	})
	if err != nil {
		return err
	}

	token := p.client.Publish(p.topic, p.qos, false, body)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", p.topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}
