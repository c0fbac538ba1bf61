// Package events streams predictions to Kafka for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PredictionEvent is the value written for every prediction.
type PredictionEvent struct {
	PredictionID   string             `json:"prediction_id"`
	Room           string             `json:"room"`
	CreatedAt      time.Time          `json:"created_at"`
	Recommendation string             `json:"recommendation"`
	Points         int                `json:"points"`
	Predictions    map[string]float64 `json:"predictions"`
	Features       map[string]float64 `json:"features"`
}

// KafkaPublisher writes prediction events keyed by room.
type KafkaPublisher struct {
	writer messageWriter
	room   string
}

func NewKafkaPublisher(brokers []string, topic, room string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
		room: room,
	}
}

func (p *KafkaPublisher) PublishPrediction(ctx context.Context, pred domain.Prediction) error {
	value, err := json.Marshal(PredictionEvent{
		PredictionID:   pred.ID,
		Room:           p.room,
		CreatedAt:      pred.CreatedAt,
		Recommendation: pred.Recommendation(),
		Points:         pred.Points,
		Predictions:    pred.Values,
		Features:       pred.Features,
	})
	if err != nil {
		return fmt.Errorf("marshal prediction event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(p.room),
		Value: value,
		Time:  pred.CreatedAt,
		Headers: []kafka.Header{
			{Key: "prediction_id", Value: []byte(pred.ID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write prediction event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }
