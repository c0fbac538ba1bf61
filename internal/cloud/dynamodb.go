package cloud

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/domain"
)

type itemAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// PredictionItem is the table layout: partition key room, sort key createdAt.
type PredictionItem struct {
	Room           string             `dynamodbav:"room"`
	CreatedAt      int64              `dynamodbav:"createdAt"`
	PredictionID   string             `dynamodbav:"predictionId"`
	Recommendation string             `dynamodbav:"recommendation"`
	Predictions    map[string]float64 `dynamodbav:"predictions"`
	Features       map[string]float64 `dynamodbav:"features"`
	Points         int                `dynamodbav:"points"`
	ExpiresAt      int64              `dynamodbav:"expiresAt"`
}

// PredictionStore keeps a history of predictions per room.
type PredictionStore struct {
	svc       itemAPI
	table     string
	room      string
	retention time.Duration
}

func NewPredictionStore(cfg aws.Config, table, room string) *PredictionStore {
	return &PredictionStore{
		svc:       dynamodb.NewFromConfig(cfg),
		table:     table,
		room:      room,
		retention: 30 * 24 * time.Hour,
	}
}

func (c *PredictionStore) PublishPrediction(ctx context.Context, p domain.Prediction) error {
	return c.PutPrediction(ctx, p)
}

func (c *PredictionStore) PutPrediction(ctx context.Context, p domain.Prediction) error {
	item, err := attributevalue.MarshalMap(PredictionItem{
		Room:           c.room,
		CreatedAt:      p.CreatedAt.Unix(),
		PredictionID:   p.ID,
		Recommendation: p.Recommendation(),
		Predictions:    p.Values,
		Features:       p.Features,
		Points:         p.Points,
		ExpiresAt:      p.CreatedAt.Add(c.retention).Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal prediction: %w", err)
	}

	_, err = c.svc.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put item in DynamoDB: %w", err)
	}
	return nil
}
