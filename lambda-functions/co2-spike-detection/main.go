package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/ANIKETSHETTY47/energy-grid-analytics-go/aggregator"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Reacts to new rows in the predictions table stream and raises an alert
// when a room's CO2 level jumps well above its recent baseline.

var (
	dynamoClient    *dynamodb.Client
	snsClient       *sns.Client
	topicArn        string
	predictionTable = envOr("PREDICTION_TABLE", "VentilationPredictions")
	alertTable      = envOr("ALERT_TABLE", "VentilationAlerts")
)

// Prediction mirrors one row of the predictions table.
type Prediction struct {
	Room           string             `dynamodbav:"room" json:"room"`
	CreatedAt      int64              `dynamodbav:"createdAt" json:"created_at"`
	PredictionID   string             `dynamodbav:"predictionId" json:"prediction_id"`
	Recommendation string             `dynamodbav:"recommendation" json:"recommendation"`
	Features       map[string]float64 `dynamodbav:"features" json:"features"`
}

type Alert struct {
	AlertID      string             `dynamodbav:"alertId"`
	Room         string             `dynamodbav:"room"`
	Timestamp    int64              `dynamodbav:"timestamp"`
	Severity     string             `dynamodbav:"severity"`
	Type         string             `dynamodbav:"type"`
	Message      string             `dynamodbav:"message"`
	PredictionID string             `dynamodbav:"predictionId"`
	Metadata     map[string]float64 `dynamodbav:"metadata"`
}

// SpikeResult holds the outcome of comparing one CO2 value to its baseline.
type SpikeResult struct {
	IsSpike          bool    `json:"is_spike"`
	CO2              float64 `json:"co2"`
	Mean             float64 `json:"mean"`
	StdDev           float64 `json:"std_dev"`
	Threshold        float64 `json:"threshold"`
	DeviationPercent float64 `json:"deviation_percent"`
	Severity         string  `json:"severity"`
	Reason           string  `json:"reason"`
}

const (
	minHistory    = 3
	sigmaFactor   = 2.0
	ratioFactor   = 1.5
	absoluteLimit = 1400.0
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func Handler(ctx context.Context, event events.DynamoDBEvent) error {
	fmt.Printf("Processing %d records\n", len(event.Records))

	for _, record := range event.Records {
		if record.EventName != "INSERT" {
			continue
		}

		p, err := parsePrediction(record.Change.NewImage)
		if err != nil {
			fmt.Printf("Skipping record %s: %v\n", record.EventID, err)
			continue
		}

		history, err := recentPredictions(ctx, p.Room, time.Unix(p.CreatedAt, 0).Add(-24*time.Hour), p.CreatedAt)
		if err != nil {
			fmt.Printf("Error fetching history for room %s: %v\n", p.Room, err)
			continue
		}

		result := detectSpike(p.Features["co2"], co2Values(history))
		if !result.IsSpike {
			continue
		}
		fmt.Printf("CO2 spike in room %s: %+v\n", p.Room, result)

		if err := storeAlert(ctx, p, result); err != nil {
			fmt.Printf("Error storing alert: %v\n", err)
		}
		if err := sendAlert(ctx, p, result); err != nil {
			fmt.Printf("Error sending SNS notification: %v\n", err)
		}
	}

	return nil
}

func parsePrediction(image map[string]events.DynamoDBAttributeValue) (*Prediction, error) {
	p := &Prediction{Features: map[string]float64{}}

	if v, ok := image["room"]; ok && v.DataType() == events.DataTypeString {
		p.Room = v.String()
	}
	if v, ok := image["predictionId"]; ok && v.DataType() == events.DataTypeString {
		p.PredictionID = v.String()
	}
	if v, ok := image["recommendation"]; ok && v.DataType() == events.DataTypeString {
		p.Recommendation = v.String()
	}
	if v, ok := image["createdAt"]; ok && v.DataType() == events.DataTypeNumber {
		ts, err := strconv.ParseInt(v.Number(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad createdAt: %w", err)
		}
		p.CreatedAt = ts
	}
	if v, ok := image["features"]; ok && v.DataType() == events.DataTypeMap {
		for name, f := range v.Map() {
			if f.DataType() != events.DataTypeNumber {
				continue
			}
			if val, err := strconv.ParseFloat(f.Number(), 64); err == nil {
				p.Features[name] = val
			}
		}
	}

	if p.Room == "" {
		return nil, fmt.Errorf("missing room")
	}
	if _, ok := p.Features["co2"]; !ok {
		return nil, fmt.Errorf("no co2 feature")
	}
	return p, nil
}

func recentPredictions(ctx context.Context, room string, since time.Time, before int64) ([]Prediction, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(predictionTable),
		KeyConditionExpression: aws.String("room = :room AND createdAt BETWEEN :start AND :end"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":room":  &types.AttributeValueMemberS{Value: room},
			":start": &types.AttributeValueMemberN{Value: strconv.FormatInt(since.Unix(), 10)},
			":end":   &types.AttributeValueMemberN{Value: strconv.FormatInt(before-1, 10)},
		},
		Limit: aws.Int32(200),
	}

	result, err := dynamoClient.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query DynamoDB: %w", err)
	}

	var out []Prediction
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal predictions: %w", err)
	}
	return out, nil
}

func co2Values(history []Prediction) []float64 {
	values := make([]float64, 0, len(history))
	for _, h := range history {
		if v, ok := h.Features["co2"]; ok {
			values = append(values, v)
		}
	}
	return values
}

// detectSpike flags co2 when it is both above mean+2σ of the history (or 50%
// above its mean) and above the absolute comfort limit.
func detectSpike(co2 float64, history []float64) SpikeResult {
	if len(history) < minHistory {
		return SpikeResult{CO2: co2, Reason: "Insufficient historical data"}
	}

	points := make([]aggregator.Point, len(history))
	for i, v := range history {
		points[i] = aggregator.Point{Value: v}
	}
	mean := aggregator.Average(points)

	var varianceSum float64
	for _, v := range history {
		varianceSum += (v - mean) * (v - mean)
	}
	stdDev := math.Sqrt(varianceSum / float64(len(history)))

	threshold := mean + sigmaFactor*stdDev
	var deviationPercent float64
	if mean > 0 {
		deviationPercent = (co2 - mean) / mean * 100
	}

	isSpike := (co2 > threshold || co2 > mean*ratioFactor) && co2 >= absoluteLimit

	result := SpikeResult{
		IsSpike:          isSpike,
		CO2:              co2,
		Mean:             mean,
		StdDev:           stdDev,
		Threshold:        threshold,
		DeviationPercent: deviationPercent,
		Severity:         severity(co2),
		Reason:           "Normal",
	}
	if isSpike {
		result.Reason = fmt.Sprintf("CO2 %.1f%% above 24h average", deviationPercent)
	}
	return result
}

func severity(co2 float64) string {
	switch {
	case co2 >= 2500:
		return "critical"
	case co2 >= 2000:
		return "high"
	case co2 >= absoluteLimit:
		return "medium"
	default:
		return "low"
	}
}

func storeAlert(ctx context.Context, p *Prediction, r SpikeResult) error {
	now := time.Now()
	alert := Alert{
		AlertID:      fmt.Sprintf("alert-%s-%d", p.Room, now.UnixNano()),
		Room:         p.Room,
		Timestamp:    now.Unix(),
		Severity:     r.Severity,
		Type:         "co2_spike",
		Message:      fmt.Sprintf("CO2 at %.0f ppm (%.1f%% above average)", r.CO2, r.DeviationPercent),
		PredictionID: p.PredictionID,
		Metadata: map[string]float64{
			"co2":               r.CO2,
			"average_co2":       r.Mean,
			"deviation_percent": r.DeviationPercent,
		},
	}

	item, err := attributevalue.MarshalMap(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	_, err = dynamoClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(alertTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

func sendAlert(ctx context.Context, p *Prediction, r SpikeResult) error {
	if topicArn == "" {
		fmt.Println("SNS_TOPIC_ARN not configured, skipping notification")
		return nil
	}

	subject := fmt.Sprintf("[%s] CO2 spike - room %s", r.Severity, p.Room)
	message := fmt.Sprintf(`
CO2 Spike Detected

Room: %s
Severity: %s
Current recommendation: %s

CO2: %.0f ppm
24h average: %.0f ppm
Deviation: %.1f%%
Threshold: %.0f ppm
Time: %s

Open the windows or increase ventilation.
`,
		p.Room,
		r.Severity,
		p.Recommendation,
		r.CO2,
		r.Mean,
		r.DeviationPercent,
		r.Threshold,
		time.Unix(p.CreatedAt, 0).UTC().Format(time.RFC3339),
	)

	result, err := snsClient.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(topicArn),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to SNS: %w", err)
	}

	fmt.Printf("SNS notification sent: %s\n", aws.ToString(result.MessageId))
	return nil
}

func main() {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(os.Getenv("AWS_REGION")))
	if err != nil {
		panic(fmt.Sprintf("unable to load SDK config: %v", err))
	}
	dynamoClient = dynamodb.NewFromConfig(cfg)
	snsClient = sns.NewFromConfig(cfg)
	topicArn = os.Getenv("SNS_TOPIC_ARN")

	lambda.Start(Handler)
}
