package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/ANIKETSHETTY47/energy-grid-analytics-go/aggregator"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Builds a daily air-quality summary for one room from the stored
// predictions, keeps it in DynamoDB and uploads a JSON report to S3.

var (
	dynamoClient    *dynamodb.Client
	s3Client        *s3.Client
	s3Bucket        string
	predictionTable = envOr("PREDICTION_TABLE", "VentilationPredictions")
	summaryTable    = envOr("SUMMARY_TABLE", "AirQualitySummaries")
)

const (
	co2Limit     = 1000.0
	movingWindow = 12
)

type Prediction struct {
	Room           string             `dynamodbav:"room"`
	CreatedAt      int64              `dynamodbav:"createdAt"`
	Recommendation string             `dynamodbav:"recommendation"`
	Features       map[string]float64 `dynamodbav:"features"`
}

type MetricStats struct {
	Count   int     `json:"count" dynamodbav:"count"`
	Average float64 `json:"average" dynamodbav:"average"`
	Min     float64 `json:"min" dynamodbav:"min"`
	Max     float64 `json:"max" dynamodbav:"max"`
}

type HourlyData struct {
	Count  int     `json:"count" dynamodbav:"count"`
	AvgCO2 float64 `json:"avg_co2" dynamodbav:"avgCo2"`
	MaxCO2 float64 `json:"max_co2" dynamodbav:"maxCo2"`
	total  float64
}

type DailySummary struct {
	Room            string                 `json:"room" dynamodbav:"room"`
	Date            string                 `json:"date" dynamodbav:"date"`
	PredictionCount int                    `json:"prediction_count" dynamodbav:"predictionCount"`
	Metrics         map[string]MetricStats `json:"metrics" dynamodbav:"metrics"`
	CO2MovingAvg    []float64              `json:"co2_moving_average" dynamodbav:"-"`
	HighCO2Share    float64                `json:"high_co2_share" dynamodbav:"highCo2Share"`
	OpenShare       float64                `json:"open_share" dynamodbav:"openShare"`
	PeakHour        string                 `json:"peak_hour" dynamodbav:"peakHour"`
	HourlyData      map[string]HourlyData  `json:"hourly_data" dynamodbav:"hourlyData"`
	CreatedAt       int64                  `json:"created_at" dynamodbav:"createdAt"`
}

type LambdaEvent struct {
	Date string `json:"date"`
	Room string `json:"room"`
}

type LambdaResponse struct {
	StatusCode int                    `json:"statusCode"`
	Body       map[string]interface{} `json:"body"`
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func Handler(ctx context.Context, event LambdaEvent) (LambdaResponse, error) {
	date := event.Date
	if date == "" {
		date = time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	}
	room := event.Room
	if room == "" {
		room = envOr("ROOM", "2.09")
	}
	fmt.Printf("Air quality report started for room %s, date %s\n", room, date)

	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return LambdaResponse{
			StatusCode: 400,
			Body:       map[string]interface{}{"error": "date must be YYYY-MM-DD"},
		}, nil
	}

	predictions, err := predictionsForDay(ctx, room, day)
	if err != nil {
		return LambdaResponse{
			StatusCode: 500,
			Body:       map[string]interface{}{"error": err.Error()},
		}, err
	}
	if len(predictions) == 0 {
		return LambdaResponse{
			StatusCode: 200,
			Body:       map[string]interface{}{"message": "No data to process"},
		}, nil
	}

	summary := summarize(room, date, predictions)

	if err := storeSummary(ctx, summary); err != nil {
		fmt.Printf("Error storing summary: %v\n", err)
	}

	reportURL, err := uploadReport(ctx, summary)
	if err != nil {
		fmt.Printf("Error uploading report: %v\n", err)
	}

	return LambdaResponse{
		StatusCode: 200,
		Body: map[string]interface{}{
			"message":    "Air quality report processed",
			"date":       date,
			"summary":    summary,
			"report_url": reportURL,
		},
	}, nil
}

func predictionsForDay(ctx context.Context, room string, day time.Time) ([]Prediction, error) {
	start := day.Unix()
	end := day.Add(24*time.Hour).Unix() - 1

	input := &dynamodb.QueryInput{
		TableName:              aws.String(predictionTable),
		KeyConditionExpression: aws.String("room = :room AND createdAt BETWEEN :start AND :end"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":room":  &types.AttributeValueMemberS{Value: room},
			":start": &types.AttributeValueMemberN{Value: strconv.FormatInt(start, 10)},
			":end":   &types.AttributeValueMemberN{Value: strconv.FormatInt(end, 10)},
		},
	}

	var out []Prediction
	paginator := dynamodb.NewQueryPaginator(dynamoClient, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query DynamoDB: %w", err)
		}
		var batch []Prediction
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("failed to unmarshal predictions: %w", err)
		}
		out = append(out, batch...)
	}
	return out, nil
}

func summarize(room, date string, predictions []Prediction) DailySummary {
	sort.Slice(predictions, func(i, j int) bool { return predictions[i].CreatedAt < predictions[j].CreatedAt })

	series := map[string][]aggregator.Point{}
	hourly := map[string]HourlyData{}
	var opens, highCO2 int

	for _, p := range predictions {
		at := time.Unix(p.CreatedAt, 0).UTC()
		for name, v := range p.Features {
			series[name] = append(series[name], aggregator.Point{Value: v, Timestamp: at})
		}
		if p.Recommendation == "open" {
			opens++
		}
		co2, ok := p.Features["co2"]
		if !ok {
			continue
		}
		if co2 > co2Limit {
			highCO2++
		}
		hour := at.Format("15")
		h := hourly[hour]
		h.Count++
		h.total += co2
		if co2 > h.MaxCO2 {
			h.MaxCO2 = co2
		}
		hourly[hour] = h
	}

	peakHour, peakAvg := "", -1.0
	for hour, h := range hourly {
		h.AvgCO2 = round2(h.total / float64(h.Count))
		hourly[hour] = h
		if h.AvgCO2 > peakAvg || (h.AvgCO2 == peakAvg && hour < peakHour) {
			peakHour, peakAvg = hour, h.AvgCO2
		}
	}

	metrics := make(map[string]MetricStats, len(series))
	for name, points := range series {
		metrics[name] = stats(points)
	}

	n := float64(len(predictions))
	summary := DailySummary{
		Room:            room,
		Date:            date,
		PredictionCount: len(predictions),
		Metrics:         metrics,
		HighCO2Share:    round2(float64(highCO2) / n),
		OpenShare:       round2(float64(opens) / n),
		PeakHour:        peakHour,
		HourlyData:      hourly,
		CreatedAt:       time.Now().Unix(),
	}
	if co2 := series["co2"]; len(co2) >= movingWindow {
		summary.CO2MovingAvg = aggregator.MovingAverage(co2, movingWindow)
	}
	return summary
}

func stats(points []aggregator.Point) MetricStats {
	min, max := math.MaxFloat64, -math.MaxFloat64
	for _, p := range points {
		min = math.Min(min, p.Value)
		max = math.Max(max, p.Value)
	}
	return MetricStats{
		Count:   len(points),
		Average: round2(aggregator.Average(points)),
		Min:     min,
		Max:     max,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func storeSummary(ctx context.Context, summary DailySummary) error {
	item, err := attributevalue.MarshalMap(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	_, err = dynamoClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(summaryTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

func uploadReport(ctx context.Context, summary DailySummary) (string, error) {
	report := map[string]interface{}{
		"title":           fmt.Sprintf("Daily Air Quality Report - room %s", summary.Room),
		"date":            summary.Date,
		"generatedAt":     time.Now().Format(time.RFC3339),
		"summary":         summary,
		"recommendations": recommendations(summary),
	}

	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	key := fmt.Sprintf("reports/%s/%s-air-quality.json", summary.Room, summary.Date)
	_, err = s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s3Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"room":        summary.Room,
			"report-date": summary.Date,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s3Bucket, key), nil
}

func recommendations(s DailySummary) []map[string]string {
	out := []map[string]string{}

	if s.HighCO2Share > 0.25 {
		out = append(out, map[string]string{
			"priority": "high",
			"category": "co2",
			"message":  fmt.Sprintf("CO2 exceeded %.0f ppm in %.0f%% of predictions. Ventilate more often.", co2Limit, s.HighCO2Share*100),
		})
	}
	if h, ok := s.Metrics["humidity"]; ok && h.Average > 60 {
		out = append(out, map[string]string{
			"priority": "medium",
			"category": "humidity",
			"message":  fmt.Sprintf("Average humidity %.1f%% is high. Check for moisture sources.", h.Average),
		})
	}
	if t, ok := s.Metrics["temperature"]; ok && t.Average > 26 {
		out = append(out, map[string]string{
			"priority": "low",
			"category": "temperature",
			"message":  fmt.Sprintf("Average temperature %.1f°C. Prefer ventilating in the cooler morning hours.", t.Average),
		})
	}
	if s.PeakHour != "" {
		out = append(out, map[string]string{
			"priority": "low",
			"category": "schedule",
			"message":  fmt.Sprintf("CO2 peaks around %s:00. Schedule a ventilation break before then.", s.PeakHour),
		})
	}
	return out
}

func main() {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(os.Getenv("AWS_REGION")))
	if err != nil {
		panic(fmt.Sprintf("unable to load SDK config: %v", err))
	}
	dynamoClient = dynamodb.NewFromConfig(cfg)
	s3Client = s3.NewFromConfig(cfg)
	s3Bucket = envOr("S3_BUCKET", "smart-ventilation-reports")

	lambda.Start(Handler)
}
