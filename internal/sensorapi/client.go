package sensorapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/config"
	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/domain"
)

var ErrUnexpectedStatus = errors.New("unexpected api status")

// StatusError carries the status and body of a non-200 response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api responded %d: %s", e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool { return target == ErrUnexpectedStatus }

// Client reads sensor rows from, and posts feedback to, the remote sensor API.
type Client struct {
	baseURL     string
	readKey     string
	postKey     string
	contentType string
	http        *http.Client
}

func New(creds config.APICredentials) *Client {
	ct := creds.ContentType
	if ct == "" {
		ct = "application/json"
	}
	return &Client{
		baseURL:     strings.TrimRight(creds.BaseURL, "/"),
		readKey:     creds.ReadKey,
		postKey:     creds.PostKey,
		contentType: ct,
		http:        &http.Client{Timeout: 10 * time.Second},
	}
}

type reading struct {
	Time        apiTime  `json:"time"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	CO2         *float64 `json:"co2"`
	TVOC        *float64 `json:"tvoc"`
}

// Readings fetches every row. The API answers with an array of arrays which is flattened.
func (c *Client) Readings(ctx context.Context) ([]domain.SensorReading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", c.readKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var pages [][]reading
	if err := json.NewDecoder(resp.Body).Decode(&pages); err != nil {
		return nil, fmt.Errorf("decode readings: %w", err)
	}
	var out []domain.SensorReading
	for _, page := range pages {
		for _, r := range page {
			out = append(out, domain.SensorReading{
				Timestamp:   time.Time(r.Time),
				Temperature: r.Temperature,
				Humidity:    r.Humidity,
				CO2:         r.CO2,
				TVOC:        r.TVOC,
			})
		}
	}
	return out, nil
}

// LatestSensorData returns the row with the greatest time, or nil if the API has none.
func (c *Client) LatestSensorData(ctx context.Context) (*domain.SensorReading, error) {
	rows, err := c.Readings(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	latest := rows[0]
	for _, r := range rows[1:] {
		if r.Timestamp.After(latest.Timestamp) {
			latest = r
		}
	}
	return &latest, nil
}

func (c *Client) SensorDataSince(ctx context.Context, since time.Time) ([]domain.SensorReading, error) {
	rows, err := c.Readings(ctx)
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, r := range rows {
		if !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// feedbackTimeLayout is the minute-resolution form the API stores feedback under.
const feedbackTimeLayout = "2006-01-02 15:04"

type feedbackPayload struct {
	Temperature        float64 `json:"temperature"`
	Humidity           float64 `json:"humidity"`
	CO2                float64 `json:"co2"`
	OutdoorTemperature float64 `json:"outdoor_temperature"`
	AvgTime            float64 `json:"avg_time"`
	Timestamp          string  `json:"timestamp"`
	AccuratePrediction int     `json:"accurate_prediction"`
}

// SubmitFeedback posts the feedback record with the write key.
func (c *Client) SubmitFeedback(ctx context.Context, fb domain.FeedbackRecord) error {
	payload := feedbackPayload{
		Temperature:        fb.Temperature,
		Humidity:           fb.Humidity,
		CO2:                fb.CO2,
		OutdoorTemperature: fb.OutdoorTemperature,
		AvgTime:            fb.AvgTime,
		AccuratePrediction: fb.AccuratePrediction,
	}
	if !fb.Timestamp.IsZero() {
		payload.Timestamp = fb.Timestamp.Format(feedbackTimeLayout)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("X-Api-Key", c.postKey)
	req.Header.Set("Content-Type", c.contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// apiTime accepts RFC 3339 as well as the zone-less ISO forms the API emits.
type apiTime time.Time

var apiTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
}

func (t *apiTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for _, layout := range apiTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = apiTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("unrecognised time %q", s)
}
