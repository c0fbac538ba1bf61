package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/domain"
)

// ErrNoSensorData is returned when feedback cannot be bound to any SensorData row.
var ErrNoSensorData = errors.New("no sensor data to attach feedback to")

const (
	latestSensorDataSQL = `SELECT "timestamp", temperature, humidity, co2_values, tvoc_values
		FROM public."SensorData" ORDER BY "timestamp" DESC LIMIT 1`

	sensorDataSinceSQL = `SELECT "timestamp", temperature, humidity, co2_values, tvoc_values
		FROM public."SensorData" WHERE "timestamp" >= $1 ORDER BY "timestamp"`

	recordFeedbackSQL = `UPDATE public."SensorData" SET accurate_prediction = $1
		WHERE "timestamp" = (SELECT MAX("timestamp") FROM public."SensorData")`

	insertClimateSQL = `INSERT INTO classroom_environmental_data
		("timestamp", co2_values, temperature, humidity, classroom_number) VALUES ($1, $2, $3, $4, $5)`

	averageSinceSQL = `SELECT AVG(co2_values) AS co2_values, AVG(temperature) AS temperature, AVG(humidity) AS humidity
		FROM classroom_environmental_data WHERE "timestamp" > $1`

	insertAnalysisSQL = `INSERT INTO environmental_data_analysis (
		"timestamp", current_co2, future_co2, co2_change,
		current_temperature, future_temperature, temperature_change,
		current_humidity, future_humidity, humidity_change, decision
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
)

type Repos struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Repos { return &Repos{db: db} }

// LatestSensorData returns the newest SensorData row unchanged, or nil when the table is empty.
func (r *Repos) LatestSensorData(ctx context.Context) (*domain.SensorReading, error) {
	var out domain.SensorReading
	err := r.db.GetContext(ctx, &out, latestSensorDataSQL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest sensor data: %w", err)
	}
	return &out, nil
}

func (r *Repos) SensorDataSince(ctx context.Context, since time.Time) ([]domain.SensorReading, error) {
	var out []domain.SensorReading
	if err := r.db.SelectContext(ctx, &out, sensorDataSinceSQL, since); err != nil {
		return nil, fmt.Errorf("failed to query sensor data: %w", err)
	}
	return out, nil
}

// RecordFeedback marks the newest SensorData row with the user's verdict.
func (r *Repos) RecordFeedback(ctx context.Context, accurate int) (int64, error) {
	res, err := r.db.ExecContext(ctx, recordFeedbackSQL, accurate)
	if err != nil {
		return 0, fmt.Errorf("failed to record feedback: %w", err)
	}
	return res.RowsAffected()
}

// SubmitFeedback stores a feedback record through the SensorData UPDATE.
func (r *Repos) SubmitFeedback(ctx context.Context, fb domain.FeedbackRecord) error {
	n, err := r.RecordFeedback(ctx, fb.AccuratePrediction)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoSensorData
	}
	return nil
}

func (r *Repos) SaveClimateReading(ctx context.Context, rd domain.ClimateReading) error {
	_, err := r.db.ExecContext(ctx, insertClimateSQL, rd.Timestamp, rd.CO2, rd.Temperature, rd.Humidity, rd.Room)
	if err != nil {
		return fmt.Errorf("failed to insert climate reading: %w", err)
	}
	return nil
}

// AverageSince averages classroom readings newer than since. Fields are nil when no rows match.
func (r *Repos) AverageSince(ctx context.Context, since time.Time) (domain.WindowAverage, error) {
	var out domain.WindowAverage
	if err := r.db.GetContext(ctx, &out, averageSinceSQL, since); err != nil {
		return out, fmt.Errorf("failed to average climate readings: %w", err)
	}
	out.Timestamp = since.Format("2006-01-02 15:04")
	return out, nil
}

func (r *Repos) SaveAnalysis(ctx context.Context, a domain.AnalysisRecord) error {
	_, err := r.db.ExecContext(ctx, insertAnalysisSQL,
		a.Timestamp,
		a.CurrentCO2, a.FutureCO2, a.CO2Change,
		a.CurrentTemperature, a.FutureTemperature, a.TemperatureChange,
		a.CurrentHumidity, a.FutureHumidity, a.HumidityChange,
		a.Decision,
	)
	if err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}
