// Package archive keeps a long-term copy of climate readings and predictions
// in ClickHouse.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/domain"
)

type execer interface {
	Exec(ctx context.Context, query string, args ...any) error
}

type Store struct {
	conn  execer
	close func() error
	room  string
}

type Options struct {
	Addr     string
	Database string
	Username string
	Password string
	Room     string
}

// Open connects, pings and creates the tables when missing.
func Open(ctx context.Context, opts Options) (*Store, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	log.Info().Str("addr", opts.Addr).Msg("connected to ClickHouse")

	s := newStore(conn, opts.Room)
	if err := s.InitSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func newStore(conn driver.Conn, room string) *Store {
	return &Store{conn: conn, close: conn.Close, room: room}
}

func (s *Store) InitSchema(ctx context.Context) error {
	for _, stmt := range AllTables() {
		if err := s.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

func (s *Store) SaveClimateReading(ctx context.Context, r domain.ClimateReading) error {
	room := r.Room
	if room == "" {
		room = s.room
	}
	err := s.conn.Exec(ctx, `
		INSERT INTO climate_readings (timestamp, room, device_id, co2, temperature, humidity)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.Timestamp, room, r.DeviceID, r.CO2, r.Temperature, r.Humidity,
	)
	if err != nil {
		return fmt.Errorf("failed to insert climate reading: %w", err)
	}
	return nil
}

func (s *Store) PublishPrediction(ctx context.Context, p domain.Prediction) error {
	err := s.conn.Exec(ctx, `
		INSERT INTO ventilation_predictions (created_at, room, prediction_id, recommendation, points, predictions, features)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.CreatedAt, s.room, p.ID, p.Recommendation(), uint32(p.Points),
		map[string]float64(p.Values), map[string]float64(p.Features),
	)
	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}
