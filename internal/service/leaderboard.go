package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/aggregator"
	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/domain"
)

// TimestampLayout is how leaderboard timestamps travel in sessions and URLs.
const TimestampLayout = "2006-01-02 15:04"

type LeaderboardService struct {
	buf   *aggregator.Buffer
	store ClimateStore
	loc   *time.Location
	now   func() time.Time
}

// Snapshot is the "before" side of a comparison.
type Snapshot struct {
	PredictionID   string               `json:"prediction_id"`
	Since          string               `json:"since"`
	Recommendation string               `json:"recommendation"`
	Current        domain.WindowAverage `json:"current"`
}

// Current averages the classroom readings from one minute before the latest
// prediction's newest point.
func (s *LeaderboardService) Current(ctx context.Context) (Snapshot, error) {
	pred, err := s.buf.Latest()
	if err != nil {
		return Snapshot{}, err
	}
	since := pred.LastPointTime.In(s.loc).Truncate(time.Minute).Add(-time.Minute)
	avg, err := s.store.AverageSince(ctx, since)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		PredictionID:   pred.ID,
		Since:          since.Format(TimestampLayout),
		Recommendation: pred.Recommendation(),
		Current:        avg,
	}, nil
}

// Future averages the classroom readings newer than ts (TimestampLayout).
func (s *LeaderboardService) Future(ctx context.Context, ts string) (domain.WindowAverage, error) {
	since, err := s.ParseTimestamp(ts)
	if err != nil {
		return domain.WindowAverage{}, err
	}
	return s.store.AverageSince(ctx, since)
}

func (s *LeaderboardService) ParseTimestamp(ts string) (time.Time, error) {
	t, err := time.ParseInLocation(TimestampLayout, ts, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", ts, err)
	}
	return t, nil
}

// Compare records the percentage change between two windows with the decision taken.
func (s *LeaderboardService) Compare(ctx context.Context, current, future domain.WindowAverage, decision string) (domain.AnalysisRecord, error) {
	rec := domain.AnalysisRecord{
		Timestamp:          s.now().In(s.loc),
		CurrentCO2:         current.CO2,
		FutureCO2:          future.CO2,
		CO2Change:          PercentChange(current.CO2, future.CO2),
		CurrentTemperature: current.Temperature,
		FutureTemperature:  future.Temperature,
		TemperatureChange:  PercentChange(current.Temperature, future.Temperature),
		CurrentHumidity:    current.Humidity,
		FutureHumidity:     future.Humidity,
		HumidityChange:     PercentChange(current.Humidity, future.Humidity),
		Decision:           decision,
	}
	if err := s.store.SaveAnalysis(ctx, rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// PercentChange is (to-from)/from*100 rounded to two decimals, nil when undefined.
func PercentChange(from, to *float64) *float64 {
	if from == nil || to == nil || *from == 0 {
		return nil
	}
	v := math.Round((*to-*from) / *from * 100 * 100) / 100
	return &v
}
