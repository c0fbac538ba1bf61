package aggregator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/domain"
)

var (
	ErrNoData       = errors.New("no buffered points")
	ErrNoPrediction = errors.New("no prediction available")
)

// RequiredKeys must all be known before a point is materialized.
var RequiredKeys = []string{
	domain.FieldTime,
	domain.FieldHumidity,
	domain.FieldTemperature,
	domain.FieldCO2,
	domain.FieldTVOC,
	domain.FieldAmbientTemp,
}

// climateKeys anchor a point: only a fragment carrying all three emits one.
var climateKeys = []string{domain.FieldCO2, domain.FieldTemperature, domain.FieldHumidity}

type Predictor interface {
	PredictAll(ctx context.Context, fv domain.FeatureVector) (map[string]float64, error)
}

type Options struct {
	MaxPoints int
	Location  *time.Location
	Now       func() time.Time
}

// Buffer merges device fragments into points and holds the latest prediction.
// A single mutex guards the raw field values, the points and the prediction.
type Buffer struct {
	predictor Predictor
	maxPoints int
	loc       *time.Location
	now       func() time.Time

	mu         sync.Mutex
	latest     map[string]float64
	latestTime time.Time
	points     []domain.Point
	prediction *domain.Prediction
	generation uint64
}

func NewBuffer(p Predictor, opts Options) *Buffer {
	if opts.MaxPoints <= 0 {
		opts.MaxPoints = 2048
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Buffer{
		predictor: p,
		maxPoints: opts.MaxPoints,
		loc:       opts.Location,
		now:       opts.Now,
		latest:    map[string]float64{},
	}
}

// Add merges a fragment. It returns the materialized point when the fragment
// completes one.
func (b *Buffer) Add(f domain.Fragment) (domain.Point, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for k, v := range f.Fields {
		b.latest[k] = v
	}
	if f.Time.After(b.latestTime) {
		b.latestTime = f.Time
	}

	if !f.Has(climateKeys...) || !b.completeLocked() {
		return domain.Point{}, false
	}
	p := domain.Point{
		Time:        f.Time.In(b.loc),
		CO2:         b.latest[domain.FieldCO2],
		Temperature: b.latest[domain.FieldTemperature],
		Humidity:    b.latest[domain.FieldHumidity],
		TVOC:        b.latest[domain.FieldTVOC],
		AmbientTemp: b.latest[domain.FieldAmbientTemp],
	}
	b.points = append(b.points, p)
	if over := len(b.points) - b.maxPoints; over > 0 {
		b.points = append(b.points[:0:0], b.points[over:]...)
	}
	return p, true
}

func (b *Buffer) completeLocked() bool {
	if b.latestTime.IsZero() {
		return false
	}
	for _, k := range RequiredKeys {
		if k == domain.FieldTime {
			continue
		}
		if _, ok := b.latest[k]; !ok {
			return false
		}
	}
	return true
}

// Points returns a copy of the buffered points.
func (b *Buffer) Points() []domain.Point {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Point(nil), b.points...)
}

// LastPointTime is the time of the newest buffered point.
func (b *Buffer) LastPointTime() (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.points) == 0 {
		return time.Time{}, false
	}
	return b.points[len(b.points)-1].Time, true
}

// State is a consistent view of the buffer for display.
type State struct {
	Values     map[string]float64
	Time       time.Time
	Points     int
	Prediction *domain.Prediction
}

func (b *Buffer) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	vals := make(map[string]float64, len(b.latest))
	for k, v := range b.latest {
		vals[k] = v
	}
	return State{
		Values:     vals,
		Time:       b.latestTime,
		Points:     len(b.points),
		Prediction: b.prediction,
	}
}

// Latest returns the most recent prediction.
func (b *Buffer) Latest() (*domain.Prediction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.prediction == nil {
		return nil, ErrNoPrediction
	}
	return b.prediction, nil
}

// ClearPrediction drops the latest prediction if it is still the one with id.
func (b *Buffer) ClearPrediction(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.prediction == nil || b.prediction.ID != id {
		return false
	}
	b.prediction = nil
	return true
}

// Flush averages a snapshot of the points and runs the models on it. The
// models run without the lock held; the result is stored even if Clear ran
// in the meantime, since it was computed from data that existed.
func (b *Buffer) Flush(ctx context.Context) (*domain.Prediction, error) {
	b.mu.Lock()
	if len(b.points) == 0 {
		b.mu.Unlock()
		return nil, ErrNoData
	}
	snapshot := append([]domain.Point(nil), b.points...)
	gen := b.generation
	b.mu.Unlock()

	fv, err := Features(snapshot, b.loc)
	if err != nil {
		return nil, err
	}
	values, err := b.predictor.PredictAll(ctx, fv)
	if err != nil {
		return nil, err
	}

	pred := &domain.Prediction{
		ID:            uuid.NewString(),
		CreatedAt:     b.now(),
		LastPointTime: snapshot[len(snapshot)-1].Time,
		Points:        len(snapshot),
		Values:        values,
		Features:      fv,
	}

	b.mu.Lock()
	b.prediction = pred
	cleared := b.generation != gen
	b.mu.Unlock()

	if cleared {
		log.Debug().Str("prediction_id", pred.ID).Msg("buffer cleared while predicting; keeping result")
	}
	return pred, nil
}

// Clear empties the raw values, the points and the latest prediction.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest = map[string]float64{}
	b.latestTime = time.Time{}
	b.points = nil
	b.prediction = nil
	b.generation++
}
