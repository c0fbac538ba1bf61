package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/domain"
)

// PredictionSink receives every new prediction.
type PredictionSink interface {
	PublishPrediction(ctx context.Context, p domain.Prediction) error
}

// Runner flushes the buffer on one schedule and clears it on another.
type Runner struct {
	buf          *Buffer
	predictEvery time.Duration
	clearEvery   time.Duration
	sinkTimeout  time.Duration
	sinks        []PredictionSink
}

func NewRunner(buf *Buffer, predictEvery, clearEvery time.Duration, sinks ...PredictionSink) *Runner {
	return &Runner{
		buf:          buf,
		predictEvery: predictEvery,
		clearEvery:   clearEvery,
		sinkTimeout:  10 * time.Second,
		sinks:        sinks,
	}
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	log.Info().
		Dur("predict_every", r.predictEvery).
		Dur("clear_every", r.clearEvery).
		Int("sinks", len(r.sinks)).
		Msg("aggregator started")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.every(ctx, r.predictEvery, func() { r.FlushOnce(ctx) })
	}()
	go func() {
		defer wg.Done()
		r.every(ctx, r.clearEvery, func() {
			r.buf.Clear()
			log.Info().Msg("buffered points and prediction cleared")
		})
	}()
	wg.Wait()
	log.Info().Msg("aggregator stopped")
}

func (r *Runner) every(ctx context.Context, d time.Duration, fn func()) {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}

// FlushOnce runs one prediction cycle and fans the result out to the sinks.
func (r *Runner) FlushOnce(ctx context.Context) (*domain.Prediction, error) {
	pred, err := r.buf.Flush(ctx)
	if errors.Is(err, ErrNoData) {
		log.Info().Dur("window", r.predictEvery).Msg("no data collected in window")
		return nil, err
	}
	if err != nil {
		log.Error().Err(err).Msg("prediction cycle failed")
		return nil, err
	}
	log.Info().
		Str("prediction_id", pred.ID).
		Int("points", pred.Points).
		Interface("predictions", pred.Values).
		Msg("prediction updated")

	for _, s := range r.sinks {
		sctx, cancel := context.WithTimeout(ctx, r.sinkTimeout)
		if err := s.PublishPrediction(sctx, *pred); err != nil {
			log.Error().Err(err).Str("sink", fmt.Sprintf("%T", s)).Msg("publish prediction failed")
		}
		cancel()
	}
	return pred, nil
}
