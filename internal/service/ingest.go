package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/aggregator"
	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/domain"
)

type IngestService struct {
	buf     *aggregator.Buffer
	sinks   []ReadingSink
	room    string
	timeout time.Duration
}

// Run consumes fragments until ctx is done or the queue is closed.
func (s *IngestService) Run(ctx context.Context, queue <-chan domain.Fragment) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-queue:
			if !ok {
				return
			}
			s.Handle(ctx, f)
		}
	}
}

// Handle persists climate fragments and merges the fragment into the buffer.
func (s *IngestService) Handle(ctx context.Context, f domain.Fragment) {
	if f.Has(domain.FieldCO2, domain.FieldTemperature, domain.FieldHumidity) {
		s.persist(ctx, domain.ClimateReading{
			Timestamp:   f.Time,
			CO2:         f.Fields[domain.FieldCO2],
			Temperature: f.Fields[domain.FieldTemperature],
			Humidity:    f.Fields[domain.FieldHumidity],
			Room:        s.room,
			DeviceID:    f.DeviceID,
		})
	}
	if p, ok := s.buf.Add(f); ok {
		log.Debug().
			Time("time", p.Time).
			Float64("co2", p.CO2).
			Float64("temperature", p.Temperature).
			Msg("point buffered")
	}
}

func (s *IngestService) persist(ctx context.Context, r domain.ClimateReading) {
	for _, sink := range s.sinks {
		sctx, cancel := context.WithTimeout(ctx, s.timeout)
		if err := sink.SaveClimateReading(sctx, r); err != nil {
			log.Error().Err(err).Str("sink", fmt.Sprintf("%T", sink)).Msg("failed to persist climate reading")
		}
		cancel()
	}
}
