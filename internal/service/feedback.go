package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/aggregator"
	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/domain"
)

var ErrInvalidFeedback = errors.New("accurate_prediction must be 0 or 1")

type FeedbackService struct {
	buf  *aggregator.Buffer
	sink FeedbackSink
}

// Pending returns the prediction awaiting feedback.
func (s *FeedbackService) Pending() (*domain.Prediction, error) {
	return s.buf.Latest()
}

// Submit sends the verdict on the latest prediction. The prediction is
// cleared only when the sink accepted the record.
func (s *FeedbackService) Submit(ctx context.Context, accurate int) (domain.FeedbackRecord, error) {
	if accurate != 0 && accurate != 1 {
		return domain.FeedbackRecord{}, ErrInvalidFeedback
	}
	pred, err := s.buf.Latest()
	if err != nil {
		return domain.FeedbackRecord{}, err
	}

	fb := domain.FeedbackRecord{
		PredictionID:       pred.ID,
		Temperature:        pred.Features[domain.FieldTemperature],
		Humidity:           pred.Features[domain.FieldHumidity],
		CO2:                pred.Features[domain.FieldCO2],
		OutdoorTemperature: pred.Features[domain.FieldAmbientTemp],
		AvgTime:            pred.Features[domain.FieldAvgTime],
		Timestamp:          pred.LastPointTime,
		AccuratePrediction: accurate,
	}
	if err := s.sink.SubmitFeedback(ctx, fb); err != nil {
		return fb, err
	}

	s.buf.ClearPrediction(pred.ID)
	log.Info().Str("prediction_id", pred.ID).Int("accurate_prediction", accurate).Msg("feedback submitted")
	return fb, nil
}
