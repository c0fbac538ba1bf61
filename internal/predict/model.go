package predict

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/domain"
)

var ErrMissingFeature = errors.New("missing feature")

// Model is a pretrained estimator. Features is the training-time column order;
// Predict expects a row in exactly that order.
type Model interface {
	Name() string
	Features() []string
	Predict(ctx context.Context, row []float64) (float64, error)
}

// Reindex lays the feature vector out in the given column order.
func Reindex(fv domain.FeatureVector, order []string) ([]float64, error) {
	row := make([]float64, len(order))
	for i, name := range order {
		v, ok := fv[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingFeature, name)
		}
		row[i] = v
	}
	return row, nil
}

// Registry holds the loaded models and runs them against a feature vector.
type Registry struct {
	models []Model
}

func NewRegistry(models ...Model) *Registry {
	return &Registry{models: models}
}

func (r *Registry) Add(m Model) { r.models = append(r.models, m) }

func (r *Registry) Len() int { return len(r.models) }

func (r *Registry) Names() []string {
	out := make([]string, len(r.models))
	for i, m := range r.models {
		out[i] = m.Name()
	}
	return out
}

// PredictAll reindexes the vector for every model before calling it. A model
// that fails is logged and skipped; the error is returned only when no model
// produced a value.
func (r *Registry) PredictAll(ctx context.Context, fv domain.FeatureVector) (map[string]float64, error) {
	out := make(map[string]float64, len(r.models))
	var errs []error
	for _, m := range r.models {
		row, err := Reindex(fv, m.Features())
		if err != nil {
			log.Error().Err(err).Str("model", m.Name()).Msg("feature reindex failed")
			errs = append(errs, fmt.Errorf("%s: %w", m.Name(), err))
			continue
		}
		v, err := m.Predict(ctx, row)
		if err != nil {
			log.Error().Err(err).Str("model", m.Name()).Msg("prediction failed")
			errs = append(errs, fmt.Errorf("%s: %w", m.Name(), err))
			continue
		}
		out[m.Name()] = v
	}
	if len(out) == 0 {
		if len(errs) == 0 {
			return nil, errors.New("no models loaded")
		}
		return nil, errors.Join(errs...)
	}
	return out, nil
}
