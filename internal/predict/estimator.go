package predict

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/rs/zerolog/log"
)

// Estimator kinds understood by Load.
const (
	KindLogistic        = "logistic"
	KindLinear          = "linear"
	KindTree            = "tree"
	KindForest          = "forest"
	KindForestRegressor = "forest_regressor"
)

// Spec is the on-disk form of an exported estimator.
type Spec struct {
	Name         string    `json:"name"`
	Kind         string    `json:"kind"`
	Features     []string  `json:"features"`
	Coefficients []float64 `json:"coefficients,omitempty"`
	Intercept    float64   `json:"intercept,omitempty"`
	Threshold    *float64  `json:"threshold,omitempty"`
	Tree         *Node     `json:"tree,omitempty"`
	Trees        []*Node   `json:"trees,omitempty"`
}

// Node is a binary split: row[Feature] <= Threshold goes Left. Leaves carry Value.
type Node struct {
	Feature   int      `json:"feature"`
	Threshold float64  `json:"threshold"`
	Left      *Node    `json:"left,omitempty"`
	Right     *Node    `json:"right,omitempty"`
	Value     *float64 `json:"value,omitempty"`
}

type Estimator struct {
	spec Spec
}

// Load reads an estimator exported as JSON.
func Load(path string) (*Estimator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	var spec Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model %s: %w", path, err)
	}
	est, err := NewEstimator(spec)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	log.Info().Str("model", spec.Name).Str("kind", spec.Kind).Strs("features", spec.Features).Msg("model loaded")
	return est, nil
}

// LoadAll loads every file, failing on the first broken one.
func LoadAll(paths []string) ([]Model, error) {
	out := make([]Model, 0, len(paths))
	for _, p := range paths {
		m, err := Load(p)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func NewEstimator(spec Spec) (*Estimator, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if len(spec.Features) == 0 {
		return nil, fmt.Errorf("model %s has no features", spec.Name)
	}
	switch spec.Kind {
	case KindLogistic, KindLinear:
		if len(spec.Coefficients) != len(spec.Features) {
			return nil, fmt.Errorf("model %s: %d coefficients for %d features", spec.Name, len(spec.Coefficients), len(spec.Features))
		}
	case KindTree:
		if err := checkTree(spec.Tree, len(spec.Features)); err != nil {
			return nil, fmt.Errorf("model %s: %w", spec.Name, err)
		}
	case KindForest, KindForestRegressor:
		if len(spec.Trees) == 0 {
			return nil, fmt.Errorf("model %s: forest without trees", spec.Name)
		}
		for _, t := range spec.Trees {
			if err := checkTree(t, len(spec.Features)); err != nil {
				return nil, fmt.Errorf("model %s: %w", spec.Name, err)
			}
		}
	default:
		return nil, fmt.Errorf("model %s: unknown kind %q", spec.Name, spec.Kind)
	}
	return &Estimator{spec: spec}, nil
}

func checkTree(n *Node, width int) error {
	if n == nil {
		return fmt.Errorf("empty tree node")
	}
	if n.Value != nil {
		return nil
	}
	if n.Feature < 0 || n.Feature >= width {
		return fmt.Errorf("split on feature %d outside %d columns", n.Feature, width)
	}
	if err := checkTree(n.Left, width); err != nil {
		return err
	}
	return checkTree(n.Right, width)
}

func (e *Estimator) Name() string       { return e.spec.Name }
func (e *Estimator) Features() []string { return e.spec.Features }

func (e *Estimator) Predict(_ context.Context, row []float64) (float64, error) {
	if len(row) != len(e.spec.Features) {
		return 0, fmt.Errorf("model %s expects %d columns, got %d", e.spec.Name, len(e.spec.Features), len(row))
	}
	switch e.spec.Kind {
	case KindLogistic:
		p := sigmoid(e.linear(row))
		if p >= e.threshold(0.5) {
			return 1, nil
		}
		return 0, nil
	case KindLinear:
		return e.linear(row), nil
	case KindTree:
		return walk(e.spec.Tree, row), nil
	case KindForest:
		votes := 0.0
		for _, t := range e.spec.Trees {
			if walk(t, row) >= 0.5 {
				votes++
			}
		}
		if votes/float64(len(e.spec.Trees)) >= e.threshold(0.5) {
			return 1, nil
		}
		return 0, nil
	case KindForestRegressor:
		sum := 0.0
		for _, t := range e.spec.Trees {
			sum += walk(t, row)
		}
		return sum / float64(len(e.spec.Trees)), nil
	}
	return 0, fmt.Errorf("model %s: unknown kind %q", e.spec.Name, e.spec.Kind)
}

func (e *Estimator) linear(row []float64) float64 {
	score := e.spec.Intercept
	for i, c := range e.spec.Coefficients {
		score += c * row[i]
	}
	return score
}

func (e *Estimator) threshold(def float64) float64 {
	if e.spec.Threshold != nil {
		return *e.spec.Threshold
	}
	return def
}

func walk(n *Node, row []float64) float64 {
	for n.Value == nil {
		if row[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return *n.Value
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }
