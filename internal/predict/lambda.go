package predict

import (
	"context"
	"encoding/json"
	"fmt"
)

// Invoker runs a remote function synchronously and returns its response payload.
type Invoker interface {
	Invoke(ctx context.Context, function string, payload []byte) ([]byte, error)
}

// LambdaModel delegates prediction to a remotely hosted estimator.
type LambdaModel struct {
	name     string
	function string
	features []string
	invoker  Invoker
}

type lambdaRequest struct {
	Model    string    `json:"model"`
	Features []string  `json:"features"`
	Row      []float64 `json:"row"`
}

type lambdaResponse struct {
	Prediction *float64 `json:"prediction"`
	Error      string   `json:"error,omitempty"`
}

func NewLambdaModel(name, function string, features []string, inv Invoker) *LambdaModel {
	return &LambdaModel{name: name, function: function, features: features, invoker: inv}
}

func (m *LambdaModel) Name() string       { return m.name }
func (m *LambdaModel) Features() []string { return m.features }

func (m *LambdaModel) Predict(ctx context.Context, row []float64) (float64, error) {
	payload, err := json.Marshal(lambdaRequest{Model: m.name, Features: m.features, Row: row})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal payload: %w", err)
	}
	out, err := m.invoker.Invoke(ctx, m.function, payload)
	if err != nil {
		return 0, err
	}
	var resp lambdaResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return 0, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.Error != "" {
		return 0, fmt.Errorf("remote model %s: %s", m.name, resp.Error)
	}
	if resp.Prediction == nil {
		return 0, fmt.Errorf("remote model %s returned no prediction", m.name)
	}
	return *resp.Prediction, nil
}
