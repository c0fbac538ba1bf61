package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/domain"
)

var trainingOrder = []string{"co2", "temperature", "humidity", "tvoc", "ambient_temp", "hour", "day_of_week", "month"}

type recordingModel struct {
	name     string
	features []string
	rows     [][]float64
	out      float64
	err      error
}

func (m *recordingModel) Name() string       { return m.name }
func (m *recordingModel) Features() []string { return m.features }
func (m *recordingModel) Predict(_ context.Context, row []float64) (float64, error) {
	m.rows = append(m.rows, row)
	return m.out, m.err
}

func sampleVector() domain.FeatureVector {
	return domain.FeatureVector{
		"co2": 800, "temperature": 22, "humidity": 45, "tvoc": 250, "ambient_temp": 11,
		"hour": 10, "day_of_week": 2, "month": 5, "avg_time": 1715000000,
	}
}

func TestReindexEnforcesTrainingOrder(t *testing.T) {
	row, err := Reindex(sampleVector(), trainingOrder)
	if err != nil {
		t.Fatalf("Reindex error: %v", err)
	}
	want := []float64{800, 22, 45, 250, 11, 10, 2, 5}
	for i := range want {
		if row[i] != want[i] {
			t.Fatalf("column %d (%s): got %v want %v", i, trainingOrder[i], row[i], want[i])
		}
	}

	swapped := []string{"co2", "temperature", "humidity", "ambient_temp", "tvoc", "hour", "day_of_week", "month"}
	other, _ := Reindex(sampleVector(), swapped)
	if other[3] == row[3] {
		t.Fatalf("swapped tvoc/ambient_temp order must produce a different row")
	}
}

func TestReindexMissingFeature(t *testing.T) {
	fv := sampleVector()
	delete(fv, "tvoc")
	if _, err := Reindex(fv, trainingOrder); !errors.Is(err, ErrMissingFeature) {
		t.Fatalf("expected ErrMissingFeature, got %v", err)
	}
}

func TestPredictAllReindexesPerModel(t *testing.T) {
	full := &recordingModel{name: "full", features: trainingOrder, out: 1}
	restricted := &recordingModel{name: "restricted", features: []string{"co2", "temperature"}, out: 0}
	reg := NewRegistry(full, restricted)

	got, err := reg.PredictAll(context.Background(), sampleVector())
	if err != nil {
		t.Fatalf("PredictAll error: %v", err)
	}
	if got["full"] != 1 || got["restricted"] != 0 {
		t.Fatalf("unexpected predictions %v", got)
	}
	if len(full.rows) != 1 || full.rows[0][3] != 250 || full.rows[0][4] != 11 {
		t.Fatalf("full model got %v", full.rows)
	}
	if len(restricted.rows) != 1 || len(restricted.rows[0]) != 2 || restricted.rows[0][0] != 800 {
		t.Fatalf("restricted model got %v", restricted.rows)
	}
}

func TestPredictAllSkipsFailingModel(t *testing.T) {
	bad := &recordingModel{name: "bad", features: []string{"co2"}, err: errors.New("boom")}
	good := &recordingModel{name: "good", features: []string{"co2"}, out: 1}
	got, err := NewRegistry(bad, good).PredictAll(context.Background(), sampleVector())
	if err != nil {
		t.Fatalf("PredictAll error: %v", err)
	}
	if _, ok := got["bad"]; ok || got["good"] != 1 {
		t.Fatalf("unexpected predictions %v", got)
	}

	if _, err := NewRegistry(bad).PredictAll(context.Background(), sampleVector()); err == nil {
		t.Fatalf("expected error when every model fails")
	}
}

func TestPredictAllLogsMissingFeature(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	drifted := &recordingModel{name: "Logistic Regression", features: []string{"co2", "tvoc"}, out: 1}
	ok := &recordingModel{name: "Random Forest", features: []string{"co2"}, out: 1}
	got, err := NewRegistry(drifted, ok).PredictAll(context.Background(), domain.FeatureVector{"co2": 600})
	if err != nil {
		t.Fatalf("PredictAll error: %v", err)
	}
	if _, present := got["Logistic Regression"]; present || got["Random Forest"] != 1 {
		t.Fatalf("unexpected predictions %v", got)
	}
	if len(drifted.rows) != 0 {
		t.Fatalf("model with a missing column must not be called")
	}

	out := buf.String()
	if !strings.Contains(out, "feature reindex failed") || !strings.Contains(out, `"model":"Logistic Regression"`) ||
		!strings.Contains(out, "tvoc") {
		t.Fatalf("missing reindex log line, got %q", out)
	}
}

func TestShippedModels(t *testing.T) {
	models, err := LoadAll([]string{"../../models/logistic_regression.json", "../../models/random_forest.json"})
	if err != nil {
		t.Fatalf("LoadAll error: %v", err)
	}
	reg := NewRegistry(models...)

	stuffy := domain.FeatureVector{
		"co2": 1500, "temperature": 25, "humidity": 50, "tvoc": 300, "ambient_temp": 15,
		"hour": 10, "day_of_week": 2, "month": 5,
	}
	fresh := domain.FeatureVector{
		"co2": 450, "temperature": 19, "humidity": 40, "tvoc": 100, "ambient_temp": 10,
		"hour": 10, "day_of_week": 2, "month": 5,
	}

	got, err := reg.PredictAll(context.Background(), stuffy)
	if err != nil {
		t.Fatalf("PredictAll error: %v", err)
	}
	if got["Logistic Regression"] != 1 || got["Random Forest"] != 1 {
		t.Fatalf("stuffy room should open windows: %v", got)
	}

	got, err = reg.PredictAll(context.Background(), fresh)
	if err != nil {
		t.Fatalf("PredictAll error: %v", err)
	}
	if got["Logistic Regression"] != 0 || got["Random Forest"] != 0 {
		t.Fatalf("fresh room should keep windows closed: %v", got)
	}
}

func TestLinearEstimatorReturnsDuration(t *testing.T) {
	est, err := NewEstimator(Spec{
		Name:         "Duration",
		Kind:         KindLinear,
		Features:     []string{"co2", "temperature"},
		Coefficients: []float64{0.01, 0.5},
		Intercept:    1,
	})
	if err != nil {
		t.Fatalf("NewEstimator error: %v", err)
	}
	got, err := est.Predict(context.Background(), []float64{1000, 20})
	if err != nil {
		t.Fatalf("Predict error: %v", err)
	}
	if got != 21 {
		t.Fatalf("expected 21, got %v", got)
	}
	if _, err := est.Predict(context.Background(), []float64{1000}); err == nil {
		t.Fatalf("expected width error")
	}
}

func TestNewEstimatorValidates(t *testing.T) {
	if _, err := NewEstimator(Spec{Name: "x", Kind: KindLogistic, Features: []string{"co2"}, Coefficients: []float64{1, 2}}); err == nil {
		t.Fatalf("expected coefficient mismatch error")
	}
	leaf := 1.0
	bad := &Node{Feature: 3, Threshold: 1, Left: &Node{Value: &leaf}, Right: &Node{Value: &leaf}}
	if _, err := NewEstimator(Spec{Name: "x", Kind: KindTree, Features: []string{"co2"}, Tree: bad}); err == nil {
		t.Fatalf("expected out of range split error")
	}
	if _, err := NewEstimator(Spec{Name: "x", Kind: "svm", Features: []string{"co2"}}); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

type stubInvoker struct {
	function string
	payload  []byte
	resp     []byte
}

func (s *stubInvoker) Invoke(_ context.Context, function string, payload []byte) ([]byte, error) {
	s.function = function
	s.payload = payload
	return s.resp, nil
}

func TestLambdaModelRoundTrip(t *testing.T) {
	inv := &stubInvoker{resp: []byte(`{"prediction": 1}`)}
	m := NewLambdaModel("Remote", "ventilation-inference", []string{"co2", "temperature"}, inv)

	got, err := m.Predict(context.Background(), []float64{900, 23})
	if err != nil {
		t.Fatalf("Predict error: %v", err)
	}
	if got != 1 || inv.function != "ventilation-inference" {
		t.Fatalf("unexpected result %v via %s", got, inv.function)
	}
	var req lambdaRequest
	if err := json.Unmarshal(inv.payload, &req); err != nil {
		t.Fatalf("payload decode: %v", err)
	}
	if req.Model != "Remote" || len(req.Row) != 2 || req.Row[0] != 900 {
		t.Fatalf("unexpected payload %+v", req)
	}

	inv.resp = []byte(`{"error": "model not found"}`)
	if _, err := m.Predict(context.Background(), []float64{900, 23}); err == nil {
		t.Fatalf("expected remote error")
	}
}
