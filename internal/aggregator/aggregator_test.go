package aggregator

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/domain"
)

type fixedPredictor struct {
	mu   sync.Mutex
	seen []domain.FeatureVector
	out  map[string]float64
}

func (p *fixedPredictor) PredictAll(_ context.Context, fv domain.FeatureVector) (map[string]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, fv)
	return p.out, nil
}

// blockingPredictor signals when it starts and waits for release before answering.
type blockingPredictor struct {
	started chan struct{}
	release chan struct{}
}

func (p *blockingPredictor) PredictAll(ctx context.Context, _ domain.FeatureVector) (map[string]float64, error) {
	close(p.started)
	select {
	case <-p.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return map[string]float64{"Logistic Regression": 1}, nil
}

var t0 = time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC) // a Monday

func climate(at time.Time, co2, temp, hum float64) domain.Fragment {
	return domain.Fragment{Time: at, Fields: map[string]float64{"co2": co2, "temperature": temp, "humidity": hum}}
}

func single(at time.Time, key string, v float64) domain.Fragment {
	return domain.Fragment{Time: at, Fields: map[string]float64{key: v}}
}

func TestMeanOfWindow(t *testing.T) {
	got := Mean([]map[string]float64{
		{"co2": 500, "temperature": 20},
		{"co2": 700, "temperature": 22},
	})
	if len(got) != 2 || got["co2"] != 600.0 || got["temperature"] != 21.0 {
		t.Fatalf("unexpected mean %v", got)
	}
}

func TestMeanSkipsMissingKeys(t *testing.T) {
	got := Mean([]map[string]float64{
		{"co2": 500, "tvoc": 100},
		{"co2": 700},
	})
	if got["tvoc"] != 100 || got["co2"] != 600 {
		t.Fatalf("unexpected mean %v", got)
	}
}

func TestFeaturesAddsTemporalColumns(t *testing.T) {
	pts := []domain.Point{
		{Time: t0, CO2: 500, Temperature: 20, Humidity: 40, TVOC: 100, AmbientTemp: 10},
		{Time: t0.Add(20 * time.Minute), CO2: 700, Temperature: 22, Humidity: 50, TVOC: 300, AmbientTemp: 12},
	}
	fv, err := Features(pts, time.UTC)
	if err != nil {
		t.Fatalf("Features error: %v", err)
	}
	if fv["co2"] != 600 || fv["temperature"] != 21 || fv["humidity"] != 45 || fv["tvoc"] != 200 || fv["ambient_temp"] != 11 {
		t.Fatalf("unexpected means %v", fv)
	}
	wantAvg := float64(t0.Add(10 * time.Minute).Unix())
	if math.Abs(fv["avg_time"]-wantAvg) > 1e-3 {
		t.Fatalf("avg_time mismatch: got %f want %f", fv["avg_time"], wantAvg)
	}
	if fv["hour"] != 10 || fv["day_of_week"] != 0 || fv["month"] != 5 {
		t.Fatalf("unexpected temporal features %v", fv)
	}

	if _, err := Features(nil, time.UTC); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestAddRequiresEveryKey(t *testing.T) {
	buf := NewBuffer(&fixedPredictor{}, Options{})

	if _, ok := buf.Add(climate(t0, 600, 21, 45)); ok {
		t.Fatalf("point emitted without tvoc and ambient_temp")
	}
	if _, ok := buf.Add(single(t0, "tvoc", 200)); ok {
		t.Fatalf("tvoc fragment must not emit a point")
	}
	if _, ok := buf.Add(single(t0, "ambient_temp", 12)); ok {
		t.Fatalf("ambient fragment must not emit a point")
	}

	p, ok := buf.Add(climate(t0.Add(time.Minute), 650, 21.5, 46))
	if !ok {
		t.Fatalf("expected point once every key is known")
	}
	if p.CO2 != 650 || p.TVOC != 200 || p.AmbientTemp != 12 {
		t.Fatalf("unexpected point %+v", p)
	}
	if n := len(buf.Points()); n != 1 {
		t.Fatalf("expected 1 point, got %d", n)
	}
}

func TestAddCapsPoints(t *testing.T) {
	buf := NewBuffer(&fixedPredictor{}, Options{MaxPoints: 3})
	buf.Add(single(t0, "tvoc", 1))
	buf.Add(single(t0, "ambient_temp", 1))
	for i := 0; i < 5; i++ {
		buf.Add(climate(t0.Add(time.Duration(i)*time.Minute), float64(500+i), 20, 40))
	}
	pts := buf.Points()
	if len(pts) != 3 || pts[0].CO2 != 502 || pts[2].CO2 != 504 {
		t.Fatalf("unexpected points %+v", pts)
	}
}

func TestFlushStoresPrediction(t *testing.T) {
	pred := &fixedPredictor{out: map[string]float64{"Logistic Regression": 1, "Random Forest": 0}}
	buf := NewBuffer(pred, Options{})

	if _, err := buf.Flush(context.Background()); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData on empty buffer, got %v", err)
	}

	buf.Add(single(t0, "tvoc", 200))
	buf.Add(single(t0, "ambient_temp", 12))
	buf.Add(climate(t0, 500, 20, 40))
	buf.Add(climate(t0.Add(time.Minute), 700, 22, 50))

	p, err := buf.Flush(context.Background())
	if err != nil {
		t.Fatalf("Flush error: %v", err)
	}
	if p.ID == "" || p.Points != 2 || p.Values["Logistic Regression"] != 1 {
		t.Fatalf("unexpected prediction %+v", p)
	}
	if pred.seen[0]["co2"] != 600 {
		t.Fatalf("predictor saw %v", pred.seen[0])
	}
	latest, err := buf.Latest()
	if err != nil || latest.ID != p.ID {
		t.Fatalf("latest mismatch: %v %v", latest, err)
	}

	if buf.ClearPrediction("other-id") {
		t.Fatalf("must not clear a different prediction")
	}
	if !buf.ClearPrediction(p.ID) {
		t.Fatalf("expected prediction to be cleared")
	}
	if _, err := buf.Latest(); !errors.Is(err, ErrNoPrediction) {
		t.Fatalf("expected ErrNoPrediction, got %v", err)
	}
}

func TestClearDuringFlushKeepsPrediction(t *testing.T) {
	bp := &blockingPredictor{started: make(chan struct{}), release: make(chan struct{})}
	buf := NewBuffer(bp, Options{})
	buf.Add(single(t0, "tvoc", 200))
	buf.Add(single(t0, "ambient_temp", 12))
	buf.Add(climate(t0, 600, 21, 45))

	type result struct {
		p   *domain.Prediction
		err error
	}
	done := make(chan result, 1)
	go func() {
		p, err := buf.Flush(context.Background())
		done <- result{p, err}
	}()

	select {
	case <-bp.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("predictor never started")
	}

	buf.Clear()
	if n := len(buf.Points()); n != 0 {
		t.Fatalf("expected empty buffer after clear, got %d", n)
	}
	close(bp.release)

	var res result
	select {
	case res = <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("flush did not finish")
	}
	if res.err != nil {
		t.Fatalf("Flush error: %v", res.err)
	}
	latest, err := buf.Latest()
	if err != nil {
		t.Fatalf("prediction lost after concurrent clear: %v", err)
	}
	if latest.ID != res.p.ID || latest.Values["Logistic Regression"] != 1 {
		t.Fatalf("unexpected latest %+v", latest)
	}
}

type chanSink struct{ ch chan domain.Prediction }

func (s *chanSink) PublishPrediction(_ context.Context, p domain.Prediction) error {
	s.ch <- p
	return nil
}

func TestRunnerFlushesAndClears(t *testing.T) {
	buf := NewBuffer(&fixedPredictor{out: map[string]float64{"m": 1}}, Options{})
	buf.Add(single(t0, "tvoc", 200))
	buf.Add(single(t0, "ambient_temp", 12))
	buf.Add(climate(t0, 600, 21, 45))

	sink := &chanSink{ch: make(chan domain.Prediction, 4)}
	r := NewRunner(buf, 10*time.Millisecond, time.Hour, sink)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(stopped)
	}()

	select {
	case p := <-sink.ch:
		if p.Values["m"] != 1 {
			t.Fatalf("unexpected prediction %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no prediction published")
	}
	cancel()
	<-stopped

	r = NewRunner(buf, time.Hour, 10*time.Millisecond)
	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for len(buf.Points()) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("buffer was not cleared")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
