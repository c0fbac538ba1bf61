package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/xuri/excelize/v2"

	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/aggregator"
	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/domain"
	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/sensorapi"
	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/service"
)

type stubPredictor struct{}

func (stubPredictor) PredictAll(context.Context, domain.FeatureVector) (map[string]float64, error) {
	return map[string]float64{"Logistic Regression": 1, "Random Forest": 1}, nil
}

type stubSource struct{ latest *domain.SensorReading }

func (s *stubSource) LatestSensorData(context.Context) (*domain.SensorReading, error) {
	return s.latest, nil
}

func (s *stubSource) SensorDataSince(context.Context, time.Time) ([]domain.SensorReading, error) {
	if s.latest == nil {
		return nil, nil
	}
	return []domain.SensorReading{*s.latest}, nil
}

type stubFeedback struct {
	err error
	got []domain.FeedbackRecord
}

func (s *stubFeedback) SubmitFeedback(_ context.Context, fb domain.FeedbackRecord) error {
	s.got = append(s.got, fb)
	return s.err
}

type stubClimate struct{ saved []domain.AnalysisRecord }

func (s *stubClimate) AverageSince(_ context.Context, since time.Time) (domain.WindowAverage, error) {
	co2, temp, hum := 800.0, 22.0, 50.0
	return domain.WindowAverage{Timestamp: since.Format(service.TimestampLayout), CO2: &co2, Temperature: &temp, Humidity: &hum}, nil
}

func (s *stubClimate) SaveAnalysis(_ context.Context, a domain.AnalysisRecord) error {
	s.saved = append(s.saved, a)
	return nil
}

type fixture struct {
	app      *fiber.App
	buf      *aggregator.Buffer
	feedback *stubFeedback
	climate  *stubClimate
}

var t0 = time.Date(2024, 5, 6, 10, 30, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		buf:      aggregator.NewBuffer(stubPredictor{}, aggregator.Options{}),
		feedback: &stubFeedback{},
		climate:  &stubClimate{},
	}
	v := 600.0
	svcs := service.New(service.Deps{
		Source:   &stubSource{latest: &domain.SensorReading{Timestamp: t0, CO2: &v}},
		Feedback: f.feedback,
		Climate:  f.climate,
		Buffer:   f.buf,
		Room:     "2.09",
		Location: time.UTC,
	})
	f.app = fiber.New()
	Register(f.app, svcs, session.New(), Options{Room: "2.09", PredictEvery: 20 * time.Minute})
	return f
}

func (f *fixture) predict(t *testing.T) *domain.Prediction {
	t.Helper()
	f.buf.Add(domain.Fragment{Time: t0, Fields: map[string]float64{"tvoc": 200}})
	f.buf.Add(domain.Fragment{Time: t0, Fields: map[string]float64{"ambient_temp": 12}})
	f.buf.Add(domain.Fragment{Time: t0, Fields: map[string]float64{"co2": 600, "temperature": 21, "humidity": 45}})
	p, err := f.buf.Flush(context.Background())
	if err != nil {
		t.Fatalf("Flush error: %v", err)
	}
	return p
}

func (f *fixture) do(t *testing.T, method, target, form, cookie string) (int, string, string) {
	t.Helper()
	var body io.Reader
	if form != "" {
		body = strings.NewReader(form)
	}
	req := httptest.NewRequest(method, target, body)
	if form != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	}
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	setCookie := resp.Header.Get("Set-Cookie")
	if i := strings.Index(setCookie, ";"); i >= 0 {
		setCookie = setCookie[:i]
	}
	return resp.StatusCode, string(b), setCookie
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	code, body, _ := f.do(t, fiber.MethodGet, "/health", "", "")
	if code != fiber.StatusOK || body != "ok" {
		t.Fatalf("unexpected health response %d %q", code, body)
	}
}

func TestDashboardRenders(t *testing.T) {
	f := newFixture(t)
	code, body, _ := f.do(t, fiber.MethodGet, "/", "", "")
	if code != fiber.StatusOK || !strings.Contains(body, "Room 2.09") || !strings.Contains(body, "No prediction yet") {
		t.Fatalf("unexpected dashboard %d: %s", code, body)
	}

	f.predict(t)
	code, body, _ = f.do(t, fiber.MethodGet, "/", "", "")
	if code != fiber.StatusOK || !strings.Contains(body, "Open the window") {
		t.Fatalf("dashboard missing recommendation %d: %s", code, body)
	}
}

func TestDashboardAcceptsPost(t *testing.T) {
	f := newFixture(t)
	code, body, _ := f.do(t, fiber.MethodPost, "/", "refresh=1", "")
	if code != fiber.StatusOK || !strings.Contains(body, "Room 2.09") {
		t.Fatalf("unexpected dashboard POST %d: %s", code, body)
	}
}

func TestPlotsRenderSeries(t *testing.T) {
	f := newFixture(t)
	f.predict(t)
	code, body, _ := f.do(t, fiber.MethodGet, "/plots", "", "")
	if code != fiber.StatusOK || !strings.Contains(body, `"co2":[600]`) {
		t.Fatalf("unexpected plots %d: %s", code, body)
	}
}

func TestFeedbackWithoutPrediction(t *testing.T) {
	f := newFixture(t)

	code, body, _ := f.do(t, fiber.MethodGet, "/feedback", "", "")
	if code != fiber.StatusOK || !strings.Contains(body, "No prediction is available") {
		t.Fatalf("unexpected form %d: %s", code, body)
	}

	code, _, _ = f.do(t, fiber.MethodPost, "/feedback", "accurate_prediction=1", "")
	if code != fiber.StatusBadRequest {
		t.Fatalf("expected 400 without prediction, got %d", code)
	}
	if len(f.feedback.got) != 0 {
		t.Fatalf("feedback sink must not be called")
	}
}

func TestFeedbackFlow(t *testing.T) {
	f := newFixture(t)
	f.predict(t)

	code, body, _ := f.do(t, fiber.MethodGet, "/feedback", "", "")
	if code != fiber.StatusOK || !strings.Contains(body, "600.0") {
		t.Fatalf("unexpected form %d: %s", code, body)
	}

	code, body, _ = f.do(t, fiber.MethodPost, "/feedback", "accurate_prediction=1", "")
	if code != fiber.StatusOK || !strings.Contains(body, "Thank you") {
		t.Fatalf("unexpected submit response %d: %s", code, body)
	}
	if len(f.feedback.got) != 1 || f.feedback.got[0].AccuratePrediction != 1 || f.feedback.got[0].CO2 != 600 {
		t.Fatalf("unexpected feedback %+v", f.feedback.got)
	}

	code, _, _ = f.do(t, fiber.MethodPost, "/feedback", "accurate_prediction=1", "")
	if code != fiber.StatusBadRequest {
		t.Fatalf("prediction should be consumed, got %d", code)
	}
}

func TestFeedbackRejectedByAPI(t *testing.T) {
	f := newFixture(t)
	f.predict(t)
	f.feedback.err = &sensorapi.StatusError{Code: 403, Body: "forbidden"}

	code, body, _ := f.do(t, fiber.MethodPost, "/feedback", "accurate_prediction=0", "")
	if code != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		t.Fatalf("body not json: %v", err)
	}
	if out["status"] != float64(403) || out["response"] != "forbidden" {
		t.Fatalf("unexpected body %v", out)
	}
	if _, err := f.buf.Latest(); err != nil {
		t.Fatalf("prediction must survive a rejected submit")
	}
}

func TestLeaderboardSessionFlow(t *testing.T) {
	f := newFixture(t)

	code, _, _ := f.do(t, fiber.MethodGet, "/leaderboard", "", "")
	if code != fiber.StatusBadRequest {
		t.Fatalf("expected 400 without session data, got %d", code)
	}
	code, _, _ = f.do(t, fiber.MethodPost, "/leaderboard", "", "")
	if code != fiber.StatusBadRequest {
		t.Fatalf("expected 400 without prediction, got %d", code)
	}

	f.predict(t)
	code, body, cookie := f.do(t, fiber.MethodPost, "/leaderboard", "", "")
	if code != fiber.StatusOK || !strings.Contains(body, "2024-05-06 10:29") || cookie == "" {
		t.Fatalf("unexpected leaderboard start %d %q: %s", code, cookie, body)
	}

	code, body, _ = f.do(t, fiber.MethodGet, "/leaderboard", "", cookie)
	if code != fiber.StatusOK || !strings.Contains(body, "Since then") {
		t.Fatalf("unexpected leaderboard %d: %s", code, body)
	}
	if len(f.climate.saved) != 1 || f.climate.saved[0].Decision != domain.RecommendOpen {
		t.Fatalf("analysis not saved: %+v", f.climate.saved)
	}
	f.do(t, fiber.MethodGet, "/leaderboard", "", cookie)
	if len(f.climate.saved) != 1 {
		t.Fatalf("analysis saved twice for the same window")
	}

	target := "/future_data/" + url.PathEscape("2024-05-06 10:29")
	code, _, _ = f.do(t, fiber.MethodGet, target, "", "")
	if code != fiber.StatusBadRequest {
		t.Fatalf("expected 400 without session, got %d", code)
	}
	code, body, _ = f.do(t, fiber.MethodGet, target, "", cookie)
	if code != fiber.StatusOK || !strings.Contains(body, `"co2_values":800`) {
		t.Fatalf("unexpected future data %d: %s", code, body)
	}

	code, _, _ = f.do(t, fiber.MethodGet, "/clear_session", "", cookie)
	if code != fiber.StatusOK {
		t.Fatalf("clear_session failed: %d", code)
	}
	code, _, _ = f.do(t, fiber.MethodGet, "/leaderboard", "", cookie)
	if code != fiber.StatusBadRequest {
		t.Fatalf("expected 400 after clearing session, got %d", code)
	}
}

func TestDownloadCO2Data(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(fiber.MethodGet, "/download_co2_data", nil)
	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("unexpected export status %d: %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get(fiber.HeaderContentType); ct != service.XLSXContentType {
		t.Fatalf("unexpected content type %q", ct)
	}
	disp := resp.Header.Get(fiber.HeaderContentDisposition)
	if !strings.Contains(disp, "attachment") || !strings.Contains(disp, ".xlsx") {
		t.Fatalf("unexpected disposition %q", disp)
	}

	wb, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("body is not a workbook: %v", err)
	}
	defer wb.Close()
	if v, _ := wb.GetCellValue(service.ReportSheet, "B1"); v != "co2_values" {
		t.Fatalf("unexpected header %q", v)
	}
	if v, _ := wb.GetCellValue(service.ReportSheet, "B2"); v != "600" {
		t.Fatalf("unexpected co2 cell %q", v)
	}
}

func TestContactDisabled(t *testing.T) {
	f := newFixture(t)
	code, body, _ := f.do(t, fiber.MethodGet, "/contact", "", "")
	if code != fiber.StatusOK || !strings.Contains(body, "not available") {
		t.Fatalf("unexpected contact page %d: %s", code, body)
	}
	code, _, _ = f.do(t, fiber.MethodPost, "/send_email", "name=a&email=a%40b.c&message=hi", "")
	if code != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
}

func TestAPIEndpoints(t *testing.T) {
	f := newFixture(t)
	code, body, _ := f.do(t, fiber.MethodGet, "/api/sensor/latest", "", "")
	if code != fiber.StatusOK || !strings.Contains(body, `"co2":600`) {
		t.Fatalf("unexpected latest sensor %d: %s", code, body)
	}

	code, _, _ = f.do(t, fiber.MethodGet, "/api/predictions/latest", "", "")
	if code != fiber.StatusNotFound {
		t.Fatalf("expected 404 without prediction, got %d", code)
	}
	p := f.predict(t)
	code, body, _ = f.do(t, fiber.MethodGet, "/api/predictions/latest", "", "")
	if code != fiber.StatusOK || !strings.Contains(body, p.ID) {
		t.Fatalf("unexpected prediction %d: %s", code, body)
	}
}
