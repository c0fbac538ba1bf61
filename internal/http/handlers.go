package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/aggregator"
	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/domain"
	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/sensorapi"
	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/service"
)

const (
	sessPredictionID = "last_prediction_id"
	sessLatestDate   = "latest_date"
	sessCurrentData  = "current_data"
	sessDecision     = "decision"
	sessSavedFor     = "analysis_saved_for"

	requestTimeout = 10 * time.Second
)

type Options struct {
	Room         string
	PredictEvery time.Duration
}

type handlers struct {
	svcs  *service.Services
	store *session.Store
	opts  Options
}

func Register(app *fiber.App, svcs *service.Services, store *session.Store, opts Options) {
	h := &handlers{svcs: svcs, store: store, opts: opts}

	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })

	app.Get("/", h.index)
	app.Post("/", h.index)
	app.Get("/plots", h.plots)
	app.Get("/feedback", h.feedbackForm)
	app.Post("/feedback", h.submitFeedback)
	app.Get("/thank_you", func(c *fiber.Ctx) error {
		return render(c, fiber.StatusOK, "thank_you.html", fiber.Map{"Title": "Thank you"})
	})
	app.Post("/leaderboard", h.startLeaderboard)
	app.Get("/leaderboard", h.leaderboard)
	app.Get("/future_data/:timestamp", h.futureData)
	app.Get("/clear_session", h.clearSession)
	app.Get("/download_co2_data", h.downloadCO2)
	app.Get("/contact", h.contactForm)
	app.Post("/send_email", h.sendEmail)

	api := app.Group("/api")
	api.Get("/sensor/latest", h.latestSensor)
	api.Get("/predictions/latest", h.latestPrediction)
}

func requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), requestTimeout)
}

func (h *handlers) index(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	ov, err := h.svcs.Overview(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("latest stored reading unavailable")
	}
	updated := ""
	if !ov.State.Time.IsZero() {
		updated = ov.State.Time.Format("2006-01-02 15:04:05")
	}
	return render(c, fiber.StatusOK, "index.html", fiber.Map{
		"Title":        "Dashboard",
		"Room":         h.opts.Room,
		"Updated":      updated,
		"Values":       ov.State.Values,
		"Prediction":   ov.State.Prediction,
		"Stored":       ov.Stored,
		"PredictEvery": h.opts.PredictEvery.String(),
	})
}

type plotSeries struct {
	Time        []string  `json:"time"`
	CO2         []float64 `json:"co2"`
	Temperature []float64 `json:"temperature"`
	Humidity    []float64 `json:"humidity"`
	TVOC        []float64 `json:"tvoc"`
}

func (h *handlers) plots(c *fiber.Ctx) error {
	points := h.svcs.Buffer.Points()
	s := plotSeries{
		Time:        make([]string, 0, len(points)),
		CO2:         make([]float64, 0, len(points)),
		Temperature: make([]float64, 0, len(points)),
		Humidity:    make([]float64, 0, len(points)),
		TVOC:        make([]float64, 0, len(points)),
	}
	for _, p := range points {
		s.Time = append(s.Time, p.Time.Format("15:04:05"))
		s.CO2 = append(s.CO2, p.CO2)
		s.Temperature = append(s.Temperature, p.Temperature)
		s.Humidity = append(s.Humidity, p.Humidity)
		s.TVOC = append(s.TVOC, p.TVOC)
	}
	return render(c, fiber.StatusOK, "plots.html", fiber.Map{
		"Title":  "Plots",
		"Series": s,
		"Count":  len(points),
	})
}

func (h *handlers) feedbackForm(c *fiber.Ctx) error {
	pred, err := h.svcs.Feedback.Pending()
	if errors.Is(err, aggregator.ErrNoPrediction) {
		return render(c, fiber.StatusOK, "feedback.html", fiber.Map{"Title": "Feedback", "Error": true})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
	}
	return render(c, fiber.StatusOK, "feedback.html", fiber.Map{
		"Title":      "Feedback",
		"Prediction": pred,
		"Features":   pred.Features,
	})
}

func (h *handlers) submitFeedback(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	accurate, err := strconv.Atoi(c.FormValue("accurate_prediction"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "accurate_prediction must be 0 or 1"})
	}

	_, err = h.svcs.Feedback.Submit(ctx, accurate)
	var statusErr *sensorapi.StatusError
	switch {
	case err == nil:
		return render(c, fiber.StatusOK, "thank_you.html", fiber.Map{"Title": "Thank you"})
	case errors.Is(err, aggregator.ErrNoPrediction):
		return c.Status(fiber.StatusBadRequest).SendString("no predictions available to give feedback on")
	case errors.Is(err, service.ErrInvalidFeedback):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	case errors.As(err, &statusErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message":  "feedback not submitted",
			"status":   statusErr.Code,
			"response": statusErr.Body,
		})
	default:
		log.Error().Err(err).Msg("feedback submission failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "an unexpected error occurred",
			"error":   err.Error(),
		})
	}
}

func (h *handlers) startLeaderboard(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	snap, err := h.svcs.Leaderboard.Current(ctx)
	if errors.Is(err, aggregator.ErrNoPrediction) {
		return c.Status(fiber.StatusBadRequest).SendString("no predictions available to compare")
	}
	if err != nil {
		log.Error().Err(err).Msg("leaderboard current window failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	current, err := json.Marshal(snap.Current)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	sess, err := h.store.Get(c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	sess.Set(sessPredictionID, snap.PredictionID)
	sess.Set(sessLatestDate, snap.Since)
	sess.Set(sessCurrentData, string(current))
	sess.Set(sessDecision, snap.Recommendation)
	if err := sess.Save(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return render(c, fiber.StatusOK, "leaderboard.html", fiber.Map{
		"Title":    "Leaderboard",
		"Since":    snap.Since,
		"Decision": snap.Recommendation,
		"Current":  &snap.Current,
	})
}

func (h *handlers) leaderboard(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	sess, err := h.store.Get(c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	since, _ := sess.Get(sessLatestDate).(string)
	raw, _ := sess.Get(sessCurrentData).(string)
	if since == "" || raw == "" {
		return c.Status(fiber.StatusBadRequest).SendString("no data available, please run a prediction first")
	}
	decision, _ := sess.Get(sessDecision).(string)

	var current domain.WindowAverage
	if err := json.Unmarshal([]byte(raw), &current); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("corrupt session data, please clear the session")
	}
	future, err := h.svcs.Leaderboard.Future(ctx, since)
	if err != nil {
		log.Error().Err(err).Msg("leaderboard future window failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	data := fiber.Map{
		"Title":    "Leaderboard",
		"Since":    since,
		"Decision": decision,
		"Current":  &current,
		"Future":   &future,
	}
	if saved, _ := sess.Get(sessSavedFor).(string); saved != since && complete(future) {
		rec, err := h.svcs.Leaderboard.Compare(ctx, current, future, decision)
		if err != nil {
			log.Warn().Err(err).Msg("failed to save analysis")
		} else {
			sess.Set(sessSavedFor, since)
			if err := sess.Save(); err != nil {
				log.Warn().Err(err).Msg("failed to save session")
			}
		}
		data["Analysis"] = &rec
	} else {
		data["Analysis"] = &domain.AnalysisRecord{
			CO2Change:         service.PercentChange(current.CO2, future.CO2),
			TemperatureChange: service.PercentChange(current.Temperature, future.Temperature),
			HumidityChange:    service.PercentChange(current.Humidity, future.Humidity),
		}
	}
	return render(c, fiber.StatusOK, "leaderboard.html", data)
}

func complete(w domain.WindowAverage) bool {
	return w.CO2 != nil && w.Temperature != nil && w.Humidity != nil
}

func (h *handlers) futureData(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	sess, err := h.store.Get(c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if id, _ := sess.Get(sessPredictionID).(string); id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no prediction in session"})
	}

	ts, err := url.PathUnescape(c.Params("timestamp"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	future, err := h.svcs.Leaderboard.Future(ctx, ts)
	if err != nil {
		if _, perr := h.svcs.Leaderboard.ParseTimestamp(ts); perr != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": perr.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if future.CO2 == nil && future.Temperature == nil && future.Humidity == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no future data available"})
	}
	return c.JSON(future)
}

func (h *handlers) clearSession(c *fiber.Ctx) error {
	sess, err := h.store.Get(c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if err := sess.Destroy(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.SendString("session data cleared")
}

func (h *handlers) downloadCO2(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 30*time.Second)
	defer cancel()

	rep, err := h.svcs.Export.CO2Report(ctx)
	if err != nil {
		log.Error().Err(err).Msg("co2 export failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if rep.URL != "" {
		c.Set("X-Report-URL", rep.URL)
	}
	c.Attachment(rep.Name)
	c.Set(fiber.HeaderContentType, rep.ContentType)
	return c.Send(rep.Data)
}

func (h *handlers) contactForm(c *fiber.Ctx) error {
	return render(c, fiber.StatusOK, "contact.html", fiber.Map{
		"Title":   "Contact",
		"Enabled": h.svcs.Contact.Enabled(),
	})
}

func (h *handlers) sendEmail(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	err := h.svcs.Contact.Send(ctx, c.FormValue("name"), c.FormValue("email"), c.FormValue("message"))
	data := fiber.Map{"Title": "Contact", "Enabled": h.svcs.Contact.Enabled()}
	switch {
	case err == nil:
		data["Sent"] = true
		return render(c, fiber.StatusOK, "contact.html", data)
	case errors.Is(err, service.ErrContactDisabled):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidContact):
		data["Error"] = err.Error()
		return render(c, fiber.StatusBadRequest, "contact.html", data)
	default:
		log.Error().Err(err).Msg("contact message failed")
		data["Error"] = "your message could not be sent, please try again later"
		return render(c, fiber.StatusInternalServerError, "contact.html", data)
	}
}

func (h *handlers) latestSensor(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	r, err := h.svcs.Source.LatestSensorData(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if r == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no sensor data"})
	}
	return c.JSON(r)
}

func (h *handlers) latestPrediction(c *fiber.Ctx) error {
	p, err := h.svcs.Buffer.Latest()
	if errors.Is(err, aggregator.ErrNoPrediction) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{
		"id":             p.ID,
		"created_at":     p.CreatedAt,
		"recommendation": p.Recommendation(),
		"predictions":    p.Values,
		"features":       p.Features,
	})
}
