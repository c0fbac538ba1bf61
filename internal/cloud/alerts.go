package cloud

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/domain"
)

type AlertSender interface {
	SendAlert(ctx context.Context, subject, message string) error
}

// CO2Alerter notifies when a prediction's mean CO2 crosses the threshold,
// at most once per cooldown.
type CO2Alerter struct {
	sender    AlertSender
	room      string
	threshold float64
	cooldown  time.Duration
	now       func() time.Time

	mu   sync.Mutex
	last time.Time
}

func NewCO2Alerter(sender AlertSender, room string, threshold float64, cooldown time.Duration) *CO2Alerter {
	return &CO2Alerter{
		sender:    sender,
		room:      room,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

func (a *CO2Alerter) PublishPrediction(ctx context.Context, p domain.Prediction) error {
	co2, ok := p.Features[domain.FieldCO2]
	if !ok || co2 < a.threshold {
		return nil
	}

	a.mu.Lock()
	now := a.now()
	if !a.last.IsZero() && now.Sub(a.last) < a.cooldown {
		a.mu.Unlock()
		log.Debug().Float64("co2", co2).Msg("co2 alert suppressed by cooldown")
		return nil
	}
	a.last = now
	a.mu.Unlock()

	subject := fmt.Sprintf("Room %s: CO2 at %.0f ppm", a.room, co2)
	message := fmt.Sprintf(
		"Average CO2 over the last window was %.0f ppm (threshold %.0f ppm).\n"+
			"Temperature: %.1f C\nHumidity: %.1f %%\nRecommendation: %s window\nTime: %s",
		co2, a.threshold,
		p.Features[domain.FieldTemperature], p.Features[domain.FieldHumidity],
		p.Recommendation(), p.CreatedAt.Format(time.RFC3339),
	)
	if err := a.sender.SendAlert(ctx, subject, message); err != nil {
		a.mu.Lock()
		a.last = time.Time{}
		a.mu.Unlock()
		return err
	}
	return nil
}
