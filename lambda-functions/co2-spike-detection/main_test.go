package main

import (
	"testing"

	"github.com/aws/aws-lambda-go/events"
)

func TestDetectSpike(t *testing.T) {
	history := []float64{600, 620, 640, 610, 630}

	if r := detectSpike(1900, history); !r.IsSpike || r.Severity != "medium" {
		t.Fatalf("expected medium spike, got %+v", r)
	}
	if r := detectSpike(900, history); r.IsSpike {
		t.Fatalf("900 ppm is below the absolute limit: %+v", r)
	}
	if r := detectSpike(2600, history[:2]); r.IsSpike {
		t.Fatalf("short history must not alert: %+v", r)
	}
}

func TestParsePrediction(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"room":           events.NewStringAttribute("2.09"),
		"createdAt":      events.NewNumberAttribute("1715000000"),
		"predictionId":   events.NewStringAttribute("p1"),
		"recommendation": events.NewStringAttribute("open"),
		"features": events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{
			"co2":         events.NewNumberAttribute("1512.5"),
			"temperature": events.NewNumberAttribute("22.1"),
		}),
	}

	p, err := parsePrediction(image)
	if err != nil {
		t.Fatalf("parsePrediction error: %v", err)
	}
	if p.Room != "2.09" || p.CreatedAt != 1715000000 || p.Features["co2"] != 1512.5 {
		t.Fatalf("unexpected prediction %+v", p)
	}

	delete(image, "features")
	if _, err := parsePrediction(image); err == nil {
		t.Fatalf("expected error without co2")
	}
}
