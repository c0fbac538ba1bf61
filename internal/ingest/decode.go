package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/domain"
)

var ErrEmptyUplink = errors.New("uplink carries none of the expected fields")

// Route lists the fields taken from uplinks on one topic.
type Route struct {
	Topic  string
	Fields []string
}

// Routes builds the standard climate, TVOC and ambient routes.
func Routes(climate, tvoc, ambient []string) []Route {
	var out []Route
	for _, t := range climate {
		out = append(out, Route{Topic: t, Fields: []string{domain.FieldHumidity, domain.FieldTemperature, domain.FieldCO2}})
	}
	for _, t := range tvoc {
		out = append(out, Route{Topic: t, Fields: []string{domain.FieldTVOC}})
	}
	for _, t := range ambient {
		out = append(out, Route{Topic: t, Fields: []string{domain.FieldAmbientTemp}})
	}
	return out
}

type uplink struct {
	Time   string         `json:"time"`
	Object map[string]any `json:"object"`
}

// Decode parses a LoRaWAN uplink {"time": ISO8601, "object": {...}}. Values are
// rounded to two decimals and the time is converted to loc.
func Decode(topic string, payload []byte, fields []string, loc *time.Location) (domain.Fragment, error) {
	var up uplink
	if err := json.Unmarshal(payload, &up); err != nil {
		return domain.Fragment{}, fmt.Errorf("decode uplink: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, up.Time)
	if err != nil {
		return domain.Fragment{}, fmt.Errorf("uplink time %q: %w", up.Time, err)
	}

	frag := domain.Fragment{
		Topic:    topic,
		DeviceID: DeviceID(topic),
		Time:     ts.In(loc),
		Fields:   map[string]float64{},
	}
	for _, f := range fields {
		v, ok := up.Object[f].(float64)
		if !ok {
			continue
		}
		frag.Fields[f] = round2(v)
	}
	if len(frag.Fields) == 0 {
		return frag, ErrEmptyUplink
	}
	return frag, nil
}

// DeviceID extracts <id> from application/<app>/device/<id>/event/up.
func DeviceID(topic string) string {
	parts := strings.Split(topic, "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "device" {
			return parts[i+1]
		}
	}
	return ""
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// EncodeUplink builds an uplink payload in the shape Decode accepts.
func EncodeUplink(t time.Time, object map[string]float64) ([]byte, error) {
	return json.Marshal(struct {
		Time   string             `json:"time"`
		Object map[string]float64 `json:"object"`
	}{Time: t.UTC().Format(time.RFC3339Nano), Object: object})
}
