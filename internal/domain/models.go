package domain

import "time"

// Field names shared by MQTT payloads, feature vectors and model files.
const (
	FieldTime        = "time"
	FieldCO2         = "co2"
	FieldTemperature = "temperature"
	FieldHumidity    = "humidity"
	FieldTVOC        = "tvoc"
	FieldAmbientTemp = "ambient_temp"

	FieldAvgTime   = "avg_time"
	FieldHour      = "hour"
	FieldDayOfWeek = "day_of_week"
	FieldMonth     = "month"
)

// SensorReading is one row of the SensorData table. TVOC is nullable because
// the TVOC sensor reports on its own device and frequently lags.
type SensorReading struct {
	Timestamp          time.Time `db:"timestamp" json:"time"`
	Temperature        *float64  `db:"temperature" json:"temperature"`
	Humidity           *float64  `db:"humidity" json:"humidity"`
	CO2                *float64  `db:"co2_values" json:"co2"`
	TVOC               *float64  `db:"tvoc_values" json:"tvoc"`
	AccuratePrediction *int      `db:"accurate_prediction" json:"accurate_prediction,omitempty"`
}

// ClimateReading is a complete climate sample persisted per classroom.
type ClimateReading struct {
	Timestamp   time.Time `db:"timestamp" json:"timestamp"`
	CO2         float64   `db:"co2_values" json:"co2"`
	Temperature float64   `db:"temperature" json:"temperature"`
	Humidity    float64   `db:"humidity" json:"humidity"`
	Room        string    `db:"classroom_number" json:"classroom_number"`
	DeviceID    string    `db:"-" json:"device_id,omitempty"`
}

// Fragment is the decoded content of a single device uplink.
type Fragment struct {
	Topic    string
	DeviceID string
	Time     time.Time
	Fields   map[string]float64
}

func (f Fragment) Has(keys ...string) bool {
	for _, k := range keys {
		if _, ok := f.Fields[k]; !ok {
			return false
		}
	}
	return true
}

// Point is one merged reading with every required field present.
type Point struct {
	Time        time.Time `json:"time"`
	CO2         float64   `json:"co2"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	TVOC        float64   `json:"tvoc"`
	AmbientTemp float64   `json:"ambient_temp"`
}

// Values returns the numeric fields of the point keyed by field name.
func (p Point) Values() map[string]float64 {
	return map[string]float64{
		FieldCO2:         p.CO2,
		FieldTemperature: p.Temperature,
		FieldHumidity:    p.Humidity,
		FieldTVOC:        p.TVOC,
		FieldAmbientTemp: p.AmbientTemp,
	}
}

// FeatureVector is the averaged window fed to the models.
type FeatureVector map[string]float64

// Prediction is the result of one flush: model name to label or value.
type Prediction struct {
	ID            string             `json:"id"`
	CreatedAt     time.Time          `json:"created_at"`
	LastPointTime time.Time          `json:"last_point_time"`
	Points        int                `json:"points"`
	Values        map[string]float64 `json:"predictions"`
	Features      FeatureVector      `json:"features"`
}

// FeedbackRecord binds a user verdict to the feature vector of the latest prediction.
type FeedbackRecord struct {
	PredictionID       string    `json:"-"`
	Temperature        float64   `json:"temperature"`
	Humidity           float64   `json:"humidity"`
	CO2                float64   `json:"co2"`
	OutdoorTemperature float64   `json:"outdoor_temperature"`
	AvgTime            float64   `json:"avg_time"`
	Timestamp          time.Time `json:"timestamp"`
	AccuratePrediction int       `json:"accurate_prediction"`
}

// WindowAverage holds averaged classroom values since a point in time.
type WindowAverage struct {
	Timestamp   string   `db:"-" json:"timestamp"`
	CO2         *float64 `db:"co2_values" json:"co2_values"`
	Temperature *float64 `db:"temperature" json:"temperature"`
	Humidity    *float64 `db:"humidity" json:"humidity"`
}

// AnalysisRecord is one row of environmental_data_analysis.
type AnalysisRecord struct {
	Timestamp          time.Time `db:"timestamp" json:"timestamp"`
	CurrentCO2         *float64  `db:"current_co2" json:"current_co2"`
	FutureCO2          *float64  `db:"future_co2" json:"future_co2"`
	CO2Change          *float64  `db:"co2_change" json:"co2_change"`
	CurrentTemperature *float64  `db:"current_temperature" json:"current_temperature"`
	FutureTemperature  *float64  `db:"future_temperature" json:"future_temperature"`
	TemperatureChange  *float64  `db:"temperature_change" json:"temperature_change"`
	CurrentHumidity    *float64  `db:"current_humidity" json:"current_humidity"`
	FutureHumidity     *float64  `db:"future_humidity" json:"future_humidity"`
	HumidityChange     *float64  `db:"humidity_change" json:"humidity_change"`
	Decision           string    `db:"decision" json:"decision"`
}
