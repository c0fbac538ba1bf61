package archive

const climateReadingsSQL = `
CREATE TABLE IF NOT EXISTS climate_readings (
	timestamp   DateTime64(3),
	room        LowCardinality(String),
	device_id   String,
	co2         Float64,
	temperature Float64,
	humidity    Float64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(timestamp)
ORDER BY (room, timestamp)
TTL toDateTime(timestamp) + INTERVAL 1 YEAR`

const predictionsSQL = `
CREATE TABLE IF NOT EXISTS ventilation_predictions (
	created_at     DateTime64(3),
	room           LowCardinality(String),
	prediction_id  String,
	recommendation LowCardinality(String),
	points         UInt32,
	predictions    Map(String, Float64),
	features       Map(String, Float64)
) ENGINE = MergeTree()
ORDER BY (room, created_at)`

func AllTables() []string {
	return []string{climateReadingsSQL, predictionsSQL}
}
