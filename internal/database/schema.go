package database

const (
	SensorDataTableSQL = `
		CREATE TABLE IF NOT EXISTS public."SensorData" (
			"timestamp" TIMESTAMP PRIMARY KEY,
			temperature DOUBLE PRECISION,
			humidity DOUBLE PRECISION,
			co2_values DOUBLE PRECISION,
			tvoc_values DOUBLE PRECISION,
			accurate_prediction INTEGER
		)
	`

	ClassroomTableSQL = `
		CREATE TABLE IF NOT EXISTS classroom_environmental_data (
			id SERIAL PRIMARY KEY,
			"timestamp" TIMESTAMP NOT NULL,
			co2_values DOUBLE PRECISION NOT NULL,
			temperature DOUBLE PRECISION NOT NULL,
			humidity DOUBLE PRECISION NOT NULL,
			classroom_number TEXT NOT NULL
		)
	`

	ClassroomIndexSQL = `
		CREATE INDEX IF NOT EXISTS classroom_environmental_data_ts_idx
		ON classroom_environmental_data ("timestamp")
	`

	AnalysisTableSQL = `
		CREATE TABLE IF NOT EXISTS environmental_data_analysis (
			id SERIAL PRIMARY KEY,
			"timestamp" TIMESTAMP NOT NULL,
			current_co2 DOUBLE PRECISION,
			future_co2 DOUBLE PRECISION,
			co2_change DOUBLE PRECISION,
			current_temperature DOUBLE PRECISION,
			future_temperature DOUBLE PRECISION,
			temperature_change DOUBLE PRECISION,
			current_humidity DOUBLE PRECISION,
			future_humidity DOUBLE PRECISION,
			humidity_change DOUBLE PRECISION,
			decision TEXT
		)
	`
)

func AllTables() []string {
	return []string{
		SensorDataTableSQL,
		ClassroomTableSQL,
		ClassroomIndexSQL,
		AnalysisTableSQL,
	}
}
