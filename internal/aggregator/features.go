package aggregator

import (
	"time"

	analytics "github.com/ANIKETSHETTY47/energy-grid-analytics-go/aggregator"

	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/domain"
)

// Mean averages every key over the rows that carry it.
func Mean(rows []map[string]float64) map[string]float64 {
	series := map[string][]analytics.Point{}
	for _, row := range rows {
		for k, v := range row {
			series[k] = append(series[k], analytics.Point{Value: v})
		}
	}
	out := make(map[string]float64, len(series))
	for k, pts := range series {
		out[k] = analytics.Average(pts)
	}
	return out
}

// MeanTime returns the arithmetic mean of the timestamps.
func MeanTime(ts []time.Time) time.Time {
	if len(ts) == 0 {
		return time.Time{}
	}
	base := ts[0]
	pts := make([]analytics.Point, len(ts))
	for i, t := range ts {
		pts[i] = analytics.Point{Value: t.Sub(base).Seconds(), Timestamp: t}
	}
	offset := analytics.Average(pts)
	return base.Add(time.Duration(offset * float64(time.Second)))
}

// Features builds the averaged feature vector for a window of points: the
// per-field means plus avg_time (unix seconds), hour, day_of_week (Monday=0)
// and month of the mean time in loc.
func Features(points []domain.Point, loc *time.Location) (domain.FeatureVector, error) {
	if len(points) == 0 {
		return nil, ErrNoData
	}
	rows := make([]map[string]float64, len(points))
	times := make([]time.Time, len(points))
	for i, p := range points {
		rows[i] = p.Values()
		times[i] = p.Time
	}

	fv := domain.FeatureVector(Mean(rows))
	avg := MeanTime(times).In(loc)
	fv[domain.FieldAvgTime] = float64(avg.UnixNano()) / float64(time.Second)
	fv[domain.FieldHour] = float64(avg.Hour())
	fv[domain.FieldDayOfWeek] = float64((int(avg.Weekday()) + 6) % 7)
	fv[domain.FieldMonth] = float64(avg.Month())
	return fv, nil
}
