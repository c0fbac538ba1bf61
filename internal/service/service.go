package service

import (
	"context"
	"time"

	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/aggregator"
	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/domain"
)

// SensorSource reads the SensorData series, from Postgres or the HTTP API.
type SensorSource interface {
	LatestSensorData(ctx context.Context) (*domain.SensorReading, error)
	SensorDataSince(ctx context.Context, since time.Time) ([]domain.SensorReading, error)
}

// FeedbackSink accepts user verdicts on a prediction.
type FeedbackSink interface {
	SubmitFeedback(ctx context.Context, fb domain.FeedbackRecord) error
}

// ReadingSink persists complete climate readings.
type ReadingSink interface {
	SaveClimateReading(ctx context.Context, r domain.ClimateReading) error
}

// ClimateStore answers the leaderboard's window averages.
type ClimateStore interface {
	AverageSince(ctx context.Context, since time.Time) (domain.WindowAverage, error)
	SaveAnalysis(ctx context.Context, a domain.AnalysisRecord) error
}

type ReportUploader interface {
	UploadReport(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type ContactSender interface {
	SendContact(ctx context.Context, name, email, message string) error
}

// Deps wires the services. Reports and Contact may be nil.
type Deps struct {
	Source       SensorSource
	Feedback     FeedbackSink
	Climate      ClimateStore
	ReadingSinks []ReadingSink
	Buffer       *aggregator.Buffer
	Reports      ReportUploader
	Contact      ContactSender
	Room         string
	Location     *time.Location
}

// Services is the context object handed to the web layer and the binaries.
type Services struct {
	Source      SensorSource
	Buffer      *aggregator.Buffer
	Ingest      *IngestService
	Feedback    *FeedbackService
	Leaderboard *LeaderboardService
	Export      *ExportService
	Contact     *ContactService
}

func New(d Deps) *Services {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Services{
		Source: d.Source,
		Buffer: d.Buffer,
		Ingest: &IngestService{
			buf:     d.Buffer,
			sinks:   d.ReadingSinks,
			room:    d.Room,
			timeout: 5 * time.Second,
		},
		Feedback:    &FeedbackService{buf: d.Buffer, sink: d.Feedback},
		Leaderboard: &LeaderboardService{buf: d.Buffer, store: d.Climate, loc: loc, now: time.Now},
		Export:      &ExportService{source: d.Source, uploader: d.Reports, loc: loc, now: time.Now},
		Contact:     &ContactService{sender: d.Contact},
	}
}

// Overview is what the dashboard shows.
type Overview struct {
	State  aggregator.State
	Stored *domain.SensorReading
}

// Overview combines the live buffer with the newest stored reading. A failing
// source only blanks the stored reading.
func (s *Services) Overview(ctx context.Context) (Overview, error) {
	out := Overview{State: s.Buffer.State()}
	if s.Source == nil {
		return out, nil
	}
	stored, err := s.Source.LatestSensorData(ctx)
	if err != nil {
		return out, err
	}
	out.Stored = stored
	return out, nil
}
