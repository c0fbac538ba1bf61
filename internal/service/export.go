package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

// XLSXContentType is the MIME type of the generated workbook.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportSheet is the worksheet holding the exported rows.
const ReportSheet = "co2_data"

type ExportService struct {
	source   SensorSource
	uploader ReportUploader
	loc      *time.Location
	now      func() time.Time
}

// Report is a generated spreadsheet export. URL is set when it was also uploaded.
type Report struct {
	Name        string
	ContentType string
	Data        []byte
	URL         string
}

var reportHeader = []interface{}{"timestamp", "co2_values", "temperature", "humidity", "tvoc_values"}

// CO2Report exports the last 30 days of SensorData as an xlsx workbook.
func (s *ExportService) CO2Report(ctx context.Context) (Report, error) {
	now := s.now().In(s.loc)
	rows, err := s.source.SensorDataSince(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		return Report{}, err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Warn().Err(err).Msg("close workbook")
		}
	}()
	if err := f.SetSheetName("Sheet1", ReportSheet); err != nil {
		return Report{}, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(ReportSheet, "A1", &reportHeader); err != nil {
		return Report{}, fmt.Errorf("write header: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return Report{}, err
		}
		row := []interface{}{
			r.Timestamp.In(s.loc).Format("2006-01-02 15:04:05"),
			optional(r.CO2),
			optional(r.Temperature),
			optional(r.Humidity),
			optional(r.TVOC),
		}
		if err := f.SetSheetRow(ReportSheet, cell, &row); err != nil {
			return Report{}, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return Report{}, fmt.Errorf("write workbook: %w", err)
	}

	rep := Report{
		Name:        fmt.Sprintf("co2_data_%s.xlsx", now.Format("20060102_1504")),
		ContentType: XLSXContentType,
		Data:        buf.Bytes(),
	}
	if s.uploader != nil {
		url, err := s.uploader.UploadReport(ctx, "reports/"+rep.Name, rep.Data, rep.ContentType)
		if err != nil {
			log.Warn().Err(err).Str("report", rep.Name).Msg("report upload failed")
		} else {
			rep.URL = url
		}
	}
	return rep, nil
}

// optional leaves missing measurements as empty cells.
func optional(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
