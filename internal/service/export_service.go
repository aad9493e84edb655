package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/clinic-queue-api/internal/dto"
	"github.com/noah-isme/clinic-queue-api/internal/models"
	appErrors "github.com/noah-isme/clinic-queue-api/pkg/errors"
	"github.com/noah-isme/clinic-queue-api/pkg/export"
)

const (
	contentTypeCSV  = "text/csv"
	contentTypePDF  = "application/pdf"
	reportDayLayout = "2006-01-02"
)

type visitSource interface {
	Get(ctx context.Context, id string) (*models.PatientRecord, error)
	VisitsOn(ctx context.Context, day time.Time, department string) ([]models.PatientRecord, error)
	FormatTime(t time.Time) string
	Location() *time.Location
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	RenderSlip(slip export.Slip) ([]byte, error)
}

// ExportConfig tunes printed documents.
type ExportConfig struct {
	ClinicName string
}

// ExportService renders token slips and daily visit reports.
type ExportService struct {
	visits visitSource
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
	cfg    ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(visits visitSource, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{visits: visits, csv: csv, pdf: pdf, logger: logger, cfg: cfg}
}

// TokenSlip renders the printable slip handed out at registration.
func (s *ExportService) TokenSlip(ctx context.Context, id string) (*dto.FileResult, error) {
	record, err := s.visits.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	payload, err := s.pdf.RenderSlip(export.Slip{
		Clinic:     s.cfg.ClinicName,
		Token:      record.Token,
		Name:       record.Name,
		Department: record.Department,
		TimeIn:     s.visits.FormatTime(record.TimeIn),
	})
	if err != nil {
		s.logger.Error("render token slip failed", zap.String("patient_id", record.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render token slip")
	}
	return &dto.FileResult{
		Filename:    fmt.Sprintf("token_%s.pdf", sanitizeFilename(record.Token)),
		ContentType: contentTypePDF,
		Content:     payload,
	}, nil
}

// VisitReport renders one day's registrations as CSV or PDF.
func (s *ExportService) VisitReport(ctx context.Context, query dto.VisitReportQuery) (*dto.FileResult, error) {
	format := dto.ReportFormat(strings.ToLower(string(query.Format)))
	if format == "" {
		format = dto.ReportFormatCSV
	}
	if format != dto.ReportFormatCSV && format != dto.ReportFormatPDF {
		return nil, appErrors.Field("format", fmt.Sprintf("unsupported format %q", query.Format))
	}
	day := time.Now().In(s.visits.Location())
	if raw := strings.TrimSpace(query.Date); raw != "" {
		parsed, err := time.ParseInLocation(reportDayLayout, raw, s.visits.Location())
		if err != nil {
			return nil, appErrors.Field("date", "date must be formatted YYYY-MM-DD")
		}
		day = parsed
	}

	records, err := s.visits.VisitsOn(ctx, day, query.Department)
	if err != nil {
		return nil, err
	}
	label := day.Format(reportDayLayout)
	dataset := s.visitDataset(records, label, query.Department)

	var payload []byte
	contentType := contentTypeCSV
	switch format {
	case dto.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset)
		contentType = contentTypePDF
	default:
		payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		s.logger.Error("render visit report failed", zap.String("date", label), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render visit report")
	}

	name := "visits_" + label
	if query.Department != "" {
		name += "_" + sanitizeFilename(strings.ToLower(query.Department))
	}
	return &dto.FileResult{
		Filename:    fmt.Sprintf("%s.%s", name, format),
		ContentType: contentType,
		Content:     payload,
	}, nil
}

func (s *ExportService) visitDataset(records []models.PatientRecord, day, department string) export.Dataset {
	title := "Visits " + day
	if department != "" {
		title += " - " + department
	}
	dataset := export.Dataset{
		Title:   title,
		Headers: []string{"Token", "Name", "Department", "Symptoms", "Status", "Time In", "Time Out"},
		Rows:    make([][]string, 0, len(records)),
	}
	for _, r := range records {
		timeOut := ""
		if r.TimeOut != nil {
			timeOut = s.visits.FormatTime(*r.TimeOut)
		}
		dataset.Rows = append(dataset.Rows, []string{
			r.Token, r.Name, r.Department, r.Symptoms, string(r.Status), s.visits.FormatTime(r.TimeIn), timeOut,
		})
	}
	return dataset
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
