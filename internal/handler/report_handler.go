package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-queue-api/internal/dto"
	"github.com/noah-isme/clinic-queue-api/pkg/response"
)

type exportService interface {
	TokenSlip(ctx context.Context, id string) (*dto.FileResult, error)
	VisitReport(ctx context.Context, query dto.VisitReportQuery) (*dto.FileResult, error)
}

// ReportHandler serves printable documents.
type ReportHandler struct {
	exports exportService
}

// NewReportHandler constructs handler.
func NewReportHandler(exports exportService) *ReportHandler {
	return &ReportHandler{exports: exports}
}

// TokenSlip godoc
// @Summary Printable token slip
// @Tags Reports
// @Produce application/pdf
// @Param id path string true "Patient ID"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /patients/{id}/slip [get]
func (h *ReportHandler) TokenSlip(c *gin.Context) {
	file, err := h.exports.TokenSlip(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Content)
}

// Visits godoc
// @Summary Visits registered on one day
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param date query string false "Day (YYYY-MM-DD) in clinic time, defaults to today"
// @Param department query string false "Only this department"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /reports/visits [get]
func (h *ReportHandler) Visits(c *gin.Context) {
	file, err := h.exports.VisitReport(c.Request.Context(), dto.VisitReportQuery{
		Date:       c.Query("date"),
		Department: c.Query("department"),
		Format:     dto.ReportFormat(c.Query("format")),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Content)
}
