package dto

// ReportFormat enumerates export encodings.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// VisitReportQuery selects one clinic day of registrations. Date is a
// YYYY-MM-DD calendar day in the clinic timezone; empty means today.
type VisitReportQuery struct {
	Date       string
	Department string
	Format     ReportFormat
}

// FileResult is a rendered document ready to stream.
type FileResult struct {
	Filename    string
	ContentType string
	Content     []byte
}
