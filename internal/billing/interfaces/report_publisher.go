package interfaces

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	billing "abstraction-billing/internal/billing/domain"
	"abstraction-billing/internal/observability/metrics"
)

// Report formats.
const (
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ReportStore persists rendered reports.
type ReportStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// ReportKey is the store key of a batch summary in the given format.
func ReportKey(batchID, format string) string {
	return fmt.Sprintf("batches/%s/summary.%s", batchID, format)
}

// ContentType returns the MIME type of a report format.
func ContentType(format string) (string, error) {
	switch format {
	case FormatPDF:
		return contentTypePDF, nil
	case FormatXLSX:
		return contentTypeXLSX, nil
	}
	return "", fmt.Errorf("report: unknown format %q", format)
}

// ReportPublisher renders batch summaries and writes them to a store.
type ReportPublisher struct {
	store   ReportStore
	formats []string
	logger  *log.Logger
}

// NewReportPublisher constructs a publisher. Empty formats renders both PDF and XLSX.
func NewReportPublisher(store ReportStore, formats []string, logger *log.Logger) (*ReportPublisher, error) {
	if store == nil {
		return nil, errors.New("report publisher: nil store")
	}
	if len(formats) == 0 {
		formats = []string{FormatPDF, FormatXLSX}
	}
	for _, format := range formats {
		if _, err := ContentType(format); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ReportPublisher{store: store, formats: formats, logger: logger}, nil
}

// PublishBatchReport renders every configured format and stores it.
func (p *ReportPublisher) PublishBatchReport(ctx context.Context, batch *billing.Batch, invoices []*billing.Invoice) error {
	if p == nil {
		return errors.New("report publisher: nil publisher")
	}
	if batch == nil {
		return billing.ErrNilBatch
	}
	for _, format := range p.formats {
		start := time.Now()
		data, err := render(format, batch, invoices)
		if err == nil {
			contentType, _ := ContentType(format)
			err = p.store.Put(ctx, ReportKey(batch.ID, format), data, contentType)
		}
		if err != nil {
			metrics.ObserveReportExport(format, metrics.ResultError, time.Since(start))
			return fmt.Errorf("report %s: %w", format, err)
		}
		metrics.ObserveReportExport(format, metrics.ResultSuccess, time.Since(start))
		p.logger.Printf("batch report: batch=%s format=%s bytes=%d", batch.ID, format, len(data))
	}
	return nil
}

func render(format string, batch *billing.Batch, invoices []*billing.Invoice) ([]byte, error) {
	switch format {
	case FormatPDF:
		return BuildBatchReportPDF(batch, invoices)
	case FormatXLSX:
		return BuildBatchReportXLSX(batch, invoices)
	}
	return nil, fmt.Errorf("report: unknown format %q", format)
}
