package application

import (
	"context"
	"time"

	"github.com/google/uuid"

	billing "abstraction-billing/internal/billing/domain"
	"abstraction-billing/internal/jobqueue"
)

// Directory resolves invoice accounts and licence holders from the CRM service.
type Directory interface {
	GetInvoiceAccount(ctx context.Context, invoiceAccountID string) (billing.InvoiceAccount, error)
	GetLicenceHolder(ctx context.Context, licenceNumber string, at time.Time) (billing.LicenceHolder, error)
}

// ReturnsSource lists abstraction returns for two-part-tariff matching.
type ReturnsSource interface {
	ListReturns(ctx context.Context, licenceNumber string, fy billing.FinancialYear, isSummer bool) ([]billing.Return, error)
}

// Ledger submits a prepared batch to the external charging ledger and
// returns the ledger's reference for it.
type Ledger interface {
	SubmitBatch(ctx context.Context, batch *billing.Batch, transactions []*billing.Transaction) (string, error)
}

// ReportPublisher renders and stores a batch summary.
type ReportPublisher interface {
	PublishBatchReport(ctx context.Context, batch *billing.Batch, invoices []*billing.Invoice) error
}

// Queue publishes pipeline jobs.
type Queue interface {
	Publish(ctx context.Context, msg jobqueue.Message) (string, error)
	DeleteQueue(ctx context.Context, name string) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator returns new entity ids.
type IDGenerator func() string

// NewUUID returns a random UUID string.
func NewUUID() string {
	return uuid.NewString()
}
