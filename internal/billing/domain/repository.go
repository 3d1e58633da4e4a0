package billing

import (
	"context"
	"time"
)

// BatchRepository persists batches.
type BatchRepository interface {
	Save(ctx context.Context, batch *Batch) error
	FindByID(ctx context.Context, id string) (*Batch, error)
	ListByRegion(ctx context.Context, regionID string) ([]*Batch, error)
	// ListSentTwoPartTariff returns sent two-part-tariff batches for the region
	// and year with their invoices loaded.
	ListSentTwoPartTariff(ctx context.Context, regionID string, fy FinancialYear) ([]*Batch, error)
	Delete(ctx context.Context, id string) error
}

// ChargeVersionRepository loads charge versions.
type ChargeVersionRepository interface {
	Save(ctx context.Context, cv *ChargeVersion) error
	FindByID(ctx context.Context, id string) (*ChargeVersion, error)
	// ListByRegion returns charge versions of licences in the region whose
	// validity overlaps period.
	ListByRegion(ctx context.Context, regionID string, period DateRange) ([]*ChargeVersion, error)
}

// ChargeVersionYearRepository persists the batch work items.
type ChargeVersionYearRepository interface {
	Insert(ctx context.Context, cvy *ChargeVersionYear) error
	FindByID(ctx context.Context, id string) (*ChargeVersionYear, error)
	SetStatus(ctx context.Context, id string, status ChargeVersionYearStatus, now time.Time) error
	CountByStatus(ctx context.Context, batchID string) (StatusCounts, error)
	DeleteByBatch(ctx context.Context, batchID string) error
}

// BillingVolumeRepository persists two-part-tariff billing volumes.
type BillingVolumeRepository interface {
	Save(ctx context.Context, volumes []*BillingVolume) error
	// FindForSeason returns volumes of the batch, year and season for the given elements.
	FindForSeason(ctx context.Context, batchID string, fy FinancialYear, isSummer bool, chargeElementIDs []string) ([]*BillingVolume, error)
	ListByBatch(ctx context.Context, batchID string) ([]*BillingVolume, error)
	CountUnapproved(ctx context.Context, batchID string) (int, error)
	ApproveByBatch(ctx context.Context, batchID string) error
	DeleteByBatch(ctx context.Context, batchID string) error
}

// InvoiceRepository persists invoices with their invoice licences and transactions.
type InvoiceRepository interface {
	// Save merges invoice into any existing invoice of the same batch, account
	// and year. A stored invoice licence with the same id has its transactions
	// replaced; one with the same UniqueID but another id has them appended.
	Save(ctx context.Context, invoice *Invoice) error
	ListByBatch(ctx context.Context, batchID string) ([]*Invoice, error)
	DeleteByBatch(ctx context.Context, batchID string) error
}

// TransactionRepository queries transactions across batches.
type TransactionRepository interface {
	// ListSent returns transactions billed for the licence and year in sent batches.
	ListSent(ctx context.Context, licenceNumber string, fy FinancialYear) ([]*Transaction, error)
}
