package billing

import (
	"time"
)

// BatchType of a billing run.
type BatchType string

const (
	BatchTypeAnnual        BatchType = "annual"
	BatchTypeSupplementary BatchType = "supplementary"
	BatchTypeTwoPartTariff BatchType = "two_part_tariff"
)

// BatchStatus of a billing run.
type BatchStatus string

const (
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusReview     BatchStatus = "review"
	BatchStatusReady      BatchStatus = "ready"
	BatchStatusSent       BatchStatus = "sent"
	BatchStatusEmpty      BatchStatus = "empty"
	BatchStatusError      BatchStatus = "error"
)

// BatchErrorCode records which pipeline stage failed a batch.
type BatchErrorCode int

const (
	ErrorCodeNone                           BatchErrorCode = 0
	ErrorCodeFailedToPopulateChargeVersions BatchErrorCode = 10
	ErrorCodeFailedToProcessChargeVersions  BatchErrorCode = 20
	ErrorCodeFailedToPrepareTransactions    BatchErrorCode = 30
	ErrorCodeFailedToProcessTwoPartTariff   BatchErrorCode = 70
)

var batchTransitions = map[BatchStatus][]BatchStatus{
	BatchStatusProcessing: {BatchStatusEmpty, BatchStatusError, BatchStatusReview, BatchStatusReady},
	BatchStatusReview:     {BatchStatusProcessing, BatchStatusError},
	BatchStatusReady:      {BatchStatusSent},
}

// Batch is one billing run for a region over a range of financial years.
type Batch struct {
	ID         string
	RegionID   string
	Type       BatchType
	StartYear  FinancialYear
	EndYear    FinancialYear
	IsSummer   bool
	Status     BatchStatus
	ErrorCode  BatchErrorCode
	ExternalID string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Invoices   []*Invoice
}

// NewBatch creates a batch in processing status.
func NewBatch(id, regionID string, batchType BatchType, startYear, endYear FinancialYear, isSummer bool, now time.Time) (*Batch, error) {
	if id == "" || regionID == "" {
		return nil, ErrEmptyID
	}
	switch batchType {
	case BatchTypeAnnual, BatchTypeSupplementary, BatchTypeTwoPartTariff:
	default:
		return nil, ErrInvalidBatchType
	}
	if startYear.IsZero() || endYear.IsZero() {
		return nil, ErrInvalidFinancialYear
	}
	if startYear.EndYear() > endYear.EndYear() {
		return nil, ErrInvalidFinancialYearRange
	}
	now = now.UTC()
	return &Batch{
		ID:        id,
		RegionID:  regionID,
		Type:      batchType,
		StartYear: startYear,
		EndYear:   endYear,
		IsSummer:  isSummer,
		Status:    BatchStatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ParseBatchStatus validates a status value.
func ParseBatchStatus(value string) (BatchStatus, error) {
	switch s := BatchStatus(value); s {
	case BatchStatusProcessing, BatchStatusReview, BatchStatusReady, BatchStatusSent, BatchStatusEmpty, BatchStatusError:
		return s, nil
	}
	return "", ErrInvalidStatus
}

// ParseBatchType validates a type value.
func ParseBatchType(value string) (BatchType, error) {
	switch t := BatchType(value); t {
	case BatchTypeAnnual, BatchTypeSupplementary, BatchTypeTwoPartTariff:
		return t, nil
	}
	return "", ErrInvalidBatchType
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to BatchStatus) bool {
	for _, s := range batchTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// SetStatus moves the batch to status. Setting the current status is a no-op.
func (b *Batch) SetStatus(status BatchStatus, now time.Time) error {
	if b == nil {
		return ErrNilBatch
	}
	if b.Status == status {
		return nil
	}
	if !CanTransition(b.Status, status) {
		return ErrInvalidStatusTransition
	}
	b.Status = status
	b.UpdatedAt = now.UTC()
	return nil
}

// Fail moves the batch to error with a stage code.
func (b *Batch) Fail(code BatchErrorCode, now time.Time) error {
	if err := b.SetStatus(BatchStatusError, now); err != nil {
		return err
	}
	b.ErrorCode = code
	return nil
}

// FinancialYears returns the years the batch bills.
func (b *Batch) FinancialYears() []FinancialYear {
	years, err := FinancialYears(b.StartYear.EndYear(), b.EndYear.EndYear())
	if err != nil {
		return nil
	}
	return years
}

// DateRange spans the batch's financial years.
func (b *Batch) DateRange() DateRange {
	return DateRange{Start: b.StartYear.Start(), End: b.EndYear.End()}
}

// IsLive reports whether the batch blocks a new batch in its region.
func (b *Batch) IsLive() bool {
	switch b.Status {
	case BatchStatusProcessing, BatchStatusReview, BatchStatusReady:
		return true
	}
	return false
}

// IsDeletable reports whether the batch may be deleted.
func (b *Batch) IsDeletable() bool {
	switch b.Status {
	case BatchStatusError, BatchStatusReady, BatchStatusReview, BatchStatusEmpty:
		return true
	}
	return false
}

// IsTwoPartTariff reports a two-part-tariff run.
func (b *Batch) IsTwoPartTariff() bool { return b.Type == BatchTypeTwoPartTariff }

// IsSupplementary reports a supplementary run.
func (b *Batch) IsSupplementary() bool { return b.Type == BatchTypeSupplementary }

// RequiresAnnualCharges reports whether standard and compensation charges are raised.
func (b *Batch) RequiresAnnualCharges() bool {
	return b.Type == BatchTypeAnnual || b.Type == BatchTypeSupplementary
}

// AllowsTwoPartTariffCharges reports whether two-part-tariff supplementary charges may be raised.
func (b *Batch) AllowsTwoPartTariffCharges() bool {
	return b.Type == BatchTypeTwoPartTariff || b.Type == BatchTypeSupplementary
}
