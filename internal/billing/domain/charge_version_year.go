package billing

import "time"

// ChargeVersionYearStatus tracks one unit of batch work.
type ChargeVersionYearStatus string

const (
	ChargeVersionYearStatusProcessing ChargeVersionYearStatus = "processing"
	ChargeVersionYearStatusReady      ChargeVersionYearStatus = "ready"
	ChargeVersionYearStatusError      ChargeVersionYearStatus = "error"
)

// ChargeVersionYear pairs a charge version with one financial year of a batch.
type ChargeVersionYear struct {
	ID              string
	BatchID         string
	ChargeVersionID string
	FinancialYear   FinancialYear
	Status          ChargeVersionYearStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewChargeVersionYear creates a row in processing status.
func NewChargeVersionYear(id, batchID, chargeVersionID string, fy FinancialYear, now time.Time) (*ChargeVersionYear, error) {
	if id == "" || batchID == "" || chargeVersionID == "" {
		return nil, ErrEmptyID
	}
	if fy.IsZero() {
		return nil, ErrInvalidFinancialYear
	}
	now = now.UTC()
	return &ChargeVersionYear{
		ID:              id,
		BatchID:         batchID,
		ChargeVersionID: chargeVersionID,
		FinancialYear:   fy,
		Status:          ChargeVersionYearStatusProcessing,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// ParseChargeVersionYearStatus validates a status value.
func ParseChargeVersionYearStatus(value string) (ChargeVersionYearStatus, error) {
	switch s := ChargeVersionYearStatus(value); s {
	case ChargeVersionYearStatusProcessing, ChargeVersionYearStatusReady, ChargeVersionYearStatusError:
		return s, nil
	}
	return "", ErrInvalidStatus
}

// StatusCounts holds the number of rows per status for a batch. Missing
// statuses count as zero.
type StatusCounts struct {
	Processing int
	Ready      int
	Error      int
}

// Total is the number of rows counted.
func (c StatusCounts) Total() int { return c.Processing + c.Ready + c.Error }

// Add increments the counter for status.
func (c *StatusCounts) Add(status ChargeVersionYearStatus, n int) {
	switch status {
	case ChargeVersionYearStatusProcessing:
		c.Processing += n
	case ChargeVersionYearStatusReady:
		c.Ready += n
	case ChargeVersionYearStatusError:
		c.Error += n
	}
}
