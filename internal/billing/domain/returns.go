package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReturnStatus of an abstraction return.
type ReturnStatus string

const (
	ReturnStatusDue       ReturnStatus = "due"
	ReturnStatusReceived  ReturnStatus = "received"
	ReturnStatusCompleted ReturnStatus = "completed"
	ReturnStatusVoid      ReturnStatus = "void"
)

// ReturnLine is a reported quantity in cubic metres over a date range.
type ReturnLine struct {
	DateRange DateRange
	Quantity  decimal.Decimal
}

// Return is a reported abstraction return for a licence.
type Return struct {
	ID                string
	LicenceNumber     string
	Status            ReturnStatus
	IsUnderQuery      bool
	IsSummer          bool
	ReceivedDate      time.Time
	AbstractionPeriod AbstractionPeriod
	PurposeCodes      []string
	Lines             []ReturnLine
}

// ParseReturnStatus validates a return status.
func ParseReturnStatus(value string) (ReturnStatus, error) {
	switch s := ReturnStatus(value); s {
	case ReturnStatusDue, ReturnStatusReceived, ReturnStatusCompleted, ReturnStatusVoid:
		return s, nil
	}
	return "", ErrInvalidStatus
}

// MatchesPurpose reports whether the return covers the purpose. A return
// without purposes covers every purpose.
func (r Return) MatchesPurpose(code string) bool {
	if len(r.PurposeCodes) == 0 {
		return true
	}
	for _, c := range r.PurposeCodes {
		if c == code {
			return true
		}
	}
	return false
}
