package interfaces

import (
	"context"
	"errors"
	"log"

	"github.com/shopspring/decimal"

	billing "abstraction-billing/internal/billing/domain"
)

// LoggingLedger stands in for the charging ledger by logging submissions.
type LoggingLedger struct {
	logger *log.Logger
	newID  func() string
}

// NewLoggingLedger constructs a logging ledger. newID issues ledger references.
func NewLoggingLedger(logger *log.Logger, newID func() string) (*LoggingLedger, error) {
	if newID == nil {
		return nil, errors.New("logging ledger: nil id generator")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &LoggingLedger{logger: logger, newID: newID}, nil
}

// SubmitBatch logs the batch totals and returns a new ledger reference.
func (l *LoggingLedger) SubmitBatch(ctx context.Context, batch *billing.Batch, transactions []*billing.Transaction) (string, error) {
	_ = ctx
	if l == nil {
		return "", errors.New("logging ledger: nil ledger")
	}
	if batch == nil {
		return "", billing.ErrNilBatch
	}
	var (
		debits  int
		credits int
		volume  = decimal.Zero
	)
	for _, t := range transactions {
		if t.IsCredit {
			credits++
		} else {
			debits++
		}
		if t.Volume == nil {
			continue
		}
		if t.IsCredit {
			volume = volume.Sub(*t.Volume)
		} else {
			volume = volume.Add(*t.Volume)
		}
	}
	ref := l.newID()
	l.logger.Printf("ledger submit: batch=%s region=%s ref=%s debits=%d credits=%d net_volume=%s",
		batch.ID, batch.RegionID, ref, debits, credits, volume.String())
	return ref, nil
}
