package application

import (
	"context"
	"errors"
	"log"

	billing "abstraction-billing/internal/billing/domain"
	"abstraction-billing/internal/observability/metrics"
)

// TransactionPreparer finalises the transactions of a processed batch and
// submits them to the ledger.
type TransactionPreparer struct {
	batches      billing.BatchRepository
	invoices     billing.InvoiceRepository
	volumes      billing.BillingVolumeRepository
	transactions billing.TransactionRepository
	ledger       Ledger
	reports      ReportPublisher
	clock        Clock
	newID        IDGenerator
	logger       *log.Logger
}

// NewTransactionPreparer constructs the preparer. reports may be nil.
func NewTransactionPreparer(
	batches billing.BatchRepository,
	invoices billing.InvoiceRepository,
	volumes billing.BillingVolumeRepository,
	transactions billing.TransactionRepository,
	ledger Ledger,
	reports ReportPublisher,
	clock Clock,
	newID IDGenerator,
	logger *log.Logger,
) (*TransactionPreparer, error) {
	if batches == nil {
		return nil, errors.New("transaction preparer: nil batch repository")
	}
	if invoices == nil {
		return nil, errors.New("transaction preparer: nil invoice repository")
	}
	if volumes == nil {
		return nil, errors.New("transaction preparer: nil billing volume repository")
	}
	if transactions == nil {
		return nil, errors.New("transaction preparer: nil transaction repository")
	}
	if ledger == nil {
		return nil, errors.New("transaction preparer: nil ledger")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if newID == nil {
		newID = NewUUID
	}
	if logger == nil {
		logger = log.Default()
	}
	return &TransactionPreparer{
		batches:      batches,
		invoices:     invoices,
		volumes:      volumes,
		transactions: transactions,
		ledger:       ledger,
		reports:      reports,
		clock:        clock,
		newID:        newID,
		logger:       logger,
	}, nil
}

// Prepare applies reviewed volumes, reconciles supplementary charges, submits
// the batch and moves it to ready, or to empty when nothing is left to bill.
// A batch that is already ready is left alone.
func (p *TransactionPreparer) Prepare(ctx context.Context, batchID string) error {
	batch, err := p.batches.FindByID(ctx, batchID)
	if err != nil {
		return err
	}
	if batch.Status == billing.BatchStatusReady {
		return nil
	}
	if batch.Status != billing.BatchStatusProcessing {
		p.logger.Printf("prepare transactions skipped: batch=%s status=%s", batch.ID, batch.Status)
		return nil
	}

	invoices, err := p.invoices.ListByBatch(ctx, batch.ID)
	if err != nil {
		return err
	}
	volumes, err := p.volumes.ListByBatch(ctx, batch.ID)
	if err != nil {
		return err
	}

	var all []*billing.Transaction
	for _, invoice := range invoices {
		if len(volumes) > 0 {
			billing.ApplyBillingVolumes(invoice.Transactions(), invoice.FinancialYear, volumes)
		}
		if batch.IsSupplementary() {
			for _, il := range invoice.InvoiceLicences {
				historic, err := p.transactions.ListSent(ctx, il.LicenceNumber, invoice.FinancialYear)
				if err != nil {
					return err
				}
				il.Transactions = billing.ReconcileSupplementary(il.Transactions, historic, p.newID)
			}
		}
		all = append(all, invoice.Transactions()...)
	}

	now := p.clock.Now()
	if len(all) == 0 {
		if err := batch.SetStatus(billing.BatchStatusEmpty, now); err != nil {
			return err
		}
		if err := p.batches.Save(ctx, batch); err != nil {
			return err
		}
		metrics.IncBatchStatus(string(batch.Status))
		p.logger.Printf("prepare transactions: batch=%s empty", batch.ID)
		return nil
	}

	ref, err := p.ledger.SubmitBatch(ctx, batch, all)
	if err != nil {
		return err
	}
	for _, t := range all {
		if t.Status == billing.TransactionStatusCandidate {
			t.Status = billing.TransactionStatusChargeCreated
		}
	}
	for _, invoice := range invoices {
		if err := p.invoices.Save(ctx, invoice); err != nil {
			return err
		}
	}

	batch.ExternalID = ref
	batch.Invoices = invoices
	if p.reports != nil {
		if err := p.reports.PublishBatchReport(ctx, batch, invoices); err != nil {
			p.logger.Printf("batch report failed: batch=%s err=%v", batch.ID, err)
		}
	}
	if err := batch.SetStatus(billing.BatchStatusReady, now); err != nil {
		return err
	}
	if err := p.batches.Save(ctx, batch); err != nil {
		return err
	}
	metrics.IncBatchStatus(string(batch.Status))
	p.logger.Printf("prepare transactions: batch=%s transactions=%d ledger=%s", batch.ID, len(all), ref)
	return nil
}
