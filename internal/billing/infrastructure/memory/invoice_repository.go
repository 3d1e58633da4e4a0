package memory

import (
	"context"
	"sync"

	billing "abstraction-billing/internal/billing/domain"
)

// InvoiceRepository is an in-memory invoice store. Invoices are kept per
// batch in insertion order.
type InvoiceRepository struct {
	mu   sync.RWMutex
	data map[string][]*billing.Invoice
}

// NewInvoiceRepository constructs a repository.
func NewInvoiceRepository() *InvoiceRepository {
	return &InvoiceRepository{data: make(map[string][]*billing.Invoice)}
}

// Save merges invoice into the stored invoice of the same account and year.
func (r *InvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	_ = ctx
	if invoice == nil {
		return billing.ErrNilInvoice
	}
	if invoice.BatchID == "" {
		return billing.ErrEmptyID
	}
	incoming := cloneInvoice(invoice)

	r.mu.Lock()
	defer r.mu.Unlock()
	var stored *billing.Invoice
	for _, existing := range r.data[invoice.BatchID] {
		if existing.InvoiceAccount.ID == incoming.InvoiceAccount.ID && existing.FinancialYear == incoming.FinancialYear {
			stored = existing
			break
		}
	}
	if stored == nil {
		for _, il := range incoming.InvoiceLicences {
			il.InvoiceID = incoming.ID
		}
		r.data[invoice.BatchID] = append(r.data[invoice.BatchID], incoming)
		return nil
	}

	for _, il := range incoming.InvoiceLicences {
		mergeInvoiceLicence(stored, il)
	}
	return nil
}

func mergeInvoiceLicence(stored *billing.Invoice, il *billing.InvoiceLicence) {
	for _, existing := range stored.InvoiceLicences {
		if existing.ID == il.ID {
			existing.Transactions = il.Transactions
			return
		}
	}
	for _, existing := range stored.InvoiceLicences {
		if existing.UniqueID() == il.UniqueID() {
			existing.Transactions = append(existing.Transactions, il.Transactions...)
			return
		}
	}
	il.InvoiceID = stored.ID
	stored.InvoiceLicences = append(stored.InvoiceLicences, il)
}

// ListByBatch returns copies of the batch invoices.
func (r *InvoiceRepository) ListByBatch(ctx context.Context, batchID string) ([]*billing.Invoice, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored := r.data[batchID]
	result := make([]*billing.Invoice, 0, len(stored))
	for _, inv := range stored {
		result = append(result, cloneInvoice(inv))
	}
	return result, nil
}

// DeleteByBatch removes the batch invoices.
func (r *InvoiceRepository) DeleteByBatch(ctx context.Context, batchID string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, batchID)
	return nil
}

func (r *InvoiceRepository) batchIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.data))
	for id := range r.data {
		ids = append(ids, id)
	}
	return ids
}

func cloneInvoice(inv *billing.Invoice) *billing.Invoice {
	c := *inv
	c.InvoiceLicences = make([]*billing.InvoiceLicence, 0, len(inv.InvoiceLicences))
	for _, il := range inv.InvoiceLicences {
		ilc := *il
		ilc.Transactions = make([]*billing.Transaction, 0, len(il.Transactions))
		for _, t := range il.Transactions {
			tc := *t
			tc.Agreements = append([]billing.Agreement(nil), t.Agreements...)
			ilc.Transactions = append(ilc.Transactions, &tc)
		}
		c.InvoiceLicences = append(c.InvoiceLicences, &ilc)
	}
	return &c
}

// TransactionRepository answers transaction queries over the batch and
// invoice stores.
type TransactionRepository struct {
	batches  *BatchRepository
	invoices *InvoiceRepository
}

// NewTransactionRepository constructs a repository.
func NewTransactionRepository(batches *BatchRepository, invoices *InvoiceRepository) *TransactionRepository {
	return &TransactionRepository{batches: batches, invoices: invoices}
}

// ListSent returns the licence's transactions for the year in sent batches,
// oldest batch first.
func (r *TransactionRepository) ListSent(ctx context.Context, licenceNumber string, fy billing.FinancialYear) ([]*billing.Transaction, error) {
	var sent []*billing.Batch
	for _, id := range r.invoices.batchIDs() {
		batch, err := r.batches.FindByID(ctx, id)
		if err != nil {
			continue
		}
		if batch.Status == billing.BatchStatusSent {
			sent = append(sent, batch)
		}
	}
	sortBatches(sent)

	var result []*billing.Transaction
	for _, batch := range sent {
		invoices, err := r.invoices.ListByBatch(ctx, batch.ID)
		if err != nil {
			return nil, err
		}
		for _, inv := range invoices {
			if inv.FinancialYear != fy {
				continue
			}
			for _, il := range inv.InvoiceLicences {
				if il.LicenceNumber == licenceNumber {
					result = append(result, il.Transactions...)
				}
			}
		}
	}
	return result, nil
}
