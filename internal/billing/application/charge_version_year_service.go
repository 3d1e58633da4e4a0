package application

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	billing "abstraction-billing/internal/billing/domain"
	"abstraction-billing/internal/observability/metrics"
)

// ChargeVersionYearService builds the invoice for one charge version in one
// financial year of a batch.
type ChargeVersionYearService struct {
	batches        billing.BatchRepository
	chargeVersions billing.ChargeVersionRepository
	directory      Directory
	twoPartTariff  *TwoPartTariffService
	newID          IDGenerator
	logger         *log.Logger
}

// NewChargeVersionYearService constructs the service.
func NewChargeVersionYearService(
	batches billing.BatchRepository,
	chargeVersions billing.ChargeVersionRepository,
	directory Directory,
	twoPartTariff *TwoPartTariffService,
	newID IDGenerator,
	logger *log.Logger,
) (*ChargeVersionYearService, error) {
	if batches == nil {
		return nil, errors.New("charge version year service: nil batch repository")
	}
	if chargeVersions == nil {
		return nil, errors.New("charge version year service: nil charge version repository")
	}
	if directory == nil {
		return nil, errors.New("charge version year service: nil directory")
	}
	if twoPartTariff == nil {
		return nil, errors.New("charge version year service: nil two-part tariff service")
	}
	if newID == nil {
		newID = NewUUID
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ChargeVersionYearService{
		batches:        batches,
		chargeVersions: chargeVersions,
		directory:      directory,
		twoPartTariff:  twoPartTariff,
		newID:          newID,
		logger:         logger,
	}, nil
}

// Process generates the transactions of cvy into a single invoice. It returns
// a nil invoice when the charge version has nothing to bill in the year.
func (s *ChargeVersionYearService) Process(ctx context.Context, cvy *billing.ChargeVersionYear) (*billing.Invoice, error) {
	if cvy == nil {
		return nil, billing.ErrChargeVersionYearNotFound
	}
	batch, err := s.batches.FindByID(ctx, cvy.BatchID)
	if err != nil {
		return nil, err
	}
	cv, err := s.chargeVersions.FindByID(ctx, cvy.ChargeVersionID)
	if err != nil {
		return nil, err
	}
	fy := cvy.FinancialYear
	chargePeriod, ok := cv.ChargePeriod(fy)
	if !ok {
		return nil, nil
	}

	account, err := s.directory.GetInvoiceAccount(ctx, cv.InvoiceAccountID)
	if err != nil {
		return nil, fmt.Errorf("invoice account %s: %w", cv.InvoiceAccountID, err)
	}
	holder, err := s.directory.GetLicenceHolder(ctx, cv.Licence.LicenceNumber, chargePeriod.Start)
	if err != nil {
		return nil, fmt.Errorf("licence holder %s: %w", cv.Licence.LicenceNumber, err)
	}

	var sent []*billing.Batch
	if batch.IsSupplementary() {
		sent, err = s.batches.ListSentTwoPartTariff(ctx, batch.RegionID, fy)
		if err != nil {
			return nil, err
		}
	}

	transactions, err := billing.CreateTransactions(batch, fy, cv, sent)
	if err != nil {
		return nil, err
	}
	for _, t := range transactions {
		t.ID = s.newID()
	}

	invoice, err := billing.NewInvoice(s.newID(), batch.ID, account, fy)
	if err != nil {
		return nil, err
	}
	invoiceLicence, err := billing.NewInvoiceLicence(s.newID(), cv.Licence.LicenceNumber, holder)
	if err != nil {
		return nil, err
	}
	invoiceLicence.Transactions = transactions
	invoice.AddInvoiceLicence(invoiceLicence)

	if err := s.applyTwoPartTariff(ctx, batch, fy, invoiceLicence); err != nil {
		return nil, &twoPartTariffError{err: err}
	}

	kinds := make(map[string]int)
	for _, t := range transactions {
		kinds[t.Kind()]++
	}
	for kind, n := range kinds {
		metrics.AddTransactions(kind, n)
	}
	return invoice, nil
}

// applyTwoPartTariff matches the summer and winter/all-year elements
// concurrently and waits for both.
func (s *ChargeVersionYearService) applyTwoPartTariff(ctx context.Context, batch *billing.Batch, fy billing.FinancialYear, il *billing.InvoiceLicence) error {
	tpt := il.TwoPartTariffTransactions()
	if len(tpt) == 0 {
		return nil
	}
	var summer, winterAllYear []*billing.Transaction
	for _, t := range tpt {
		if t.ChargeElement.Season.IsSummer() {
			summer = append(summer, t)
		} else {
			winterAllYear = append(winterAllYear, t)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, group := range []struct {
		isSummer     bool
		transactions []*billing.Transaction
	}{
		{isSummer: true, transactions: summer},
		{isSummer: false, transactions: winterAllYear},
	} {
		if len(group.transactions) == 0 {
			continue
		}
		group := group
		g.Go(func() error {
			elements := billing.MatchingElementsFromTransactions(group.transactions)
			return s.twoPartTariff.GetVolumes(gctx, batch, il.LicenceNumber, fy, group.isSummer, elements, group.transactions)
		})
	}
	return g.Wait()
}
