package application

import (
	"context"
	"errors"
	"log"

	billing "abstraction-billing/internal/billing/domain"
	"abstraction-billing/internal/observability/metrics"
)

// TwoPartTariffService computes and persists billing volumes for the
// two-part-tariff transactions of a licence.
type TwoPartTariffService struct {
	volumes billing.BillingVolumeRepository
	returns ReturnsSource
	matcher billing.ReturnsMatcher
	newID   IDGenerator
	logger  *log.Logger
}

// NewTwoPartTariffService constructs the service. A nil matcher uses the
// standard returns matcher.
func NewTwoPartTariffService(
	volumes billing.BillingVolumeRepository,
	returns ReturnsSource,
	matcher billing.ReturnsMatcher,
	newID IDGenerator,
	logger *log.Logger,
) (*TwoPartTariffService, error) {
	if volumes == nil {
		return nil, errors.New("two-part tariff service: nil billing volume repository")
	}
	if returns == nil {
		return nil, errors.New("two-part tariff service: nil returns source")
	}
	if matcher == nil {
		matcher = billing.StandardReturnsMatcher{}
	}
	if newID == nil {
		newID = NewUUID
	}
	if logger == nil {
		logger = log.Default()
	}
	return &TwoPartTariffService{
		volumes: volumes,
		returns: returns,
		matcher: matcher,
		newID:   newID,
		logger:  logger,
	}, nil
}

// GetVolumes sets the volumes of transactions for one season. Volumes already
// recorded for the batch are reused; otherwise returns are matched, the
// transactions decorated and the resulting billing volumes saved.
func (s *TwoPartTariffService) GetVolumes(
	ctx context.Context,
	batch *billing.Batch,
	licenceNumber string,
	fy billing.FinancialYear,
	isSummer bool,
	elements []billing.MatchingElement,
	transactions []*billing.Transaction,
) error {
	if batch == nil {
		return billing.ErrNilBatch
	}
	if len(elements) == 0 {
		return nil
	}

	elementIDs := make([]string, 0, len(elements))
	for _, e := range elements {
		elementIDs = append(elementIDs, e.ChargeElementID)
	}
	existing, err := s.volumes.FindForSeason(ctx, batch.ID, fy, isSummer, elementIDs)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		billing.ApplyBillingVolumes(transactions, fy, existing)
		return nil
	}

	returns, err := s.returns.ListReturns(ctx, licenceNumber, fy, isSummer)
	if err != nil {
		return err
	}
	result := s.matcher.Match(elements, returns)
	billing.DecorateTransactions(result, transactions)

	volumes := billing.BillingVolumesFromMatch(result, elements, fy, isSummer, batch.ID, s.newID)
	if result.Error != nil {
		s.logger.Printf("two-part tariff: batch=%s licence=%s year=%s summer=%t status=%s", batch.ID, licenceNumber, fy, isSummer, result.Error)
	}
	if len(volumes) == 0 {
		return nil
	}
	if err := s.volumes.Save(ctx, volumes); err != nil {
		return err
	}
	for _, v := range volumes {
		result := metrics.ResultSuccess
		if v.TwoPartTariffError {
			result = metrics.ResultError
		}
		metrics.IncBillingVolume(result)
	}
	return nil
}
