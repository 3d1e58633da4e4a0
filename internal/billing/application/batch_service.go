package application

import (
	"context"
	"errors"
	"log"

	billing "abstraction-billing/internal/billing/domain"
	"abstraction-billing/internal/observability/metrics"
)

// CreateBatchCommand requests a new billing run.
type CreateBatchCommand struct {
	RegionID  string
	Type      billing.BatchType
	StartYear int
	EndYear   int
	IsSummer  bool
}

// BatchService handles batch lifecycle use cases outside the job pipeline.
type BatchService struct {
	batches  billing.BatchRepository
	rows     billing.ChargeVersionYearRepository
	volumes  billing.BillingVolumeRepository
	invoices billing.InvoiceRepository
	queue    Queue
	clock    Clock
	newID    IDGenerator
	logger   *log.Logger
}

// NewBatchService constructs the service.
func NewBatchService(
	batches billing.BatchRepository,
	rows billing.ChargeVersionYearRepository,
	volumes billing.BillingVolumeRepository,
	invoices billing.InvoiceRepository,
	queue Queue,
	clock Clock,
	newID IDGenerator,
	logger *log.Logger,
) (*BatchService, error) {
	if batches == nil {
		return nil, errors.New("batch service: nil batch repository")
	}
	if rows == nil {
		return nil, errors.New("batch service: nil charge version year repository")
	}
	if volumes == nil {
		return nil, errors.New("batch service: nil billing volume repository")
	}
	if invoices == nil {
		return nil, errors.New("batch service: nil invoice repository")
	}
	if queue == nil {
		return nil, errors.New("batch service: nil queue")
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
	return &BatchService{
		batches:  batches,
		rows:     rows,
		volumes:  volumes,
		invoices: invoices,
		queue:    queue,
		clock:    clock,
		newID:    newID,
		logger:   logger,
	}, nil
}

// CreateBatch creates a processing batch and queues its population. A region
// may only have one live batch at a time.
func (s *BatchService) CreateBatch(ctx context.Context, cmd CreateBatchCommand) (*billing.Batch, error) {
	startYear, err := billing.NewFinancialYear(cmd.StartYear)
	if err != nil {
		return nil, err
	}
	endYear, err := billing.NewFinancialYear(cmd.EndYear)
	if err != nil {
		return nil, err
	}
	batch, err := billing.NewBatch(s.newID(), cmd.RegionID, cmd.Type, startYear, endYear, cmd.IsSummer, s.clock.Now())
	if err != nil {
		return nil, err
	}

	existing, err := s.batches.ListByRegion(ctx, cmd.RegionID)
	if err != nil {
		return nil, err
	}
	for _, b := range existing {
		if b.IsLive() {
			return nil, billing.ErrBatchAlreadyLive
		}
	}

	if err := s.batches.Save(ctx, batch); err != nil {
		return nil, err
	}
	metrics.IncBatchStatus(string(batch.Status))
	if _, err := s.queue.Publish(ctx, populateMessage(batch.ID)); err != nil {
		return nil, err
	}
	s.logger.Printf("batch created: batch=%s region=%s type=%s years=%s-%s", batch.ID, batch.RegionID, batch.Type, startYear, endYear)
	return batch, nil
}

// GetBatch loads a batch with its invoices.
func (s *BatchService) GetBatch(ctx context.Context, batchID string) (*billing.Batch, error) {
	batch, err := s.batches.FindByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	invoices, err := s.invoices.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	batch.Invoices = invoices
	return batch, nil
}

// ApproveReview approves the batch's billing volumes and resumes preparation.
func (s *BatchService) ApproveReview(ctx context.Context, batchID string) error {
	batch, err := s.batches.FindByID(ctx, batchID)
	if err != nil {
		return err
	}
	if batch.Status != billing.BatchStatusReview {
		return billing.ErrInvalidStatusTransition
	}
	if err := s.volumes.ApproveByBatch(ctx, batch.ID); err != nil {
		return err
	}
	if err := batch.SetStatus(billing.BatchStatusProcessing, s.clock.Now()); err != nil {
		return err
	}
	if err := s.batches.Save(ctx, batch); err != nil {
		return err
	}
	metrics.IncBatchStatus(string(batch.Status))
	if _, err := s.queue.Publish(ctx, prepareMessage(batch.ID)); err != nil {
		return err
	}
	s.logger.Printf("batch review approved: batch=%s", batch.ID)
	return nil
}

// MarkSent records that a ready batch has been sent.
func (s *BatchService) MarkSent(ctx context.Context, batchID string) error {
	batch, err := s.batches.FindByID(ctx, batchID)
	if err != nil {
		return err
	}
	if batch.Status != billing.BatchStatusReady {
		return billing.ErrInvalidStatusTransition
	}
	if err := batch.SetStatus(billing.BatchStatusSent, s.clock.Now()); err != nil {
		return err
	}
	if err := s.batches.Save(ctx, batch); err != nil {
		return err
	}
	metrics.IncBatchStatus(string(batch.Status))
	s.logger.Printf("batch sent: batch=%s ledger=%s", batch.ID, batch.ExternalID)
	return nil
}

// DeleteBatch removes a batch with its queues, rows, volumes and invoices.
func (s *BatchService) DeleteBatch(ctx context.Context, batchID string) error {
	batch, err := s.batches.FindByID(ctx, batchID)
	if err != nil {
		return err
	}
	if !batch.IsDeletable() {
		return billing.ErrBatchNotDeletable
	}
	if err := deleteBatchQueues(ctx, s.queue, batch.ID); err != nil {
		return err
	}
	if err := s.rows.DeleteByBatch(ctx, batch.ID); err != nil {
		return err
	}
	if err := s.volumes.DeleteByBatch(ctx, batch.ID); err != nil {
		return err
	}
	if err := s.invoices.DeleteByBatch(ctx, batch.ID); err != nil {
		return err
	}
	if err := s.batches.Delete(ctx, batch.ID); err != nil {
		return err
	}
	s.logger.Printf("batch deleted: batch=%s status=%s", batch.ID, batch.Status)
	return nil
}

// StatusCounts returns the charge version year counts of a batch.
func (s *BatchService) StatusCounts(ctx context.Context, batchID string) (billing.StatusCounts, error) {
	if _, err := s.batches.FindByID(ctx, batchID); err != nil {
		return billing.StatusCounts{}, err
	}
	return s.rows.CountByStatus(ctx, batchID)
}

// ListBillingVolumes returns the batch's two-part-tariff volumes for review.
func (s *BatchService) ListBillingVolumes(ctx context.Context, batchID string) ([]*billing.BillingVolume, error) {
	if _, err := s.batches.FindByID(ctx, batchID); err != nil {
		return nil, err
	}
	return s.volumes.ListByBatch(ctx, batchID)
}
