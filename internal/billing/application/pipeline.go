package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	billing "abstraction-billing/internal/billing/domain"
	"abstraction-billing/internal/jobqueue"
	"abstraction-billing/internal/observability/metrics"
)

// Subscriber registers job handlers.
type Subscriber interface {
	Subscribe(name string, handler jobqueue.Handler)
}

// PipelineConfig tunes the batch pipeline.
type PipelineConfig struct {
	// ChargeVersionYearAttempts is the queue attempt limit for each charge
	// version year job.
	ChargeVersionYearAttempts int
}

// Pipeline drives a batch through populate, charge version year processing,
// the completion check and transaction preparation.
type Pipeline struct {
	batches        billing.BatchRepository
	chargeVersions billing.ChargeVersionRepository
	rows           billing.ChargeVersionYearRepository
	volumes        billing.BillingVolumeRepository
	invoices       billing.InvoiceRepository
	processor      *ChargeVersionYearService
	preparer       *TransactionPreparer
	queue          Queue
	clock          Clock
	newID          IDGenerator
	logger         *log.Logger
	cfg            PipelineConfig
}

// PipelineDeps groups the pipeline collaborators.
type PipelineDeps struct {
	Batches        billing.BatchRepository
	ChargeVersions billing.ChargeVersionRepository
	Rows           billing.ChargeVersionYearRepository
	Volumes        billing.BillingVolumeRepository
	Invoices       billing.InvoiceRepository
	Processor      *ChargeVersionYearService
	Preparer       *TransactionPreparer
	Queue          Queue
	Clock          Clock
	NewID          IDGenerator
	Logger         *log.Logger
}

// NewPipeline constructs the pipeline.
func NewPipeline(deps PipelineDeps, cfg PipelineConfig) (*Pipeline, error) {
	if deps.Batches == nil {
		return nil, errors.New("billing pipeline: nil batch repository")
	}
	if deps.ChargeVersions == nil {
		return nil, errors.New("billing pipeline: nil charge version repository")
	}
	if deps.Rows == nil {
		return nil, errors.New("billing pipeline: nil charge version year repository")
	}
	if deps.Volumes == nil {
		return nil, errors.New("billing pipeline: nil billing volume repository")
	}
	if deps.Invoices == nil {
		return nil, errors.New("billing pipeline: nil invoice repository")
	}
	if deps.Processor == nil {
		return nil, errors.New("billing pipeline: nil charge version year service")
	}
	if deps.Preparer == nil {
		return nil, errors.New("billing pipeline: nil transaction preparer")
	}
	if deps.Queue == nil {
		return nil, errors.New("billing pipeline: nil queue")
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.NewID == nil {
		deps.NewID = NewUUID
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if cfg.ChargeVersionYearAttempts <= 0 {
		cfg.ChargeVersionYearAttempts = defaultChargeVersionYearAttempts
	}
	return &Pipeline{
		batches:        deps.Batches,
		chargeVersions: deps.ChargeVersions,
		rows:           deps.Rows,
		volumes:        deps.Volumes,
		invoices:       deps.Invoices,
		processor:      deps.Processor,
		preparer:       deps.Preparer,
		queue:          deps.Queue,
		clock:          deps.Clock,
		newID:          deps.NewID,
		logger:         deps.Logger,
		cfg:            cfg,
	}, nil
}

// Register subscribes the pipeline handlers.
func (p *Pipeline) Register(sub Subscriber) {
	sub.Subscribe(JobPopulateBatchChargeVersions, jobqueue.Handler{
		Handle: p.handlePopulate,
		Failed: p.failedWith(func(error) billing.BatchErrorCode { return billing.ErrorCodeFailedToPopulateChargeVersions }),
	})
	sub.Subscribe(JobProcessChargeVersionYear, jobqueue.Handler{
		Handle: p.handleChargeVersionYear,
		Failed: p.failedWith(chargeVersionYearErrorCode),
	})
	sub.Subscribe(JobChargeVersionYearComplete, jobqueue.Handler{
		Handle: p.handleCompletion,
		Failed: p.failedWith(func(error) billing.BatchErrorCode { return billing.ErrorCodeFailedToProcessChargeVersions }),
	})
	sub.Subscribe(JobPrepareTransactions, jobqueue.Handler{
		Handle: p.handlePrepare,
		Failed: p.failedWith(func(error) billing.BatchErrorCode { return billing.ErrorCodeFailedToPrepareTransactions }),
	})
}

func chargeVersionYearErrorCode(err error) billing.BatchErrorCode {
	if errors.Is(err, ErrTwoPartTariff) {
		return billing.ErrorCodeFailedToProcessTwoPartTariff
	}
	return billing.ErrorCodeFailedToProcessChargeVersions
}

func (p *Pipeline) failedWith(code func(error) billing.BatchErrorCode) jobqueue.FailFunc {
	return func(ctx context.Context, job jobqueue.Job, err error) error {
		var payload BatchJob
		if decodeErr := job.Decode(&payload); decodeErr != nil {
			return decodeErr
		}
		return p.FailBatch(ctx, payload.BatchID, code(err), err)
	}
}

// handlePopulate creates one charge version year per billable charge version
// and year of the batch and queues them.
func (p *Pipeline) handlePopulate(ctx context.Context, job jobqueue.Job) error {
	var payload BatchJob
	if err := job.Decode(&payload); err != nil {
		return err
	}
	batch, err := p.batches.FindByID(ctx, payload.BatchID)
	if errors.Is(err, billing.ErrNotFound) {
		p.logger.Printf("populate batch skipped: batch=%s not found", payload.BatchID)
		return nil
	}
	if err != nil {
		return err
	}
	if batch.Status != billing.BatchStatusProcessing {
		p.logger.Printf("populate batch skipped: batch=%s status=%s", batch.ID, batch.Status)
		return nil
	}

	chargeVersions, err := p.chargeVersions.ListByRegion(ctx, batch.RegionID, batch.DateRange())
	if err != nil {
		return err
	}

	now := p.clock.Now()
	var rows []*billing.ChargeVersionYear
	for _, cv := range chargeVersions {
		if !billableChargeVersion(batch, cv) {
			continue
		}
		for _, fy := range batch.FinancialYears() {
			if _, ok := cv.ChargePeriod(fy); !ok {
				continue
			}
			row, err := billing.NewChargeVersionYear(p.newID(), batch.ID, cv.ID, fy, now)
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
	}

	if len(rows) == 0 {
		return p.markEmpty(ctx, batch, "no charge versions")
	}

	for _, row := range rows {
		if err := p.rows.Insert(ctx, row); err != nil {
			return err
		}
	}
	for _, row := range rows {
		if _, err := p.queue.Publish(ctx, chargeVersionYearMessage(batch.ID, row.ID, p.cfg.ChargeVersionYearAttempts)); err != nil {
			return err
		}
	}
	p.logger.Printf("populate batch: batch=%s charge_versions=%d rows=%d", batch.ID, len(chargeVersions), len(rows))
	return nil
}

func billableChargeVersion(batch *billing.Batch, cv *billing.ChargeVersion) bool {
	if cv == nil || cv.Status == billing.ChargeVersionStatusDraft {
		return false
	}
	if !batch.IsTwoPartTariff() {
		return true
	}
	for _, la := range cv.Licence.Agreements {
		if la.Agreement.IsTwoPartTariff() {
			return true
		}
	}
	return false
}

// handleChargeVersionYear processes one unit of work and queues the
// completion check.
func (p *Pipeline) handleChargeVersionYear(ctx context.Context, job jobqueue.Job) error {
	var payload ChargeVersionYearJob
	if err := job.Decode(&payload); err != nil {
		return err
	}
	row, err := p.rows.FindByID(ctx, payload.ChargeVersionYearID)
	if errors.Is(err, billing.ErrNotFound) {
		p.logger.Printf("charge version year skipped: batch=%s row=%s not found", payload.BatchID, payload.ChargeVersionYearID)
		return nil
	}
	if err != nil {
		return err
	}
	batch, err := p.batches.FindByID(ctx, row.BatchID)
	if errors.Is(err, billing.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if batch.Status != billing.BatchStatusProcessing {
		p.logger.Printf("charge version year skipped: batch=%s status=%s row=%s", batch.ID, batch.Status, row.ID)
		return nil
	}

	start := time.Now()
	if err := p.rows.SetStatus(ctx, row.ID, billing.ChargeVersionYearStatusProcessing, p.clock.Now()); err != nil {
		return err
	}

	invoice, err := p.processor.Process(ctx, row)
	if err == nil && invoice != nil && len(invoice.Transactions()) > 0 {
		err = p.invoices.Save(ctx, invoice)
	}
	if err != nil {
		// A retry keeps the row processing so the batch cannot complete early.
		if job.Exhausted() {
			if setErr := p.rows.SetStatus(ctx, row.ID, billing.ChargeVersionYearStatusError, p.clock.Now()); setErr != nil {
				p.logger.Printf("charge version year status failed: row=%s err=%v", row.ID, setErr)
			}
		}
		p.logger.Printf("charge version year failed: batch=%s row=%s charge_version=%s year=%s err=%v",
			row.BatchID, row.ID, row.ChargeVersionID, row.FinancialYear, err)
		metrics.ObserveChargeVersionYear(metrics.ResultError, time.Since(start))
		return err
	}

	if err := p.rows.SetStatus(ctx, row.ID, billing.ChargeVersionYearStatusReady, p.clock.Now()); err != nil {
		return err
	}
	metrics.ObserveChargeVersionYear(metrics.ResultSuccess, time.Since(start))

	_, err = p.queue.Publish(ctx, completionMessage(row.BatchID))
	return err
}

// handleCompletion moves the batch on once no charge version year is still
// processing. Any errored row fails the batch.
func (p *Pipeline) handleCompletion(ctx context.Context, job jobqueue.Job) error {
	var payload BatchJob
	if err := job.Decode(&payload); err != nil {
		return err
	}
	batch, err := p.batches.FindByID(ctx, payload.BatchID)
	if errors.Is(err, billing.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if batch.Status != billing.BatchStatusProcessing {
		return nil
	}

	counts, err := p.rows.CountByStatus(ctx, batch.ID)
	if err != nil {
		return err
	}
	if counts.Processing > 0 {
		p.logger.Printf("charge version years remaining: batch=%s processing=%d ready=%d error=%d",
			batch.ID, counts.Processing, counts.Ready, counts.Error)
		return nil
	}
	if counts.Error > 0 {
		return p.FailBatch(ctx, batch.ID, billing.ErrorCodeFailedToProcessChargeVersions,
			fmt.Errorf("%d charge version years failed", counts.Error))
	}

	if err := p.queue.DeleteQueue(ctx, jobqueue.QueueName(JobChargeVersionYearComplete, batch.ID)); err != nil {
		return err
	}

	unapproved, err := p.volumes.CountUnapproved(ctx, batch.ID)
	if err != nil {
		return err
	}
	if unapproved > 0 {
		if err := batch.SetStatus(billing.BatchStatusReview, p.clock.Now()); err != nil {
			return err
		}
		if err := p.batches.Save(ctx, batch); err != nil {
			return err
		}
		metrics.IncBatchStatus(string(batch.Status))
		p.logger.Printf("batch review: batch=%s unapproved_volumes=%d", batch.ID, unapproved)
		return nil
	}

	_, err = p.queue.Publish(ctx, prepareMessage(batch.ID))
	return err
}

func (p *Pipeline) handlePrepare(ctx context.Context, job jobqueue.Job) error {
	var payload BatchJob
	if err := job.Decode(&payload); err != nil {
		return err
	}
	err := p.preparer.Prepare(ctx, payload.BatchID)
	if errors.Is(err, billing.ErrNotFound) {
		return nil
	}
	return err
}

// FailBatch sets the batch to error with code and removes all of its queues.
func (p *Pipeline) FailBatch(ctx context.Context, batchID string, code billing.BatchErrorCode, cause error) error {
	p.logger.Printf("batch failed: batch=%s code=%d err=%v", batchID, code, cause)

	batch, err := p.batches.FindByID(ctx, batchID)
	if errors.Is(err, billing.ErrNotFound) {
		return deleteBatchQueues(ctx, p.queue, batchID)
	}
	if err != nil {
		return err
	}
	if err := batch.Fail(code, p.clock.Now()); err != nil {
		p.logger.Printf("batch fail skipped: batch=%s status=%s err=%v", batch.ID, batch.Status, err)
	} else {
		if err := p.batches.Save(ctx, batch); err != nil {
			return err
		}
		metrics.IncBatchStatus(string(batch.Status))
	}
	return deleteBatchQueues(ctx, p.queue, batchID)
}

func (p *Pipeline) markEmpty(ctx context.Context, batch *billing.Batch, reason string) error {
	if err := batch.SetStatus(billing.BatchStatusEmpty, p.clock.Now()); err != nil {
		return err
	}
	if err := p.batches.Save(ctx, batch); err != nil {
		return err
	}
	metrics.IncBatchStatus(string(batch.Status))
	p.logger.Printf("batch empty: batch=%s reason=%s", batch.ID, reason)
	return nil
}
