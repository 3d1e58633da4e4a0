package application

import (
	"context"
	"errors"

	"abstraction-billing/internal/jobqueue"
)

// Pipeline job names.
const (
	JobPopulateBatchChargeVersions   = "billing.populate-batch-charge-versions"
	JobProcessChargeVersionYear      = "billing.process-charge-version-year"
	JobChargeVersionYearComplete     = "billing.process-charge-version-year-complete"
	JobPrepareTransactions           = "billing.prepare-transactions"
	defaultChargeVersionYearAttempts = 1
)

// JobNames lists every pipeline job in stage order.
var JobNames = []string{
	JobPopulateBatchChargeVersions,
	JobProcessChargeVersionYear,
	JobChargeVersionYearComplete,
	JobPrepareTransactions,
}

// ErrTwoPartTariff marks failures raised while matching two-part-tariff volumes.
var ErrTwoPartTariff = errors.New("billing app: two-part tariff processing failed")

type twoPartTariffError struct {
	err error
}

func (e *twoPartTariffError) Error() string { return "two-part tariff: " + e.err.Error() }

func (e *twoPartTariffError) Unwrap() []error { return []error{ErrTwoPartTariff, e.err} }

// BatchJob is the payload of batch-scoped jobs.
type BatchJob struct {
	BatchID string `json:"batchId"`
}

// ChargeVersionYearJob is the payload of the charge version year job.
type ChargeVersionYearJob struct {
	BatchID             string `json:"batchId"`
	ChargeVersionYearID string `json:"chargeVersionYearId"`
}

func populateMessage(batchID string) jobqueue.Message {
	return jobqueue.Message{
		Name:         JobPopulateBatchChargeVersions,
		Queue:        jobqueue.QueueName(JobPopulateBatchChargeVersions, batchID),
		SingletonKey: batchID,
		Payload:      BatchJob{BatchID: batchID},
	}
}

func chargeVersionYearMessage(batchID, rowID string, maxAttempts int) jobqueue.Message {
	return jobqueue.Message{
		Name:         JobProcessChargeVersionYear,
		Queue:        jobqueue.QueueName(JobProcessChargeVersionYear, batchID),
		SingletonKey: rowID,
		Payload:      ChargeVersionYearJob{BatchID: batchID, ChargeVersionYearID: rowID},
		MaxAttempts:  maxAttempts,
	}
}

func completionMessage(batchID string) jobqueue.Message {
	return jobqueue.Message{
		Name:    JobChargeVersionYearComplete,
		Queue:   jobqueue.QueueName(JobChargeVersionYearComplete, batchID),
		Payload: BatchJob{BatchID: batchID},
	}
}

func prepareMessage(batchID string) jobqueue.Message {
	return jobqueue.Message{
		Name:         JobPrepareTransactions,
		Queue:        jobqueue.QueueName(JobPrepareTransactions, batchID),
		SingletonKey: batchID,
		Payload:      BatchJob{BatchID: batchID},
	}
}

// deleteBatchQueues removes every pipeline queue of a batch, continuing past
// failures and returning the first one.
func deleteBatchQueues(ctx context.Context, queue Queue, batchID string) error {
	var first error
	for _, name := range JobNames {
		if err := queue.DeleteQueue(ctx, jobqueue.QueueName(name, batchID)); err != nil && first == nil {
			first = err
		}
	}
	return first
}
