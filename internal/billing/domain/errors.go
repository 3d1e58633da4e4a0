package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the parent of all lookup failures.
	ErrNotFound = errors.New("billing: not found")
	// ErrChargeVersionNotFound is returned when a charge version does not exist.
	ErrChargeVersionNotFound = fmt.Errorf("%w: charge version", ErrNotFound)
	// ErrBatchNotFound is returned when a batch does not exist.
	ErrBatchNotFound = fmt.Errorf("%w: batch", ErrNotFound)
	// ErrChargeVersionYearNotFound is returned when a charge version year row does not exist.
	ErrChargeVersionYearNotFound = fmt.Errorf("%w: charge version year", ErrNotFound)

	// ErrInvalidDate is returned when a required date is zero.
	ErrInvalidDate = errors.New("billing: invalid date")
	// ErrInvalidDateRange is returned when a range starts after it ends.
	ErrInvalidDateRange = errors.New("billing: start date after end date")
	// ErrInvalidFinancialYear is returned for a non-positive financial year ending.
	ErrInvalidFinancialYear = errors.New("billing: invalid financial year")
	// ErrInvalidFinancialYearRange is returned when the from year is after the to year.
	ErrInvalidFinancialYearRange = errors.New("billing: invalid financial year range")
	// ErrInvalidAbstractionPeriod is returned for an impossible day/month combination.
	ErrInvalidAbstractionPeriod = errors.New("billing: invalid abstraction period")

	// ErrEmptyID is returned when an identifier is required but empty.
	ErrEmptyID = errors.New("billing: empty id")
	// ErrInvalidStatus is returned for an unknown status value.
	ErrInvalidStatus = errors.New("billing: invalid status")
	// ErrInvalidBatchType is returned for an unknown batch type.
	ErrInvalidBatchType = errors.New("billing: invalid batch type")
	// ErrInvalidSeason is returned for an unknown charge element season.
	ErrInvalidSeason = errors.New("billing: invalid season")
	// ErrNegativeQuantity is returned when a quantity is below zero.
	ErrNegativeQuantity = errors.New("billing: negative quantity")
	// ErrInvalidStatusTransition is returned when a batch cannot move to the requested status.
	ErrInvalidStatusTransition = errors.New("billing: invalid status transition")
	// ErrBatchAlreadyLive is returned when a region already has a live batch.
	ErrBatchAlreadyLive = errors.New("billing: region already has a live batch")
	// ErrBatchNotDeletable is returned when deleting a batch in a protected status.
	ErrBatchNotDeletable = errors.New("billing: batch cannot be deleted")
	// ErrNilChargeVersion is returned when a nil charge version is supplied.
	ErrNilChargeVersion = errors.New("billing: nil charge version")
	// ErrNilBatch is returned when a nil batch is supplied.
	ErrNilBatch = errors.New("billing: nil batch")
	// ErrNilInvoice is returned when saving a nil invoice.
	ErrNilInvoice = errors.New("billing: nil invoice")
)
