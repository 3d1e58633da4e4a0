package billing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TransactionStatus of a charge transaction.
type TransactionStatus string

const (
	TransactionStatusCandidate     TransactionStatus = "candidate"
	TransactionStatusChargeCreated TransactionStatus = "charge_created"
	TransactionStatusApproved      TransactionStatus = "approved"
	TransactionStatusError         TransactionStatus = "error"
)

// ChargeType is the persisted kind of a transaction.
type ChargeType string

const (
	ChargeTypeStandard     ChargeType = "standard"
	ChargeTypeCompensation ChargeType = "compensation"
)

const compensationDescription = "Compensation charge calculated from all factors except Standard Unit Charge and Source (replaced by factors below) and excluding S127 Charge Element"

// Transaction is a single charge line for a charge element over a charge period.
type Transaction struct {
	ID                           string
	ChargeElement                ChargeElement
	ChargePeriod                 DateRange
	AuthorisedDays               int
	BillableDays                 int
	Volume                       *decimal.Decimal
	IsCredit                     bool
	IsCompensationCharge         bool
	IsTwoPartTariffSupplementary bool
	Agreements                   []Agreement
	Status                       TransactionStatus
	Description                  string
	TwoPartTariffStatus          *TwoPartTariffStatus
	TwoPartTariffError           bool
	CalculatedVolume             *decimal.Decimal
	ExternalID                   string
}

// ParseTransactionStatus validates a status value.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	switch s := TransactionStatus(value); s {
	case TransactionStatusCandidate, TransactionStatusChargeCreated, TransactionStatusApproved, TransactionStatusError:
		return s, nil
	}
	return "", ErrInvalidStatus
}

// ChargeType returns standard or compensation.
func (t *Transaction) ChargeType() ChargeType {
	if t.IsCompensationCharge {
		return ChargeTypeCompensation
	}
	return ChargeTypeStandard
}

// Kind names the transaction variant for logs and metrics.
func (t *Transaction) Kind() string {
	switch {
	case t.IsCompensationCharge:
		return "compensation"
	case t.IsTwoPartTariffSupplementary:
		return "two_part_tariff_supplementary"
	}
	return "standard"
}

// CreateDescription sets the invoice line description from the variant and element.
func (t *Transaction) CreateDescription() {
	switch {
	case t.IsCompensationCharge:
		t.Description = compensationDescription
	case t.IsTwoPartTariffSupplementary:
		purpose := strings.ToLower(t.ChargeElement.Purpose.Description)
		if purpose == "" {
			purpose = "unspecified purpose"
		}
		t.Description = fmt.Sprintf("Second part water abstraction charge at %s", purpose)
	default:
		t.Description = t.ChargeElement.Description
		if t.Description == "" {
			t.Description = "Water abstraction charge: " + t.ChargeElement.Purpose.Description
		}
	}
}

// HasAgreement reports whether code is applied to the transaction.
func (t *Transaction) HasAgreement(code string) bool {
	return HasAgreement(t.Agreements, code)
}

// CanalAndRiversTrustCode returns the applied section 130 code, or "".
func (t *Transaction) CanalAndRiversTrustCode() string {
	for _, a := range t.Agreements {
		if a.IsCanalAndRiversTrust() {
			return a.Code
		}
	}
	return ""
}

// SetVolume replaces the volume.
func (t *Transaction) SetVolume(volume *decimal.Decimal) {
	if volume == nil {
		t.Volume = nil
		return
	}
	v := *volume
	t.Volume = &v
}

// ChargeKey identifies a charge across batches for supplementary reconciliation.
func (t *Transaction) ChargeKey() string {
	return strings.Join([]string{
		t.ChargeElement.ID,
		FormatDate(t.ChargePeriod.Start),
		FormatDate(t.ChargePeriod.End),
		string(t.ChargeType()),
		fmt.Sprintf("%t", t.IsTwoPartTariffSupplementary),
	}, "|")
}

// SameCharge reports whether other would bill the same amount.
func (t *Transaction) SameCharge(other *Transaction) bool {
	if t.ChargeKey() != other.ChargeKey() {
		return false
	}
	if t.AuthorisedDays != other.AuthorisedDays || t.BillableDays != other.BillableDays {
		return false
	}
	if (t.Volume == nil) != (other.Volume == nil) {
		return false
	}
	if t.Volume != nil && !t.Volume.Equal(*other.Volume) {
		return false
	}
	if len(t.Agreements) != len(other.Agreements) {
		return false
	}
	for _, a := range t.Agreements {
		if !HasAgreement(other.Agreements, a.Code) {
			return false
		}
	}
	return true
}

// Credit returns a reversing copy of the transaction.
func (t *Transaction) Credit(id string) *Transaction {
	credit := *t
	credit.ID = id
	credit.IsCredit = !t.IsCredit
	credit.Status = TransactionStatusCandidate
	credit.ExternalID = ""
	credit.Agreements = append([]Agreement(nil), t.Agreements...)
	return &credit
}
