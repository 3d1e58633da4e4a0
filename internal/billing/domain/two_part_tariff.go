package billing

import (
	"github.com/shopspring/decimal"
)

// TwoPartTariffStatus is the outcome code of returns matching.
type TwoPartTariffStatus int

const (
	ErrorNoReturnsForMatching TwoPartTariffStatus = 10
	ErrorNotDueForBilling     TwoPartTariffStatus = 20
	ErrorReturnLinesMissing   TwoPartTariffStatus = 30
	ErrorUnderQuery           TwoPartTariffStatus = 40
	ErrorReceived             TwoPartTariffStatus = 50
	ErrorSomeReturnsDue       TwoPartTariffStatus = 60
	ErrorLateForBilling       TwoPartTariffStatus = 70
	ErrorOverAbstraction      TwoPartTariffStatus = 80
	ErrorNoReturnsSubmitted   TwoPartTariffStatus = 90
)

var twoPartTariffStatusNames = map[TwoPartTariffStatus]string{
	ErrorNoReturnsForMatching: "no returns for matching",
	ErrorNotDueForBilling:     "not due for billing",
	ErrorReturnLinesMissing:   "return lines missing",
	ErrorUnderQuery:           "under query",
	ErrorReceived:             "received",
	ErrorSomeReturnsDue:       "some returns due",
	ErrorLateForBilling:       "late for billing",
	ErrorOverAbstraction:      "over abstraction",
	ErrorNoReturnsSubmitted:   "no returns submitted",
}

// String describes the status.
func (s TwoPartTariffStatus) String() string {
	if name, ok := twoPartTariffStatusNames[s]; ok {
		return name
	}
	return "unknown"
}

func statusPtr(s TwoPartTariffStatus) *TwoPartTariffStatus { return &s }

// MatchingElement describes a charge element for returns matching.
type MatchingElement struct {
	ChargeElementID          string
	Season                   Season
	PurposeCode              string
	AbstractionPeriod        AbstractionPeriod
	AuthorisedAnnualQuantity decimal.Decimal
	ChargePeriod             DateRange
	BillableDays             int
	AuthorisedDays           int
}

// MatchingElementsFromTransactions collects one matching element per charge
// element of the given transactions, preserving first-seen order.
func MatchingElementsFromTransactions(transactions []*Transaction) []MatchingElement {
	seen := make(map[string]bool)
	var elements []MatchingElement
	for _, t := range transactions {
		if seen[t.ChargeElement.ID] {
			continue
		}
		seen[t.ChargeElement.ID] = true
		elements = append(elements, MatchingElement{
			ChargeElementID:          t.ChargeElement.ID,
			Season:                   t.ChargeElement.Season,
			PurposeCode:              t.ChargeElement.Purpose.Code,
			AbstractionPeriod:        t.ChargeElement.AbstractionPeriod,
			AuthorisedAnnualQuantity: t.ChargeElement.AuthorisedAnnualQuantity,
			ChargePeriod:             t.ChargePeriod,
			BillableDays:             t.BillableDays,
			AuthorisedDays:           t.AuthorisedDays,
		})
	}
	return elements
}

// ElementResult is the matching outcome for one charge element.
type ElementResult struct {
	ChargeElementID      string
	ActualReturnQuantity decimal.Decimal
	Error                *TwoPartTariffStatus
}

// MatchResult is the outcome of matching returns for one licence and season.
// Elements is nil when matching produced no per-element data.
type MatchResult struct {
	Error    *TwoPartTariffStatus
	Elements []ElementResult
}

// ReturnsMatcher allocates reported return quantities to charge elements.
type ReturnsMatcher interface {
	Match(elements []MatchingElement, returns []Return) MatchResult
}

// DecorateTransactions applies a match result to the transactions of an
// invoice licence. With per-element data, each matched transaction takes the
// element status (or the overall one) and its volume is cleared on error.
// Without data every transaction takes the overall status and loses its volume.
func DecorateTransactions(result MatchResult, transactions []*Transaction) []*Transaction {
	if result.Elements == nil {
		for _, t := range transactions {
			t.TwoPartTariffStatus = copyStatus(result.Error)
			t.TwoPartTariffError = result.Error != nil
			t.Volume = nil
			t.CalculatedVolume = nil
		}
		return transactions
	}
	for _, er := range result.Elements {
		status := result.Error
		if status == nil {
			status = er.Error
		}
		for _, t := range transactions {
			if t.ChargeElement.ID != er.ChargeElementID {
				continue
			}
			actual := er.ActualReturnQuantity
			t.TwoPartTariffStatus = copyStatus(status)
			t.TwoPartTariffError = status != nil
			t.CalculatedVolume = &actual
			if status != nil {
				t.Volume = nil
			} else {
				t.SetVolume(&actual)
			}
		}
	}
	return transactions
}

func copyStatus(s *TwoPartTariffStatus) *TwoPartTariffStatus {
	if s == nil {
		return nil
	}
	return statusPtr(*s)
}
