package billing

import (
	"github.com/shopspring/decimal"
)

// BillingVolume is the reviewable two-part-tariff volume of a charge element
// for a financial year and season.
type BillingVolume struct {
	ID                  string
	ChargeElementID     string
	FinancialYear       FinancialYear
	IsSummer            bool
	CalculatedVolume    *decimal.Decimal
	Volume              *decimal.Decimal
	TwoPartTariffStatus *TwoPartTariffStatus
	TwoPartTariffError  bool
	IsApproved          bool
	BatchID             string
}

// Approve marks the volume as reviewed.
func (v *BillingVolume) Approve() { v.IsApproved = true }

// BillingVolumesFromMatch converts match data into unapproved billing volumes.
// A result carrying only an overall error still yields one errored volume per
// matching element, with no calculated quantity, so the failure goes to review.
func BillingVolumesFromMatch(result MatchResult, elements []MatchingElement, fy FinancialYear, isSummer bool, batchID string, newID func() string) []*BillingVolume {
	nextID := func() string {
		if newID == nil {
			return ""
		}
		return newID()
	}
	if result.Elements == nil {
		if result.Error == nil {
			return []*BillingVolume{}
		}
		volumes := make([]*BillingVolume, 0, len(elements))
		for _, e := range elements {
			volumes = append(volumes, &BillingVolume{
				ID:                  nextID(),
				ChargeElementID:     e.ChargeElementID,
				FinancialYear:       fy,
				IsSummer:            isSummer,
				TwoPartTariffStatus: copyStatus(result.Error),
				TwoPartTariffError:  true,
				BatchID:             batchID,
			})
		}
		return volumes
	}

	volumes := make([]*BillingVolume, 0, len(result.Elements))
	for _, er := range result.Elements {
		status := result.Error
		if status == nil {
			status = er.Error
		}
		calculated := er.ActualReturnQuantity
		volume := er.ActualReturnQuantity
		volumes = append(volumes, &BillingVolume{
			ID:                  nextID(),
			ChargeElementID:     er.ChargeElementID,
			FinancialYear:       fy,
			IsSummer:            isSummer,
			CalculatedVolume:    &calculated,
			Volume:              &volume,
			TwoPartTariffStatus: copyStatus(status),
			TwoPartTariffError:  status != nil,
			BatchID:             batchID,
		})
	}
	return volumes
}

// ApplyBillingVolumes overwrites two-part-tariff transaction volumes with the
// matching billing volume for the transaction's element and financial year.
func ApplyBillingVolumes(transactions []*Transaction, fy FinancialYear, volumes []*BillingVolume) {
	for _, t := range transactions {
		if !t.IsTwoPartTariffSupplementary {
			continue
		}
		for _, v := range volumes {
			if v.ChargeElementID != t.ChargeElement.ID || v.FinancialYear != fy {
				continue
			}
			if v.IsSummer != t.ChargeElement.Season.IsSummer() {
				continue
			}
			t.SetVolume(v.Volume)
			t.CalculatedVolume = v.CalculatedVolume
			t.TwoPartTariffStatus = copyStatus(v.TwoPartTariffStatus)
			t.TwoPartTariffError = v.TwoPartTariffError
			break
		}
	}
}

// HasUnapproved reports whether any volume still needs review.
func HasUnapproved(volumes []*BillingVolume) bool {
	for _, v := range volumes {
		if !v.IsApproved {
			return true
		}
	}
	return false
}
