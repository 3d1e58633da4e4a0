package billing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Agreement codes that affect charging.
const (
	AgreementCodeTwoPartTariff = "S127"
	AgreementCodeAbatement     = "S126"
	AgreementCodeCRTSouth      = "S130S"
	AgreementCodeCRTThames     = "S130T"
	AgreementCodeCRTUnder      = "S130U"
	AgreementCodeCRTWales      = "S130W"
)

// AgreementCategory groups agreement codes that share a timeline.
type AgreementCategory string

const (
	AgreementCategoryNone               AgreementCategory = ""
	AgreementCategoryTwoPartTariff      AgreementCategory = "two_part_tariff"
	AgreementCategoryCanalAndRiverTrust AgreementCategory = "canal_and_river_trust"
)

// billingCategories is the order in which category timelines are applied.
var billingCategories = []AgreementCategory{
	AgreementCategoryTwoPartTariff,
	AgreementCategoryCanalAndRiverTrust,
}

// Agreement is a legal agreement identified by its code. Factor carries an
// abatement factor when the source agreement has one.
type Agreement struct {
	Code   string
	Factor *decimal.Decimal
}

// NewAgreement normalises the code.
func NewAgreement(code string) (Agreement, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Agreement{}, ErrEmptyID
	}
	return Agreement{Code: code}, nil
}

// IsTwoPartTariff reports a section 127 agreement.
func (a Agreement) IsTwoPartTariff() bool { return a.Code == AgreementCodeTwoPartTariff }

// IsCanalAndRiversTrust reports a section 130 agreement.
func (a Agreement) IsCanalAndRiversTrust() bool {
	switch a.Code {
	case AgreementCodeCRTSouth, AgreementCodeCRTThames, AgreementCodeCRTUnder, AgreementCodeCRTWales:
		return true
	}
	return false
}

// Category returns the timeline category, or none for agreements that do not affect billing.
func (a Agreement) Category() AgreementCategory {
	switch {
	case a.IsTwoPartTariff():
		return AgreementCategoryTwoPartTariff
	case a.IsCanalAndRiversTrust():
		return AgreementCategoryCanalAndRiverTrust
	}
	return AgreementCategoryNone
}

// Equal compares code and factor.
func (a Agreement) Equal(other Agreement) bool {
	if a.Code != other.Code {
		return false
	}
	if a.Factor == nil || other.Factor == nil {
		return a.Factor == nil && other.Factor == nil
	}
	return a.Factor.Equal(*other.Factor)
}

// LicenceAgreement binds an agreement to a licence over a date range.
type LicenceAgreement struct {
	ID        string
	Agreement Agreement
	DateRange DateRange
}

// NewLicenceAgreement validates the range.
func NewLicenceAgreement(id string, agreement Agreement, dateRange DateRange) (LicenceAgreement, error) {
	if agreement.Code == "" {
		return LicenceAgreement{}, ErrEmptyID
	}
	r, err := NewDateRange(dateRange.Start, dateRange.End)
	if err != nil {
		return LicenceAgreement{}, err
	}
	return LicenceAgreement{ID: id, Agreement: agreement, DateRange: r}, nil
}

// HasAgreement reports whether any of agreements has the code.
func HasAgreement(agreements []Agreement, code string) bool {
	for _, a := range agreements {
		if a.Code == code {
			return true
		}
	}
	return false
}
