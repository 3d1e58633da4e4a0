package billing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Season of a charge element.
type Season string

const (
	SeasonSummer  Season = "summer"
	SeasonWinter  Season = "winter"
	SeasonAllYear Season = "all year"
)

// ParseSeason validates a season value.
func ParseSeason(value string) (Season, error) {
	switch s := Season(strings.ToLower(strings.TrimSpace(value))); s {
	case SeasonSummer, SeasonWinter, SeasonAllYear:
		return s, nil
	}
	return "", ErrInvalidSeason
}

// IsSummer reports whether the season is billed in the summer two-part-tariff run.
func (s Season) IsSummer() bool { return s == SeasonSummer }

// Purpose is the use classification of a charge element.
type Purpose struct {
	Code            string
	Description     string
	IsTwoPartTariff bool
}

// ChargeElement is one charged component of a charge version.
type ChargeElement struct {
	ID                       string
	Source                   string
	Season                   Season
	Loss                     string
	AbstractionPeriod        AbstractionPeriod
	AuthorisedAnnualQuantity decimal.Decimal
	BillableAnnualQuantity   *decimal.Decimal
	TimeLimitedPeriod        *DateRange
	Purpose                  Purpose
	Description              string
}

// NewChargeElement validates the element.
func NewChargeElement(element ChargeElement) (ChargeElement, error) {
	if element.ID == "" {
		return ChargeElement{}, ErrEmptyID
	}
	season, err := ParseSeason(string(element.Season))
	if err != nil {
		return ChargeElement{}, err
	}
	element.Season = season
	if element.AuthorisedAnnualQuantity.IsNegative() {
		return ChargeElement{}, ErrNegativeQuantity
	}
	if element.BillableAnnualQuantity != nil && element.BillableAnnualQuantity.IsNegative() {
		return ChargeElement{}, ErrNegativeQuantity
	}
	if element.TimeLimitedPeriod != nil {
		r, err := NewDateRange(element.TimeLimitedPeriod.Start, element.TimeLimitedPeriod.End)
		if err != nil {
			return ChargeElement{}, err
		}
		element.TimeLimitedPeriod = &r
	}
	return element, nil
}

// Volume returns the billable quantity when set, otherwise the authorised quantity.
func (e ChargeElement) Volume() decimal.Decimal {
	if e.BillableAnnualQuantity != nil {
		return *e.BillableAnnualQuantity
	}
	return e.AuthorisedAnnualQuantity
}

// ChargePeriod narrows period by the element's time limit.
func (e ChargeElement) ChargePeriod(period DateRange) (DateRange, bool) {
	if e.TimeLimitedPeriod == nil {
		return period, true
	}
	return period.Intersect(*e.TimeLimitedPeriod)
}

// Licence is an abstraction licence with its agreement timeline.
type Licence struct {
	LicenceNumber     string
	RegionID          string
	DateRange         DateRange
	IsWaterUndertaker bool
	Agreements        []LicenceAgreement
}

// ChargeVersionStatus of a charge version.
type ChargeVersionStatus string

const (
	ChargeVersionStatusDraft      ChargeVersionStatus = "draft"
	ChargeVersionStatusCurrent    ChargeVersionStatus = "current"
	ChargeVersionStatusSuperseded ChargeVersionStatus = "superseded"
)

// ChargeVersion is a time-bounded charging configuration for a licence.
type ChargeVersion struct {
	ID               string
	Licence          Licence
	VersionNumber    int
	DateRange        DateRange
	Status           ChargeVersionStatus
	Scheme           string
	CompanyID        string
	InvoiceAccountID string
	Elements         []ChargeElement
}

// NewChargeVersion validates the charge version and its elements.
func NewChargeVersion(cv ChargeVersion) (*ChargeVersion, error) {
	if cv.ID == "" || cv.Licence.LicenceNumber == "" {
		return nil, ErrEmptyID
	}
	switch cv.Status {
	case ChargeVersionStatusDraft, ChargeVersionStatusCurrent, ChargeVersionStatusSuperseded:
	default:
		return nil, ErrInvalidStatus
	}
	r, err := NewDateRange(cv.DateRange.Start, cv.DateRange.End)
	if err != nil {
		return nil, err
	}
	cv.DateRange = r
	licenceRange, err := NewDateRange(cv.Licence.DateRange.Start, cv.Licence.DateRange.End)
	if err != nil {
		return nil, err
	}
	cv.Licence.DateRange = licenceRange
	elements := make([]ChargeElement, 0, len(cv.Elements))
	for _, e := range cv.Elements {
		element, err := NewChargeElement(e)
		if err != nil {
			return nil, err
		}
		elements = append(elements, element)
	}
	cv.Elements = elements
	return &cv, nil
}

// ChargePeriod is the overlap of licence validity, the financial year and the
// charge version validity.
func (cv *ChargeVersion) ChargePeriod(fy FinancialYear) (DateRange, bool) {
	if cv == nil {
		return DateRange{}, false
	}
	start := MaxDate(cv.Licence.DateRange.Start, fy.Start(), cv.DateRange.Start)
	end := MinDate(cv.Licence.DateRange.End, fy.End(), cv.DateRange.End)
	if end.Before(start) {
		return DateRange{}, false
	}
	return DateRange{Start: start, End: end}, true
}

// Element finds an element by id.
func (cv *ChargeVersion) Element(id string) (ChargeElement, bool) {
	for _, e := range cv.Elements {
		if e.ID == id {
			return e, true
		}
	}
	return ChargeElement{}, false
}
