package postgres

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	billing "abstraction-billing/internal/billing/domain"
)

// JSONB shapes of nested domain values.

type dateRangeRecord struct {
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
}

func toDateRangeRecord(r billing.DateRange) dateRangeRecord {
	return dateRangeRecord{Start: billing.FormatDate(r.Start), End: billing.FormatDate(r.End)}
}

func (r dateRangeRecord) domain() (billing.DateRange, error) {
	start, err := billing.ParseDate(r.Start)
	if err != nil {
		return billing.DateRange{}, err
	}
	var end time.Time
	if r.End != "" {
		if end, err = billing.ParseDate(r.End); err != nil {
			return billing.DateRange{}, err
		}
	}
	return billing.NewDateRange(start, end)
}

type agreementRecord struct {
	Code   string           `json:"code"`
	Factor *decimal.Decimal `json:"factor,omitempty"`
}

type licenceAgreementRecord struct {
	ID        string          `json:"id"`
	Agreement agreementRecord `json:"agreement"`
	DateRange dateRangeRecord `json:"dateRange"`
}

type elementRecord struct {
	ID                       string           `json:"id"`
	Source                   string           `json:"source"`
	Season                   string           `json:"season"`
	Loss                     string           `json:"loss"`
	AbstractionPeriod        [4]int           `json:"abstractionPeriod"`
	AuthorisedAnnualQuantity decimal.Decimal  `json:"authorisedAnnualQuantity"`
	BillableAnnualQuantity   *decimal.Decimal `json:"billableAnnualQuantity,omitempty"`
	TimeLimitedPeriod        *dateRangeRecord `json:"timeLimitedPeriod,omitempty"`
	PurposeCode              string           `json:"purposeCode"`
	PurposeDescription       string           `json:"purposeDescription"`
	IsTwoPartTariff          bool             `json:"isTwoPartTariff"`
	Description              string           `json:"description"`
}

func toElementRecord(e billing.ChargeElement) elementRecord {
	rec := elementRecord{
		ID:     e.ID,
		Source: e.Source,
		Season: string(e.Season),
		Loss:   e.Loss,
		AbstractionPeriod: [4]int{
			e.AbstractionPeriod.StartDay, int(e.AbstractionPeriod.StartMonth),
			e.AbstractionPeriod.EndDay, int(e.AbstractionPeriod.EndMonth),
		},
		AuthorisedAnnualQuantity: e.AuthorisedAnnualQuantity,
		BillableAnnualQuantity:   e.BillableAnnualQuantity,
		PurposeCode:              e.Purpose.Code,
		PurposeDescription:       e.Purpose.Description,
		IsTwoPartTariff:          e.Purpose.IsTwoPartTariff,
		Description:              e.Description,
	}
	if e.TimeLimitedPeriod != nil {
		tl := toDateRangeRecord(*e.TimeLimitedPeriod)
		rec.TimeLimitedPeriod = &tl
	}
	return rec
}

func (r elementRecord) domain() (billing.ChargeElement, error) {
	period, err := billing.NewAbstractionPeriod(
		r.AbstractionPeriod[0], time.Month(r.AbstractionPeriod[1]),
		r.AbstractionPeriod[2], time.Month(r.AbstractionPeriod[3]),
	)
	if err != nil {
		return billing.ChargeElement{}, err
	}
	element := billing.ChargeElement{
		ID:                       r.ID,
		Source:                   r.Source,
		Season:                   billing.Season(r.Season),
		Loss:                     r.Loss,
		AbstractionPeriod:        period,
		AuthorisedAnnualQuantity: r.AuthorisedAnnualQuantity,
		BillableAnnualQuantity:   r.BillableAnnualQuantity,
		Purpose: billing.Purpose{
			Code:            r.PurposeCode,
			Description:     r.PurposeDescription,
			IsTwoPartTariff: r.IsTwoPartTariff,
		},
		Description: r.Description,
	}
	if r.TimeLimitedPeriod != nil {
		tl, err := r.TimeLimitedPeriod.domain()
		if err != nil {
			return billing.ChargeElement{}, err
		}
		element.TimeLimitedPeriod = &tl
	}
	return billing.NewChargeElement(element)
}

func encodeElements(elements []billing.ChargeElement) ([]byte, error) {
	records := make([]elementRecord, 0, len(elements))
	for _, e := range elements {
		records = append(records, toElementRecord(e))
	}
	return json.Marshal(records)
}

func decodeElements(data []byte) ([]billing.ChargeElement, error) {
	var records []elementRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	elements := make([]billing.ChargeElement, 0, len(records))
	for _, rec := range records {
		e, err := rec.domain()
		if err != nil {
			return nil, err
		}
		elements = append(elements, e)
	}
	return elements, nil
}

func encodeElement(e billing.ChargeElement) ([]byte, error) {
	return json.Marshal(toElementRecord(e))
}

func decodeElement(data []byte) (billing.ChargeElement, error) {
	var rec elementRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return billing.ChargeElement{}, err
	}
	return rec.domain()
}

func encodeLicenceAgreements(agreements []billing.LicenceAgreement) ([]byte, error) {
	records := make([]licenceAgreementRecord, 0, len(agreements))
	for _, la := range agreements {
		records = append(records, licenceAgreementRecord{
			ID:        la.ID,
			Agreement: agreementRecord{Code: la.Agreement.Code, Factor: la.Agreement.Factor},
			DateRange: toDateRangeRecord(la.DateRange),
		})
	}
	return json.Marshal(records)
}

func decodeLicenceAgreements(data []byte) ([]billing.LicenceAgreement, error) {
	var records []licenceAgreementRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	agreements := make([]billing.LicenceAgreement, 0, len(records))
	for _, rec := range records {
		r, err := rec.DateRange.domain()
		if err != nil {
			return nil, err
		}
		la, err := billing.NewLicenceAgreement(rec.ID, billing.Agreement{Code: rec.Agreement.Code, Factor: rec.Agreement.Factor}, r)
		if err != nil {
			return nil, err
		}
		agreements = append(agreements, la)
	}
	return agreements, nil
}

func encodeAgreements(agreements []billing.Agreement) ([]byte, error) {
	records := make([]agreementRecord, 0, len(agreements))
	for _, a := range agreements {
		records = append(records, agreementRecord{Code: a.Code, Factor: a.Factor})
	}
	return json.Marshal(records)
}

func decodeAgreements(data []byte) ([]billing.Agreement, error) {
	var records []agreementRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	var agreements []billing.Agreement
	for _, rec := range records {
		agreements = append(agreements, billing.Agreement{Code: rec.Code, Factor: rec.Factor})
	}
	return agreements, nil
}

type companyRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type contactRecord struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type addressRecord struct {
	ID       string   `json:"id"`
	Lines    []string `json:"lines"`
	Town     string   `json:"town"`
	Postcode string   `json:"postcode"`
}

func encodeCompany(c billing.Company) ([]byte, error) {
	return json.Marshal(companyRecord{ID: c.ID, Name: c.Name})
}

func decodeCompany(data []byte) (billing.Company, error) {
	var rec companyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return billing.Company{}, err
	}
	return billing.Company{ID: rec.ID, Name: rec.Name}, nil
}

func encodeContact(c billing.Contact) ([]byte, error) {
	return json.Marshal(contactRecord{ID: c.ID, FirstName: c.FirstName, LastName: c.LastName})
}

func decodeContact(data []byte) (billing.Contact, error) {
	var rec contactRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return billing.Contact{}, err
	}
	return billing.Contact{ID: rec.ID, FirstName: rec.FirstName, LastName: rec.LastName}, nil
}

func encodeAddress(a billing.Address) ([]byte, error) {
	return json.Marshal(addressRecord{ID: a.ID, Lines: a.Lines, Town: a.Town, Postcode: a.Postcode})
}

func decodeAddress(data []byte) (billing.Address, error) {
	var rec addressRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return billing.Address{}, err
	}
	return billing.Address{ID: rec.ID, Lines: rec.Lines, Town: rec.Town, Postcode: rec.Postcode}, nil
}
