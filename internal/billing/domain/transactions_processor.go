package billing

// TwoPartTariffRuns records which licences already had a sent two-part-tariff
// run per season.
type TwoPartTariffRuns struct {
	summer        map[string]bool
	winterAllYear map[string]bool
}

// NewTwoPartTariffRuns indexes the licences invoiced by sent two-part-tariff batches.
func NewTwoPartTariffRuns(sent []*Batch) TwoPartTariffRuns {
	runs := TwoPartTariffRuns{summer: map[string]bool{}, winterAllYear: map[string]bool{}}
	for _, b := range sent {
		if b == nil || !b.IsTwoPartTariff() || b.Status != BatchStatusSent {
			continue
		}
		target := runs.winterAllYear
		if b.IsSummer {
			target = runs.summer
		}
		for _, inv := range b.Invoices {
			for _, il := range inv.InvoiceLicences {
				target[il.LicenceNumber] = true
			}
		}
	}
	return runs
}

// HasRun reports whether the season's two-part-tariff run included the licence.
func (r TwoPartTariffRuns) HasRun(licenceNumber string, isSummer bool) bool {
	if isSummer {
		return r.summer[licenceNumber]
	}
	return r.winterAllYear[licenceNumber]
}

// CreateTransactions generates the candidate transactions for one charge
// version in one financial year.
func CreateTransactions(batch *Batch, fy FinancialYear, cv *ChargeVersion, sentTwoPartTariffBatches []*Batch) ([]*Transaction, error) {
	if batch == nil {
		return nil, ErrNilBatch
	}
	if cv == nil {
		return nil, ErrNilChargeVersion
	}
	if fy.IsZero() {
		return nil, ErrInvalidFinancialYear
	}
	chargePeriod, ok := cv.ChargePeriod(fy)
	if !ok {
		return nil, nil
	}
	runs := NewTwoPartTariffRuns(sentTwoPartTariffBatches)

	var transactions []*Transaction
	for _, period := range AgreementHistory(chargePeriod, cv.Licence.Agreements) {
		for _, element := range cv.Elements {
			elementPeriod, ok := element.ChargePeriod(period.DateRange)
			if !ok {
				continue
			}
			if batch.RequiresAnnualCharges() {
				transactions = append(transactions, newTransaction(elementPeriod, element, period.Agreements, fy, false, false))
				if !cv.Licence.IsWaterUndertaker {
					transactions = append(transactions, newTransaction(elementPeriod, element, period.Agreements, fy, true, false))
				}
			}
			if twoPartTariffChargeNeeded(batch, period, element, runs, cv.Licence.LicenceNumber) {
				transactions = append(transactions, newTransaction(elementPeriod, element, period.Agreements, fy, false, true))
			}
		}
	}
	return transactions, nil
}

func twoPartTariffChargeNeeded(batch *Batch, period AgreementPeriod, element ChargeElement, runs TwoPartTariffRuns, licenceNumber string) bool {
	if !batch.AllowsTwoPartTariffCharges() || !period.HasTwoPartTariff() || !element.Purpose.IsTwoPartTariff {
		return false
	}
	isSummer := element.Season.IsSummer()
	if batch.IsTwoPartTariff() {
		return batch.IsSummer == isSummer
	}
	return runs.HasRun(licenceNumber, isSummer)
}

func agreementApplies(agreement Agreement, purpose Purpose) bool {
	return agreement.IsCanalAndRiversTrust() || (agreement.IsTwoPartTariff() && purpose.IsTwoPartTariff)
}

func newTransaction(period DateRange, element ChargeElement, agreements []Agreement, fy FinancialYear, compensation, twoPartTariff bool) *Transaction {
	var applied []Agreement
	for _, a := range agreements {
		if agreementApplies(a, element.Purpose) {
			applied = append(applied, a)
		}
	}
	volume := element.Volume()
	t := &Transaction{
		ChargeElement:                element,
		ChargePeriod:                 period,
		AuthorisedDays:               element.AbstractionPeriod.BillableDays(fy.DateRange()),
		BillableDays:                 element.AbstractionPeriod.BillableDays(period),
		Volume:                       &volume,
		IsCompensationCharge:         compensation,
		IsTwoPartTariffSupplementary: twoPartTariff,
		Agreements:                   applied,
		Status:                       TransactionStatusCandidate,
	}
	t.CreateDescription()
	return t
}
