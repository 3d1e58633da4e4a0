package billing_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	billing "abstraction-billing/internal/billing/domain"
)

func tptTransactions(t *testing.T, elementIDs ...string) []*billing.Transaction {
	t.Helper()
	var elements []billing.ChargeElement
	for _, id := range elementIDs {
		elements = append(elements, element(id, billing.SeasonSummer, true))
	}
	cv := chargeVersion(t, withUndertaker(), withElements(elements...), withAgreements(agreement(t, "la-1", "S127", "2019-01-01", "")))
	transactions, err := billing.CreateTransactions(newBatch(t, billing.BatchTypeTwoPartTariff, true), financialYear(t, 2020), cv, nil)
	if err != nil {
		t.Fatalf("create transactions: %v", err)
	}
	if len(transactions) != len(elementIDs) {
		t.Fatalf("transaction count mismatch: got=%d want=%d", len(transactions), len(elementIDs))
	}
	return transactions
}

func status(s billing.TwoPartTariffStatus) *billing.TwoPartTariffStatus { return &s }

func TestDecorateTransactions_OverallErrorWithoutData(t *testing.T) {
	transactions := tptTransactions(t, "a", "b")
	billing.DecorateTransactions(billing.MatchResult{Error: status(billing.ErrorNoReturnsForMatching)}, transactions)

	for _, tx := range transactions {
		if tx.Volume != nil {
			t.Fatalf("%s: expected nil volume, got=%s", tx.ChargeElement.ID, tx.Volume)
		}
		if tx.TwoPartTariffStatus == nil || *tx.TwoPartTariffStatus != billing.ErrorNoReturnsForMatching {
			t.Fatalf("%s: status mismatch: got=%v want=%v", tx.ChargeElement.ID, tx.TwoPartTariffStatus, billing.ErrorNoReturnsForMatching)
		}
		if !tx.TwoPartTariffError {
			t.Fatalf("%s: expected error flag", tx.ChargeElement.ID)
		}
	}
}

func TestDecorateTransactions_OverallErrorWithData(t *testing.T) {
	transactions := tptTransactions(t, "a", "b")
	billing.DecorateTransactions(billing.MatchResult{
		Error: status(billing.ErrorSomeReturnsDue),
		Elements: []billing.ElementResult{
			{ChargeElementID: "a", ActualReturnQuantity: ml(10)},
			{ChargeElementID: "b", ActualReturnQuantity: ml(20)},
		},
	}, transactions)

	for _, tx := range transactions {
		if tx.Volume != nil {
			t.Fatalf("%s: expected nil volume", tx.ChargeElement.ID)
		}
		if tx.TwoPartTariffStatus == nil || *tx.TwoPartTariffStatus != billing.ErrorSomeReturnsDue {
			t.Fatalf("%s: status mismatch: got=%v", tx.ChargeElement.ID, tx.TwoPartTariffStatus)
		}
	}
}

func TestDecorateTransactions_PerElementError(t *testing.T) {
	transactions := tptTransactions(t, "a", "b")
	billing.DecorateTransactions(billing.MatchResult{
		Elements: []billing.ElementResult{
			{ChargeElementID: "a", ActualReturnQuantity: ml(150), Error: status(billing.ErrorOverAbstraction)},
			{ChargeElementID: "b", ActualReturnQuantity: ml(42)},
		},
	}, transactions)

	a, b := transactions[0], transactions[1]
	if a.Volume != nil || !a.TwoPartTariffError {
		t.Fatalf("a: expected nil volume with error, got volume=%v error=%v", a.Volume, a.TwoPartTariffError)
	}
	if a.CalculatedVolume == nil || !a.CalculatedVolume.Equal(ml(150)) {
		t.Fatalf("a: calculated volume mismatch: got=%v want=150", a.CalculatedVolume)
	}
	if b.Volume == nil || !b.Volume.Equal(ml(42)) {
		t.Fatalf("b: volume mismatch: got=%v want=42", b.Volume)
	}
	if b.TwoPartTariffError || b.TwoPartTariffStatus != nil {
		t.Fatalf("b: expected no error")
	}
}

func TestBillingVolumesFromMatch(t *testing.T) {
	fy := financialYear(t, 2020)
	ids := 0
	volumes := billing.BillingVolumesFromMatch(billing.MatchResult{
		Elements: []billing.ElementResult{
			{ChargeElementID: "a", ActualReturnQuantity: ml(5)},
			{ChargeElementID: "b", ActualReturnQuantity: ml(7), Error: status(billing.ErrorOverAbstraction)},
		},
	}, nil, fy, true, "batch-1", func() string { ids++; return "bv-" + string(rune('0'+ids)) })

	if len(volumes) != 2 {
		t.Fatalf("volume count mismatch: got=%d want=2", len(volumes))
	}
	if volumes[0].ID != "bv-1" || volumes[1].ID != "bv-2" {
		t.Fatalf("id mismatch: got=%s,%s", volumes[0].ID, volumes[1].ID)
	}
	if !billing.HasUnapproved(volumes) {
		t.Fatalf("expected unapproved volumes")
	}
	if volumes[1].Volume == nil || !volumes[1].Volume.Equal(ml(7)) || !volumes[1].TwoPartTariffError {
		t.Fatalf("error volume mismatch: got=%v error=%v", volumes[1].Volume, volumes[1].TwoPartTariffError)
	}
	if got := billing.BillingVolumesFromMatch(billing.MatchResult{}, nil, fy, true, "batch-1", nil); len(got) != 0 {
		t.Fatalf("expected no volumes for an empty result, got=%d", len(got))
	}
}

func TestBillingVolumesFromOverallError(t *testing.T) {
	fy := financialYear(t, 2020)
	elements := billing.MatchingElementsFromTransactions(tptTransactions(t, "a", "b"))
	volumes := billing.BillingVolumesFromMatch(billing.MatchResult{Error: status(billing.ErrorUnderQuery)}, elements, fy, true, "batch-1", nil)

	if len(volumes) != 2 {
		t.Fatalf("volume count mismatch: got=%d want=2", len(volumes))
	}
	for i, want := range []string{"a", "b"} {
		v := volumes[i]
		if v.ChargeElementID != want {
			t.Fatalf("element mismatch: got=%s want=%s", v.ChargeElementID, want)
		}
		if v.Volume != nil || v.CalculatedVolume != nil {
			t.Fatalf("%s: expected no quantities, got volume=%v calculated=%v", want, v.Volume, v.CalculatedVolume)
		}
		if !v.TwoPartTariffError || v.TwoPartTariffStatus == nil || *v.TwoPartTariffStatus != billing.ErrorUnderQuery {
			t.Fatalf("%s: status mismatch: got=%v error=%v", want, v.TwoPartTariffStatus, v.TwoPartTariffError)
		}
		if v.IsApproved || v.BatchID != "batch-1" || !v.IsSummer || v.FinancialYear != fy {
			t.Fatalf("%s: volume mismatch: %+v", want, v)
		}
	}
}

func TestApplyBillingVolumes(t *testing.T) {
	transactions := tptTransactions(t, "a")
	v := decimal.RequireFromString("12.5")
	billing.ApplyBillingVolumes(transactions, financialYear(t, 2020), []*billing.BillingVolume{
		{ChargeElementID: "a", FinancialYear: financialYear(t, 2019), IsSummer: true, Volume: &v},
	})
	if !transactions[0].Volume.Equal(ml(100)) {
		t.Fatalf("volume from other year applied: got=%s", transactions[0].Volume)
	}
	billing.ApplyBillingVolumes(transactions, financialYear(t, 2020), []*billing.BillingVolume{
		{ChargeElementID: "a", FinancialYear: financialYear(t, 2020), IsSummer: true, Volume: &v},
	})
	if !transactions[0].Volume.Equal(v) {
		t.Fatalf("volume mismatch: got=%s want=%s", transactions[0].Volume, v)
	}
}

func returnFor(id string, status billing.ReturnStatus, lines ...billing.ReturnLine) billing.Return {
	return billing.Return{
		ID:                id,
		LicenceNumber:     "01/123/R01",
		Status:            status,
		IsSummer:          true,
		ReceivedDate:      time.Date(2020, time.April, 20, 0, 0, 0, 0, time.UTC),
		AbstractionPeriod: billing.AllYear(),
		PurposeCodes:      []string{"400"},
		Lines:             lines,
	}
}

func matchingElement(t *testing.T, id string, authorised int64) billing.MatchingElement {
	return billing.MatchingElement{
		ChargeElementID:          id,
		Season:                   billing.SeasonSummer,
		PurposeCode:              "400",
		AbstractionPeriod:        billing.AllYear(),
		AuthorisedAnnualQuantity: ml(authorised),
		ChargePeriod:             financialYear(t, 2020).DateRange(),
	}
}

func TestStandardReturnsMatcher_OverallErrors(t *testing.T) {
	matcher := billing.StandardReturnsMatcher{}
	elements := []billing.MatchingElement{matchingElement(t, "a", 100)}
	line := billing.ReturnLine{DateRange: financialYear(t, 2020).DateRange(), Quantity: ml(1000)}

	cases := []struct {
		name    string
		returns []billing.Return
		want    billing.TwoPartTariffStatus
	}{
		{name: "none", returns: nil, want: billing.ErrorNoReturnsForMatching},
		{name: "only void", returns: []billing.Return{returnFor("r1", billing.ReturnStatusVoid)}, want: billing.ErrorNoReturnsForMatching},
		{name: "all due", returns: []billing.Return{returnFor("r1", billing.ReturnStatusDue)}, want: billing.ErrorNoReturnsSubmitted},
		{name: "under query", returns: []billing.Return{func() billing.Return {
			r := returnFor("r1", billing.ReturnStatusCompleted, line)
			r.IsUnderQuery = true
			return r
		}()}, want: billing.ErrorUnderQuery},
		{name: "received", returns: []billing.Return{returnFor("r1", billing.ReturnStatusReceived, line)}, want: billing.ErrorReceived},
		{name: "some due", returns: []billing.Return{returnFor("r1", billing.ReturnStatusCompleted, line), returnFor("r2", billing.ReturnStatusDue)}, want: billing.ErrorSomeReturnsDue},
		{name: "lines missing", returns: []billing.Return{returnFor("r1", billing.ReturnStatusCompleted)}, want: billing.ErrorReturnLinesMissing},
	}
	for _, tc := range cases {
		result := matcher.Match(elements, tc.returns)
		if result.Error == nil || *result.Error != tc.want {
			t.Fatalf("%s: overall status mismatch: got=%v want=%v", tc.name, result.Error, tc.want)
		}
		if result.Elements != nil {
			t.Fatalf("%s: expected no element data", tc.name)
		}
	}
}

func TestStandardReturnsMatcher_AllocatesInElementOrder(t *testing.T) {
	matcher := billing.StandardReturnsMatcher{}
	line := billing.ReturnLine{DateRange: financialYear(t, 2020).DateRange(), Quantity: ml(50000)}

	single := matcher.Match([]billing.MatchingElement{matchingElement(t, "a", 100)}, []billing.Return{returnFor("r1", billing.ReturnStatusCompleted, line)})
	if single.Error != nil || len(single.Elements) != 1 {
		t.Fatalf("unexpected result: %+v", single)
	}
	if !single.Elements[0].ActualReturnQuantity.Equal(ml(50)) || single.Elements[0].Error != nil {
		t.Fatalf("quantity mismatch: got=%s want=50", single.Elements[0].ActualReturnQuantity)
	}

	spill := matcher.Match(
		[]billing.MatchingElement{matchingElement(t, "a", 10), matchingElement(t, "b", 100)},
		[]billing.Return{returnFor("r1", billing.ReturnStatusCompleted, line)},
	)
	if !spill.Elements[0].ActualReturnQuantity.Equal(ml(10)) || !spill.Elements[1].ActualReturnQuantity.Equal(ml(40)) {
		t.Fatalf("allocation mismatch: got=%s,%s want=10,40", spill.Elements[0].ActualReturnQuantity, spill.Elements[1].ActualReturnQuantity)
	}

	over := matcher.Match([]billing.MatchingElement{matchingElement(t, "a", 10)}, []billing.Return{returnFor("r1", billing.ReturnStatusCompleted, line)})
	if over.Elements[0].Error == nil || *over.Elements[0].Error != billing.ErrorOverAbstraction {
		t.Fatalf("expected over abstraction, got=%v", over.Elements[0].Error)
	}
	if !over.Elements[0].ActualReturnQuantity.Equal(ml(50)) {
		t.Fatalf("over quantity mismatch: got=%s want=50", over.Elements[0].ActualReturnQuantity)
	}

	other := matchingElement(t, "c", 100)
	other.PurposeCode = "999"
	unmatched := matcher.Match([]billing.MatchingElement{other}, []billing.Return{returnFor("r1", billing.ReturnStatusCompleted, line)})
	if !unmatched.Elements[0].ActualReturnQuantity.IsZero() {
		t.Fatalf("expected zero for other purpose, got=%s", unmatched.Elements[0].ActualReturnQuantity)
	}
}
