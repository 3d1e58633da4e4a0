package billing_test

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	billing "abstraction-billing/internal/billing/domain"
)

func codes(period billing.AgreementPeriod) string {
	parts := make([]string, 0, len(period.Agreements))
	for _, a := range period.Agreements {
		parts = append(parts, a.Code)
	}
	return strings.Join(parts, ",")
}

func assertCoversBase(t *testing.T, base billing.DateRange, periods []billing.AgreementPeriod) {
	t.Helper()
	if len(periods) == 0 {
		t.Fatalf("expected periods")
	}
	if !periods[0].DateRange.Start.Equal(base.Start) {
		t.Fatalf("first start mismatch: got=%s want=%s", periods[0].DateRange, base)
	}
	if !periods[len(periods)-1].DateRange.End.Equal(base.End) {
		t.Fatalf("last end mismatch: got=%s want=%s", periods[len(periods)-1].DateRange, base)
	}
	total := 0
	for i, p := range periods {
		total += p.DateRange.Days()
		if i == 0 {
			continue
		}
		if !p.DateRange.Start.Equal(periods[i-1].DateRange.End.AddDate(0, 0, 1)) {
			t.Fatalf("periods not contiguous at %d: %s after %s", i, p.DateRange, periods[i-1].DateRange)
		}
	}
	if total != base.Days() {
		t.Fatalf("days mismatch: got=%d want=%d", total, base.Days())
	}
}

type wantPeriod struct {
	rng   string
	codes string
}

func assertPeriods(t *testing.T, periods []billing.AgreementPeriod, want []wantPeriod) {
	t.Helper()
	if len(periods) != len(want) {
		got := make([]string, 0, len(periods))
		for _, p := range periods {
			got = append(got, p.DateRange.String()+"["+codes(p)+"]")
		}
		t.Fatalf("period count mismatch: got=%v want=%d", got, len(want))
	}
	for i, w := range want {
		if periods[i].DateRange.String() != w.rng {
			t.Fatalf("period %d range mismatch: got=%s want=%s", i, periods[i].DateRange, w.rng)
		}
		if codes(periods[i]) != w.codes {
			t.Fatalf("period %d agreements mismatch: got=%s want=%s", i, codes(periods[i]), w.codes)
		}
	}
}

func TestAgreementHistory_NoAgreements(t *testing.T) {
	base := financialYear(t, 2020).DateRange()
	periods := billing.AgreementHistory(base, nil)
	assertPeriods(t, periods, []wantPeriod{{rng: "2019-04-01..2020-03-31"}})

	ignored := billing.AgreementHistory(base, []billing.LicenceAgreement{
		agreement(t, "la-1", "S126", "2019-01-01", ""),
	})
	assertPeriods(t, ignored, []wantPeriod{{rng: "2019-04-01..2020-03-31"}})
}

func TestAgreementHistory_SplitsAtAgreementBoundaries(t *testing.T) {
	base := financialYear(t, 2020).DateRange()
	periods := billing.AgreementHistory(base, []billing.LicenceAgreement{
		agreement(t, "la-1", "S127", "2019-06-01", "2019-09-30"),
	})
	assertCoversBase(t, base, periods)
	assertPeriods(t, periods, []wantPeriod{
		{rng: "2019-04-01..2019-05-31"},
		{rng: "2019-06-01..2019-09-30", codes: "S127"},
		{rng: "2019-10-01..2020-03-31"},
	})
}

func TestAgreementHistory_LaterStartWinsOnOverlap(t *testing.T) {
	base := financialYear(t, 2020).DateRange()
	periods := billing.AgreementHistory(base, []billing.LicenceAgreement{
		agreement(t, "la-1", "S130S", "2019-01-01", ""),
		agreement(t, "la-2", "S130T", "2019-08-01", "2019-12-31"),
	})
	assertCoversBase(t, base, periods)
	assertPeriods(t, periods, []wantPeriod{
		{rng: "2019-04-01..2019-07-31", codes: "S130S"},
		{rng: "2019-08-01..2019-12-31", codes: "S130T"},
		{rng: "2020-01-01..2020-03-31", codes: "S130S"},
	})
}

func TestAgreementHistory_EqualStartUsesLaterRecord(t *testing.T) {
	base := financialYear(t, 2020).DateRange()
	periods := billing.AgreementHistory(base, []billing.LicenceAgreement{
		agreement(t, "la-1", "S130S", "2019-01-01", ""),
		agreement(t, "la-2", "S130W", "2019-01-01", ""),
	})
	assertPeriods(t, periods, []wantPeriod{{rng: "2019-04-01..2020-03-31", codes: "S130W"}})
}

func TestAgreementHistory_IndependentCategories(t *testing.T) {
	base := financialYear(t, 2020).DateRange()
	periods := billing.AgreementHistory(base, []billing.LicenceAgreement{
		agreement(t, "la-1", "S130W", "2019-10-01", ""),
		agreement(t, "la-2", "S127", "2019-06-01", ""),
	})
	assertCoversBase(t, base, periods)
	assertPeriods(t, periods, []wantPeriod{
		{rng: "2019-04-01..2019-05-31"},
		{rng: "2019-06-01..2019-09-30", codes: "S127"},
		{rng: "2019-10-01..2020-03-31", codes: "S127,S130W"},
	})
}

func TestAgreementHistory_AdjacentRecordsCoalesce(t *testing.T) {
	base := financialYear(t, 2020).DateRange()
	periods := billing.AgreementHistory(base, []billing.LicenceAgreement{
		agreement(t, "la-1", "S127", "2019-01-01", "2019-07-31"),
		agreement(t, "la-2", "S127", "2019-08-01", ""),
	})
	assertPeriods(t, periods, []wantPeriod{{rng: "2019-04-01..2020-03-31", codes: "S127"}})
}

func TestAgreementHistory_DifferentFactorsDoNotCoalesce(t *testing.T) {
	base := financialYear(t, 2020).DateRange()
	withFactor := func(la billing.LicenceAgreement, factor string) billing.LicenceAgreement {
		f := decimal.RequireFromString(factor)
		la.Agreement.Factor = &f
		return la
	}
	periods := billing.AgreementHistory(base, []billing.LicenceAgreement{
		withFactor(agreement(t, "la-1", "S130W", "2019-01-01", "2019-09-30"), "0.5"),
		withFactor(agreement(t, "la-2", "S130W", "2019-10-01", ""), "0.75"),
	})
	assertCoversBase(t, base, periods)
	assertPeriods(t, periods, []wantPeriod{
		{rng: "2019-04-01..2019-09-30", codes: "S130W"},
		{rng: "2019-10-01..2020-03-31", codes: "S130W"},
	})
	if f := periods[1].Agreements[0].Factor; f == nil || !f.Equal(decimal.RequireFromString("0.75")) {
		t.Fatalf("factor mismatch: got=%v want=0.75", f)
	}
}
