package billing_test

import (
	"testing"
	"time"

	billing "abstraction-billing/internal/billing/domain"
)

func TestIntersect_SymmetricAndNoneIffDisjoint(t *testing.T) {
	ranges := []billing.DateRange{
		dateRange(t, "2019-04-01", "2020-03-31"),
		dateRange(t, "2020-03-31", "2020-06-30"),
		dateRange(t, "2020-04-01", ""),
		dateRange(t, "2018-01-01", "2019-04-01"),
		dateRange(t, "2019-06-15", "2019-06-15"),
		dateRange(t, "2015-01-01", ""),
		dateRange(t, "2021-01-01", "2021-12-31"),
	}

	window := dateRange(t, "2014-12-01", "2022-02-01")
	for i, a := range ranges {
		for j, b := range ranges {
			ab, okAB := a.Intersect(b)
			ba, okBA := b.Intersect(a)
			if okAB != okBA {
				t.Fatalf("symmetry mismatch for %d,%d: got=%v want=%v", i, j, okAB, okBA)
			}
			if okAB && !ab.Equal(ba) {
				t.Fatalf("intersection mismatch for %d,%d: got=%s want=%s", i, j, ab, ba)
			}

			shared := false
			for d := window.Start; !d.After(window.End); d = d.AddDate(0, 0, 1) {
				if a.Contains(d) && b.Contains(d) {
					shared = true
					break
				}
			}
			if shared != okAB {
				t.Fatalf("overlap mismatch for %s and %s: got=%v want=%v", a, b, okAB, shared)
			}
		}
	}
}

func TestIntersect_SharedBoundaryOverlaps(t *testing.T) {
	a := dateRange(t, "2019-04-01", "2019-06-30")
	b := dateRange(t, "2019-06-30", "2019-12-31")
	got, ok := a.Intersect(b)
	if !ok {
		t.Fatalf("expected overlap on shared boundary")
	}
	if got.Days() != 1 {
		t.Fatalf("days mismatch: got=%d want=1", got.Days())
	}
}

func TestMaxMinDate_IgnoreOpenEnds(t *testing.T) {
	a := date(t, "2019-04-01")
	b := date(t, "2020-03-31")
	if got := billing.MaxDate(a, time.Time{}, b); !got.Equal(b) {
		t.Fatalf("max mismatch: got=%s want=%s", got, b)
	}
	if got := billing.MinDate(time.Time{}, b, a); !got.Equal(a) {
		t.Fatalf("min mismatch: got=%s want=%s", got, a)
	}
	if got := billing.MinDate(time.Time{}, time.Time{}); !got.IsZero() {
		t.Fatalf("expected zero for all open dates, got=%s", got)
	}
}

func TestNewDateRange_RejectsStartAfterEnd(t *testing.T) {
	_, err := billing.NewDateRange(date(t, "2020-01-02"), date(t, "2020-01-01"))
	if err != billing.ErrInvalidDateRange {
		t.Fatalf("error mismatch: got=%v want=%v", err, billing.ErrInvalidDateRange)
	}
	if _, err := billing.NewDateRange(time.Time{}, date(t, "2020-01-01")); err != billing.ErrInvalidDate {
		t.Fatalf("error mismatch: got=%v want=%v", err, billing.ErrInvalidDate)
	}
}

func TestAbstractionPeriod_BillableDays(t *testing.T) {
	fy := financialYear(t, 2020).DateRange()
	winter, err := billing.NewAbstractionPeriod(1, time.November, 31, time.March)
	if err != nil {
		t.Fatalf("winter period: %v", err)
	}
	summer, err := billing.NewAbstractionPeriod(1, time.April, 31, time.October)
	if err != nil {
		t.Fatalf("summer period: %v", err)
	}

	cases := []struct {
		name   string
		period billing.AbstractionPeriod
		rng    billing.DateRange
		want   int
	}{
		{name: "all year leap", period: billing.AllYear(), rng: fy, want: 366},
		{name: "wrapped winter", period: winter, rng: fy, want: 152},
		{name: "summer", period: summer, rng: fy, want: 214},
		{name: "summer in winter quarter", period: summer, rng: dateRange(t, "2020-01-01", "2020-03-31"), want: 0},
		{name: "open range", period: billing.AllYear(), rng: dateRange(t, "2020-01-01", ""), want: 0},
	}
	for _, tc := range cases {
		if got := tc.period.BillableDays(tc.rng); got != tc.want {
			t.Fatalf("%s: billable days mismatch: got=%d want=%d", tc.name, got, tc.want)
		}
	}

	if _, err := billing.NewAbstractionPeriod(31, time.February, 1, time.March); err != billing.ErrInvalidAbstractionPeriod {
		t.Fatalf("expected invalid abstraction period, got=%v", err)
	}
}
