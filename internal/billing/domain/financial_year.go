package billing

import (
	"fmt"
	"time"
)

// FinancialYear is a UK financial year identified by the calendar year it ends in.
type FinancialYear struct {
	ending int
}

// NewFinancialYear builds the financial year ending 31 March of ending.
func NewFinancialYear(ending int) (FinancialYear, error) {
	if ending <= 0 {
		return FinancialYear{}, ErrInvalidFinancialYear
	}
	return FinancialYear{ending: ending}, nil
}

// FinancialYearForDate returns the financial year containing date.
func FinancialYearForDate(date time.Time) FinancialYear {
	date = Date(date)
	if date.Month() >= time.April {
		return FinancialYear{ending: date.Year() + 1}
	}
	return FinancialYear{ending: date.Year()}
}

// FinancialYears returns the inclusive ascending sequence between two ending years.
func FinancialYears(fromEnding, toEnding int) ([]FinancialYear, error) {
	if fromEnding <= 0 || toEnding <= 0 {
		return nil, ErrInvalidFinancialYear
	}
	if fromEnding > toEnding {
		return nil, ErrInvalidFinancialYearRange
	}
	years := make([]FinancialYear, 0, toEnding-fromEnding+1)
	for y := fromEnding; y <= toEnding; y++ {
		years = append(years, FinancialYear{ending: y})
	}
	return years, nil
}

// EndYear returns the ending calendar year.
func (f FinancialYear) EndYear() int { return f.ending }

// IsZero reports whether the value was never initialised.
func (f FinancialYear) IsZero() bool { return f.ending == 0 }

// Start returns 1 April of the previous calendar year.
func (f FinancialYear) Start() time.Time { return NewDate(f.ending-1, time.April, 1) }

// End returns 31 March of the ending year.
func (f FinancialYear) End() time.Time { return NewDate(f.ending, time.March, 31) }

// DateRange returns the whole financial year as a range.
func (f FinancialYear) DateRange() DateRange {
	return DateRange{Start: f.Start(), End: f.End()}
}

// String renders e.g. "2019/20".
func (f FinancialYear) String() string {
	return fmt.Sprintf("%d/%02d", f.ending-1, f.ending%100)
}
