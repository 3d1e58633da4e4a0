package billing

import "time"

// AbstractionPeriod is an annually recurring day/month window. It may wrap the
// calendar year end, e.g. 1 Nov to 31 Mar.
type AbstractionPeriod struct {
	StartDay   int
	StartMonth time.Month
	EndDay     int
	EndMonth   time.Month
}

// NewAbstractionPeriod validates the day/month pairs against a leap year.
func NewAbstractionPeriod(startDay int, startMonth time.Month, endDay int, endMonth time.Month) (AbstractionPeriod, error) {
	if !validDayMonth(startDay, startMonth) || !validDayMonth(endDay, endMonth) {
		return AbstractionPeriod{}, ErrInvalidAbstractionPeriod
	}
	return AbstractionPeriod{
		StartDay:   startDay,
		StartMonth: startMonth,
		EndDay:     endDay,
		EndMonth:   endMonth,
	}, nil
}

// AllYear is the 1 Jan to 31 Dec period.
func AllYear() AbstractionPeriod {
	return AbstractionPeriod{StartDay: 1, StartMonth: time.January, EndDay: 31, EndMonth: time.December}
}

func validDayMonth(day int, month time.Month) bool {
	if month < time.January || month > time.December || day < 1 {
		return false
	}
	// 2000 is a leap year so 29 Feb is accepted.
	return NewDate(2000, month, day).Month() == month
}

func ordinal(month time.Month, day int) int {
	return int(month)*100 + day
}

// IsWrapped reports whether the period crosses the calendar year end.
func (p AbstractionPeriod) IsWrapped() bool {
	return ordinal(p.StartMonth, p.StartDay) > ordinal(p.EndMonth, p.EndDay)
}

// Includes reports whether the calendar day of date falls within the period.
func (p AbstractionPeriod) Includes(date time.Time) bool {
	_, m, d := date.Date()
	o := ordinal(m, d)
	start := ordinal(p.StartMonth, p.StartDay)
	end := ordinal(p.EndMonth, p.EndDay)
	if start <= end {
		return o >= start && o <= end
	}
	return o >= start || o <= end
}

// BillableDays counts the days of r that fall inside the recurring period.
// An open-ended range counts nothing.
func (p AbstractionPeriod) BillableDays(r DateRange) int {
	if r.Start.IsZero() || r.End.IsZero() || r.End.Before(r.Start) {
		return 0
	}
	count := 0
	for d := Date(r.Start); !d.After(r.End); d = d.AddDate(0, 0, 1) {
		if p.Includes(d) {
			count++
		}
	}
	return count
}
