package billing

import "time"

const dateLayout = "2006-01-02"

// Date truncates t to a UTC calendar date.
func Date(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewDate builds a UTC calendar date.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date. An empty string yields the zero date.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// FormatDate renders a date as YYYY-MM-DD, or "" for the zero date.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// MaxDate returns the latest non-zero date. Zero dates are ignored.
func MaxDate(dates ...time.Time) time.Time {
	var result time.Time
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		d = Date(d)
		if result.IsZero() || d.After(result) {
			result = d
		}
	}
	return result
}

// MinDate returns the earliest non-zero date. Zero dates are open-ended and
// therefore impose no constraint.
func MinDate(dates ...time.Time) time.Time {
	var result time.Time
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		d = Date(d)
		if result.IsZero() || d.Before(result) {
			result = d
		}
	}
	return result
}

// DateRange is an inclusive range of calendar dates. A zero End means open-ended.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange validates and builds a range.
func NewDateRange(start, end time.Time) (DateRange, error) {
	if start.IsZero() {
		return DateRange{}, ErrInvalidDate
	}
	r := DateRange{Start: Date(start), End: Date(end)}
	if !r.End.IsZero() && r.End.Before(r.Start) {
		return DateRange{}, ErrInvalidDateRange
	}
	return r, nil
}

// MustDateRange builds a range and panics on invalid input. Intended for fixed values.
func MustDateRange(start, end time.Time) DateRange {
	r, err := NewDateRange(start, end)
	if err != nil {
		panic(err)
	}
	return r
}

// IsOpenEnded reports whether the range has no end date.
func (r DateRange) IsOpenEnded() bool { return r.End.IsZero() }

// Contains reports whether date falls inside the range, inclusive.
func (r DateRange) Contains(date time.Time) bool {
	date = Date(date)
	if date.Before(r.Start) {
		return false
	}
	return r.End.IsZero() || !date.After(r.End)
}

// Intersect returns the overlap of two ranges. Shared boundary dates overlap.
func (r DateRange) Intersect(other DateRange) (DateRange, bool) {
	start := MaxDate(r.Start, other.Start)
	end := MinDate(r.End, other.End)
	if start.IsZero() {
		return DateRange{}, false
	}
	if !end.IsZero() && end.Before(start) {
		return DateRange{}, false
	}
	return DateRange{Start: start, End: end}, true
}

// Overlaps reports whether the two ranges share at least one date.
func (r DateRange) Overlaps(other DateRange) bool {
	_, ok := r.Intersect(other)
	return ok
}

// Days returns the inclusive number of days, or 0 for an open-ended range.
func (r DateRange) Days() int {
	if r.End.IsZero() {
		return 0
	}
	return daysBetween(r.Start, r.End) + 1
}

// Equal compares two ranges by calendar date.
func (r DateRange) Equal(other DateRange) bool {
	return r.Start.Equal(other.Start) && r.End.Equal(other.End)
}

// String renders the range for logs.
func (r DateRange) String() string {
	end := FormatDate(r.End)
	if end == "" {
		end = "open"
	}
	return FormatDate(r.Start) + ".." + end
}

func daysBetween(from, to time.Time) int {
	return int(Date(to).Sub(Date(from)).Hours() / 24)
}

func addDays(t time.Time, days int) time.Time {
	return Date(t).AddDate(0, 0, days)
}
