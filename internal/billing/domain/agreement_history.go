package billing

import (
	"sort"
	"time"
)

// AgreementPeriod is a sub-period of a charge period with the agreements in effect.
type AgreementPeriod struct {
	DateRange  DateRange
	Agreements []Agreement
}

// HasTwoPartTariff reports whether a section 127 agreement applies.
func (p AgreementPeriod) HasTwoPartTariff() bool {
	return HasAgreement(p.Agreements, AgreementCodeTwoPartTariff)
}

type timelinePiece struct {
	rng       DateRange
	agreement Agreement
}

// AgreementHistory splits base into ascending disjoint sub-periods that cover it
// exactly, each tagged with the billing agreements in effect. Agreements that do
// not affect billing are ignored.
func AgreementHistory(base DateRange, agreements []LicenceAgreement) []AgreementPeriod {
	groups := make(map[AgreementCategory][]LicenceAgreement)
	for _, la := range agreements {
		category := la.Agreement.Category()
		if category == AgreementCategoryNone {
			continue
		}
		groups[category] = append(groups[category], la)
	}

	periods := []AgreementPeriod{{DateRange: base}}
	for _, category := range billingCategories {
		records, ok := groups[category]
		if !ok {
			continue
		}
		timeline := mergeTimeline(records)
		next := make([]AgreementPeriod, 0, len(periods))
		for _, period := range periods {
			next = append(next, splitPeriod(period, timeline)...)
		}
		periods = next
	}
	return periods
}

// mergeTimeline flattens possibly overlapping records into ordered,
// non-overlapping pieces. On any day the record with the latest start wins;
// equal starts fall back to input order, later record winning.
func mergeTimeline(records []LicenceAgreement) []timelinePiece {
	bounds := make([]time.Time, 0, len(records)*2)
	openEnded := false
	for _, r := range records {
		bounds = append(bounds, r.DateRange.Start)
		if r.DateRange.IsOpenEnded() {
			openEnded = true
		} else {
			bounds = append(bounds, addDays(r.DateRange.End, 1))
		}
	}
	bounds = uniqueSortedDates(bounds)

	var pieces []timelinePiece
	for i, start := range bounds {
		var end time.Time
		if i+1 < len(bounds) {
			end = addDays(bounds[i+1], -1)
		} else if !openEnded {
			break
		}
		winner := -1
		for idx, r := range records {
			if !r.DateRange.Contains(start) {
				continue
			}
			if winner == -1 || !r.DateRange.Start.Before(records[winner].DateRange.Start) {
				winner = idx
			}
		}
		if winner == -1 {
			continue
		}
		piece := timelinePiece{rng: DateRange{Start: start, End: end}, agreement: records[winner].Agreement}
		if n := len(pieces); n > 0 {
			last := &pieces[n-1]
			if !last.rng.End.IsZero() && addDays(last.rng.End, 1).Equal(start) && last.agreement.Equal(piece.agreement) {
				last.rng.End = end
				continue
			}
		}
		pieces = append(pieces, piece)
	}
	return pieces
}

// splitPeriod cuts period at every timeline boundary falling inside it and tags
// the pieces covered by the timeline.
func splitPeriod(period AgreementPeriod, timeline []timelinePiece) []AgreementPeriod {
	cuts := []time.Time{period.DateRange.Start}
	for _, piece := range timeline {
		for _, cut := range []time.Time{piece.rng.Start, nextDay(piece.rng.End)} {
			if cut.IsZero() || !cut.After(period.DateRange.Start) {
				continue
			}
			if !period.DateRange.End.IsZero() && cut.After(period.DateRange.End) {
				continue
			}
			cuts = append(cuts, cut)
		}
	}
	cuts = uniqueSortedDates(cuts)

	result := make([]AgreementPeriod, 0, len(cuts))
	for i, start := range cuts {
		end := period.DateRange.End
		if i+1 < len(cuts) {
			end = addDays(cuts[i+1], -1)
		}
		agreements := append([]Agreement(nil), period.Agreements...)
		for _, piece := range timeline {
			if piece.rng.Contains(start) {
				agreements = append(agreements, piece.agreement)
				break
			}
		}
		result = append(result, AgreementPeriod{
			DateRange:  DateRange{Start: start, End: end},
			Agreements: agreements,
		})
	}
	return result
}

func nextDay(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return addDays(t, 1)
}

func uniqueSortedDates(dates []time.Time) []time.Time {
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	out := dates[:0]
	for i, d := range dates {
		if i > 0 && d.Equal(out[len(out)-1]) {
			continue
		}
		out = append(out, d)
	}
	return out
}
