package billing

import "github.com/shopspring/decimal"

var cubicMetresPerMegalitre = decimal.NewFromInt(1000)

const quantityPlaces = 6

// StandardReturnsMatcher allocates completed return lines to charge elements
// in element order, capped at each element's authorised quantity. Quantity
// that cannot be allocated is reported as over abstraction on the last
// element that matched it.
type StandardReturnsMatcher struct{}

// Match implements ReturnsMatcher.
func (StandardReturnsMatcher) Match(elements []MatchingElement, returns []Return) MatchResult {
	var live []Return
	for _, r := range returns {
		if r.Status != ReturnStatusVoid {
			live = append(live, r)
		}
	}
	if status, failed := overallReturnsStatus(live); failed {
		return MatchResult{Error: statusPtr(status)}
	}

	allocated := make([]decimal.Decimal, len(elements))
	excess := make([]decimal.Decimal, len(elements))
	for _, r := range live {
		for _, line := range r.Lines {
			allocateLine(elements, r, line, allocated, excess)
		}
	}

	results := make([]ElementResult, len(elements))
	for i, e := range elements {
		results[i] = ElementResult{
			ChargeElementID:      e.ChargeElementID,
			ActualReturnQuantity: allocated[i].Add(excess[i]).Round(quantityPlaces),
		}
		if excess[i].IsPositive() {
			results[i].Error = statusPtr(ErrorOverAbstraction)
		}
	}
	return MatchResult{Elements: results}
}

func overallReturnsStatus(returns []Return) (TwoPartTariffStatus, bool) {
	if len(returns) == 0 {
		return ErrorNoReturnsForMatching, true
	}
	due := 0
	for _, r := range returns {
		if r.Status == ReturnStatusDue {
			due++
		}
	}
	if due == len(returns) {
		return ErrorNoReturnsSubmitted, true
	}
	for _, r := range returns {
		if r.IsUnderQuery {
			return ErrorUnderQuery, true
		}
	}
	for _, r := range returns {
		if r.Status == ReturnStatusReceived {
			return ErrorReceived, true
		}
	}
	if due > 0 {
		return ErrorSomeReturnsDue, true
	}
	for _, r := range returns {
		if r.Status == ReturnStatusCompleted && len(r.Lines) == 0 {
			return ErrorReturnLinesMissing, true
		}
	}
	return 0, false
}

func allocateLine(elements []MatchingElement, r Return, line ReturnLine, allocated, excess []decimal.Decimal) {
	lineDays := line.DateRange.Days()
	if lineDays == 0 || !line.Quantity.IsPositive() {
		return
	}
	remaining := line.Quantity.Div(cubicMetresPerMegalitre)
	perDay := remaining.Div(decimal.NewFromInt(int64(lineDays)))
	pending := decimal.Zero
	last := -1
	for i, e := range elements {
		if !r.MatchesPurpose(e.PurposeCode) {
			continue
		}
		overlap, ok := line.DateRange.Intersect(e.ChargePeriod)
		if !ok {
			continue
		}
		days := e.AbstractionPeriod.BillableDays(overlap)
		if days == 0 {
			continue
		}
		share := decimal.Min(perDay.Mul(decimal.NewFromInt(int64(days))), remaining)
		remaining = remaining.Sub(share)
		available := share.Add(pending)
		capacity := e.AuthorisedAnnualQuantity.Sub(allocated[i])
		if capacity.IsNegative() {
			capacity = decimal.Zero
		}
		take := decimal.Min(available, capacity)
		allocated[i] = allocated[i].Add(take)
		pending = available.Sub(take)
		last = i
	}
	if last >= 0 && pending.IsPositive() {
		excess[last] = excess[last].Add(pending)
	}
}
