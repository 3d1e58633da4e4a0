package billing

import "sort"

// ReconcileSupplementary compares candidate transactions against charges
// already billed in sent batches. Candidates that repeat a billed charge are
// dropped, and billed charges with no identical candidate are reversed with a
// credit.
func ReconcileSupplementary(candidates, historic []*Transaction, newID func() string) []*Transaction {
	billed := netBilled(historic)

	result := make([]*Transaction, 0, len(candidates))
	matched := make(map[string]bool, len(billed))
	for _, c := range candidates {
		if prior, ok := billed[c.ChargeKey()]; ok && !c.IsCredit && prior.SameCharge(c) {
			matched[c.ChargeKey()] = true
			continue
		}
		result = append(result, c)
	}

	for _, key := range sortedKeys(billed) {
		if matched[key] {
			continue
		}
		id := ""
		if newID != nil {
			id = newID()
		}
		result = append(result, billed[key].Credit(id))
	}
	return result
}

// netBilled returns, per charge key, the latest debit not cancelled by a credit.
func netBilled(historic []*Transaction) map[string]*Transaction {
	balance := make(map[string]int)
	latest := make(map[string]*Transaction)
	for _, t := range historic {
		key := t.ChargeKey()
		if t.IsCredit {
			balance[key]--
			continue
		}
		balance[key]++
		latest[key] = t
	}
	billed := make(map[string]*Transaction)
	for key, n := range balance {
		if n > 0 && latest[key] != nil {
			billed[key] = latest[key]
		}
	}
	return billed
}

func sortedKeys(m map[string]*Transaction) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
