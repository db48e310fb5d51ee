package payroll

import (
	"sort"

	"github.com/shopspring/decimal"

	"payengine/internal/domain/money"
)

// localitySplitter divides a basis across the localities worked in a period.
// Splits are computed once per basis and reused by every local rule.
type localitySplitter struct {
	fractions map[string]decimal.Decimal
	keys      []string
	cache     map[TaxBasis]map[string]money.Money
}

// newLocalitySplitter resolves allocation fractions over the distinct
// locality filters of the local rules. Explicit allocations win and only
// positive entries for a locality with a rule count; without them the basis
// is split evenly. A total above one is scaled down to one. A total below one
// leaves the rest unallocated.
func newLocalitySplitter(local []TaxRule, explicit map[string]decimal.Decimal) *localitySplitter {
	seen := map[string]bool{}
	var ruleKeys []string
	for _, r := range local {
		key := normalizeLocality(r.Locality())
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		ruleKeys = append(ruleKeys, key)
	}

	fractions := map[string]decimal.Decimal{}
	var anyExplicit bool
	for k, v := range explicit {
		key := normalizeLocality(k)
		if key == "" || !v.IsPositive() {
			continue
		}
		anyExplicit = true
		if seen[key] {
			fractions[key] = fractions[key].Add(v)
		}
	}
	if !anyExplicit && len(ruleKeys) > 0 {
		even := decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(len(ruleKeys))))
		for _, k := range ruleKeys {
			fractions[k] = even
		}
	}

	total := decimal.Zero
	for _, v := range fractions {
		total = total.Add(v)
	}
	if total.GreaterThan(decimal.NewFromInt(1)) {
		for k, v := range fractions {
			fractions[k] = v.Div(total)
		}
	}

	keys := make([]string, 0, len(fractions))
	for k := range fractions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &localitySplitter{fractions: fractions, keys: keys, cache: map[TaxBasis]map[string]money.Money{}}
}

func (s *localitySplitter) share(basis TaxBasis, amount money.Money, locality string) money.Money {
	split, ok := s.cache[basis]
	if !ok {
		split = s.allocate(amount)
		s.cache[basis] = split
	}
	return split[normalizeLocality(locality)]
}

// allocate hands out whole cents by largest remainder. Ties go to the
// lexically smaller locality. Negative amounts are split by magnitude.
func (s *localitySplitter) allocate(amount money.Money) map[string]money.Money {
	out := make(map[string]money.Money, len(s.keys))
	if amount == 0 || len(s.keys) == 0 {
		return out
	}
	sign := money.Money(1)
	if amount < 0 {
		sign, amount = -1, -amount
	}

	type part struct {
		key       string
		remainder decimal.Decimal
	}
	total := decimal.NewFromInt(int64(amount))
	parts := make([]part, 0, len(s.keys))
	fracSum := decimal.Zero
	var assigned money.Money
	for _, k := range s.keys {
		f := s.fractions[k]
		fracSum = fracSum.Add(f)
		exact := total.Mul(f)
		whole := exact.Floor()
		out[k] = money.Money(whole.IntPart())
		assigned += out[k]
		parts = append(parts, part{key: k, remainder: exact.Sub(whole)})
	}

	target := money.Money(total.Mul(fracSum).Round(0).IntPart())
	sort.SliceStable(parts, func(i, j int) bool {
		if c := parts[i].remainder.Cmp(parts[j].remainder); c != 0 {
			return c > 0
		}
		return parts[i].key < parts[j].key
	})
	for i := 0; assigned < target && i < len(parts); i++ {
		out[parts[i].key]++
		assigned++
	}
	if sign < 0 {
		for k, v := range out {
			out[k] = -v
		}
	}
	return out
}
