package payroll

import "payengine/internal/domain/money"

// YtdSnapshot is the year-to-date state threaded between computations. The
// engine never mutates a snapshot; Update returns a fresh one.
type YtdSnapshot struct {
	Year                        int                           `json:"year"`
	EarningsByCode              map[EarningCode]money.Money   `json:"earningsByCode,omitempty"`
	EmployeeTaxesByRule         map[string]money.Money        `json:"employeeTaxesByRule,omitempty"`
	EmployerTaxesByRule         map[string]money.Money        `json:"employerTaxesByRule,omitempty"`
	DeductionsByCode            map[DeductionCode]money.Money `json:"deductionsByCode,omitempty"`
	EmployerContributionsByCode map[string]money.Money        `json:"employerContributionsByCode,omitempty"`
	WagesByBasis                map[TaxBasis]money.Money      `json:"wagesByBasis,omitempty"`
}

// NewYtdSnapshot returns an empty snapshot with writable maps.
func NewYtdSnapshot(year int) YtdSnapshot {
	return YtdSnapshot{Year: year}.Clone()
}

func (y YtdSnapshot) Wages(b TaxBasis) money.Money { return y.WagesByBasis[b] }

func (y YtdSnapshot) Deductions(code DeductionCode) money.Money { return y.DeductionsByCode[code] }

func (y YtdSnapshot) Clone() YtdSnapshot {
	return YtdSnapshot{
		Year:                        y.Year,
		EarningsByCode:              cloneMap(y.EarningsByCode),
		EmployeeTaxesByRule:         cloneMap(y.EmployeeTaxesByRule),
		EmployerTaxesByRule:         cloneMap(y.EmployerTaxesByRule),
		DeductionsByCode:            cloneMap(y.DeductionsByCode),
		EmployerContributionsByCode: cloneMap(y.EmployerContributionsByCode),
		WagesByBasis:                cloneMap(y.WagesByBasis),
	}
}

func cloneMap[K comparable](m map[K]money.Money) map[K]money.Money {
	out := make(map[K]money.Money, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func addTo[K comparable](m map[K]money.Money, k K, v money.Money) {
	if v == 0 {
		if _, ok := m[k]; !ok {
			return
		}
	}
	m[k] += v
}

// YtdDelta is the per-paycheck contribution to a snapshot.
type YtdDelta struct {
	Earnings              []EarningLine
	EmployeeTaxes         []TaxLine
	EmployerTaxes         []TaxLine
	Deductions            []DeductionLine
	Garnishments          []GarnishmentLine
	EmployerContributions []EmployerContributionLine
	Bases                 map[TaxBasis]money.Money
}

// UpdateYtd folds a paycheck's lines into prior and returns the new snapshot.
func UpdateYtd(prior YtdSnapshot, year int, d YtdDelta) YtdSnapshot {
	next := prior.Clone()
	next.Year = year
	for _, e := range d.Earnings {
		addTo(next.EarningsByCode, e.Code, e.Amount)
	}
	for _, t := range d.EmployeeTaxes {
		addTo(next.EmployeeTaxesByRule, t.RuleID, t.Amount)
	}
	for _, t := range d.EmployerTaxes {
		addTo(next.EmployerTaxesByRule, t.RuleID, t.Amount)
	}
	for _, l := range d.Deductions {
		addTo(next.DeductionsByCode, l.Code, l.Amount)
	}
	for _, g := range d.Garnishments {
		addTo(next.DeductionsByCode, g.Code(), g.Amount)
	}
	for _, c := range d.EmployerContributions {
		addTo(next.EmployerContributionsByCode, c.Code, c.Amount)
	}
	for _, b := range AllBases {
		if v, ok := d.Bases[b]; ok {
			addTo(next.WagesByBasis, b, v)
		}
	}
	return next
}

// SubtractYtd removes a previously accumulated paycheck from a snapshot.
func SubtractYtd(current YtdSnapshot, r PaycheckResult, bases map[TaxBasis]money.Money) YtdSnapshot {
	neg := Negate(r)
	negBases := make(map[TaxBasis]money.Money, len(bases))
	for k, v := range bases {
		negBases[k] = -v
	}
	return UpdateYtd(current, current.Year, YtdDelta{
		Earnings:              neg.Earnings,
		EmployeeTaxes:         neg.EmployeeTaxes,
		EmployerTaxes:         neg.EmployerTaxes,
		Deductions:            neg.Deductions,
		Garnishments:          neg.Garnishments,
		EmployerContributions: neg.EmployerContributions,
		Bases:                 negBases,
	})
}
