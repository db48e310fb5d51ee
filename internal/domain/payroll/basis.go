package payroll

import "payengine/internal/domain/money"

type BasisContext struct {
	Earnings          []EarningLine
	PreTaxDeductions  []DeductionLine
	PostTaxDeductions []DeductionLine
	PlansByCode       map[DeductionCode]DeductionPlan
	Ytd               YtdSnapshot
}

type BasisComputation struct {
	Bases      map[TaxBasis]money.Money
	Components map[TaxBasis]map[string]money.Money
}

// pretaxFallbackEffects apply to a pre-tax line whose plan is unknown.
var pretaxFallbackEffects = []DeductionEffect{
	EffectReducesFederalTaxable,
	EffectReducesSocialSecurity,
	EffectReducesMedicare,
}

// ComputeBases derives the named tax bases. Gross counts every earning,
// imputed income included; the other wage bases start from Gross and are
// reduced by deductions carrying the matching effect. Nothing is floored.
func ComputeBases(ctx BasisContext) BasisComputation {
	gross := sumEarnings(ctx.Earnings, nil)
	supplemental := sumEarnings(ctx.Earnings, isSupplemental)
	holiday := sumEarnings(ctx.Earnings, func(l EarningLine) bool { return l.Category == CategoryHoliday })
	imputed := sumEarnings(ctx.Earnings, func(l EarningLine) bool { return l.Category == CategoryImputed })

	effectsFor := func(l DeductionLine, preTax bool) []DeductionEffect {
		plan, ok := ctx.PlansByCode[l.Code]
		switch {
		case ok:
			return plan.Effects()
		case preTax:
			return pretaxFallbackEffects
		default:
			return nil
		}
	}
	reduction := func(e DeductionEffect) money.Money {
		var total money.Money
		for _, l := range ctx.PreTaxDeductions {
			if hasEffect(effectsFor(l, true), e) {
				total += l.Amount
			}
		}
		for _, l := range ctx.PostTaxDeductions {
			if hasEffect(effectsFor(l, false), e) {
				total += l.Amount
			}
		}
		return total
	}

	fed := reduction(EffectReducesFederalTaxable)
	state := reduction(EffectReducesStateTaxable)
	ss := reduction(EffectReducesSocialSecurity)
	medicare := reduction(EffectReducesMedicare)

	bases := map[TaxBasis]money.Money{
		BasisGross:               gross,
		BasisFederalTaxable:      gross - fed,
		BasisStateTaxable:        gross - state,
		BasisSocialSecurityWages: gross - ss,
		BasisMedicareWages:       gross - medicare,
		BasisSupplementalWages:   supplemental,
		BasisFutaWages:           gross,
	}

	grossParts := map[string]money.Money{"gross": gross}
	putNonZero(grossParts, "supplemental", supplemental)
	putNonZero(grossParts, "holiday", holiday)
	putNonZero(grossParts, "imputed", imputed)

	reduced := func(label string, amount money.Money) map[string]money.Money {
		m := map[string]money.Money{"gross": gross}
		putNonZero(m, label, amount)
		return m
	}

	return BasisComputation{
		Bases: bases,
		Components: map[TaxBasis]map[string]money.Money{
			BasisGross:               grossParts,
			BasisFederalTaxable:      reduced("lessFederalTaxableDeductions", fed),
			BasisStateTaxable:        reduced("lessStateTaxableDeductions", state),
			BasisSocialSecurityWages: reduced("lessSocialSecurityDeductions", ss),
			BasisMedicareWages:       reduced("lessMedicareDeductions", medicare),
			BasisSupplementalWages:   {"supplemental": supplemental},
			BasisFutaWages:           {"gross": gross},
		},
	}
}

func putNonZero(m map[string]money.Money, k string, v money.Money) {
	if v != 0 {
		m[k] = v
	}
}

func basisSteps(c BasisComputation) []TraceStep {
	steps := make([]TraceStep, 0, len(AllBases))
	for _, b := range AllBases {
		steps = append(steps, BasisComputed{Basis: b, Components: c.Components[b], Result: c.Bases[b]})
	}
	return steps
}
