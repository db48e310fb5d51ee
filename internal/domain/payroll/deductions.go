package payroll

import (
	"sort"

	"payengine/internal/domain/money"
)

var kindRank = map[DeductionKind]int{
	KindPretaxRetirement: 0,
	KindHSA:              1,
	KindFSA:              2,
	KindRothRetirement:   3,
	KindPosttaxVoluntary: 4,
	KindOtherPosttax:     5,
	KindGarnishment:      6,
}

// SortPlans orders plans by kind (pre-tax first) then id. It returns a copy.
func SortPlans(plans []DeductionPlan) []DeductionPlan {
	out := make([]DeductionPlan, len(plans))
	copy(out, plans)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rankOf(out[i].Kind), rankOf(out[j].Kind)
		if ri != rj {
			return ri < rj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func rankOf(k DeductionKind) int {
	if r, ok := kindRank[k]; ok {
		return r
	}
	return len(kindRank)
}

type deductionsResult struct {
	preTax      []DeductionLine
	postTax     []DeductionLine
	employer    []EmployerContributionLine
	plansByCode map[DeductionCode]DeductionPlan
	steps       []TraceStep
}

// capResult is the outcome of applying annual and per-period limits.
type capResult struct {
	amount   money.Money
	cappedAt *money.Money
}

func applyAnnualAndPeriodCaps(raw money.Money, ytd money.Money, annual, perPeriod *money.Money) capResult {
	res := capResult{amount: raw}
	if annual != nil {
		remaining := *annual - ytd
		if remaining <= 0 {
			return capResult{amount: 0, cappedAt: annual}
		}
		if res.amount > remaining {
			res = capResult{amount: remaining, cappedAt: annual}
		}
	}
	if perPeriod != nil && res.amount > *perPeriod {
		res = capResult{amount: *perPeriod, cappedAt: perPeriod}
	}
	return res
}

func computeDeductions(in PaycheckInput, earnings []EarningLine, repo DeductionConfigRepository) deductionsResult {
	res := deductionsResult{plansByCode: map[DeductionCode]DeductionPlan{}}
	plans := SortPlans(repo.FindPlansForEmployer(in.EmployerID))
	if len(plans) == 0 {
		return res
	}

	gross := sumEarnings(earnings, nil)
	supplemental := sumEarnings(earnings, isSupplemental)

	for _, plan := range plans {
		code := DeductionCode(plan.ID)
		res.plansByCode[code] = plan
		if plan.Kind == KindGarnishment {
			continue
		}

		basis := gross
		if plan.RateBasis == RateBasisSupplemental {
			basis = supplemental
		}

		var raw money.Money
		if plan.EmployeeRate != nil {
			raw += basis.MulPercentFloor(*plan.EmployeeRate)
		}
		if plan.EmployeeFlat != nil {
			raw += *plan.EmployeeFlat
		}

		if raw != 0 {
			capped := applyAnnualAndPeriodCaps(raw, in.PriorYtd.Deductions(code), plan.AnnualCap, plan.PerPeriodCap)
			if capped.amount != 0 {
				line := DeductionLine{
					Code:        code,
					Description: nonEmpty(plan.Name, plan.ID),
					Amount:      capped.amount,
					PreTax:      plan.IsPreTax(),
				}
				if line.PreTax {
					res.preTax = append(res.preTax, line)
				} else {
					res.postTax = append(res.postTax, line)
				}
				res.steps = append(res.steps, DeductionApplied{
					Code:        code,
					Description: line.Description,
					Basis:       basis,
					Rate:        plan.EmployeeRate,
					Amount:      capped.amount,
					CappedAt:    capped.cappedAt,
					Effects:     plan.Effects(),
				})
			}
		}

		var match money.Money
		if plan.EmployerRate != nil {
			match += basis.MulPercentFloor(*plan.EmployerRate)
		}
		if plan.EmployerFlat != nil {
			match += *plan.EmployerFlat
		}
		if match != 0 {
			res.employer = append(res.employer, EmployerContributionLine{
				Code:        plan.ID,
				Description: nonEmpty(plan.Name, plan.ID) + " (employer)",
				Amount:      match,
			})
		}
	}
	return res
}

func isSupplemental(l EarningLine) bool {
	return l.Category == CategorySupplemental || l.Category == CategoryBonus
}

func sumDeductions(lines []DeductionLine) money.Money {
	var total money.Money
	for _, l := range lines {
		total += l.Amount
	}
	return total
}
