package payroll

import (
	"time"

	"payengine/internal/domain/money"
)

// Negate returns r with every amount sign-flipped. Rates are kept; the trace
// and YTD snapshot are dropped.
func Negate(r PaycheckResult) PaycheckResult {
	out := r
	out.Gross = -r.Gross
	out.Net = -r.Net
	out.Trace = CalculationTrace{}
	out.YtdAfter = YtdSnapshot{}

	out.Earnings = make([]EarningLine, len(r.Earnings))
	for i, e := range r.Earnings {
		e.Units = e.Units.Neg()
		e.Amount = -e.Amount
		out.Earnings[i] = e
	}
	out.Deductions = make([]DeductionLine, len(r.Deductions))
	for i, d := range r.Deductions {
		d.Amount = -d.Amount
		out.Deductions[i] = d
	}
	out.EmployeeTaxes = negateTaxes(r.EmployeeTaxes)
	out.EmployerTaxes = negateTaxes(r.EmployerTaxes)
	out.Garnishments = make([]GarnishmentLine, len(r.Garnishments))
	for i, g := range r.Garnishments {
		g.Amount = -g.Amount
		g.AppliedToArrears = -g.AppliedToArrears
		g.AppliedToCurrent = -g.AppliedToCurrent
		out.Garnishments[i] = g
	}
	out.EmployerContributions = make([]EmployerContributionLine, len(r.EmployerContributions))
	for i, c := range r.EmployerContributions {
		c.Amount = -c.Amount
		out.EmployerContributions[i] = c
	}
	if r.Proration != nil {
		p := *r.Proration
		p.FullCents, p.AppliedCents = -p.FullCents, -p.AppliedCents
		out.Proration = &p
	}
	return out
}

func negateTaxes(lines []TaxLine) []TaxLine {
	out := make([]TaxLine, len(lines))
	for i, t := range lines {
		t.Basis = -t.Basis
		t.Amount = -t.Amount
		out[i] = t
	}
	return out
}

// Void builds the reversal of an issued paycheck. current is the employee's
// snapshot as it stands now; the reversal's YtdAfter is current with the
// original paycheck taken back out.
func Void(orig PaycheckComputation, reversalID PaycheckID, current YtdSnapshot, at time.Time) PaycheckComputation {
	rev := Negate(orig.Paycheck)
	rev.PaycheckID = reversalID
	rev.YtdAfter = SubtractYtd(current, orig.Paycheck, orig.Audit.BasisTotals)

	bases := make(map[TaxBasis]money.Money, len(orig.Audit.BasisTotals))
	for k, v := range orig.Audit.BasisTotals {
		bases[k] = -v
	}
	audit := orig.Audit
	audit.ComputedAt = at
	audit.PaycheckID = reversalID
	audit.BasisTotals = bases
	audit.Gross = -audit.Gross
	audit.TotalEmployeeTaxes = -audit.TotalEmployeeTaxes
	audit.TotalEmployerTaxes = -audit.TotalEmployerTaxes
	audit.TotalPreTaxDeductions = -audit.TotalPreTaxDeductions
	audit.TotalPostTaxDeductions = -audit.TotalPostTaxDeductions
	audit.TotalGarnishments = -audit.TotalGarnishments
	audit.TotalEmployerContributions = -audit.TotalEmployerContributions
	audit.Net = -audit.Net
	return PaycheckComputation{Paycheck: rev, Audit: audit}
}
