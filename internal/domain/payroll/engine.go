package payroll

import "fmt"

// ComputePaycheck turns one pay period's inputs into a reconciled paycheck
// and its audit record. It is a pure function of in and opts: equal inputs
// with the same ComputedAt produce identical output.
//
// The stages run in a fixed order: earnings, bonus overtime premium, tip
// credit make-up, deductions, tax bases, taxes, garnishments, year-to-date.
func ComputePaycheck(in PaycheckInput, opts Options) (PaycheckComputation, error) {
	opts = opts.withDefaults()
	if err := in.Validate(); err != nil {
		return PaycheckComputation{}, err
	}

	var tr tracer
	year, err := resolveYtdYear(in, opts.StrictYtdYear, &tr)
	if err != nil {
		return PaycheckComputation{}, err
	}

	earned := computeEarnings(in, opts)
	earnings := earned.lines
	if premium := AdditionalOvertimePremiumForBonus(in, earnings); premium > 0 {
		earnings = append(earnings, bonusPremiumLine(in, premium))
	}
	earnings = ApplyTipCreditMakeup(in, earnings)

	if p := earned.proration; p != nil {
		tr.add(ProrationApplied{
			Strategy:         p.Strategy,
			ExplicitOverride: p.ExplicitOverride,
			Fraction:         p.Fraction.String(),
			FullCents:        p.FullCents,
			AppliedCents:     p.AppliedCents,
		})
	}

	deds := computeDeductions(in, earnings, opts.DeductionConfig)
	basis := ComputeBases(BasisContext{
		Earnings:          earnings,
		PreTaxDeductions:  deds.preTax,
		PostTaxDeductions: deds.postTax,
		PlansByCode:       deds.plansByCode,
		Ytd:               in.PriorYtd,
	})
	for _, s := range basisSteps(basis) {
		tr.add(s)
	}

	taxes := computeTaxes(in, basis.Bases, *opts.FicaThresholds)
	tr.steps = append(tr.steps, taxes.steps...)

	gross := sumEarnings(earnings, isCash)
	preTax := sumDeductions(deds.preTax)
	employeeTaxes := sumTaxes(taxes.employee)

	garn := computeGarnishments(in, gross, preTax, employeeTaxes, deds.plansByCode, opts.SupportCap)

	tr.note("pre_tax_deductions_cents=%d", preTax)
	tr.note("garnishment_deductions_cents=%d", sumGarnishments(garn.lines))
	tr.note("post_tax_deductions_cents=%d", sumDeductions(deds.postTax))
	tr.steps = append(tr.steps, deds.steps...)
	tr.steps = append(tr.steps, garn.steps...)

	deductions := make([]DeductionLine, 0, len(deds.preTax)+len(deds.postTax))
	deductions = append(deductions, deds.preTax...)
	deductions = append(deductions, deds.postTax...)

	contributions := make([]EmployerContributionLine, 0, len(deds.employer)+len(opts.EmployerContributions))
	contributions = append(contributions, deds.employer...)
	contributions = append(contributions, opts.EmployerContributions...)

	result := PaycheckResult{
		PaycheckID:            in.PaycheckID,
		PayRunID:              in.PayRunID,
		EmployerID:            in.EmployerID,
		EmployeeID:            in.EmployeeID,
		Period:                in.Period,
		Gross:                 gross,
		Earnings:              earnings,
		Deductions:            deductions,
		EmployeeTaxes:         nonNilTaxes(taxes.employee),
		EmployerTaxes:         nonNilTaxes(taxes.employer),
		Garnishments:          nonNilGarnishments(garn.lines),
		EmployerContributions: contributions,
		Proration:             earned.proration,
	}
	result.Net = gross - employeeTaxes - sumDeductions(deductions) - sumGarnishments(garn.lines)
	result.YtdAfter = UpdateYtd(in.PriorYtd, year, YtdDelta{
		Earnings:              earnings,
		EmployeeTaxes:         result.EmployeeTaxes,
		EmployerTaxes:         result.EmployerTaxes,
		Deductions:            deductions,
		Garnishments:          result.Garnishments,
		EmployerContributions: contributions,
		Bases:                 basis.Bases,
	})
	if opts.TraceLevel == TraceDebug {
		result.Trace = CalculationTrace{Steps: tr.steps}
	}

	hash, err := HashInput(in)
	if err != nil {
		return PaycheckComputation{}, err
	}
	return PaycheckComputation{
		Paycheck: result,
		Audit:    buildAudit(in, result, basis.Bases, opts.ComputedAt, hash),
	}, nil
}

// resolveYtdYear returns the year the resulting snapshot belongs to. A prior
// snapshot from another year is an error only in strict mode.
func resolveYtdYear(in PaycheckInput, strict bool, tr *tracer) (int, error) {
	checkYear := in.Period.CheckDate.Year()
	prior := in.PriorYtd.Year
	if prior == 0 {
		return checkYear, nil
	}
	if prior != checkYear {
		if strict {
			return 0, &YtdYearMismatchError{PriorYear: prior, CheckYear: checkYear}
		}
		tr.note("ytd_year_mismatch prior=%d checkYear=%d", prior, checkYear)
	}
	return prior, nil
}

// Validate checks the identifiers and dates every computation needs.
func (in PaycheckInput) Validate() error {
	switch {
	case in.PaycheckID == "":
		return fmt.Errorf("%w: paycheck id is required", ErrInvalidInput)
	case in.EmployerID == "":
		return fmt.Errorf("%w: employer id is required", ErrInvalidInput)
	case in.EmployeeID == "":
		return fmt.Errorf("%w: employee id is required", ErrInvalidInput)
	case in.Period.CheckDate.IsZero():
		return fmt.Errorf("%w: check date is required", ErrInvalidInput)
	case in.Period.EndDate.Before(in.Period.StartDate):
		return fmt.Errorf("%w: period ends before it starts", ErrInvalidInput)
	case in.Employee.Compensation == nil && in.TimeSlice.IncludesBaseEarnings():
		return fmt.Errorf("%w: compensation is required", ErrInvalidInput)
	}
	return nil
}

func nonNilTaxes(l []TaxLine) []TaxLine {
	if l == nil {
		return []TaxLine{}
	}
	return l
}

func nonNilGarnishments(l []GarnishmentLine) []GarnishmentLine {
	if l == nil {
		return []GarnishmentLine{}
	}
	return l
}

// NetIdentityHolds reports whether net equals gross less employee taxes,
// deductions and garnishments.
func NetIdentityHolds(r PaycheckResult) bool {
	want := r.Gross - r.TotalEmployeeTaxes() - r.TotalDeductions() - r.TotalGarnishments()
	return want == r.Net
}
