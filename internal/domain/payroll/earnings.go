package payroll

import (
	"github.com/shopspring/decimal"

	"payengine/internal/domain/money"
)

// builtinCategories covers well-known codes when the employer has not
// configured them.
var builtinCategories = map[EarningCode]EarningCategory{
	"BONUS":        CategoryBonus,
	"COMMISSION":   CategorySupplemental,
	"SUPPLEMENTAL": CategorySupplemental,
	"SEVERANCE":    CategorySupplemental,
	"HOLIDAY":      CategoryHoliday,
	"TIPS":         CategoryTips,
	"CASH_TIPS":    CategoryTips,
	"IMPUTED":      CategoryImputed,
	"GTL":          CategoryImputed,
	"OVERTIME":     CategoryOvertime,
}

type earningsResult struct {
	lines     []EarningLine
	proration *ProrationSummary
}

func computeEarnings(in PaycheckInput, opts Options) earningsResult {
	var res earningsResult
	if in.TimeSlice.IncludesBaseEarnings() {
		switch comp := in.Employee.Compensation.(type) {
		case Hourly:
			res.lines = append(res.lines, hourlyLines(in, comp, opts)...)
		case Salaried:
			line, summary := salariedLine(in, comp, opts)
			res.lines = append(res.lines, line)
			res.proration = summary
		}
	}
	for _, e := range in.TimeSlice.OtherEarnings {
		res.lines = append(res.lines, otherEarningLine(in.EmployerID, e, opts.EarningConfig))
	}
	return res
}

func hourlyLines(in PaycheckInput, comp Hourly, opts Options) []EarningLine {
	slice := in.TimeSlice
	def, hasDef := opts.EarningConfig.FindByEmployerAndCode(in.EmployerID, CodeHourly)
	code, category, desc := CodeHourly, CategoryRegular, "Hourly wages"
	if hasDef {
		code, desc = EarningCode(nonEmpty(string(def.Code), string(code))), nonEmpty(def.Name, desc)
		if def.Category != "" {
			category = def.Category
		}
	}
	rate := comp.HourlyRate
	lines := []EarningLine{{
		Code:        code,
		Category:    category,
		Description: desc,
		Units:       slice.RegularHours,
		Rate:        &rate,
		Amount:      mulHours(rate, slice.RegularHours),
	}}

	if !slice.OvertimeHours.IsPositive() {
		return lines
	}

	multiplier := opts.OvertimePolicy.DefaultMultiplier
	if hasDef && def.OvertimeMultiplier != nil {
		multiplier = *def.OvertimeMultiplier
	}
	otCode, otDesc := CodeOvertime, "Overtime"
	if otDef, ok := opts.EarningConfig.FindByEmployerAndCode(in.EmployerID, CodeOvertime); ok {
		otCode, otDesc = EarningCode(nonEmpty(string(otDef.Code), string(otCode))), nonEmpty(otDef.Name, otDesc)
		if otDef.OvertimeMultiplier != nil {
			multiplier = *otDef.OvertimeMultiplier
		}
	}
	otRate := rate.MulDecimal(multiplier)
	lines = append(lines, EarningLine{
		Code:        otCode,
		Category:    CategoryOvertime,
		Description: otDesc,
		Units:       slice.OvertimeHours,
		Rate:        &otRate,
		Amount:      mulHours(rate, multiplier.Mul(slice.OvertimeHours)),
	})
	return lines
}

func salariedLine(in PaycheckInput, comp Salaried, opts Options) (EarningLine, *ProrationSummary) {
	freq := comp.Frequency
	if freq.PeriodsPerYear() == 0 {
		freq = in.Period.Frequency
	}
	alloc := AllocateSalary(comp.AnnualSalary, freq.PeriodsPerYear())
	full := alloc.ForPeriod(in.Period.SequenceInYear)
	applied := full

	var summary *ProrationSummary
	if explicit := in.TimeSlice.Proration; explicit != nil {
		applied = full.MulDecimalFloor(*explicit)
		summary = &ProrationSummary{
			Strategy:         "Explicit",
			ExplicitOverride: true,
			Fraction:         *explicit,
			FullCents:        full,
			AppliedCents:     applied,
		}
	} else if p, ok := opts.ProrationStrategy.Compute(in.Period, in.Employee.HireDate, in.Employee.TerminationDate); ok {
		applied = p.Apply(full)
		summary = &ProrationSummary{
			Strategy:     opts.ProrationStrategy.Name(),
			Fraction:     p.Fraction(),
			FullCents:    full,
			AppliedCents: applied,
		}
	}

	code, category, desc := CodeBase, CategoryRegular, "Base salary"
	if def, ok := opts.EarningConfig.FindByEmployerAndCode(in.EmployerID, CodeBase); ok {
		code, desc = EarningCode(nonEmpty(string(def.Code), string(code))), nonEmpty(def.Name, desc)
		if def.Category != "" {
			category = def.Category
		}
	}
	return EarningLine{
		Code:        code,
		Category:    category,
		Description: desc,
		Units:       decimal.NewFromInt(1),
		Rate:        &full,
		Amount:      applied,
	}, summary
}

func otherEarningLine(employer EmployerID, e EarningInput, repo EarningConfigRepository) EarningLine {
	def, hasDef := repo.FindByEmployerAndCode(employer, e.Code)

	category := CategoryRegular
	if c, ok := builtinCategories[e.Code]; ok {
		category = c
	}
	desc := string(e.Code)
	if hasDef {
		if def.Category != "" {
			category = def.Category
		}
		desc = nonEmpty(def.Name, desc)
	}

	var amount money.Money
	var rate *money.Money
	switch {
	case e.Amount != nil:
		amount = *e.Amount
		if e.Units.IsPositive() {
			r := money.Money(decimal.NewFromInt(int64(amount)).Div(e.Units).Truncate(0).IntPart())
			rate = &r
		}
	case e.Rate != nil:
		amount = mulHours(*e.Rate, e.Units)
		rate = e.Rate
	case hasDef && def.DefaultRate != nil:
		amount = mulHours(*def.DefaultRate, e.Units)
		rate = def.DefaultRate
	}

	return EarningLine{
		Code:        e.Code,
		Category:    category,
		Description: desc,
		Units:       e.Units,
		Rate:        rate,
		Amount:      amount,
	}
}

// mulHours multiplies a per-unit rate by units, dropping fractional cents.
func mulHours(rate money.Money, units decimal.Decimal) money.Money {
	return money.Money(decimal.NewFromInt(int64(rate)).Mul(units).Truncate(0).IntPart())
}

func nonEmpty(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func sumEarnings(lines []EarningLine, include func(EarningLine) bool) money.Money {
	var total money.Money
	for _, l := range lines {
		if include == nil || include(l) {
			total += l.Amount
		}
	}
	return total
}

func isCash(l EarningLine) bool { return l.Category != CategoryImputed }
