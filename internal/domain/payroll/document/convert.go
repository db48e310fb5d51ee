package document

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"payengine/internal/domain/money"
	"payengine/internal/domain/payroll"
)

const dateLayout = "2006-01-02"

// Request converts the scenario into an engine request. Every field error
// is reported, each prefixed with its path in the document.
func (s Scenario) Request() (payroll.Request, error) {
	c := &converter{}
	req := payroll.Request{
		Input:      c.paycheck(s.Paycheck),
		TraceLevel: c.traceLevel(s.TraceLevel),
	}
	if s.EarningDefinitions != nil {
		req.EarningDefinitions = make([]payroll.EarningDefinition, 0, len(s.EarningDefinitions))
		for i, d := range s.EarningDefinitions {
			req.EarningDefinitions = append(req.EarningDefinitions, c.earningDefinition(fmt.Sprintf("earningDefinitions[%d]", i), d))
		}
	}
	if s.DeductionPlans != nil {
		req.DeductionPlans = make([]payroll.DeductionPlan, 0, len(s.DeductionPlans))
		for i, p := range s.DeductionPlans {
			req.DeductionPlans = append(req.DeductionPlans, c.deductionPlan(fmt.Sprintf("deductionPlans[%d]", i), p))
		}
	}
	if s.SupportCap != nil {
		sc := c.supportCap(*s.SupportCap)
		req.SupportCap = &sc
	}
	for i, e := range s.EmployerContributions {
		path := fmt.Sprintf("employerContributions[%d]", i)
		req.EmployerContributions = append(req.EmployerContributions, payroll.EmployerContributionLine{
			Code:        c.required(path+".code", e.Code),
			Description: e.Description,
			Amount:      c.money(path+".amount", e.Amount),
		})
	}
	if err := c.err(); err != nil {
		return payroll.Request{}, err
	}
	return req, nil
}

// Input converts only the paycheck, ignoring scenario configuration.
func (p Paycheck) Input() (payroll.PaycheckInput, error) {
	c := &converter{}
	in := c.paycheck(p)
	if err := c.err(); err != nil {
		return payroll.PaycheckInput{}, err
	}
	return in, nil
}

type converter struct {
	errs []error
}

func (c *converter) fail(path, format string, args ...any) {
	c.errs = append(c.errs, fmt.Errorf("%s: "+format, append([]any{path}, args...)...))
}

func (c *converter) err() error {
	if len(c.errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidDocument, errors.Join(c.errs...))
}

func (c *converter) required(path, v string) string {
	if strings.TrimSpace(v) == "" {
		c.fail(path, "is required")
	}
	return v
}

func (c *converter) money(path, v string) money.Money {
	if v == "" {
		return 0
	}
	m, err := money.Parse(v)
	if err != nil {
		c.fail(path, "%v", err)
	}
	return m
}

func (c *converter) moneyPtr(path string, v *string) *money.Money {
	if v == nil {
		return nil
	}
	m := c.money(path, *v)
	return &m
}

func (c *converter) percent(path, v string) money.Percent {
	p, err := money.NewPercent(v)
	if err != nil {
		c.fail(path, "%v", err)
	}
	return p
}

func (c *converter) percentPtr(path string, v *string) *money.Percent {
	if v == nil {
		return nil
	}
	p := c.percent(path, *v)
	return &p
}

func (c *converter) decimal(path, v string) decimal.Decimal {
	if v == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		c.fail(path, "must be a decimal number")
	}
	return d
}

func (c *converter) date(path, v string) time.Time {
	t, err := time.Parse(dateLayout, strings.TrimSpace(v))
	if err != nil {
		c.fail(path, "must be a date in YYYY-MM-DD format")
	}
	return t
}

func (c *converter) datePtr(path, v string) *time.Time {
	if v == "" {
		return nil
	}
	t := c.date(path, v)
	return &t
}

func (c *converter) oneOf(path, v string, allowed ...string) string {
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	c.fail(path, "must be one of %s", strings.Join(allowed, ", "))
	return v
}

func (c *converter) traceLevel(v string) payroll.TraceLevel {
	if v == "" {
		return ""
	}
	v = strings.ToUpper(v)
	return payroll.TraceLevel(c.oneOf("traceLevel", v,
		string(payroll.TraceNone), string(payroll.TraceAudit), string(payroll.TraceDebug)))
}

func (c *converter) frequency(path, v string) payroll.PayFrequency {
	f := payroll.PayFrequency(strings.ToUpper(v))
	if f.PeriodsPerYear() == 0 {
		c.fail(path, "unknown pay frequency %q", v)
	}
	return f
}

func (c *converter) paycheck(p Paycheck) payroll.PaycheckInput {
	in := payroll.PaycheckInput{
		PaycheckID: payroll.PaycheckID(p.PaycheckID),
		PayRunID:   payroll.PayRunID(p.PayRunID),
		EmployerID: payroll.EmployerID(c.required("paycheck.employerId", p.EmployerID)),
		EmployeeID: payroll.EmployeeID(c.required("paycheck.employeeId", p.EmployeeID)),
		Period: payroll.PayPeriod{
			ID:             p.Period.ID,
			StartDate:      c.date("paycheck.period.start", p.Period.Start),
			EndDate:        c.date("paycheck.period.end", p.Period.End),
			CheckDate:      c.date("paycheck.period.check", p.Period.Check),
			Frequency:      c.frequency("paycheck.period.frequency", p.Period.Frequency),
			SequenceInYear: p.Period.SequenceInYear,
		},
		Employee:   c.employee(p),
		TimeSlice:  c.timeSlice(p.Time),
		TaxContext: c.taxContext(p.Taxes),
	}
	if p.PriorYtd != nil {
		in.PriorYtd = c.ytd(*p.PriorYtd)
	}
	if len(p.Garnishments) > 0 {
		orders := make([]payroll.GarnishmentOrder, 0, len(p.Garnishments))
		for i, g := range p.Garnishments {
			orders = append(orders, c.garnishment(fmt.Sprintf("paycheck.garnishments[%d]", i), g))
		}
		in.Garnishments = &payroll.GarnishmentContext{Orders: orders}
	}
	return in
}

func (c *converter) employee(p Paycheck) payroll.EmployeeSnapshot {
	e := p.Employee
	filing := payroll.FilingStatus(strings.ToUpper(e.FilingStatus))
	if filing == "" {
		filing = payroll.FilingSingle
	}
	employment := payroll.EmploymentType(strings.ToUpper(e.EmploymentType))
	if employment == "" {
		employment = payroll.EmploymentRegular
	}
	c.oneOf("paycheck.employee.employmentType", string(employment),
		string(payroll.EmploymentRegular), string(payroll.EmploymentHousehold), string(payroll.EmploymentElectionWorker))

	snap := payroll.EmployeeSnapshot{
		EmployerID:                     payroll.EmployerID(p.EmployerID),
		EmployeeID:                     payroll.EmployeeID(p.EmployeeID),
		HomeState:                      e.HomeState,
		WorkState:                      e.WorkState,
		FilingStatus:                   filing,
		EmploymentType:                 employment,
		HireDate:                       c.datePtr("paycheck.employee.hireDate", e.HireDate),
		TerminationDate:                c.datePtr("paycheck.employee.terminationDate", e.TerminationDate),
		IsTippedEmployee:               e.Tipped,
		FicaExempt:                     e.FicaExempt,
		AdditionalWithholdingPerPeriod: c.money("paycheck.employee.additionalWithholding", e.AdditionalWithholding),
	}
	if e.Compensation != nil {
		snap.Compensation = c.compensation("paycheck.employee.compensation", *e.Compensation)
	}
	if e.LaborStandards != nil {
		snap.LaborStandards = &payroll.LaborStandards{
			MinimumWage:       c.money("paycheck.employee.laborStandards.minimumWage", e.LaborStandards.MinimumWage),
			TippedCashMinimum: c.moneyPtr("paycheck.employee.laborStandards.tippedCashMinimum", e.LaborStandards.TippedCashMinimum),
		}
	}
	return snap
}

func (c *converter) compensation(path string, comp Compensation) payroll.Compensation {
	switch strings.ToUpper(comp.Kind) {
	case payroll.CompensationHourly:
		return payroll.Hourly{HourlyRate: c.money(path+".hourlyRate", c.required(path+".hourlyRate", comp.HourlyRate))}
	case payroll.CompensationSalaried:
		s := payroll.Salaried{AnnualSalary: c.money(path+".annualSalary", c.required(path+".annualSalary", comp.AnnualSalary))}
		if comp.Frequency != "" {
			s.Frequency = c.frequency(path+".frequency", comp.Frequency)
		}
		return s
	default:
		c.fail(path+".kind", "must be HOURLY or SALARIED")
		return nil
	}
}

func (c *converter) timeSlice(t TimeSlice) payroll.TimeSlice {
	out := payroll.TimeSlice{
		RegularHours:        c.decimal("paycheck.time.regularHours", t.RegularHours),
		OvertimeHours:       c.decimal("paycheck.time.overtimeHours", t.OvertimeHours),
		IncludeBaseEarnings: t.IncludeBaseEarnings,
	}
	for i, e := range t.Earnings {
		path := fmt.Sprintf("paycheck.time.earnings[%d]", i)
		out.OtherEarnings = append(out.OtherEarnings, payroll.EarningInput{
			Code:   payroll.EarningCode(c.required(path+".code", e.Code)),
			Units:  c.decimal(path+".units", e.Units),
			Rate:   c.moneyPtr(path+".rate", e.Rate),
			Amount: c.moneyPtr(path+".amount", e.Amount),
		})
	}
	if len(t.LocalityAllocations) > 0 {
		out.LocalityAllocations = make(map[string]decimal.Decimal, len(t.LocalityAllocations))
		for code, share := range t.LocalityAllocations {
			out.LocalityAllocations[code] = c.decimal("paycheck.time.localityAllocations."+code, share)
		}
	}
	if t.Proration != nil {
		f := c.decimal("paycheck.time.proration", *t.Proration)
		if f.IsNegative() || f.GreaterThan(decimal.NewFromInt(1)) {
			c.fail("paycheck.time.proration", "must be between 0 and 1")
		}
		out.Proration = &f
	}
	return out
}

func (c *converter) taxContext(t TaxContext) payroll.TaxContext {
	rules := func(section string, defaultType payroll.JurisdictionType, in []TaxRule) []payroll.TaxRule {
		var out []payroll.TaxRule
		for i, r := range in {
			out = append(out, c.taxRule(fmt.Sprintf("paycheck.taxes.%s[%d]", section, i), defaultType, r))
		}
		return out
	}
	return payroll.TaxContext{
		Federal:          rules("federal", payroll.JurisdictionFederal, t.Federal),
		State:            rules("state", payroll.JurisdictionState, t.State),
		Local:            rules("local", payroll.JurisdictionLocal, t.Local),
		EmployerSpecific: rules("employer", payroll.JurisdictionOther, t.EmployerSpecific),
	}
}

var taxBases = []string{
	string(payroll.BasisGross),
	string(payroll.BasisFederalTaxable),
	string(payroll.BasisStateTaxable),
	string(payroll.BasisSocialSecurityWages),
	string(payroll.BasisMedicareWages),
	string(payroll.BasisSupplementalWages),
	string(payroll.BasisFutaWages),
}

func (c *converter) taxRule(path string, defaultType payroll.JurisdictionType, r TaxRule) payroll.TaxRule {
	jt := defaultType
	if r.Jurisdiction != "" {
		jt = payroll.JurisdictionType(strings.ToUpper(r.Jurisdiction))
	}
	j := payroll.Jurisdiction{Type: jt, Code: r.Code}
	basis := payroll.TaxBasis(c.oneOf(path+".basis", r.Basis, taxBases...))
	id := c.required(path+".id", r.ID)

	switch strings.ToUpper(r.Kind) {
	case payroll.TaxRuleFlat:
		return payroll.FlatRateTax{
			ID:             id,
			Jurisdiction:   j,
			Basis:          basis,
			Rate:           c.percent(path+".rate", r.Rate),
			AnnualWageCap:  c.moneyPtr(path+".annualWageCap", r.AnnualWageCap),
			LocalityFilter: r.Locality,
		}
	case payroll.TaxRuleBracketed:
		brackets := make([]payroll.TaxBracket, 0, len(r.Brackets))
		for i, b := range r.Brackets {
			bp := fmt.Sprintf("%s.brackets[%d]", path, i)
			brackets = append(brackets, payroll.TaxBracket{
				UpTo: c.moneyPtr(bp+".upTo", b.UpTo),
				Rate: c.percent(bp+".rate", b.Rate),
			})
		}
		if len(brackets) == 0 {
			c.fail(path+".brackets", "at least one bracket is required")
		}
		return payroll.BracketedIncomeTax{
			ID:                id,
			Jurisdiction:      j,
			Basis:             basis,
			Brackets:          brackets,
			StandardDeduction: c.moneyPtr(path+".standardDeduction", r.StandardDeduction),
			LocalityFilter:    r.Locality,
			Cumulative:        r.Cumulative,
		}
	case payroll.TaxRuleWageBracket:
		rows := make([]payroll.WageBracketRow, 0, len(r.Brackets))
		for i, b := range r.Brackets {
			bp := fmt.Sprintf("%s.brackets[%d]", path, i)
			rows = append(rows, payroll.WageBracketRow{
				UpTo: c.moneyPtr(bp+".upTo", b.UpTo),
				Tax:  c.money(bp+".tax", b.Tax),
			})
		}
		if len(rows) == 0 {
			c.fail(path+".brackets", "at least one bracket is required")
		}
		return payroll.WageBracketTax{
			ID:             id,
			Jurisdiction:   j,
			Basis:          basis,
			Brackets:       rows,
			LocalityFilter: r.Locality,
		}
	default:
		c.fail(path+".kind", "must be FLAT_RATE, BRACKETED or WAGE_BRACKET")
		return payroll.FlatRateTax{ID: id}
	}
}

func (c *converter) ytd(y Ytd) payroll.YtdSnapshot {
	snap := payroll.NewYtdSnapshot(y.Year)
	for k, v := range y.Earnings {
		snap.EarningsByCode[payroll.EarningCode(k)] = c.money("paycheck.priorYtd.earnings."+k, v)
	}
	for k, v := range y.EmployeeTaxes {
		snap.EmployeeTaxesByRule[k] = c.money("paycheck.priorYtd.employeeTaxes."+k, v)
	}
	for k, v := range y.EmployerTaxes {
		snap.EmployerTaxesByRule[k] = c.money("paycheck.priorYtd.employerTaxes."+k, v)
	}
	for k, v := range y.Deductions {
		snap.DeductionsByCode[payroll.DeductionCode(k)] = c.money("paycheck.priorYtd.deductions."+k, v)
	}
	for k, v := range y.EmployerContributions {
		snap.EmployerContributionsByCode[k] = c.money("paycheck.priorYtd.employerContributions."+k, v)
	}
	for k, v := range y.Wages {
		basis := payroll.TaxBasis(c.oneOf("paycheck.priorYtd.wages."+k, k, taxBases...))
		snap.WagesByBasis[basis] = c.money("paycheck.priorYtd.wages."+k, v)
	}
	return snap
}

func (c *converter) garnishment(path string, g Garnishment) payroll.GarnishmentOrder {
	order := payroll.GarnishmentOrder{
		OrderID:             payroll.GarnishmentOrderID(c.required(path+".orderId", g.OrderID)),
		PlanID:              g.PlanID,
		Type:                payroll.GarnishmentType(strings.ToUpper(c.required(path+".type", g.Type))),
		CaseNumber:          g.CaseNumber,
		PriorityClass:       g.PriorityClass,
		SequenceWithinClass: g.Sequence,
		Formula:             c.formula(path+".formula", g.Formula),
		AnnualCap:           c.moneyPtr(path+".annualCap", g.AnnualCap),
		LifetimeCap:         c.moneyPtr(path+".lifetimeCap", g.LifetimeCap),
		PaidToDate:          c.moneyPtr(path+".paidToDate", g.PaidToDate),
		ArrearsBefore:       c.moneyPtr(path+".arrearsBefore", g.ArrearsBefore),
	}
	if g.Protected != nil {
		order.ProtectedEarnings = c.protected(path+".protected", *g.Protected)
	}
	return order
}

func (c *converter) formula(path string, f Formula) payroll.GarnishmentFormula {
	switch strings.ToUpper(f.Kind) {
	case payroll.FormulaPercentOfDisposable:
		return payroll.PercentOfDisposable{Percent: c.percent(path+".percent", f.Percent)}
	case payroll.FormulaFixedAmountPerPeriod:
		return payroll.FixedAmountPerPeriod{Amount: c.money(path+".amount", c.required(path+".amount", f.Amount))}
	case payroll.FormulaLesserOfPercentOrAmount:
		return payroll.LesserOfPercentOrAmount{
			Percent: c.percent(path+".percent", f.Percent),
			Amount:  c.money(path+".amount", c.required(path+".amount", f.Amount)),
		}
	case payroll.FormulaLevyWithBands:
		bands := make([]payroll.LevyBand, 0, len(f.Bands))
		for i, b := range f.Bands {
			bp := fmt.Sprintf("%s.bands[%d]", path, i)
			bands = append(bands, payroll.LevyBand{
				UpTo:         c.moneyPtr(bp+".upTo", b.UpTo),
				ExemptAmount: c.money(bp+".exempt", b.Exempt),
				FilingStatus: payroll.FilingStatus(strings.ToUpper(b.FilingStatus)),
			})
		}
		return payroll.LevyWithBands{Bands: bands}
	default:
		c.fail(path+".kind", "unknown garnishment formula %q", f.Kind)
		return payroll.FixedAmountPerPeriod{}
	}
}

func (c *converter) protected(path string, p Protected) payroll.ProtectedEarningsRule {
	switch strings.ToUpper(p.Kind) {
	case payroll.ProtectedFixedFloor:
		return payroll.FixedFloor{Amount: c.money(path+".amount", c.required(path+".amount", p.Amount))}
	case payroll.ProtectedMultipleOfMinWage:
		multiplier := decimal.NewFromInt(1)
		if p.Multiplier != "" {
			multiplier = c.decimal(path+".multiplier", p.Multiplier)
		}
		return payroll.MultipleOfMinWage{
			HourlyRate: c.money(path+".hourlyRate", c.required(path+".hourlyRate", p.HourlyRate)),
			Hours:      c.decimal(path+".hours", c.required(path+".hours", p.Hours)),
			Multiplier: multiplier,
		}
	default:
		c.fail(path+".kind", "must be FIXED_FLOOR or MULTIPLE_OF_MIN_WAGE")
		return nil
	}
}

func (c *converter) earningDefinition(path string, d EarningDefinition) payroll.EarningDefinition {
	def := payroll.EarningDefinition{
		Code:        payroll.EarningCode(c.required(path+".code", d.Code)),
		Name:        d.Name,
		Category:    payroll.EarningCategory(strings.ToUpper(d.Category)),
		DefaultRate: c.moneyPtr(path+".defaultRate", d.DefaultRate),
	}
	if d.OvertimeMultiplier != nil {
		m := c.decimal(path+".overtimeMultiplier", *d.OvertimeMultiplier)
		def.OvertimeMultiplier = &m
	}
	return def
}

func (c *converter) deductionPlan(path string, p DeductionPlan) payroll.DeductionPlan {
	plan := payroll.DeductionPlan{
		ID:              c.required(path+".id", p.ID),
		Name:            p.Name,
		Kind:            payroll.DeductionKind(strings.ToUpper(c.required(path+".kind", p.Kind))),
		Subtype:         p.Subtype,
		GarnishmentType: payroll.GarnishmentType(strings.ToUpper(p.GarnishmentType)),
		EmployeeRate:    c.percentPtr(path+".employeeRate", p.EmployeeRate),
		EmployeeFlat:    c.moneyPtr(path+".employeeFlat", p.EmployeeFlat),
		EmployerRate:    c.percentPtr(path+".employerRate", p.EmployerRate),
		EmployerFlat:    c.moneyPtr(path+".employerFlat", p.EmployerFlat),
		AnnualCap:       c.moneyPtr(path+".annualCap", p.AnnualCap),
		PerPeriodCap:    c.moneyPtr(path+".perPeriodCap", p.PerPeriodCap),
		RateBasis:       payroll.RateBasis(strings.ToUpper(p.RateBasis)),
	}
	for _, e := range p.Effects {
		plan.EmployeeEffects = append(plan.EmployeeEffects, payroll.DeductionEffect(strings.ToUpper(e)))
	}
	return plan
}

func (c *converter) supportCap(s SupportCap) payroll.SupportCapContext {
	out := payroll.DefaultSupportCapContext()
	out.JurisdictionCode = s.Jurisdiction
	if s.HigherRate != "" {
		out.HigherRate = c.percent("supportCap.higherRate", s.HigherRate)
	}
	if s.LowerRate != "" {
		out.LowerRate = c.percent("supportCap.lowerRate", s.LowerRate)
	}
	if s.ArrearsBonus != "" {
		out.ArrearsBonus = c.percent("supportCap.arrearsBonus", s.ArrearsBonus)
	}
	out.StateCapRate = c.percentPtr("supportCap.stateCapRate", s.StateCapRate)
	out.SupportsOtherDependents = s.SupportsOtherDependents
	out.ArrearsAtLeast12Weeks = s.ArrearsAtLeast12Weeks
	return out
}
