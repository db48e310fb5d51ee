package payroll

import (
	"sort"
	"strings"

	"payengine/internal/domain/money"
)

type taxesResult struct {
	employee []TaxLine
	employer []TaxLine
	steps    []TraceStep
}

type taxCalc struct {
	in         PaycheckInput
	bases      map[TaxBasis]money.Money
	thresholds FicaThresholds
	locality   *localitySplitter

	pendingExtra money.Money
	res          taxesResult
}

func computeTaxes(in PaycheckInput, bases map[TaxBasis]money.Money, thresholds FicaThresholds) taxesResult {
	tc := in.TaxContext
	c := &taxCalc{
		in:           in,
		bases:        bases,
		thresholds:   thresholds,
		locality:     newLocalitySplitter(tc.Local, in.TimeSlice.LocalityAllocations),
		pendingExtra: in.Employee.AdditionalWithholdingPerPeriod,
	}
	for _, r := range tc.Federal {
		c.apply(r, "Federal", false, true)
	}
	for _, r := range tc.State {
		c.apply(r, "State", false, false)
	}
	for _, r := range tc.Local {
		c.apply(r, "Local", true, false)
	}
	for _, r := range tc.EmployerSpecific {
		c.applyEmployer(r)
	}
	if c.pendingExtra != 0 {
		c.res.steps = append(c.res.steps, Note{Message: "additional_withholding_unapplied cents=" + c.pendingExtra.String()})
	}
	return c.res
}

// skipFica reports whether a FICA-basis rule must not apply to this employee.
// Household and election workers are exempt until year-to-date plus current
// wages reach the threshold; crossing it taxes the whole current period.
func (c *taxCalc) skipFica(basis TaxBasis, current money.Money) bool {
	if !basis.isFica() {
		return false
	}
	emp := c.in.Employee
	if emp.FicaExempt {
		return true
	}
	var threshold money.Money
	switch emp.EmploymentType {
	case EmploymentHousehold:
		threshold = c.thresholds.Household
	case EmploymentElectionWorker:
		threshold = c.thresholds.ElectionWorker
	default:
		return false
	}
	return c.in.PriorYtd.Wages(basis)+current < threshold
}

func (c *taxCalc) basisFor(r TaxRule, local bool) money.Money {
	base := c.bases[r.RuleBasis()]
	if !local || r.Locality() == "" {
		return base
	}
	return c.locality.share(r.RuleBasis(), base, r.Locality())
}

func (c *taxCalc) apply(r TaxRule, prefix string, local, federal bool) {
	basis := c.basisFor(r, local)
	if basis == 0 || c.skipFica(r.RuleBasis(), basis) {
		return
	}
	line, brackets, ok := c.evaluate(r, basis)
	if !ok {
		return
	}

	var extra money.Money
	if federal && c.pendingExtra != 0 && isFederalIncomeBasis(r.RuleBasis()) {
		extra = c.pendingExtra
		c.pendingExtra = 0
		line.Amount += extra
	}
	if line.Amount == 0 {
		return
	}
	line.Description = describe(prefix, r)
	c.res.employee = append(c.res.employee, line)
	c.res.steps = append(c.res.steps, TaxApplied{
		RuleID:       line.RuleID,
		Jurisdiction: line.Jurisdiction,
		Basis:        line.Basis,
		Brackets:     brackets,
		Rate:         line.Rate,
		Amount:       line.Amount,
	})
	if extra != 0 {
		c.res.steps = append(c.res.steps, AdditionalWithholdingApplied{RuleID: line.RuleID, Amount: extra})
	}
}

// applyEmployer splits the basis of a LOCAL employer rule across localities
// the same way employee local rules are split.
func (c *taxCalc) applyEmployer(r TaxRule) {
	basis := c.basisFor(r, r.RuleJurisdiction().Type == JurisdictionLocal)
	if basis == 0 || c.skipFica(r.RuleBasis(), basis) {
		return
	}
	line, brackets, ok := c.evaluate(r, basis)
	if !ok || line.Amount == 0 {
		return
	}
	line.Description = describe("Employer", r)
	c.res.employer = append(c.res.employer, line)
	c.res.steps = append(c.res.steps, TaxApplied{
		RuleID:       line.RuleID,
		Jurisdiction: line.Jurisdiction,
		Basis:        line.Basis,
		Brackets:     brackets,
		Rate:         line.Rate,
		Amount:       line.Amount,
	})
}

// evaluate returns ok=false when the rule yields no line at all, as with a
// wage cap already reached.
func (c *taxCalc) evaluate(r TaxRule, basis money.Money) (TaxLine, []BracketApplication, bool) {
	switch rule := r.(type) {
	case FlatRateTax:
		taxable := basis
		if rule.AnnualWageCap != nil {
			remaining := *rule.AnnualWageCap - c.in.PriorYtd.Wages(rule.Basis)
			if remaining <= 0 {
				return TaxLine{}, nil, false
			}
			taxable = taxable.Min(remaining).NonNegative()
		}
		rate := rule.Rate
		return TaxLine{
			RuleID:       rule.ID,
			Jurisdiction: rule.Jurisdiction,
			Basis:        taxable,
			Rate:         &rate,
			Amount:       taxable.MulPercent(rule.Rate),
		}, nil, true
	case BracketedIncomeTax:
		var amount money.Money
		var apps []BracketApplication
		if rule.Cumulative {
			prior := c.in.PriorYtd.Wages(rule.Basis)
			before, _ := BracketTax(prior, rule)
			after, all := BracketTax(prior+basis, rule)
			amount = after - before
			apps = incrementalBands(all, prior, rule)
		} else {
			amount, apps = BracketTax(basis, rule)
		}
		return TaxLine{
			RuleID:       rule.ID,
			Jurisdiction: rule.Jurisdiction,
			Basis:        basis,
			Amount:       amount,
		}, apps, true
	case WageBracketTax:
		row, ok := rule.row(basis)
		if !ok {
			return TaxLine{}, nil, false
		}
		return TaxLine{
			RuleID:       rule.ID,
			Jurisdiction: rule.Jurisdiction,
			Basis:        basis,
			Amount:       row.Tax,
		}, nil, true
	default:
		return TaxLine{}, nil, false
	}
}

// row returns the first row whose bound covers basis.
func (r WageBracketTax) row(basis money.Money) (WageBracketRow, bool) {
	for _, row := range r.Brackets {
		if row.UpTo == nil || basis <= *row.UpTo {
			return row, true
		}
	}
	return WageBracketRow{}, false
}

// BracketTax applies progressive brackets to basis less the standard
// deduction. Bands are walked in ascending order with the unbounded band
// last; each nonzero band is reported.
func BracketTax(basis money.Money, rule BracketedIncomeTax) (money.Money, []BracketApplication) {
	taxable := basis
	if rule.StandardDeduction != nil {
		taxable -= *rule.StandardDeduction
	}
	taxable = taxable.NonNegative()
	if taxable == 0 {
		return 0, nil
	}

	var total, lower money.Money
	var apps []BracketApplication
	for _, b := range sortedBrackets(rule.Brackets) {
		if taxable <= lower {
			break
		}
		upper := taxable
		if b.UpTo != nil {
			if *b.UpTo <= lower {
				continue
			}
			upper = b.UpTo.Min(taxable)
		}
		applied := upper - lower
		tax := applied.MulPercent(b.Rate)
		total += tax
		if applied > 0 {
			apps = append(apps, BracketApplication{UpTo: b.UpTo, Rate: b.Rate, AppliedTo: applied, Amount: tax})
		}
		if b.UpTo == nil {
			break
		}
		lower = *b.UpTo
	}
	return total, apps
}

// incrementalBands keeps only the part of each band this period added on top
// of prior year-to-date wages.
func incrementalBands(all []BracketApplication, prior money.Money, rule BracketedIncomeTax) []BracketApplication {
	_, before := BracketTax(prior, rule)
	var out []BracketApplication
	for i, b := range all {
		if i < len(before) {
			b.AppliedTo -= before[i].AppliedTo
			b.Amount -= before[i].Amount
		}
		if b.AppliedTo > 0 {
			out = append(out, b)
		}
	}
	return out
}

func sortedBrackets(in []TaxBracket) []TaxBracket {
	out := make([]TaxBracket, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].UpTo, out[j].UpTo
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
	return out
}

func isFederalIncomeBasis(b TaxBasis) bool {
	return b == BasisGross || b == BasisFederalTaxable
}

func describe(prefix string, r TaxRule) string {
	code := strings.TrimSpace(r.RuleJurisdiction().Code)
	if code == "" {
		return prefix + " " + r.RuleID()
	}
	return prefix + " " + code
}

func sumTaxes(lines []TaxLine) money.Money {
	var total money.Money
	for _, l := range lines {
		total += l.Amount
	}
	return total
}
