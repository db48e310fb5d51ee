package payroll

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"payengine/internal/domain/money"
)

type Jurisdiction struct {
	Type JurisdictionType `json:"type"`
	Code string           `json:"code"`
}

// TaxRule is FlatRateTax, BracketedIncomeTax or WageBracketTax.
type TaxRule interface {
	RuleID() string
	RuleBasis() TaxBasis
	RuleJurisdiction() Jurisdiction
	Locality() string
	isTaxRule()
}

type FlatRateTax struct {
	ID            string        `json:"id"`
	Jurisdiction  Jurisdiction  `json:"jurisdiction"`
	Basis         TaxBasis      `json:"basis"`
	Rate          money.Percent `json:"rate"`
	AnnualWageCap *money.Money  `json:"annualWageCap,omitempty"`
	// LocalityFilter ties a local rule to one locality code.
	LocalityFilter string `json:"localityFilter,omitempty"`
}

type TaxBracket struct {
	// UpTo is the inclusive upper bound of the band; nil means unbounded.
	UpTo *money.Money  `json:"upTo,omitempty"`
	Rate money.Percent `json:"rate"`
}

type BracketedIncomeTax struct {
	ID                string       `json:"id"`
	Jurisdiction      Jurisdiction `json:"jurisdiction"`
	Basis             TaxBasis     `json:"basis"`
	Brackets          []TaxBracket `json:"brackets"`
	StandardDeduction *money.Money `json:"standardDeduction,omitempty"`
	LocalityFilter    string       `json:"localityFilter,omitempty"`
	// Cumulative measures brackets against year-to-date wages on the basis,
	// taxing only the increment this period adds.
	Cumulative bool `json:"cumulative,omitempty"`
}

// WageBracketRow is one line of a wage bracket table: a basis up to UpTo
// (inclusive, nil for the last row) withholds a fixed Tax.
type WageBracketRow struct {
	UpTo *money.Money `json:"upTo,omitempty"`
	Tax  money.Money  `json:"tax"`
}

// WageBracketTax looks the basis up in a table instead of applying rates.
// Rows are matched in the order given.
type WageBracketTax struct {
	ID             string           `json:"id"`
	Jurisdiction   Jurisdiction     `json:"jurisdiction"`
	Basis          TaxBasis         `json:"basis"`
	Brackets       []WageBracketRow `json:"brackets"`
	LocalityFilter string           `json:"localityFilter,omitempty"`
}

func (r FlatRateTax) RuleID() string                 { return r.ID }
func (r FlatRateTax) RuleBasis() TaxBasis            { return r.Basis }
func (r FlatRateTax) RuleJurisdiction() Jurisdiction { return r.Jurisdiction }
func (r FlatRateTax) Locality() string               { return r.LocalityFilter }
func (FlatRateTax) isTaxRule()                       {}

func (r BracketedIncomeTax) RuleID() string                 { return r.ID }
func (r BracketedIncomeTax) RuleBasis() TaxBasis            { return r.Basis }
func (r BracketedIncomeTax) RuleJurisdiction() Jurisdiction { return r.Jurisdiction }
func (r BracketedIncomeTax) Locality() string               { return r.LocalityFilter }
func (BracketedIncomeTax) isTaxRule()                       {}

func (r WageBracketTax) RuleID() string                 { return r.ID }
func (r WageBracketTax) RuleBasis() TaxBasis            { return r.Basis }
func (r WageBracketTax) RuleJurisdiction() Jurisdiction { return r.Jurisdiction }
func (r WageBracketTax) Locality() string               { return r.LocalityFilter }
func (WageBracketTax) isTaxRule()                       {}

const (
	TaxRuleFlat        = "FLAT_RATE"
	TaxRuleBracketed   = "BRACKETED"
	TaxRuleWageBracket = "WAGE_BRACKET"
)

func (r FlatRateTax) MarshalJSON() ([]byte, error) {
	type alias FlatRateTax
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{TaxRuleFlat, alias(r)})
}

func (r BracketedIncomeTax) MarshalJSON() ([]byte, error) {
	type alias BracketedIncomeTax
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{TaxRuleBracketed, alias(r)})
}

func (r WageBracketTax) MarshalJSON() ([]byte, error) {
	type alias WageBracketTax
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{TaxRuleWageBracket, alias(r)})
}

// EarningDefinition is employer configuration for an earning code.
type EarningDefinition struct {
	Code               EarningCode      `json:"code"`
	Name               string           `json:"name"`
	Category           EarningCategory  `json:"category"`
	DefaultRate        *money.Money     `json:"defaultRate,omitempty"`
	OvertimeMultiplier *decimal.Decimal `json:"overtimeMultiplier,omitempty"`
}

type RateBasis string

const (
	RateBasisGross        RateBasis = "GROSS"
	RateBasisSupplemental RateBasis = "SUPPLEMENTAL"
)

type DeductionPlan struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Kind            DeductionKind     `json:"kind"`
	Subtype         string            `json:"subtype,omitempty"`
	GarnishmentType GarnishmentType   `json:"garnishmentType,omitempty"`
	EmployeeRate    *money.Percent    `json:"employeeRate,omitempty"`
	EmployeeFlat    *money.Money      `json:"employeeFlat,omitempty"`
	EmployerRate    *money.Percent    `json:"employerRate,omitempty"`
	EmployerFlat    *money.Money      `json:"employerFlat,omitempty"`
	AnnualCap       *money.Money      `json:"annualCap,omitempty"`
	PerPeriodCap    *money.Money      `json:"perPeriodCap,omitempty"`
	RateBasis       RateBasis         `json:"rateBasis,omitempty"`
	EmployeeEffects []DeductionEffect `json:"employeeEffects,omitempty"`
}

// IsPreTax reports whether the plan kind is withheld before taxes.
func (p DeductionPlan) IsPreTax() bool {
	switch p.Kind {
	case KindPretaxRetirement, KindHSA, KindFSA:
		return true
	default:
		return false
	}
}

// Effects returns the explicit effects or the defaults for the plan kind.
func (p DeductionPlan) Effects() []DeductionEffect {
	if len(p.EmployeeEffects) > 0 {
		return p.EmployeeEffects
	}
	return DefaultEffects(p.Kind)
}

func DefaultEffects(kind DeductionKind) []DeductionEffect {
	switch kind {
	case KindPretaxRetirement, KindFSA:
		return []DeductionEffect{EffectReducesFederalTaxable, EffectReducesStateTaxable}
	case KindHSA:
		return []DeductionEffect{
			EffectReducesFederalTaxable,
			EffectReducesStateTaxable,
			EffectReducesSocialSecurity,
			EffectReducesMedicare,
		}
	default:
		return []DeductionEffect{EffectNoTaxEffect}
	}
}

func hasEffect(effects []DeductionEffect, e DeductionEffect) bool {
	for _, x := range effects {
		if x == e {
			return true
		}
	}
	return false
}

// GarnishmentFormula is one of PercentOfDisposable, FixedAmountPerPeriod,
// LesserOfPercentOrAmount or LevyWithBands.
type GarnishmentFormula interface {
	isGarnishmentFormula()
}

type PercentOfDisposable struct {
	Percent money.Percent `json:"percent"`
}

type FixedAmountPerPeriod struct {
	Amount money.Money `json:"amount"`
}

type LesserOfPercentOrAmount struct {
	Percent money.Percent `json:"percent"`
	Amount  money.Money   `json:"amount"`
}

// LevyBand exempts ExemptAmount of disposable income up to UpTo. A nil UpTo
// covers all remaining income; an empty FilingStatus matches every status.
type LevyBand struct {
	UpTo         *money.Money `json:"upTo,omitempty"`
	ExemptAmount money.Money  `json:"exemptAmount"`
	FilingStatus FilingStatus `json:"filingStatus,omitempty"`
}

type LevyWithBands struct {
	Bands []LevyBand `json:"bands"`
}

func (PercentOfDisposable) isGarnishmentFormula()     {}
func (FixedAmountPerPeriod) isGarnishmentFormula()    {}
func (LesserOfPercentOrAmount) isGarnishmentFormula() {}
func (LevyWithBands) isGarnishmentFormula()           {}

const (
	FormulaPercentOfDisposable     = "PERCENT_OF_DISPOSABLE"
	FormulaFixedAmountPerPeriod    = "FIXED_AMOUNT_PER_PERIOD"
	FormulaLesserOfPercentOrAmount = "LESSER_OF_PERCENT_OR_AMOUNT"
	FormulaLevyWithBands           = "LEVY_WITH_BANDS"
)

func (f PercentOfDisposable) MarshalJSON() ([]byte, error) {
	type alias PercentOfDisposable
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{FormulaPercentOfDisposable, alias(f)})
}

func (f FixedAmountPerPeriod) MarshalJSON() ([]byte, error) {
	type alias FixedAmountPerPeriod
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{FormulaFixedAmountPerPeriod, alias(f)})
}

func (f LesserOfPercentOrAmount) MarshalJSON() ([]byte, error) {
	type alias LesserOfPercentOrAmount
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{FormulaLesserOfPercentOrAmount, alias(f)})
}

func (f LevyWithBands) MarshalJSON() ([]byte, error) {
	type alias LevyWithBands
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{FormulaLevyWithBands, alias(f)})
}

// ProtectedEarningsRule is either FixedFloor or MultipleOfMinWage.
type ProtectedEarningsRule interface {
	isProtectedEarningsRule()
}

type FixedFloor struct {
	Amount money.Money `json:"amount"`
}

type MultipleOfMinWage struct {
	HourlyRate money.Money     `json:"hourlyRate"`
	Hours      decimal.Decimal `json:"hours"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

func (FixedFloor) isProtectedEarningsRule()        {}
func (MultipleOfMinWage) isProtectedEarningsRule() {}

const (
	ProtectedFixedFloor        = "FIXED_FLOOR"
	ProtectedMultipleOfMinWage = "MULTIPLE_OF_MIN_WAGE"
)

func (r FixedFloor) MarshalJSON() ([]byte, error) {
	type alias FixedFloor
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{ProtectedFixedFloor, alias(r)})
}

func (r MultipleOfMinWage) MarshalJSON() ([]byte, error) {
	type alias MultipleOfMinWage
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{ProtectedMultipleOfMinWage, alias(r)})
}

type GarnishmentOrder struct {
	OrderID             GarnishmentOrderID    `json:"orderId"`
	PlanID              string                `json:"planId,omitempty"`
	Type                GarnishmentType       `json:"type"`
	CaseNumber          string                `json:"caseNumber,omitempty"`
	PriorityClass       int                   `json:"priorityClass"`
	SequenceWithinClass int                   `json:"sequenceWithinClass"`
	Formula             GarnishmentFormula    `json:"formula"`
	ProtectedEarnings   ProtectedEarningsRule `json:"protectedEarnings,omitempty"`
	AnnualCap           *money.Money          `json:"annualCap,omitempty"`
	LifetimeCap         *money.Money          `json:"lifetimeCap,omitempty"`
	// PaidToDate is the lifetime amount withheld before this paycheck. When
	// nil, year-to-date withholding stands in for it.
	PaidToDate    *money.Money `json:"paidToDate,omitempty"`
	ArrearsBefore *money.Money `json:"arrearsBefore,omitempty"`
}

func (o GarnishmentOrder) description() string {
	if o.CaseNumber != "" {
		return o.CaseNumber
	}
	return string(o.OrderID)
}

// SupportCapContext carries the statutory limits on aggregate child support
// withholding for one employee.
type SupportCapContext struct {
	JurisdictionCode        string         `json:"jurisdictionCode,omitempty"`
	HigherRate              money.Percent  `json:"higherRate"`
	LowerRate               money.Percent  `json:"lowerRate"`
	ArrearsBonus            money.Percent  `json:"arrearsBonus"`
	StateCapRate            *money.Percent `json:"stateCapRate,omitempty"`
	SupportsOtherDependents bool           `json:"supportsOtherDependents"`
	ArrearsAtLeast12Weeks   bool           `json:"arrearsAtLeast12Weeks"`
}

// DefaultSupportCapContext returns the federal CCPA rates.
func DefaultSupportCapContext() SupportCapContext {
	return SupportCapContext{
		HigherRate:   money.MustPercent("0.60"),
		LowerRate:    money.MustPercent("0.50"),
		ArrearsBonus: money.MustPercent("0.05"),
	}
}

func (c SupportCapContext) ccpaRate() money.Percent {
	rate := c.HigherRate
	if c.SupportsOtherDependents {
		rate = c.LowerRate
	}
	if c.ArrearsAtLeast12Weeks {
		rate = rate.Add(c.ArrearsBonus)
	}
	return rate
}
