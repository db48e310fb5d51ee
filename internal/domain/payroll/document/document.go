// Package document is the human-editable form of a paycheck computation:
// YAML scenario files for the CLI and JSON request bodies for the API.
// Amounts are decimal dollar strings ("1234.56"), rates are decimal
// fractions ("0.062") and dates are YYYY-MM-DD, so files never carry floats.
// Variants are selected by a kind field.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrInvalidDocument = errors.New("invalid paycheck document")

// Scenario is one paycheck plus the employer configuration it runs against.
// Configuration left out is resolved by whoever hosts the engine.
type Scenario struct {
	Name                  string              `yaml:"name,omitempty" json:"name,omitempty"`
	TraceLevel            string              `yaml:"traceLevel,omitempty" json:"traceLevel,omitempty"`
	Paycheck              Paycheck            `yaml:"paycheck" json:"paycheck"`
	EarningDefinitions    []EarningDefinition `yaml:"earningDefinitions,omitempty" json:"earningDefinitions,omitempty"`
	DeductionPlans        []DeductionPlan     `yaml:"deductionPlans,omitempty" json:"deductionPlans,omitempty"`
	SupportCap            *SupportCap         `yaml:"supportCap,omitempty" json:"supportCap,omitempty"`
	EmployerContributions []Contribution      `yaml:"employerContributions,omitempty" json:"employerContributions,omitempty"`
}

type Paycheck struct {
	PaycheckID   string        `yaml:"paycheckId,omitempty" json:"paycheckId,omitempty"`
	PayRunID     string        `yaml:"payRunId,omitempty" json:"payRunId,omitempty"`
	EmployerID   string        `yaml:"employerId" json:"employerId"`
	EmployeeID   string        `yaml:"employeeId" json:"employeeId"`
	Period       Period        `yaml:"period" json:"period"`
	Employee     Employee      `yaml:"employee" json:"employee"`
	Time         TimeSlice     `yaml:"time" json:"time"`
	Taxes        TaxContext    `yaml:"taxes,omitempty" json:"taxes,omitempty"`
	PriorYtd     *Ytd          `yaml:"priorYtd,omitempty" json:"priorYtd,omitempty"`
	Garnishments []Garnishment `yaml:"garnishments,omitempty" json:"garnishments,omitempty"`
}

type Period struct {
	ID             string `yaml:"id,omitempty" json:"id,omitempty"`
	Start          string `yaml:"start" json:"start"`
	End            string `yaml:"end" json:"end"`
	Check          string `yaml:"check" json:"check"`
	Frequency      string `yaml:"frequency" json:"frequency"`
	SequenceInYear int    `yaml:"sequenceInYear,omitempty" json:"sequenceInYear,omitempty"`
}

type Employee struct {
	HomeState             string          `yaml:"homeState,omitempty" json:"homeState,omitempty"`
	WorkState             string          `yaml:"workState,omitempty" json:"workState,omitempty"`
	FilingStatus          string          `yaml:"filingStatus,omitempty" json:"filingStatus,omitempty"`
	EmploymentType        string          `yaml:"employmentType,omitempty" json:"employmentType,omitempty"`
	Compensation          *Compensation   `yaml:"compensation,omitempty" json:"compensation,omitempty"`
	HireDate              string          `yaml:"hireDate,omitempty" json:"hireDate,omitempty"`
	TerminationDate       string          `yaml:"terminationDate,omitempty" json:"terminationDate,omitempty"`
	Tipped                bool            `yaml:"tipped,omitempty" json:"tipped,omitempty"`
	FicaExempt            bool            `yaml:"ficaExempt,omitempty" json:"ficaExempt,omitempty"`
	AdditionalWithholding string          `yaml:"additionalWithholding,omitempty" json:"additionalWithholding,omitempty"`
	LaborStandards        *LaborStandards `yaml:"laborStandards,omitempty" json:"laborStandards,omitempty"`
}

// Compensation kinds: HOURLY carries HourlyRate, SALARIED carries
// AnnualSalary and optionally its own Frequency.
type Compensation struct {
	Kind         string `yaml:"kind" json:"kind"`
	HourlyRate   string `yaml:"hourlyRate,omitempty" json:"hourlyRate,omitempty"`
	AnnualSalary string `yaml:"annualSalary,omitempty" json:"annualSalary,omitempty"`
	Frequency    string `yaml:"frequency,omitempty" json:"frequency,omitempty"`
}

type LaborStandards struct {
	MinimumWage       string  `yaml:"minimumWage" json:"minimumWage"`
	TippedCashMinimum *string `yaml:"tippedCashMinimum,omitempty" json:"tippedCashMinimum,omitempty"`
}

type TimeSlice struct {
	RegularHours        string            `yaml:"regularHours,omitempty" json:"regularHours,omitempty"`
	OvertimeHours       string            `yaml:"overtimeHours,omitempty" json:"overtimeHours,omitempty"`
	Earnings            []Earning         `yaml:"earnings,omitempty" json:"earnings,omitempty"`
	LocalityAllocations map[string]string `yaml:"localityAllocations,omitempty" json:"localityAllocations,omitempty"`
	Proration           *string           `yaml:"proration,omitempty" json:"proration,omitempty"`
	IncludeBaseEarnings *bool             `yaml:"includeBaseEarnings,omitempty" json:"includeBaseEarnings,omitempty"`
}

type Earning struct {
	Code   string  `yaml:"code" json:"code"`
	Units  string  `yaml:"units,omitempty" json:"units,omitempty"`
	Rate   *string `yaml:"rate,omitempty" json:"rate,omitempty"`
	Amount *string `yaml:"amount,omitempty" json:"amount,omitempty"`
}

type TaxContext struct {
	Federal          []TaxRule `yaml:"federal,omitempty" json:"federal,omitempty"`
	State            []TaxRule `yaml:"state,omitempty" json:"state,omitempty"`
	Local            []TaxRule `yaml:"local,omitempty" json:"local,omitempty"`
	EmployerSpecific []TaxRule `yaml:"employer,omitempty" json:"employer,omitempty"`
}

// TaxRule kinds: FLAT_RATE uses Rate and AnnualWageCap; BRACKETED uses
// Brackets, StandardDeduction and Cumulative. WAGE_BRACKET reads each
// bracket's Tax instead of its Rate.
type TaxRule struct {
	Kind              string    `yaml:"kind" json:"kind"`
	ID                string    `yaml:"id" json:"id"`
	Jurisdiction      string    `yaml:"jurisdiction,omitempty" json:"jurisdiction,omitempty"`
	Code              string    `yaml:"code,omitempty" json:"code,omitempty"`
	Basis             string    `yaml:"basis" json:"basis"`
	Rate              string    `yaml:"rate,omitempty" json:"rate,omitempty"`
	AnnualWageCap     *string   `yaml:"annualWageCap,omitempty" json:"annualWageCap,omitempty"`
	Brackets          []Bracket `yaml:"brackets,omitempty" json:"brackets,omitempty"`
	StandardDeduction *string   `yaml:"standardDeduction,omitempty" json:"standardDeduction,omitempty"`
	Locality          string    `yaml:"locality,omitempty" json:"locality,omitempty"`
	Cumulative        bool      `yaml:"cumulative,omitempty" json:"cumulative,omitempty"`
}

type Bracket struct {
	UpTo *string `yaml:"upTo,omitempty" json:"upTo,omitempty"`
	Rate string  `yaml:"rate,omitempty" json:"rate,omitempty"`
	Tax  string  `yaml:"tax,omitempty" json:"tax,omitempty"`
}

type Ytd struct {
	Year                  int               `yaml:"year" json:"year"`
	Earnings              map[string]string `yaml:"earnings,omitempty" json:"earnings,omitempty"`
	EmployeeTaxes         map[string]string `yaml:"employeeTaxes,omitempty" json:"employeeTaxes,omitempty"`
	EmployerTaxes         map[string]string `yaml:"employerTaxes,omitempty" json:"employerTaxes,omitempty"`
	Deductions            map[string]string `yaml:"deductions,omitempty" json:"deductions,omitempty"`
	EmployerContributions map[string]string `yaml:"employerContributions,omitempty" json:"employerContributions,omitempty"`
	Wages                 map[string]string `yaml:"wages,omitempty" json:"wages,omitempty"`
}

type Garnishment struct {
	OrderID       string     `yaml:"orderId" json:"orderId"`
	PlanID        string     `yaml:"planId,omitempty" json:"planId,omitempty"`
	Type          string     `yaml:"type" json:"type"`
	CaseNumber    string     `yaml:"caseNumber,omitempty" json:"caseNumber,omitempty"`
	PriorityClass int        `yaml:"priorityClass,omitempty" json:"priorityClass,omitempty"`
	Sequence      int        `yaml:"sequence,omitempty" json:"sequence,omitempty"`
	Formula       Formula    `yaml:"formula" json:"formula"`
	Protected     *Protected `yaml:"protected,omitempty" json:"protected,omitempty"`
	AnnualCap     *string    `yaml:"annualCap,omitempty" json:"annualCap,omitempty"`
	LifetimeCap   *string    `yaml:"lifetimeCap,omitempty" json:"lifetimeCap,omitempty"`
	PaidToDate    *string    `yaml:"paidToDate,omitempty" json:"paidToDate,omitempty"`
	ArrearsBefore *string    `yaml:"arrearsBefore,omitempty" json:"arrearsBefore,omitempty"`
}

// Formula kinds: PERCENT_OF_DISPOSABLE, FIXED_AMOUNT_PER_PERIOD,
// LESSER_OF_PERCENT_OR_AMOUNT and LEVY_WITH_BANDS.
type Formula struct {
	Kind    string     `yaml:"kind" json:"kind"`
	Percent string     `yaml:"percent,omitempty" json:"percent,omitempty"`
	Amount  string     `yaml:"amount,omitempty" json:"amount,omitempty"`
	Bands   []LevyBand `yaml:"bands,omitempty" json:"bands,omitempty"`
}

type LevyBand struct {
	UpTo         *string `yaml:"upTo,omitempty" json:"upTo,omitempty"`
	Exempt       string  `yaml:"exempt" json:"exempt"`
	FilingStatus string  `yaml:"filingStatus,omitempty" json:"filingStatus,omitempty"`
}

// Protected kinds: FIXED_FLOOR uses Amount; MULTIPLE_OF_MIN_WAGE uses
// HourlyRate, Hours and Multiplier (default 1).
type Protected struct {
	Kind       string `yaml:"kind" json:"kind"`
	Amount     string `yaml:"amount,omitempty" json:"amount,omitempty"`
	HourlyRate string `yaml:"hourlyRate,omitempty" json:"hourlyRate,omitempty"`
	Hours      string `yaml:"hours,omitempty" json:"hours,omitempty"`
	Multiplier string `yaml:"multiplier,omitempty" json:"multiplier,omitempty"`
}

type EarningDefinition struct {
	Code               string  `yaml:"code" json:"code"`
	Name               string  `yaml:"name,omitempty" json:"name,omitempty"`
	Category           string  `yaml:"category,omitempty" json:"category,omitempty"`
	DefaultRate        *string `yaml:"defaultRate,omitempty" json:"defaultRate,omitempty"`
	OvertimeMultiplier *string `yaml:"overtimeMultiplier,omitempty" json:"overtimeMultiplier,omitempty"`
}

type DeductionPlan struct {
	ID              string   `yaml:"id" json:"id"`
	Name            string   `yaml:"name,omitempty" json:"name,omitempty"`
	Kind            string   `yaml:"kind" json:"kind"`
	Subtype         string   `yaml:"subtype,omitempty" json:"subtype,omitempty"`
	GarnishmentType string   `yaml:"garnishmentType,omitempty" json:"garnishmentType,omitempty"`
	EmployeeRate    *string  `yaml:"employeeRate,omitempty" json:"employeeRate,omitempty"`
	EmployeeFlat    *string  `yaml:"employeeFlat,omitempty" json:"employeeFlat,omitempty"`
	EmployerRate    *string  `yaml:"employerRate,omitempty" json:"employerRate,omitempty"`
	EmployerFlat    *string  `yaml:"employerFlat,omitempty" json:"employerFlat,omitempty"`
	AnnualCap       *string  `yaml:"annualCap,omitempty" json:"annualCap,omitempty"`
	PerPeriodCap    *string  `yaml:"perPeriodCap,omitempty" json:"perPeriodCap,omitempty"`
	RateBasis       string   `yaml:"rateBasis,omitempty" json:"rateBasis,omitempty"`
	Effects         []string `yaml:"effects,omitempty" json:"effects,omitempty"`
}

// SupportCap rates default to the federal CCPA limits when left empty.
type SupportCap struct {
	Jurisdiction            string  `yaml:"jurisdiction,omitempty" json:"jurisdiction,omitempty"`
	HigherRate              string  `yaml:"higherRate,omitempty" json:"higherRate,omitempty"`
	LowerRate               string  `yaml:"lowerRate,omitempty" json:"lowerRate,omitempty"`
	ArrearsBonus            string  `yaml:"arrearsBonus,omitempty" json:"arrearsBonus,omitempty"`
	StateCapRate            *string `yaml:"stateCapRate,omitempty" json:"stateCapRate,omitempty"`
	SupportsOtherDependents bool    `yaml:"supportsOtherDependents,omitempty" json:"supportsOtherDependents,omitempty"`
	ArrearsAtLeast12Weeks   bool    `yaml:"arrearsAtLeast12Weeks,omitempty" json:"arrearsAtLeast12Weeks,omitempty"`
}

type Contribution struct {
	Code        string `yaml:"code" json:"code"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Amount      string `yaml:"amount" json:"amount"`
}

// LoadFile reads a YAML scenario file. Unknown fields are rejected.
func LoadFile(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	return DecodeYAML(data)
}

func DecodeYAML(data []byte) (Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return Scenario{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return s, nil
}

func DecodeJSON(r io.Reader) (Scenario, error) {
	var s Scenario
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&s); err != nil {
		return Scenario{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return s, nil
}
