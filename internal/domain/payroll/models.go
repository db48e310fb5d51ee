package payroll

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"payengine/internal/domain/money"
)

type (
	EmployerID         string
	EmployeeID         string
	PaycheckID         string
	PayRunID           string
	EarningCode        string
	DeductionCode      string
	GarnishmentOrderID string
)

type PayFrequency string

// PeriodsPerYear returns 0 for an unknown frequency.
func (f PayFrequency) PeriodsPerYear() int {
	switch f {
	case FrequencyWeekly:
		return 52
	case FrequencyBiweekly:
		return 26
	case FrequencySemiMonthly:
		return 24
	case FrequencyMonthly:
		return 12
	case FrequencyQuarterly:
		return 4
	case FrequencyAnnual:
		return 1
	default:
		return 0
	}
}

type PayPeriod struct {
	ID        string       `json:"id"`
	StartDate time.Time    `json:"startDate"`
	EndDate   time.Time    `json:"endDate"`
	CheckDate time.Time    `json:"checkDate"`
	Frequency PayFrequency `json:"frequency"`
	// SequenceInYear is 1-based; zero means the caller did not supply one.
	SequenceInYear int `json:"sequenceInYear,omitempty"`
}

type FilingStatus string

type EmploymentType string

// Compensation is either Hourly or Salaried.
type Compensation interface {
	isCompensation()
}

type Hourly struct {
	HourlyRate money.Money `json:"hourlyRate"`
}

type Salaried struct {
	AnnualSalary money.Money  `json:"annualSalary"`
	Frequency    PayFrequency `json:"frequency"`
}

func (Hourly) isCompensation()   {}
func (Salaried) isCompensation() {}

func (h Hourly) MarshalJSON() ([]byte, error) {
	type alias Hourly
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{CompensationHourly, alias(h)})
}

func (s Salaried) MarshalJSON() ([]byte, error) {
	type alias Salaried
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{CompensationSalaried, alias(s)})
}

// LaborStandards carries the jurisdiction wage floors used for tip credit.
// A nil TippedCashMinimum means the jurisdiction allows no tip credit.
type LaborStandards struct {
	MinimumWage       money.Money  `json:"minimumWage"`
	TippedCashMinimum *money.Money `json:"tippedCashMinimum,omitempty"`
}

type EmployeeSnapshot struct {
	EmployerID                     EmployerID      `json:"employerId"`
	EmployeeID                     EmployeeID      `json:"employeeId"`
	HomeState                      string          `json:"homeState"`
	WorkState                      string          `json:"workState"`
	FilingStatus                   FilingStatus    `json:"filingStatus"`
	EmploymentType                 EmploymentType  `json:"employmentType"`
	Compensation                   Compensation    `json:"compensation"`
	HireDate                       *time.Time      `json:"hireDate,omitempty"`
	TerminationDate                *time.Time      `json:"terminationDate,omitempty"`
	IsTippedEmployee               bool            `json:"isTippedEmployee"`
	FicaExempt                     bool            `json:"ficaExempt"`
	AdditionalWithholdingPerPeriod money.Money     `json:"additionalWithholdingPerPeriod"`
	LaborStandards                 *LaborStandards `json:"laborStandards,omitempty"`
}

type EarningInput struct {
	Code   EarningCode     `json:"code"`
	Units  decimal.Decimal `json:"units"`
	Rate   *money.Money    `json:"rate,omitempty"`
	Amount *money.Money    `json:"amount,omitempty"`
}

type TimeSlice struct {
	RegularHours        decimal.Decimal            `json:"regularHours"`
	OvertimeHours       decimal.Decimal            `json:"overtimeHours"`
	OtherEarnings       []EarningInput             `json:"otherEarnings,omitempty"`
	LocalityAllocations map[string]decimal.Decimal `json:"localityAllocations,omitempty"`
	Proration           *decimal.Decimal           `json:"proration,omitempty"`
	IncludeBaseEarnings *bool                      `json:"includeBaseEarnings,omitempty"`
}

// IncludesBaseEarnings defaults to true when the flag is unset.
func (t TimeSlice) IncludesBaseEarnings() bool {
	return t.IncludeBaseEarnings == nil || *t.IncludeBaseEarnings
}

func (t TimeSlice) TotalHours() decimal.Decimal {
	return t.RegularHours.Add(t.OvertimeHours)
}

type TaxContext struct {
	Federal          []TaxRule `json:"federal,omitempty"`
	State            []TaxRule `json:"state,omitempty"`
	Local            []TaxRule `json:"local,omitempty"`
	EmployerSpecific []TaxRule `json:"employerSpecific,omitempty"`
}

type GarnishmentContext struct {
	Orders []GarnishmentOrder `json:"orders,omitempty"`
}

type PaycheckInput struct {
	PaycheckID   PaycheckID          `json:"paycheckId"`
	PayRunID     PayRunID            `json:"payRunId"`
	EmployerID   EmployerID          `json:"employerId"`
	EmployeeID   EmployeeID          `json:"employeeId"`
	Period       PayPeriod           `json:"period"`
	Employee     EmployeeSnapshot    `json:"employee"`
	TimeSlice    TimeSlice           `json:"timeSlice"`
	TaxContext   TaxContext          `json:"taxContext"`
	PriorYtd     YtdSnapshot         `json:"priorYtd"`
	Garnishments *GarnishmentContext `json:"garnishments,omitempty"`
}

func (in PaycheckInput) garnishmentOrders() []GarnishmentOrder {
	if in.Garnishments == nil {
		return nil
	}
	return in.Garnishments.Orders
}

// normalizeLocality makes locality keys comparable across callers.
func normalizeLocality(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
