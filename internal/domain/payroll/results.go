package payroll

import (
	"github.com/shopspring/decimal"

	"payengine/internal/domain/money"
)

type EarningLine struct {
	Code        EarningCode     `json:"code"`
	Category    EarningCategory `json:"category"`
	Description string          `json:"description"`
	Units       decimal.Decimal `json:"units"`
	Rate        *money.Money    `json:"rate,omitempty"`
	Amount      money.Money     `json:"amount"`
}

type DeductionLine struct {
	Code        DeductionCode `json:"code"`
	Description string        `json:"description"`
	Amount      money.Money   `json:"amount"`
	PreTax      bool          `json:"preTax"`
}

type TaxLine struct {
	RuleID       string         `json:"ruleId"`
	Jurisdiction Jurisdiction   `json:"jurisdiction"`
	Description  string         `json:"description"`
	Basis        money.Money    `json:"basis"`
	Rate         *money.Percent `json:"rate,omitempty"`
	Amount       money.Money    `json:"amount"`
}

type GarnishmentLine struct {
	OrderID          GarnishmentOrderID `json:"orderId"`
	PlanID           string             `json:"planId,omitempty"`
	Type             GarnishmentType    `json:"type"`
	Description      string             `json:"description"`
	Amount           money.Money        `json:"amount"`
	AppliedToArrears money.Money        `json:"appliedToArrears"`
	AppliedToCurrent money.Money        `json:"appliedToCurrent"`
}

// Code is the YTD key for the order: deductions-by-code is keyed by order id.
func (g GarnishmentLine) Code() DeductionCode { return DeductionCode(g.OrderID) }

type EmployerContributionLine struct {
	Code        string      `json:"code"`
	Description string      `json:"description"`
	Amount      money.Money `json:"amount"`
}

// ProrationSummary describes how a salaried base was prorated.
type ProrationSummary struct {
	Strategy         string          `json:"strategy"`
	ExplicitOverride bool            `json:"explicitOverride"`
	Fraction         decimal.Decimal `json:"fraction"`
	FullCents        money.Money     `json:"fullCents"`
	AppliedCents     money.Money     `json:"appliedCents"`
}

type PaycheckResult struct {
	PaycheckID            PaycheckID                 `json:"paycheckId"`
	PayRunID              PayRunID                   `json:"payRunId"`
	EmployerID            EmployerID                 `json:"employerId"`
	EmployeeID            EmployeeID                 `json:"employeeId"`
	Period                PayPeriod                  `json:"period"`
	Gross                 money.Money                `json:"gross"`
	Net                   money.Money                `json:"net"`
	Earnings              []EarningLine              `json:"earnings"`
	Deductions            []DeductionLine            `json:"deductions"`
	EmployeeTaxes         []TaxLine                  `json:"employeeTaxes"`
	EmployerTaxes         []TaxLine                  `json:"employerTaxes"`
	Garnishments          []GarnishmentLine          `json:"garnishments"`
	EmployerContributions []EmployerContributionLine `json:"employerContributions"`
	Proration             *ProrationSummary          `json:"proration,omitempty"`
	Trace                 CalculationTrace           `json:"trace"`
	YtdAfter              YtdSnapshot                `json:"ytdAfter"`
}

func (p PaycheckResult) TotalEmployeeTaxes() money.Money {
	var total money.Money
	for _, t := range p.EmployeeTaxes {
		total += t.Amount
	}
	return total
}

func (p PaycheckResult) TotalEmployerTaxes() money.Money {
	var total money.Money
	for _, t := range p.EmployerTaxes {
		total += t.Amount
	}
	return total
}

func (p PaycheckResult) TotalDeductions() money.Money {
	var total money.Money
	for _, d := range p.Deductions {
		total += d.Amount
	}
	return total
}

func (p PaycheckResult) TotalGarnishments() money.Money {
	var total money.Money
	for _, g := range p.Garnishments {
		total += g.Amount
	}
	return total
}

func (p PaycheckResult) TotalPreTaxDeductions() money.Money {
	var total money.Money
	for _, d := range p.Deductions {
		if d.PreTax {
			total += d.Amount
		}
	}
	return total
}

// PaycheckComputation pairs a result with its audit record.
type PaycheckComputation struct {
	Paycheck PaycheckResult `json:"paycheck"`
	Audit    PaycheckAudit  `json:"audit"`
}
