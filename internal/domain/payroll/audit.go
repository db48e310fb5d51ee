package payroll

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"payengine/internal/domain/money"
)

// PaycheckAudit is the retention record for one computation. Its shape is
// versioned by SchemaVersion and does not depend on the trace level.
type PaycheckAudit struct {
	SchemaVersion int       `json:"schemaVersion"`
	EngineVersion string    `json:"engineVersion"`
	ComputedAt    time.Time `json:"computedAt"`

	PaycheckID PaycheckID `json:"paycheckId"`
	PayRunID   PayRunID   `json:"payRunId"`
	EmployerID EmployerID `json:"employerId"`
	EmployeeID EmployeeID `json:"employeeId"`
	PayPeriod  string     `json:"payPeriodId"`
	CheckDate  time.Time  `json:"checkDate"`

	InputHash string `json:"inputHash"`

	AppliedTaxRuleIDs        []string             `json:"appliedTaxRuleIds"`
	AppliedDeductionPlanIDs  []string             `json:"appliedDeductionPlanIds"`
	AppliedGarnishmentOrders []GarnishmentOrderID `json:"appliedGarnishmentOrderIds"`

	BasisTotals map[TaxBasis]money.Money `json:"basisTotals"`

	Gross                      money.Money `json:"gross"`
	TotalEmployeeTaxes         money.Money `json:"totalEmployeeTaxes"`
	TotalEmployerTaxes         money.Money `json:"totalEmployerTaxes"`
	TotalPreTaxDeductions      money.Money `json:"totalPreTaxDeductions"`
	TotalPostTaxDeductions     money.Money `json:"totalPostTaxDeductions"`
	TotalGarnishments          money.Money `json:"totalGarnishments"`
	TotalEmployerContributions money.Money `json:"totalEmployerContributions"`
	Net                        money.Money `json:"net"`
}

const inputHashDomain = "payengine/paycheck-input/v1"

// HashInput returns the hex sha256 of the input's JSON encoding under a
// fixed domain prefix. Map keys are sorted by encoding/json, so equal
// inputs hash equally.
func HashInput(in PaycheckInput) (string, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("encode paycheck input: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(inputHashDomain))
	h.Write([]byte{0})
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func buildAudit(in PaycheckInput, r PaycheckResult, bases map[TaxBasis]money.Money, computedAt time.Time, hash string) PaycheckAudit {
	a := PaycheckAudit{
		SchemaVersion: AuditSchemaVersion,
		EngineVersion: EngineVersion,
		ComputedAt:    computedAt,
		PaycheckID:    r.PaycheckID,
		PayRunID:      r.PayRunID,
		EmployerID:    r.EmployerID,
		EmployeeID:    r.EmployeeID,
		PayPeriod:     in.Period.ID,
		CheckDate:     in.Period.CheckDate,
		InputHash:     hash,
		BasisTotals:   make(map[TaxBasis]money.Money, len(bases)),

		Gross:                  r.Gross,
		TotalEmployeeTaxes:     r.TotalEmployeeTaxes(),
		TotalEmployerTaxes:     r.TotalEmployerTaxes(),
		TotalPreTaxDeductions:  r.TotalPreTaxDeductions(),
		TotalPostTaxDeductions: r.TotalDeductions() - r.TotalPreTaxDeductions(),
		TotalGarnishments:      r.TotalGarnishments(),
		Net:                    r.Net,
	}
	for k, v := range bases {
		a.BasisTotals[k] = v
	}

	rules := map[string]bool{}
	for _, t := range r.EmployeeTaxes {
		rules[t.RuleID] = true
	}
	for _, t := range r.EmployerTaxes {
		rules[t.RuleID] = true
	}
	a.AppliedTaxRuleIDs = sortedKeys(rules)

	plans := map[string]bool{}
	for _, d := range r.Deductions {
		plans[string(d.Code)] = true
	}
	for _, c := range r.EmployerContributions {
		plans[c.Code] = true
		a.TotalEmployerContributions += c.Amount
	}
	a.AppliedDeductionPlanIDs = sortedKeys(plans)

	a.AppliedGarnishmentOrders = make([]GarnishmentOrderID, 0, len(r.Garnishments))
	for _, g := range r.Garnishments {
		a.AppliedGarnishmentOrders = append(a.AppliedGarnishmentOrders, g.OrderID)
	}
	return a
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
