package payroll

import (
	"io"

	"github.com/gocarina/gocsv"
)

// Line sections in a CSV export.
const (
	SectionEarning              = "earning"
	SectionEmployeeTax          = "employee_tax"
	SectionEmployerTax          = "employer_tax"
	SectionDeduction            = "deduction"
	SectionGarnishment          = "garnishment"
	SectionEmployerContribution = "employer_contribution"
	SectionTotal                = "total"
)

// LineRow is one paycheck line flattened for spreadsheets. Amounts are
// dollars with two decimals.
type LineRow struct {
	PaycheckID  string `csv:"paycheck_id"`
	EmployeeID  string `csv:"employee_id"`
	Section     string `csv:"section"`
	Code        string `csv:"code"`
	Description string `csv:"description"`
	Units       string `csv:"units"`
	Rate        string `csv:"rate"`
	Basis       string `csv:"basis"`
	Amount      string `csv:"amount"`
}

// Lines flattens a paycheck into rows, ending with the gross and net totals.
func Lines(p PaycheckResult) []LineRow {
	row := func(section, code, description string) LineRow {
		return LineRow{
			PaycheckID:  string(p.PaycheckID),
			EmployeeID:  string(p.EmployeeID),
			Section:     section,
			Code:        code,
			Description: description,
		}
	}

	var rows []LineRow
	for _, e := range p.Earnings {
		r := row(SectionEarning, string(e.Code), e.Description)
		r.Units = e.Units.String()
		if e.Rate != nil {
			r.Rate = e.Rate.String()
		}
		r.Amount = e.Amount.String()
		rows = append(rows, r)
	}
	rows = append(rows, taxRows(row, SectionEmployeeTax, p.EmployeeTaxes)...)
	rows = append(rows, taxRows(row, SectionEmployerTax, p.EmployerTaxes)...)
	for _, d := range p.Deductions {
		r := row(SectionDeduction, string(d.Code), d.Description)
		r.Amount = d.Amount.String()
		rows = append(rows, r)
	}
	for _, g := range p.Garnishments {
		r := row(SectionGarnishment, string(g.OrderID), g.Description)
		r.Amount = g.Amount.String()
		rows = append(rows, r)
	}
	for _, c := range p.EmployerContributions {
		r := row(SectionEmployerContribution, c.Code, c.Description)
		r.Amount = c.Amount.String()
		rows = append(rows, r)
	}

	gross := row(SectionTotal, "GROSS", "Gross pay")
	gross.Amount = p.Gross.String()
	net := row(SectionTotal, "NET", "Net pay")
	net.Amount = p.Net.String()
	return append(rows, gross, net)
}

func taxRows(row func(section, code, description string) LineRow, section string, lines []TaxLine) []LineRow {
	rows := make([]LineRow, 0, len(lines))
	for _, t := range lines {
		r := row(section, t.RuleID, t.Description)
		if t.Rate != nil {
			r.Rate = t.Rate.String()
		}
		r.Basis = t.Basis.String()
		r.Amount = t.Amount.String()
		rows = append(rows, r)
	}
	return rows
}

// WriteLinesCSV writes the lines of every paycheck with a single header.
func WriteLinesCSV(w io.Writer, paychecks ...PaycheckResult) error {
	var rows []LineRow
	for _, p := range paychecks {
		rows = append(rows, Lines(p)...)
	}
	return gocsv.Marshal(rows, w)
}
