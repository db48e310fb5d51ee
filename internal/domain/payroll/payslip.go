package payroll

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"payengine/internal/domain/money"
)

const payslipDate = "2006-01-02"

// RenderPayslipPDF lays out an A4 payslip for a recorded paycheck.
func RenderPayslipPDF(rec PaycheckRecord) ([]byte, error) {
	p := rec.Computation.Paycheck

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Payslip "+string(p.PaycheckID), false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Payslip")
	if rec.Status != PaycheckStatusIssued {
		pdf.SetTextColor(180, 0, 0)
		pdf.CellFormat(0, 10, statusBanner(rec), "", 0, "R", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Employer: %s    Employee: %s", p.EmployerID, p.EmployeeID))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s to %s    Check date: %s",
		p.Period.StartDate.Format(payslipDate), p.Period.EndDate.Format(payslipDate), p.Period.CheckDate.Format(payslipDate)))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Paycheck: %s", p.PaycheckID))
	pdf.Ln(10)

	earnings := make([][]string, 0, len(p.Earnings))
	for _, e := range p.Earnings {
		rate := ""
		if e.Rate != nil {
			rate = e.Rate.Format()
		}
		earnings = append(earnings, []string{e.Description, e.Units.StringFixed(2), rate, e.Amount.Format()})
	}
	payslipSection(pdf, "Earnings", []string{"Description", "Units", "Rate", "Amount"}, earnings)

	taxes := make([][]string, 0, len(p.EmployeeTaxes))
	for _, t := range p.EmployeeTaxes {
		taxes = append(taxes, []string{t.Description, t.Basis.Format(), "", t.Amount.Format()})
	}
	payslipSection(pdf, "Taxes", []string{"Description", "Taxable", "", "Amount"}, taxes)

	deductions := make([][]string, 0, len(p.Deductions)+len(p.Garnishments))
	for _, d := range p.Deductions {
		kind := "post-tax"
		if d.PreTax {
			kind = "pre-tax"
		}
		deductions = append(deductions, []string{d.Description, kind, "", d.Amount.Format()})
	}
	for _, g := range p.Garnishments {
		deductions = append(deductions, []string{g.Description, string(g.Type), "", g.Amount.Format()})
	}
	payslipSection(pdf, "Deductions", []string{"Description", "Type", "", "Amount"}, deductions)

	if len(p.EmployerContributions) > 0 {
		contributions := make([][]string, 0, len(p.EmployerContributions))
		for _, c := range p.EmployerContributions {
			contributions = append(contributions, []string{c.Description, "", "", c.Amount.Format()})
		}
		payslipSection(pdf, "Employer contributions", []string{"Description", "", "", "Amount"}, contributions)
	}

	pdf.SetFont("Helvetica", "B", 11)
	payslipTotal(pdf, "Gross", p.Gross)
	payslipTotal(pdf, "Taxes", p.TotalEmployeeTaxes())
	payslipTotal(pdf, "Deductions", p.TotalDeductions()+p.TotalGarnishments())
	payslipTotal(pdf, "Net pay", p.Net)

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "", 9)
	var ytdGross money.Money
	for _, amount := range p.YtdAfter.EarningsByCode {
		ytdGross += amount
	}
	pdf.Cell(0, 5, fmt.Sprintf("Year to date (%d) earnings: %s", p.YtdAfter.Year, ytdGross.Format()))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func statusBanner(rec PaycheckRecord) string {
	if rec.Status == PaycheckStatusReversal {
		return "REVERSAL OF " + string(rec.ReversalOf)
	}
	return "VOID"
}

var payslipWidths = []float64{90, 30, 30, 40}

func payslipSection(pdf *gofpdf.Fpdf, title string, header []string, rows [][]string) {
	if len(rows) == 0 {
		return
	}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 7, title)
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "B", 9)
	for i, h := range header {
		pdf.CellFormat(payslipWidths[i], 6, h, "B", 0, cellAlign(i), false, 0, "")
	}
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "", 9)
	for _, row := range rows {
		for i, v := range row {
			pdf.CellFormat(payslipWidths[i], 5, v, "", 0, cellAlign(i), false, 0, "")
		}
		pdf.Ln(5)
	}
	pdf.Ln(3)
}

func payslipTotal(pdf *gofpdf.Fpdf, label string, amount money.Money) {
	pdf.CellFormat(150, 6, label, "", 0, "R", false, 0, "")
	pdf.CellFormat(40, 6, amount.Format(), "", 1, "R", false, 0, "")
}

func cellAlign(col int) string {
	if col == 0 {
		return "L"
	}
	return "R"
}
