package payroll

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payengine/internal/domain/money"
)

func TestLinesCSV(t *testing.T) {
	in := baseInput(Hourly{HourlyRate: money.Dollars(20)})
	in.TimeSlice = TimeSlice{RegularHours: hours("10")}
	in.TaxContext.Federal = []TaxRule{flat("FIT", JurisdictionFederal, BasisFederalTaxable, "0.10")}
	out := compute(t, in, Options{})

	var buf bytes.Buffer
	require.NoError(t, WriteLinesCSV(&buf, out.Paycheck))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "paycheck_id,employee_id,section,code,description,units,rate,basis,amount", lines[0])
	assert.Equal(t, "chk-1,ee-1,earning,HOURLY,Hourly wages,10,20.00,,200.00", lines[1])
	assert.Equal(t, "chk-1,ee-1,employee_tax,FIT,Federal US,,0.1,200.00,20.00", lines[2])
	assert.Equal(t, "chk-1,ee-1,total,GROSS,Gross pay,,,,200.00", lines[3])
	assert.Equal(t, "chk-1,ee-1,total,NET,Net pay,,,,180.00", lines[4])
}

func TestPayslipMarksVoidedPaychecks(t *testing.T) {
	out := compute(t, offCycle(amountEarning("BONUS", money.Dollars(300))), Options{})

	issued, err := RenderPayslipPDF(PaycheckRecord{Computation: out, Status: PaycheckStatusIssued})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(issued, []byte("%PDF")))

	voided, err := RenderPayslipPDF(PaycheckRecord{Computation: out, Status: PaycheckStatusVoided})
	require.NoError(t, err)
	assert.NotEqual(t, len(issued), len(voided))
}
