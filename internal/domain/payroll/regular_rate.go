package payroll

import (
	"github.com/shopspring/decimal"

	"payengine/internal/domain/money"
)

var halfTime = decimal.RequireFromString("0.5")

// AdditionalOvertimePremiumForBonus returns the extra half-time owed on a
// nondiscretionary bonus when the bonus raises the regular rate in a week
// with overtime: 0.5 * (bonus / hours worked) * overtime hours.
func AdditionalOvertimePremiumForBonus(in PaycheckInput, earnings []EarningLine) money.Money {
	if _, ok := in.Employee.Compensation.(Hourly); !ok {
		return 0
	}
	ot := in.TimeSlice.OvertimeHours
	total := in.TimeSlice.TotalHours()
	if !ot.IsPositive() || !total.IsPositive() {
		return 0
	}
	bonus := sumEarnings(earnings, func(l EarningLine) bool { return l.Category == CategoryBonus })
	if bonus <= 0 {
		return 0
	}
	extra := decimal.NewFromInt(int64(bonus)).Div(total).Mul(halfTime).Mul(ot)
	return money.Money(extra.Truncate(0).IntPart())
}

func bonusPremiumLine(in PaycheckInput, premium money.Money) EarningLine {
	ot := in.TimeSlice.OvertimeHours
	rate := money.Money(decimal.NewFromInt(int64(premium)).Div(ot).Truncate(0).IntPart())
	return EarningLine{
		Code:        CodeOTBonusPremium,
		Category:    CategoryOvertime,
		Description: "Additional overtime premium on bonus",
		Units:       ot,
		Rate:        &rate,
		Amount:      premium,
	}
}
