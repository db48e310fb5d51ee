package payroll

import "payengine/internal/domain/money"

// TipCreditMakeup returns the amount needed to lift a tipped hourly employee
// to the jurisdiction minimum wage for the hours worked. It is never negative.
//
// When the jurisdiction sets a tipped cash minimum, tips count toward the
// minimum but cash wages must still reach the tipped cash floor. Without one,
// tips earn no credit and cash wages alone must reach the minimum.
func TipCreditMakeup(in PaycheckInput, earnings []EarningLine) money.Money {
	emp := in.Employee
	if !emp.IsTippedEmployee || emp.LaborStandards == nil {
		return 0
	}
	if _, ok := emp.Compensation.(Hourly); !ok {
		return 0
	}
	hours := in.TimeSlice.TotalHours()
	if !hours.IsPositive() {
		return 0
	}
	std := emp.LaborStandards
	required := mulHours(std.MinimumWage, hours)

	cash := sumEarnings(earnings, func(l EarningLine) bool {
		return l.Category != CategoryTips && l.Category != CategoryImputed
	})
	tips := sumEarnings(earnings, func(l EarningLine) bool { return l.Category == CategoryTips })

	if std.TippedCashMinimum == nil {
		return (required - cash).NonNegative()
	}
	shortfall := required - (cash + tips)
	cashFloor := mulHours(*std.TippedCashMinimum, hours) - cash
	return shortfall.Max(cashFloor).NonNegative()
}

// ApplyTipCreditMakeup appends a TIP_MAKEUP line when one is owed and returns
// the resulting lines. The input slice is not modified.
func ApplyTipCreditMakeup(in PaycheckInput, earnings []EarningLine) []EarningLine {
	makeup := TipCreditMakeup(in, earnings)
	out := make([]EarningLine, len(earnings), len(earnings)+1)
	copy(out, earnings)
	if makeup <= 0 {
		return out
	}
	return append(out, EarningLine{
		Code:        CodeTipMakeup,
		Category:    CategoryRegular,
		Description: "Tip credit make-up",
		Units:       in.TimeSlice.TotalHours(),
		Amount:      makeup,
	})
}
