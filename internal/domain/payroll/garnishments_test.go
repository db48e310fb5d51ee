package payroll

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payengine/internal/domain/money"
)

func withOrders(orders ...GarnishmentOrder) PaycheckInput {
	in := offCycle()
	in.Garnishments = &GarnishmentContext{Orders: orders}
	return in
}

func TestLevyBandSelection(t *testing.T) {
	bands := LevyWithBands{Bands: []LevyBand{
		{ExemptAmount: money.Dollars(600), FilingStatus: FilingSingle},
		{UpTo: moneyPtr(money.Dollars(500)), ExemptAmount: money.Dollars(400), FilingStatus: FilingSingle},
		{ExemptAmount: money.Dollars(900), FilingStatus: FilingMarried},
	}}
	in := withOrders(GarnishmentOrder{OrderID: "levy", Type: GarnishmentFederalTaxLevy, Formula: bands})

	res := computeGarnishments(in, money.Dollars(1000), 0, money.Dollars(100), nil, nil)
	require.Len(t, res.lines, 1)
	assert.Equal(t, money.Dollars(400), res.lines[0].Amount, "upper band exempts 600 of 1000")

	res = computeGarnishments(in, money.Dollars(450), 0, 0, nil, nil)
	require.Len(t, res.lines, 1)
	assert.Equal(t, money.Dollars(50), res.lines[0].Amount, "lower band exempts 400 of 450")

	in.Employee.FilingStatus = FilingHeadOfHousehold
	res = computeGarnishments(in, money.Dollars(1000), 0, 0, nil, nil)
	assert.Empty(t, res.lines, "no band for the filing status")
}

func TestArrearsPaidFirst(t *testing.T) {
	in := withOrders(GarnishmentOrder{
		OrderID:       "cs",
		Type:          GarnishmentChildSupport,
		Formula:       FixedAmountPerPeriod{Amount: money.Dollars(300)},
		ArrearsBefore: moneyPtr(money.Dollars(100)),
	})

	res := computeGarnishments(in, money.Dollars(1000), 0, 0, nil, nil)
	require.Len(t, res.lines, 1)
	line := res.lines[0]
	assert.Equal(t, money.Dollars(100), line.AppliedToArrears)
	assert.Equal(t, money.Dollars(200), line.AppliedToCurrent)

	var applied []GarnishmentApplied
	for _, s := range res.steps {
		if g, ok := s.(GarnishmentApplied); ok {
			applied = append(applied, g)
		}
	}
	require.Len(t, applied, 1)
	require.NotNil(t, applied[0].ArrearsAfterCents)
	assert.Equal(t, money.Money(0), *applied[0].ArrearsAfterCents)
}

func TestOrdersFollowPriorityAndShareThePool(t *testing.T) {
	in := withOrders(
		GarnishmentOrder{OrderID: "late", Type: GarnishmentCreditor, PriorityClass: 2,
			Formula: PercentOfDisposable{Percent: money.MustPercent("0.25")}},
		GarnishmentOrder{OrderID: "first", Type: GarnishmentCreditor, PriorityClass: 1,
			Formula: FixedAmountPerPeriod{Amount: money.Dollars(800)}},
	)

	res := computeGarnishments(in, money.Dollars(1000), 0, 0, nil, nil)
	require.Len(t, res.lines, 2)
	assert.Equal(t, GarnishmentOrderID("first"), res.lines[0].OrderID)
	assert.Equal(t, money.Dollars(800), res.lines[0].Amount)
	assert.Equal(t, GarnishmentOrderID("late"), res.lines[1].OrderID)
	assert.Equal(t, money.Dollars(50), res.lines[1].Amount, "25% of the 200 left in the pool")
}

func TestGarnishmentsNeverExceedNetOfTaxes(t *testing.T) {
	in := withOrders(
		GarnishmentOrder{OrderID: "cs", Type: GarnishmentChildSupport, PriorityClass: 1,
			Formula: PercentOfDisposable{Percent: money.HundredPercent}},
		GarnishmentOrder{OrderID: "cred", Type: GarnishmentCreditor, PriorityClass: 2,
			Formula: FixedAmountPerPeriod{Amount: money.Dollars(50)}},
	)

	res := computeGarnishments(in, money.Dollars(1000), money.Dollars(100), money.Dollars(300), nil, nil)
	require.Len(t, res.lines, 1)
	assert.Equal(t, money.Dollars(600), res.lines[0].Amount)
	assert.Equal(t, money.Dollars(600), sumGarnishments(res.lines))
}

func TestGarnishmentCeilingHoldsAcrossScenarios(t *testing.T) {
	formulas := []GarnishmentFormula{
		PercentOfDisposable{Percent: money.MustPercent("0.65")},
		FixedAmountPerPeriod{Amount: money.Dollars(700)},
		LesserOfPercentOrAmount{Percent: money.MustPercent("0.5"), Amount: money.Dollars(250)},
		LevyWithBands{Bands: []LevyBand{{ExemptAmount: money.Dollars(200)}}},
	}
	types := []GarnishmentType{GarnishmentChildSupport, GarnishmentCreditor, GarnishmentStateTaxLevy, GarnishmentStudentLoan}
	floors := []ProtectedEarningsRule{nil, FixedFloor{Amount: money.Dollars(150)},
		MultipleOfMinWage{HourlyRate: money.Cents(725), Hours: decimal.NewFromInt(30), Multiplier: decimal.NewFromInt(1)}}

	for _, gross := range []money.Money{money.Dollars(500), money.Dollars(1200), money.Cents(333333)} {
		for _, taxes := range []money.Money{0, gross / 5, gross / 2} {
			for i := range formulas {
				var orders []GarnishmentOrder
				for j := range types {
					orders = append(orders, GarnishmentOrder{
						OrderID:           GarnishmentOrderID(string(rune('a' + j))),
						Type:              types[j],
						PriorityClass:     j,
						Formula:           formulas[(i+j)%len(formulas)],
						ProtectedEarnings: floors[(i+j)%len(floors)],
					})
				}
				in := withOrders(orders...)
				preTax := gross / 10
				support := DefaultSupportCapContext()

				res := computeGarnishments(in, gross, preTax, taxes, nil, &support)
				total := sumGarnishments(res.lines)
				require.LessOrEqual(t, int64(total), int64(gross-preTax-taxes))
				for _, l := range res.lines {
					require.GreaterOrEqual(t, int64(l.Amount), int64(0))
				}
				for _, s := range res.steps {
					if p, ok := s.(ProtectedEarningsApplied); ok {
						require.LessOrEqual(t, int64(p.AdjustedCents), int64(p.RequestedCents))
					}
				}
			}
		}
	}
}

func TestOrderCaps(t *testing.T) {
	order := GarnishmentOrder{
		OrderID:     "ord",
		Type:        GarnishmentCreditor,
		Formula:     FixedAmountPerPeriod{Amount: money.Dollars(200)},
		LifetimeCap: moneyPtr(money.Dollars(1000)),
		PaidToDate:  moneyPtr(money.Dollars(950)),
	}
	res := computeGarnishments(withOrders(order), money.Dollars(1000), 0, 0, nil, nil)
	require.Len(t, res.lines, 1)
	assert.Equal(t, money.Dollars(50), res.lines[0].Amount, "lifetime cap against paid-to-date")

	order.PaidToDate = nil
	in := withOrders(order)
	in.PriorYtd.DeductionsByCode["ord"] = money.Dollars(990)
	res = computeGarnishments(in, money.Dollars(1000), 0, 0, nil, nil)
	require.Len(t, res.lines, 1)
	assert.Equal(t, money.Dollars(10), res.lines[0].Amount, "lifetime cap falls back to YTD")

	order.LifetimeCap = nil
	order.AnnualCap = moneyPtr(money.Dollars(1000))
	in = withOrders(order)
	in.PriorYtd.DeductionsByCode["ord"] = money.Dollars(1000)
	res = computeGarnishments(in, money.Dollars(1000), 0, 0, nil, nil)
	assert.Empty(t, res.lines, "annual cap reached")
}

func TestPlanPerPeriodCapAppliesToOrder(t *testing.T) {
	in := withOrders(GarnishmentOrder{
		OrderID: "ord",
		PlanID:  "WAGE_GARN",
		Type:    GarnishmentCreditor,
		Formula: PercentOfDisposable{Percent: money.MustPercent("0.25")},
	})
	plans := map[DeductionCode]DeductionPlan{
		"WAGE_GARN": {ID: "WAGE_GARN", Name: "Wage garnishment", Kind: KindGarnishment, PerPeriodCap: moneyPtr(money.Dollars(100))},
	}

	res := computeGarnishments(in, money.Dollars(1000), 0, 0, plans, nil)
	require.Len(t, res.lines, 1)
	assert.Equal(t, money.Dollars(100), res.lines[0].Amount)
	assert.Equal(t, "Wage garnishment", res.lines[0].Description)
}

func TestMinimumWageFloor(t *testing.T) {
	in := withOrders(GarnishmentOrder{
		OrderID: "ord",
		Type:    GarnishmentCreditor,
		Formula: PercentOfDisposable{Percent: money.HundredPercent},
		ProtectedEarnings: MultipleOfMinWage{
			HourlyRate: money.Cents(725),
			Hours:      decimal.NewFromInt(30),
			Multiplier: decimal.NewFromInt(1),
		},
	})

	res := computeGarnishments(in, money.Dollars(300), 0, 0, nil, nil)
	require.Len(t, res.lines, 1)
	assert.Equal(t, money.Cents(8250), res.lines[0].Amount)
}

func TestFloorBelowRequestLeavesAmountAlone(t *testing.T) {
	in := withOrders(GarnishmentOrder{
		OrderID:           "ord",
		Type:              GarnishmentCreditor,
		Formula:           FixedAmountPerPeriod{Amount: money.Dollars(10)},
		ProtectedEarnings: FixedFloor{Amount: money.Dollars(100)},
	})

	res := computeGarnishments(in, money.Dollars(1000), 0, 0, nil, nil)
	require.Len(t, res.lines, 1)
	assert.Equal(t, money.Dollars(10), res.lines[0].Amount)
	assert.Contains(t, res.steps, TraceStep(ProtectedEarningsApplied{
		OrderID:        "ord",
		RequestedCents: money.Dollars(10),
		AdjustedCents:  money.Dollars(10),
		FloorCents:     money.Dollars(100),
	}), "an order with a floor always reports it")

	in.Garnishments.Orders[0].ProtectedEarnings = nil
	res = computeGarnishments(in, money.Dollars(1000), 0, 0, nil, nil)
	for _, s := range res.steps {
		_, isFloor := s.(ProtectedEarningsApplied)
		assert.False(t, isFloor, "no floor, no step")
	}
}

func TestGarnishmentPlansWithoutOrders(t *testing.T) {
	in := offCycle()
	plans := map[DeductionCode]DeductionPlan{
		"LEVY": {ID: "LEVY", Name: "County levy", Kind: KindGarnishment, EmployeeRate: ptrPercent("0.10")},
		"401K": {ID: "401K", Kind: KindPretaxRetirement, EmployeeRate: ptrPercent("0.05")},
	}

	res := computeGarnishments(in, money.Dollars(1000), money.Dollars(50), 0, plans, nil)
	require.Len(t, res.lines, 1)
	line := res.lines[0]
	assert.Equal(t, GarnishmentOrderID("LEVY"), line.OrderID)
	assert.Equal(t, GarnishmentOther, line.Type)
	assert.Equal(t, money.Dollars(100), line.Amount)
}
