package payroll

import (
	"sort"

	"github.com/shopspring/decimal"

	"payengine/internal/domain/money"
)

type garnishmentsResult struct {
	lines []GarnishmentLine
	steps []TraceStep
}

// garnishmentPool names the disposable-income definition an order draws from.
type garnishmentPool int

const (
	// poolAfterPreTax is gross less pre-tax deductions.
	poolAfterPreTax garnishmentPool = iota
	// poolAfterTaxes is gross less pre-tax deductions and employee taxes.
	poolAfterTaxes
)

func poolFor(t GarnishmentType) garnishmentPool {
	switch t {
	case GarnishmentChildSupport, GarnishmentFederalTaxLevy, GarnishmentStateTaxLevy:
		return poolAfterPreTax
	default:
		return poolAfterTaxes
	}
}

// SortOrders returns orders by ascending priority class, then sequence, then id.
func SortOrders(orders []GarnishmentOrder) []GarnishmentOrder {
	out := make([]GarnishmentOrder, len(orders))
	copy(out, orders)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.PriorityClass != b.PriorityClass {
			return a.PriorityClass < b.PriorityClass
		}
		if a.SequenceWithinClass != b.SequenceWithinClass {
			return a.SequenceWithinClass < b.SequenceWithinClass
		}
		return a.OrderID < b.OrderID
	})
	return out
}

type garnishmentCalc struct {
	in         PaycheckInput
	gross      money.Money
	preTax     money.Money
	taxes      money.Money
	plans      map[DeductionCode]DeductionPlan
	supportCap *SupportCapContext

	used     map[garnishmentPool]money.Money
	withheld money.Money
	res      garnishmentsResult
}

func computeGarnishments(
	in PaycheckInput,
	gross, preTax, employeeTaxes money.Money,
	plans map[DeductionCode]DeductionPlan,
	supportCap *SupportCapContext,
) garnishmentsResult {
	c := &garnishmentCalc{
		in:         in,
		gross:      gross,
		preTax:     preTax,
		taxes:      employeeTaxes,
		plans:      plans,
		supportCap: supportCap,
		used:       map[garnishmentPool]money.Money{},
	}
	orders := in.garnishmentOrders()
	if len(orders) == 0 {
		c.fromPlans()
		return c.res
	}
	c.fromOrders(SortOrders(orders))
	return c.res
}

func (c *garnishmentCalc) base(p garnishmentPool) money.Money {
	if p == poolAfterPreTax {
		return c.gross - c.preTax
	}
	return c.gross - c.preTax - c.taxes
}

// ceiling is what may still be withheld without breaching
// gross - pre-tax - employee taxes across all orders.
func (c *garnishmentCalc) ceiling() money.Money {
	return (c.gross - c.preTax - c.taxes - c.withheld).NonNegative()
}

func (c *garnishmentCalc) fromOrders(orders []GarnishmentOrder) {
	support := c.supportAllocation(orders)
	netForFloor := c.gross - c.preTax - c.taxes

	for _, o := range orders {
		pool := poolFor(o.Type)
		base := c.base(pool)
		before := (base - c.used[pool]).NonNegative()

		taxesInBase := money.Money(0)
		if pool == poolAfterTaxes {
			taxesInBase = c.taxes
		}
		c.res.steps = append(c.res.steps, DisposableIncomeComputed{
			OrderID:                   o.OrderID,
			GrossCents:                c.gross,
			MandatoryPreTaxCents:      c.preTax,
			EmployeeTaxCents:          taxesInBase,
			BaseDisposableCents:       base,
			NetForProtectedFloorCents: netForFloor,
		})

		requested := requestedAmount(o.Formula, before, c.in.Employee.FilingStatus)
		if amt, ok := support[o.OrderID]; ok {
			requested = amt
		}
		requested = requested.NonNegative()
		amount := requested.Min(before)

		var floorPtr *money.Money
		var constrained bool
		if floor, ok := protectedFloor(o.ProtectedEarnings); ok {
			floorPtr = &floor
			maxByFloor := (netForFloor - c.withheld - floor).NonNegative()
			adjusted := amount.Min(maxByFloor)
			c.res.steps = append(c.res.steps, ProtectedEarningsApplied{
				OrderID:        o.OrderID,
				RequestedCents: amount,
				AdjustedCents:  adjusted,
				FloorCents:     floor,
			})
			constrained = adjusted < amount
			amount = adjusted
		}

		plan, hasPlan := c.plans[DeductionCode(o.PlanID)]
		capped := c.applyOrderCaps(o, plan, hasPlan, amount)
		amount = capped.amount.Min(c.ceiling())
		if amount <= 0 {
			continue
		}

		c.used[pool] += amount
		c.withheld += amount

		desc := o.description()
		if hasPlan && plan.Name != "" {
			desc = plan.Name
		}
		toArrears, arrearsAfter := splitArrears(amount, o.ArrearsBefore)
		line := GarnishmentLine{
			OrderID:          o.OrderID,
			PlanID:           o.PlanID,
			Type:             o.Type,
			Description:      desc,
			Amount:           amount,
			AppliedToArrears: toArrears,
			AppliedToCurrent: amount - toArrears,
		}
		c.res.lines = append(c.res.lines, line)

		effects := DefaultEffects(KindGarnishment)
		var rate *money.Percent
		if hasPlan {
			effects = plan.Effects()
			rate = plan.EmployeeRate
		}
		c.res.steps = append(c.res.steps,
			GarnishmentApplied{
				OrderID:                   o.OrderID,
				Type:                      o.Type,
				Description:               desc,
				RequestedCents:            requested,
				AppliedCents:              amount,
				DisposableBeforeCents:     before,
				DisposableAfterCents:      before - amount,
				ProtectedFloorCents:       floorPtr,
				ProtectedFloorConstrained: constrained,
				ArrearsBeforeCents:        o.ArrearsBefore,
				ArrearsAfterCents:         arrearsAfter,
				AppliedToArrearsCents:     toArrears,
				AppliedToCurrentCents:     amount - toArrears,
			},
			DeductionApplied{
				Code:        line.Code(),
				Description: desc,
				Basis:       c.gross,
				Rate:        rate,
				Amount:      amount,
				CappedAt:    capped.cappedAt,
				Effects:     effects,
			},
		)
	}
}

// applyOrderCaps enforces the annual cap (the order's, else its plan's), the
// lifetime cap and the plan's per-period cap.
func (c *garnishmentCalc) applyOrderCaps(o GarnishmentOrder, plan DeductionPlan, hasPlan bool, amount money.Money) capResult {
	ytd := c.in.PriorYtd.Deductions(DeductionCode(o.OrderID))
	annual := o.AnnualCap
	var perPeriod *money.Money
	if hasPlan {
		if annual == nil {
			annual = plan.AnnualCap
		}
		perPeriod = plan.PerPeriodCap
	}
	res := applyAnnualAndPeriodCaps(amount, ytd, annual, nil)

	if o.LifetimeCap != nil {
		paid := ytd
		if o.PaidToDate != nil {
			paid = *o.PaidToDate
		}
		remaining := (*o.LifetimeCap - paid).NonNegative()
		if res.amount > remaining {
			res = capResult{amount: remaining, cappedAt: o.LifetimeCap}
		}
	}
	if perPeriod != nil && res.amount > *perPeriod {
		res = capResult{amount: *perPeriod, cappedAt: perPeriod}
	}
	return res
}

// supportAllocation limits the combined child support request to the CCPA
// rate, further limited by the state rate, scaling every order in
// proportion to its request. It returns nil when no cap applies.
func (c *garnishmentCalc) supportAllocation(orders []GarnishmentOrder) map[GarnishmentOrderID]money.Money {
	if c.supportCap == nil {
		return nil
	}
	var support []GarnishmentOrder
	for _, o := range orders {
		if o.Type == GarnishmentChildSupport {
			support = append(support, o)
		}
	}
	if len(support) == 0 {
		return nil
	}

	disposable := c.base(poolAfterPreTax).NonNegative()
	requests := make([]money.Money, len(support))
	var total money.Money
	for i, o := range support {
		requests[i] = requestedAmount(o.Formula, disposable, c.in.Employee.FilingStatus).NonNegative()
		total += requests[i]
	}

	ccpaCap := disposable.MulPercentFloor(c.supportCap.ccpaRate())
	effective := ccpaCap
	var stateCap *money.Money
	if c.supportCap.StateCapRate != nil {
		sc := disposable.MulPercentFloor(*c.supportCap.StateCapRate)
		stateCap = &sc
		effective = effective.Min(sc)
	}

	out := make(map[GarnishmentOrderID]money.Money, len(support))
	applied := total
	if total > effective && total > 0 {
		applied = effective
		var assigned money.Money
		for i, o := range support {
			if i == len(support)-1 {
				out[o.OrderID] = effective - assigned
				break
			}
			share := decimal.NewFromInt(int64(requests[i])).
				Mul(decimal.NewFromInt(int64(effective))).
				Div(decimal.NewFromInt(int64(total))).
				Floor()
			out[o.OrderID] = money.Money(share.IntPart())
			assigned += out[o.OrderID]
		}
	} else {
		for i, o := range support {
			out[o.OrderID] = requests[i]
		}
	}

	c.res.steps = append(c.res.steps, SupportCapApplied{
		JurisdictionCode:    c.supportCap.JurisdictionCode,
		CcpaCapCents:        ccpaCap,
		StateCapCents:       stateCap,
		EffectiveCapCents:   effective,
		TotalRequestedCents: total,
		TotalAppliedCents:   applied,
	})
	return out
}

// fromPlans withholds GARNISHMENT-kind deduction plans when the input carries
// no orders. Each plan draws against gross less pre-tax deductions.
func (c *garnishmentCalc) fromPlans() {
	var plans []DeductionPlan
	for _, p := range c.plans {
		if p.Kind == KindGarnishment {
			plans = append(plans, p)
		}
	}
	if len(plans) == 0 {
		return
	}
	plans = SortPlans(plans)
	before := c.base(poolAfterPreTax)

	for _, p := range plans {
		var raw money.Money
		if p.EmployeeRate != nil {
			raw += c.gross.MulPercentFloor(*p.EmployeeRate)
		}
		if p.EmployeeFlat != nil {
			raw += *p.EmployeeFlat
		}
		if raw == 0 {
			continue
		}
		code := DeductionCode(p.ID)
		capped := applyAnnualAndPeriodCaps(raw, c.in.PriorYtd.Deductions(code), p.AnnualCap, p.PerPeriodCap)
		remaining := (before - c.used[poolAfterPreTax]).NonNegative()
		amount := capped.amount.Min(remaining).Min(c.ceiling())
		if amount <= 0 {
			continue
		}
		c.used[poolAfterPreTax] += amount
		c.withheld += amount

		typ := p.GarnishmentType
		if typ == "" {
			typ = GarnishmentOther
		}
		desc := nonEmpty(p.Name, p.ID)
		c.res.lines = append(c.res.lines, GarnishmentLine{
			OrderID:          GarnishmentOrderID(p.ID),
			PlanID:           p.ID,
			Type:             typ,
			Description:      desc,
			Amount:           amount,
			AppliedToCurrent: amount,
		})
		c.res.steps = append(c.res.steps, DeductionApplied{
			Code:        code,
			Description: desc,
			Basis:       c.gross,
			Rate:        p.EmployeeRate,
			Amount:      amount,
			CappedAt:    capped.cappedAt,
			Effects:     p.Effects(),
		})
	}
}

// requestedAmount evaluates a formula against the disposable income
// available to the order.
func requestedAmount(f GarnishmentFormula, disposable money.Money, status FilingStatus) money.Money {
	switch f := f.(type) {
	case PercentOfDisposable:
		return disposable.MulPercentFloor(f.Percent)
	case FixedAmountPerPeriod:
		return f.Amount
	case LesserOfPercentOrAmount:
		return disposable.MulPercentFloor(f.Percent).Min(f.Amount)
	case LevyWithBands:
		band, ok := selectLevyBand(f.Bands, disposable, status)
		if !ok {
			return 0
		}
		return (disposable - band.ExemptAmount).NonNegative()
	default:
		return 0
	}
}

// selectLevyBand picks the first band, by ascending ceiling, whose ceiling
// covers disposable. Income above every ceiling falls in the highest band.
func selectLevyBand(bands []LevyBand, disposable money.Money, status FilingStatus) (LevyBand, bool) {
	var candidates []LevyBand
	for _, b := range bands {
		if b.FilingStatus == "" || b.FilingStatus == status {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return LevyBand{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].UpTo, candidates[j].UpTo
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
	for _, b := range candidates {
		if b.UpTo == nil || *b.UpTo >= disposable {
			return b, true
		}
	}
	return candidates[len(candidates)-1], true
}

func protectedFloor(r ProtectedEarningsRule) (money.Money, bool) {
	switch r := r.(type) {
	case FixedFloor:
		return r.Amount, true
	case MultipleOfMinWage:
		f := decimal.NewFromInt(int64(r.HourlyRate)).Mul(r.Hours).Mul(r.Multiplier)
		return money.Money(f.Truncate(0).IntPart()), true
	default:
		return 0, false
	}
}

// splitArrears applies amount to outstanding arrears first.
func splitArrears(amount money.Money, arrearsBefore *money.Money) (money.Money, *money.Money) {
	if arrearsBefore == nil {
		return 0, nil
	}
	var toArrears money.Money
	if *arrearsBefore > 0 {
		toArrears = amount.Min(*arrearsBefore)
	}
	after := (*arrearsBefore - toArrears).NonNegative()
	return toArrears, &after
}

func sumGarnishments(lines []GarnishmentLine) money.Money {
	var total money.Money
	for _, l := range lines {
		total += l.Amount
	}
	return total
}
