package payroll

import (
	"time"

	"github.com/shopspring/decimal"

	"payengine/internal/domain/money"
)

// Proration is a worked/total ratio kept as integers so that applying it to
// cents floors exactly.
type Proration struct {
	Worked int64
	Total  int64
}

func (p Proration) Fraction() decimal.Decimal {
	if p.Total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(p.Worked).Div(decimal.NewFromInt(p.Total))
}

func (p Proration) Apply(full money.Money) money.Money {
	if p.Total == 0 {
		return 0
	}
	return money.Money(floorDiv(int64(full)*p.Worked, p.Total))
}

// ProrationStrategy decides how much of a salaried period an employee worked
// given hire and termination dates. ok is false when the full period applies.
type ProrationStrategy interface {
	Name() string
	Compute(period PayPeriod, hire, termination *time.Time) (p Proration, ok bool)
}

type CalendarDays struct{}

type Workdays struct{}

type ThirtyDayMonth struct{}

func (CalendarDays) Name() string   { return "CalendarDays" }
func (Workdays) Name() string       { return "Workdays" }
func (ThirtyDayMonth) Name() string { return "ThirtyDayMonth" }

func (CalendarDays) Compute(period PayPeriod, hire, termination *time.Time) (Proration, bool) {
	start, end, partial := workedRange(period, hire, termination)
	if !partial {
		return Proration{}, false
	}
	total := daysInclusive(period.StartDate, period.EndDate)
	return Proration{Worked: daysInclusive(start, end), Total: total}, true
}

func (Workdays) Compute(period PayPeriod, hire, termination *time.Time) (Proration, bool) {
	start, end, partial := workedRange(period, hire, termination)
	if !partial {
		return Proration{}, false
	}
	return Proration{
		Worked: weekdaysInclusive(start, end),
		Total:  weekdaysInclusive(period.StartDate, period.EndDate),
	}, true
}

func (ThirtyDayMonth) Compute(period PayPeriod, hire, termination *time.Time) (Proration, bool) {
	start, end, partial := workedRange(period, hire, termination)
	if !partial {
		return Proration{}, false
	}
	worked := daysInclusive(start, end)
	if worked > 30 {
		worked = 30
	}
	return Proration{Worked: worked, Total: 30}, true
}

// ProrationStrategyByName maps a configured name to a strategy, defaulting to
// CalendarDays.
func ProrationStrategyByName(name string) ProrationStrategy {
	switch name {
	case "Workdays", "WORKDAYS":
		return Workdays{}
	case "ThirtyDayMonth", "THIRTY_DAY_MONTH":
		return ThirtyDayMonth{}
	default:
		return CalendarDays{}
	}
}

// workedRange clips the period to the employment dates. An empty range is
// returned as end before start, which counts as zero days.
func workedRange(period PayPeriod, hire, termination *time.Time) (start, end time.Time, partial bool) {
	start, end = dateOnly(period.StartDate), dateOnly(period.EndDate)
	if hire != nil {
		if h := dateOnly(*hire); h.After(start) {
			start = h
			partial = true
		}
	}
	if termination != nil {
		if t := dateOnly(*termination); t.Before(end) {
			end = t
			partial = true
		}
	}
	return start, end, partial
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysInclusive(start, end time.Time) int64 {
	s, e := dateOnly(start), dateOnly(end)
	if e.Before(s) {
		return 0
	}
	return int64(e.Sub(s).Hours()/24) + 1
}

func weekdaysInclusive(start, end time.Time) int64 {
	var n int64
	for d := dateOnly(start); !d.After(dateOnly(end)); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n++
		}
	}
	return n
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// SalaryAllocation spreads an annual salary evenly over a pay schedule, giving
// the first Remainder periods one extra cent so the year sums exactly.
type SalaryAllocation struct {
	Base           money.Money
	Remainder      int64
	PeriodsPerYear int
}

func AllocateSalary(annual money.Money, periodsPerYear int) SalaryAllocation {
	if periodsPerYear <= 0 {
		return SalaryAllocation{Base: annual, PeriodsPerYear: 1}
	}
	n := int64(periodsPerYear)
	base := floorDiv(int64(annual), n)
	return SalaryAllocation{
		Base:           money.Money(base),
		Remainder:      int64(annual) - base*n,
		PeriodsPerYear: periodsPerYear,
	}
}

// ForPeriod returns the amount for a 1-based sequence. Sequences outside the
// schedule get the plain base amount.
func (a SalaryAllocation) ForPeriod(seq int) money.Money {
	if seq < 1 || seq > a.PeriodsPerYear {
		return a.Base
	}
	if int64(seq) <= a.Remainder {
		return a.Base + 1
	}
	return a.Base
}
