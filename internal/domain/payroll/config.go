package payroll

import (
	"time"

	"github.com/shopspring/decimal"

	"payengine/internal/domain/money"
)

// EarningConfigRepository resolves employer earning definitions.
type EarningConfigRepository interface {
	FindByEmployerAndCode(employerID EmployerID, code EarningCode) (EarningDefinition, bool)
}

// DeductionConfigRepository lists the deduction plans an employer offers.
type DeductionConfigRepository interface {
	FindPlansForEmployer(employerID EmployerID) []DeductionPlan
}

type noEarningConfig struct{}

func (noEarningConfig) FindByEmployerAndCode(EmployerID, EarningCode) (EarningDefinition, bool) {
	return EarningDefinition{}, false
}

type noDeductionConfig struct{}

func (noDeductionConfig) FindPlansForEmployer(EmployerID) []DeductionPlan { return nil }

// StaticEarningConfig serves definitions from memory, keyed by code for every
// employer.
type StaticEarningConfig map[EarningCode]EarningDefinition

func (s StaticEarningConfig) FindByEmployerAndCode(_ EmployerID, code EarningCode) (EarningDefinition, bool) {
	def, ok := s[code]
	return def, ok
}

// StaticDeductionConfig returns the same plans for every employer.
type StaticDeductionConfig []DeductionPlan

func (s StaticDeductionConfig) FindPlansForEmployer(EmployerID) []DeductionPlan {
	out := make([]DeductionPlan, len(s))
	copy(out, s)
	return out
}

type OvertimePolicy struct {
	DefaultMultiplier decimal.Decimal
}

var DefaultOvertimePolicy = OvertimePolicy{DefaultMultiplier: decimal.RequireFromString("1.5")}

type FicaThresholds struct {
	Household      money.Money
	ElectionWorker money.Money
}

// Options are the per-call knobs of ComputePaycheck. The zero value is usable.
type Options struct {
	ComputedAt            time.Time
	TraceLevel            TraceLevel
	EarningConfig         EarningConfigRepository
	DeductionConfig       DeductionConfigRepository
	OvertimePolicy        *OvertimePolicy
	EmployerContributions []EmployerContributionLine
	StrictYtdYear         bool
	SupportCap            *SupportCapContext
	FicaThresholds        *FicaThresholds
	ProrationStrategy     ProrationStrategy
}

func (o Options) withDefaults() Options {
	if o.TraceLevel == "" {
		o.TraceLevel = TraceAudit
	}
	if o.EarningConfig == nil {
		o.EarningConfig = noEarningConfig{}
	}
	if o.DeductionConfig == nil {
		o.DeductionConfig = noDeductionConfig{}
	}
	if o.OvertimePolicy == nil {
		p := DefaultOvertimePolicy
		o.OvertimePolicy = &p
	}
	if o.FicaThresholds == nil {
		o.FicaThresholds = &FicaThresholds{
			Household:      DefaultHouseholdFicaThreshold,
			ElectionWorker: DefaultElectionWorkerFicaThreshold,
		}
	}
	if o.ProrationStrategy == nil {
		o.ProrationStrategy = CalendarDays{}
	}
	return o
}
