package payroll

import "payengine/internal/domain/money"

// EngineVersion is stamped on every audit record.
const EngineVersion = "1.4.0"

const AuditSchemaVersion = 1

const (
	FrequencyWeekly      PayFrequency = "WEEKLY"
	FrequencyBiweekly    PayFrequency = "BIWEEKLY"
	FrequencySemiMonthly PayFrequency = "SEMI_MONTHLY"
	FrequencyMonthly     PayFrequency = "MONTHLY"
	FrequencyQuarterly   PayFrequency = "QUARTERLY"
	FrequencyAnnual      PayFrequency = "ANNUAL"

	FilingSingle          FilingStatus = "SINGLE"
	FilingMarried         FilingStatus = "MARRIED"
	FilingHeadOfHousehold FilingStatus = "HEAD_OF_HOUSEHOLD"

	EmploymentRegular        EmploymentType = "REGULAR"
	EmploymentHousehold      EmploymentType = "HOUSEHOLD"
	EmploymentElectionWorker EmploymentType = "ELECTION_WORKER"

	CompensationHourly   = "HOURLY"
	CompensationSalaried = "SALARIED"
)

type EarningCategory string

const (
	CategoryRegular      EarningCategory = "REGULAR"
	CategoryOvertime     EarningCategory = "OVERTIME"
	CategoryBonus        EarningCategory = "BONUS"
	CategorySupplemental EarningCategory = "SUPPLEMENTAL"
	CategoryHoliday      EarningCategory = "HOLIDAY"
	CategoryTips         EarningCategory = "TIPS"
	CategoryImputed      EarningCategory = "IMPUTED"
)

// Earning codes produced by the engine itself.
const (
	CodeHourly         EarningCode = "HOURLY"
	CodeOvertime       EarningCode = "OVERTIME"
	CodeBase           EarningCode = "BASE"
	CodeOTBonusPremium EarningCode = "OT_BONUS_PREMIUM"
	CodeTipMakeup      EarningCode = "TIP_MAKEUP"
)

type TaxBasis string

const (
	BasisGross               TaxBasis = "Gross"
	BasisFederalTaxable      TaxBasis = "FederalTaxable"
	BasisStateTaxable        TaxBasis = "StateTaxable"
	BasisSocialSecurityWages TaxBasis = "SocialSecurityWages"
	BasisMedicareWages       TaxBasis = "MedicareWages"
	BasisSupplementalWages   TaxBasis = "SupplementalWages"
	BasisFutaWages           TaxBasis = "FutaWages"
)

// AllBases lists bases in the order they are reported.
var AllBases = []TaxBasis{
	BasisGross,
	BasisFederalTaxable,
	BasisStateTaxable,
	BasisSocialSecurityWages,
	BasisMedicareWages,
	BasisSupplementalWages,
	BasisFutaWages,
}

func (b TaxBasis) isFica() bool {
	return b == BasisSocialSecurityWages || b == BasisMedicareWages
}

type JurisdictionType string

const (
	JurisdictionFederal JurisdictionType = "FEDERAL"
	JurisdictionState   JurisdictionType = "STATE"
	JurisdictionLocal   JurisdictionType = "LOCAL"
	JurisdictionOther   JurisdictionType = "OTHER"
)

type DeductionKind string

const (
	KindPretaxRetirement DeductionKind = "PRETAX_RETIREMENT_EMPLOYEE"
	KindRothRetirement   DeductionKind = "ROTH_RETIREMENT_EMPLOYEE"
	KindHSA              DeductionKind = "HSA"
	KindFSA              DeductionKind = "FSA"
	KindPosttaxVoluntary DeductionKind = "POSTTAX_VOLUNTARY"
	KindGarnishment      DeductionKind = "GARNISHMENT"
	KindOtherPosttax     DeductionKind = "OTHER_POSTTAX"
)

type DeductionEffect string

const (
	EffectReducesFederalTaxable DeductionEffect = "REDUCES_FEDERAL_TAXABLE"
	EffectReducesStateTaxable   DeductionEffect = "REDUCES_STATE_TAXABLE"
	EffectReducesSocialSecurity DeductionEffect = "REDUCES_SOCIAL_SECURITY_WAGES"
	EffectReducesMedicare       DeductionEffect = "REDUCES_MEDICARE_WAGES"
	EffectNoTaxEffect           DeductionEffect = "NO_TAX_EFFECT"
)

type GarnishmentType string

const (
	GarnishmentChildSupport   GarnishmentType = "CHILD_SUPPORT"
	GarnishmentFederalTaxLevy GarnishmentType = "FEDERAL_TAX_LEVY"
	GarnishmentStateTaxLevy   GarnishmentType = "STATE_TAX_LEVY"
	GarnishmentStudentLoan    GarnishmentType = "STUDENT_LOAN"
	GarnishmentCreditor       GarnishmentType = "CREDITOR_GARNISHMENT"
	GarnishmentBankruptcy     GarnishmentType = "BANKRUPTCY"
	GarnishmentOther          GarnishmentType = "OTHER"
)

type TraceLevel string

const (
	TraceNone  TraceLevel = "NONE"
	TraceAudit TraceLevel = "AUDIT"
	TraceDebug TraceLevel = "DEBUG"
)

// Statutory per-employer annual thresholds below which household and
// election-worker wages are not subject to FICA.
var (
	DefaultHouseholdFicaThreshold      = money.Dollars(2800)
	DefaultElectionWorkerFicaThreshold = money.Dollars(2400)
)

// Status values for recorded paychecks.
const (
	PaycheckStatusIssued   = "issued"
	PaycheckStatusVoided   = "voided"
	PaycheckStatusReversal = "reversal"
)
