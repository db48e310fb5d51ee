package payroll

import (
	"encoding/json"
	"fmt"

	"payengine/internal/domain/money"
)

// TraceStep is one record of the DEBUG calculation trace.
type TraceStep interface {
	StepKind() string
}

type BasisComputed struct {
	Basis      TaxBasis               `json:"basis"`
	Components map[string]money.Money `json:"components"`
	Result     money.Money            `json:"result"`
}

type BracketApplication struct {
	UpTo      *money.Money  `json:"upTo,omitempty"`
	Rate      money.Percent `json:"rate"`
	AppliedTo money.Money   `json:"appliedTo"`
	Amount    money.Money   `json:"amount"`
}

type TaxApplied struct {
	RuleID       string               `json:"ruleId"`
	Jurisdiction Jurisdiction         `json:"jurisdiction"`
	Basis        money.Money          `json:"basis"`
	Brackets     []BracketApplication `json:"brackets,omitempty"`
	Rate         *money.Percent       `json:"rate,omitempty"`
	Amount       money.Money          `json:"amount"`
}

type DeductionApplied struct {
	Code        DeductionCode     `json:"code"`
	Description string            `json:"description"`
	Basis       money.Money       `json:"basis"`
	Rate        *money.Percent    `json:"rate,omitempty"`
	Amount      money.Money       `json:"amount"`
	CappedAt    *money.Money      `json:"cappedAt,omitempty"`
	Effects     []DeductionEffect `json:"effects"`
}

type ProrationApplied struct {
	Strategy         string      `json:"strategy"`
	ExplicitOverride bool        `json:"explicitOverride"`
	Fraction         string      `json:"fraction"`
	FullCents        money.Money `json:"fullCents"`
	AppliedCents     money.Money `json:"appliedCents"`
}

type AdditionalWithholdingApplied struct {
	RuleID string      `json:"ruleId"`
	Amount money.Money `json:"amount"`
}

type DisposableIncomeComputed struct {
	OrderID                   GarnishmentOrderID `json:"orderId"`
	GrossCents                money.Money        `json:"grossCents"`
	MandatoryPreTaxCents      money.Money        `json:"mandatoryPreTaxCents"`
	EmployeeTaxCents          money.Money        `json:"employeeTaxCents"`
	BaseDisposableCents       money.Money        `json:"baseDisposableCents"`
	NetForProtectedFloorCents money.Money        `json:"netForProtectedFloorCents"`
}

type ProtectedEarningsApplied struct {
	OrderID        GarnishmentOrderID `json:"orderId"`
	RequestedCents money.Money        `json:"requestedCents"`
	AdjustedCents  money.Money        `json:"adjustedCents"`
	FloorCents     money.Money        `json:"floorCents"`
}

type SupportCapApplied struct {
	JurisdictionCode    string       `json:"jurisdictionCode,omitempty"`
	CcpaCapCents        money.Money  `json:"ccpaCapCents"`
	StateCapCents       *money.Money `json:"stateCapCents,omitempty"`
	EffectiveCapCents   money.Money  `json:"effectiveCapCents"`
	TotalRequestedCents money.Money  `json:"totalRequestedCents"`
	TotalAppliedCents   money.Money  `json:"totalAppliedCents"`
}

type GarnishmentApplied struct {
	OrderID                   GarnishmentOrderID `json:"orderId"`
	Type                      GarnishmentType    `json:"type"`
	Description               string             `json:"description"`
	RequestedCents            money.Money        `json:"requestedCents"`
	AppliedCents              money.Money        `json:"appliedCents"`
	DisposableBeforeCents     money.Money        `json:"disposableBeforeCents"`
	DisposableAfterCents      money.Money        `json:"disposableAfterCents"`
	ProtectedFloorCents       *money.Money       `json:"protectedFloorCents,omitempty"`
	ProtectedFloorConstrained bool               `json:"protectedFloorConstrained"`
	ArrearsBeforeCents        *money.Money       `json:"arrearsBeforeCents,omitempty"`
	ArrearsAfterCents         *money.Money       `json:"arrearsAfterCents,omitempty"`
	AppliedToArrearsCents     money.Money        `json:"appliedToArrearsCents"`
	AppliedToCurrentCents     money.Money        `json:"appliedToCurrentCents"`
}

type Note struct {
	Message string `json:"message"`
}

const (
	StepBasisComputed                = "BasisComputed"
	StepTaxApplied                   = "TaxApplied"
	StepDeductionApplied             = "DeductionApplied"
	StepProrationApplied             = "ProrationApplied"
	StepAdditionalWithholdingApplied = "AdditionalWithholdingApplied"
	StepDisposableIncomeComputed     = "DisposableIncomeComputed"
	StepProtectedEarningsApplied     = "ProtectedEarningsApplied"
	StepSupportCapApplied            = "SupportCapApplied"
	StepGarnishmentApplied           = "GarnishmentApplied"
	StepNote                         = "Note"
)

func (BasisComputed) StepKind() string                { return StepBasisComputed }
func (TaxApplied) StepKind() string                   { return StepTaxApplied }
func (DeductionApplied) StepKind() string             { return StepDeductionApplied }
func (ProrationApplied) StepKind() string             { return StepProrationApplied }
func (AdditionalWithholdingApplied) StepKind() string { return StepAdditionalWithholdingApplied }
func (DisposableIncomeComputed) StepKind() string     { return StepDisposableIncomeComputed }
func (ProtectedEarningsApplied) StepKind() string     { return StepProtectedEarningsApplied }
func (SupportCapApplied) StepKind() string            { return StepSupportCapApplied }
func (GarnishmentApplied) StepKind() string           { return StepGarnishmentApplied }
func (Note) StepKind() string                         { return StepNote }

func newStep(kind string) (TraceStep, error) {
	switch kind {
	case StepBasisComputed:
		return &BasisComputed{}, nil
	case StepTaxApplied:
		return &TaxApplied{}, nil
	case StepDeductionApplied:
		return &DeductionApplied{}, nil
	case StepProrationApplied:
		return &ProrationApplied{}, nil
	case StepAdditionalWithholdingApplied:
		return &AdditionalWithholdingApplied{}, nil
	case StepDisposableIncomeComputed:
		return &DisposableIncomeComputed{}, nil
	case StepProtectedEarningsApplied:
		return &ProtectedEarningsApplied{}, nil
	case StepSupportCapApplied:
		return &SupportCapApplied{}, nil
	case StepGarnishmentApplied:
		return &GarnishmentApplied{}, nil
	case StepNote:
		return &Note{}, nil
	default:
		return nil, fmt.Errorf("unknown trace step kind %q", kind)
	}
}

// CalculationTrace is empty unless the caller asked for DEBUG output.
type CalculationTrace struct {
	Steps []TraceStep
}

type wireStep struct {
	Kind string          `json:"kind"`
	Step json.RawMessage `json:"step"`
}

func (t CalculationTrace) MarshalJSON() ([]byte, error) {
	steps := make([]wireStep, 0, len(t.Steps))
	for _, s := range t.Steps {
		raw, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("marshal %s step: %w", s.StepKind(), err)
		}
		steps = append(steps, wireStep{Kind: s.StepKind(), Step: raw})
	}
	return json.Marshal(struct {
		Steps []wireStep `json:"steps"`
	}{steps})
}

func (t *CalculationTrace) UnmarshalJSON(b []byte) error {
	var wire struct {
		Steps []wireStep `json:"steps"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	t.Steps = make([]TraceStep, 0, len(wire.Steps))
	for _, w := range wire.Steps {
		ptr, err := newStep(w.Kind)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(w.Step, ptr); err != nil {
			return fmt.Errorf("unmarshal %s step: %w", w.Kind, err)
		}
		t.Steps = append(t.Steps, deref(ptr))
	}
	return nil
}

// deref turns the pointer produced by newStep back into the value form the
// engine emits, so decoded traces compare equal to computed ones.
func deref(s TraceStep) TraceStep {
	switch v := s.(type) {
	case *BasisComputed:
		return *v
	case *TaxApplied:
		return *v
	case *DeductionApplied:
		return *v
	case *ProrationApplied:
		return *v
	case *AdditionalWithholdingApplied:
		return *v
	case *DisposableIncomeComputed:
		return *v
	case *ProtectedEarningsApplied:
		return *v
	case *SupportCapApplied:
		return *v
	case *GarnishmentApplied:
		return *v
	case *Note:
		return *v
	default:
		return s
	}
}

// StepsOf returns the steps of one concrete type, in order.
func StepsOf[T TraceStep](t CalculationTrace) []T {
	var out []T
	for _, s := range t.Steps {
		if v, ok := s.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// tracer collects steps. It always records so that DEBUG and non-DEBUG runs
// take the same path; the engine drops the steps afterwards when not wanted.
type tracer struct {
	steps []TraceStep
}

func (t *tracer) add(s TraceStep) { t.steps = append(t.steps, s) }

func (t *tracer) note(format string, args ...any) {
	t.steps = append(t.steps, Note{Message: fmt.Sprintf(format, args...)})
}
