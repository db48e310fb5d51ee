package money

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Percent is a rate expressed as a fraction: 0.10 is ten percent.
type Percent struct {
	d decimal.Decimal
}

var (
	ZeroPercent    = Percent{d: decimal.Zero}
	HundredPercent = Percent{d: decimal.NewFromInt(1)}
)

// NewPercent parses a fraction such as "0.062".
func NewPercent(s string) (Percent, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Percent{}, fmt.Errorf("parse percent %q: %w", s, err)
	}
	return Percent{d: d}, nil
}

func MustPercent(s string) Percent {
	p, err := NewPercent(s)
	if err != nil {
		panic(err)
	}
	return p
}

func PercentFromDecimal(d decimal.Decimal) Percent { return Percent{d: d} }

// PercentFromFloat keeps the shortest decimal that round-trips f, so 0.062
// stays 0.062.
func PercentFromFloat(f float64) Percent { return Percent{d: decimal.NewFromFloat(f)} }

func PercentFromFraction(num, den int64) Percent {
	if den == 0 {
		return ZeroPercent
	}
	return Percent{d: decimal.NewFromInt(num).Div(decimal.NewFromInt(den))}
}

func (p Percent) Decimal() decimal.Decimal { return p.d }

func (p Percent) IsZero() bool { return p.d.IsZero() }

func (p Percent) Add(o Percent) Percent { return Percent{d: p.d.Add(o.d)} }

func (p Percent) Min(o Percent) Percent {
	if p.d.LessThan(o.d) {
		return p
	}
	return o
}

func (p Percent) Cmp(o Percent) int { return p.d.Cmp(o.d) }

func (p Percent) String() string { return p.d.String() }

func (p Percent) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.d.String())
}

func (p *Percent) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("percent: %w", err)
	}
	p.d = d
	return nil
}

func (p Percent) MarshalYAML() (any, error) {
	return p.d.String(), nil
}

func (p *Percent) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("percent: expected a scalar at line %d", node.Line)
	}
	d, err := decimal.NewFromString(node.Value)
	if err != nil {
		return fmt.Errorf("percent at line %d: %w", node.Line, err)
	}
	p.d = d
	return nil
}
