package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// CompoundType joins the per-value clauses of a filter design.
type CompoundType string

// Compound types.
const (
	CompoundAnd CompoundType = "and"
	CompoundOr  CompoundType = "or"
)

// OperatorNotEqual is the operator used by taxonomy exclusion filters.
const OperatorNotEqual = "!="

// FilterValue is a filter operand. The zero value is the undefined operand,
// which a delete design uses to mean "any value on this field".
type FilterValue struct {
	s  string
	ok bool
}

// Value returns a defined operand.
func Value(s string) FilterValue {
	return FilterValue{s: s, ok: true}
}

// Undefined returns the undefined operand.
func Undefined() FilterValue {
	return FilterValue{}
}

// Values wraps each string as a defined operand.
func Values(ss ...string) []FilterValue {
	out := make([]FilterValue, len(ss))
	for i, s := range ss {
		out[i] = Value(s)
	}

	return out
}

// IsUndefined reports whether v is the undefined operand.
func (v FilterValue) IsUndefined() bool { return !v.ok }

// String returns the operand text ("" for undefined).
func (v FilterValue) String() string { return v.s }

// MarshalJSON encodes undefined as null.
func (v FilterValue) MarshalJSON() ([]byte, error) {
	if !v.ok {
		return []byte("null"), nil
	}

	return json.Marshal(v.s)
}

// UnmarshalJSON decodes null as undefined and any scalar as its text form.
func (v *FilterValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Undefined()
		return nil
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding filter value: %w", err)
	}

	switch t := raw.(type) {
	case string:
		*v = Value(t)
	case float64, bool:
		*v = Value(fmt.Sprint(t))
	default:
		return fmt.Errorf("filter value must be a scalar or null")
	}

	return nil
}

// FilterDesign describes one compound filter on a single field.
type FilterDesign struct {
	ID        string         `json:"id,omitempty"`
	Compound  CompoundType   `json:"compound"`
	Field     FieldReference `json:"field"`
	Operator  string         `json:"operator"`
	Values    []FilterValue  `json:"values"`
	Origin    string         `json:"origin,omitempty"`
	UpdatedAt time.Time      `json:"updated_at,omitzero"`
}

// NewExclusion builds an and-compound "!=" design over values.
func NewExclusion(field FieldReference, values []FilterValue) FilterDesign {
	return FilterDesign{
		Compound: CompoundAnd,
		Field:    field,
		Operator: OperatorNotEqual,
		Values:   values,
	}
}

// Matches reports whether d targets the same column with the same operator.
func (d *FilterDesign) Matches(field FieldReference, operator string) bool {
	return d.Field.Equal(field) && d.Operator == operator
}

// Contains reports whether value appears among the defined operands.
func (d *FilterDesign) Contains(value string) bool {
	for _, v := range d.Values {
		if !v.IsUndefined() && v.String() == value {
			return true
		}
	}

	return false
}

// IsWildcard reports whether every operand is undefined.
func (d *FilterDesign) IsWildcard() bool {
	for _, v := range d.Values {
		if !v.IsUndefined() {
			return false
		}
	}

	return true
}

// DefinedValues returns the defined operands as strings.
func (d *FilterDesign) DefinedValues() []string {
	out := make([]string, 0, len(d.Values))
	for _, v := range d.Values {
		if !v.IsUndefined() {
			out = append(out, v.String())
		}
	}

	return out
}

// Validate checks a design received from a client.
func (d *FilterDesign) Validate() error {
	if !d.Field.IsSet() {
		return ErrMissingField
	}

	if len(d.Field.Column) > 255 {
		return ErrFieldTooLong("field.column", 255)
	}

	if d.Operator == "" {
		return ErrMissingOperator
	}

	switch d.Compound {
	case "":
		d.Compound = CompoundAnd
	case CompoundAnd, CompoundOr:
	default:
		return fmt.Errorf("compound must be %q or %q", CompoundAnd, CompoundOr)
	}

	if len(d.Values) == 0 {
		return fmt.Errorf("values must not be empty")
	}

	if len(d.Values) > maxFilterValues {
		return fmt.Errorf("values exceeds maximum of %d entries", maxFilterValues)
	}

	return nil
}

const maxFilterValues = 10000

// ExchangeRequest replaces filters on the fields named by Set and Delete.
type ExchangeRequest struct {
	Set        []FilterDesign `json:"set"`
	Delete     []FilterDesign `json:"delete"`
	NotifySelf bool           `json:"notify_self"`
	Origin     string         `json:"origin,omitempty"`
}

// Validate checks every design in the request.
func (r *ExchangeRequest) Validate() error {
	if len(r.Set) == 0 && len(r.Delete) == 0 {
		return fmt.Errorf("set or delete is required")
	}

	for i := range r.Set {
		if err := r.Set[i].Validate(); err != nil {
			return fmt.Errorf("set[%d]: %w", i, err)
		}
	}

	for i := range r.Delete {
		if err := r.Delete[i].Validate(); err != nil {
			return fmt.Errorf("delete[%d]: %w", i, err)
		}
	}

	return nil
}

// FilterChange is the payload broadcast when a tenant's filters change.
type FilterChange struct {
	Origin     string         `json:"origin,omitempty"`
	NotifySelf bool           `json:"notify_self"`
	Fields     []string       `json:"fields"`
	Filters    []FilterDesign `json:"filters,omitempty"`
}
