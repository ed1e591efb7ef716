// Package slotconfig defines the wire contract for slot configuration records
// exchanged with the authoring pipeline. It is a standalone module with no
// dependencies so that external tooling can import the record shapes without
// pulling in the engine's stack.
//
// Decoding is tolerant: unknown fields are ignored so the contract stays
// stable when the authoring side adds fields. Validation is strict about the
// fields this engine interprets.
package slotconfig

import "encoding/json"

// Slot categories.
const (
	CategoryInput      = "input"
	CategoryCalculated = "calculated"
	CategoryOutcome    = "outcome"
)

// Data types a slot value may carry.
const (
	DataTypeText          = "text"
	DataTypeNumber        = "number"
	DataTypeBoolean       = "boolean"
	DataTypeDate          = "date"
	DataTypeMoney         = "money"
	DataTypeSingleSelect  = "single_select"
	DataTypeMultiSelect   = "multi_select"
	DataTypeList          = "list"
	DataTypeRecord        = "record"
	DataTypeFileReference = "file_reference"
)

// Importance levels, ordered Critical highest.
const (
	ImportanceCritical = "critical"
	ImportanceHigh     = "high"
	ImportanceModerate = "moderate"
	ImportanceLow      = "low"
)

// Calculation strategy tags for the Calculation discriminated union.
const (
	StrategyFormula      = "formula"
	StrategyScript       = "script"
	StrategyDecisionTree = "decision_tree"
	StrategyLookupTable  = "lookup_table"
)

// Error policies applied when a calculation fails.
const (
	OnErrorFail       = "fail"
	OnErrorUseDefault = "use_default"
	OnErrorReturnNull = "return_null"
)

// Rule operators for conditional visibility and skip logic.
const (
	OperatorEquals      = "equals"
	OperatorNotEquals   = "not_equals"
	OperatorGreaterThan = "greater_than"
	OperatorLessThan    = "less_than"
	OperatorIn          = "in"
	OperatorNotIn       = "not_in"
	OperatorContains    = "contains"
	OperatorExists      = "exists"
	OperatorNotExists   = "not_exists"
)

// Record is one slot configuration as persisted and exchanged with the
// authoring pipeline.
type Record struct {
	Key         string       `json:"key"`
	Category    string       `json:"category"`
	DataType    string       `json:"data_type"`
	Importance  string       `json:"importance"`
	Scope       *Scope       `json:"scope,omitempty"`
	Visibility  *Visibility  `json:"visibility,omitempty"`
	SkipIf      *Rule        `json:"skip_if,omitempty"`
	Calculation *Calculation `json:"calculation,omitempty"`
	Active      bool         `json:"active"`
}

// Scope restricts a slot to a jurisdiction and/or legal domain. Empty fields
// mean "any".
type Scope struct {
	Jurisdiction string `json:"jurisdiction,omitempty"`
	Domain       string `json:"domain,omitempty"`
}

// Visibility gates whether an input slot is presented. All ShowWhen rules
// must hold; any HideWhen rule holding hides the slot.
type Visibility struct {
	ShowWhen []Rule `json:"show_when,omitempty"`
	HideWhen []Rule `json:"hide_when,omitempty"`
}

// Rule is one conditional check against another slot's current value.
// Value is raw JSON because the comparison operand's shape depends on the
// operator (scalar for equals, array for in/not_in, absent for exists).
type Rule struct {
	Slot     string          `json:"slot"`
	Operator string          `json:"operator"`
	Value    json.RawMessage `json:"value,omitempty"`
}

// Calculation is the strategy union, discriminated by Strategy. Exactly the
// fields of the named strategy are interpreted; others must be absent or are
// ignored.
type Calculation struct {
	Strategy     string          `json:"strategy"`
	Dependencies []string        `json:"dependencies"`
	Precision    *int            `json:"precision,omitempty"`
	OnError      string          `json:"on_error,omitempty"`
	OnErrorValue json.RawMessage `json:"on_error_value,omitempty"`

	// formula
	Expression string `json:"expression,omitempty"`

	// script
	Source    string `json:"source,omitempty"`
	Sandboxed bool   `json:"sandboxed,omitempty"`

	// decision_tree
	Root *TreeNode `json:"root,omitempty"`

	// lookup_table
	KeySlot      string                     `json:"key_slot,omitempty"`
	Mapping      map[string]json.RawMessage `json:"mapping,omitempty"`
	DefaultValue json.RawMessage            `json:"default_value,omitempty"`
}

// TreeNode is one decision tree node: either a leaf carrying Value, or a
// conditioned node with at most two children (index 0 = true branch,
// index 1 = false branch).
type TreeNode struct {
	Condition *Rule           `json:"condition,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`
	Children  []*TreeNode     `json:"children,omitempty"`
}

// Decode parses a single record from JSON. Unknown fields are ignored.
func Decode(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Encode serializes a record to JSON.
func Encode(rec *Record) ([]byte, error) {
	return json.Marshal(rec)
}
