// Package slot defines the slot configuration model: one named unit of
// input, computation, or outcome in the interview domain. Slots arrive from
// the registry as wire records (contracts/slotconfig) and are converted to
// these domain types at the boundary.
package slot

import (
	"canlaw/pkg/domain"
)

// Key uniquely identifies a slot across the registry.
type Key string

func (k Key) String() string { return string(k) }

// Category classifies what role a slot plays.
type Category int

const (
	CategoryInput Category = iota
	CategoryCalculated
	CategoryOutcome
)

func (c Category) String() string {
	switch c {
	case CategoryInput:
		return "input"
	case CategoryCalculated:
		return "calculated"
	case CategoryOutcome:
		return "outcome"
	}
	return "unknown"
}

// DataType is the semantic kind of value a slot carries. The engine treats
// most of these uniformly; the distinction matters for answer validation and
// for the presentation layer.
type DataType int

const (
	DataTypeText DataType = iota
	DataTypeNumber
	DataTypeBoolean
	DataTypeDate
	DataTypeMoney
	DataTypeSingleSelect
	DataTypeMultiSelect
	DataTypeList
	DataTypeRecord
	DataTypeFileReference
)

func (d DataType) String() string {
	switch d {
	case DataTypeText:
		return "text"
	case DataTypeNumber:
		return "number"
	case DataTypeBoolean:
		return "boolean"
	case DataTypeDate:
		return "date"
	case DataTypeMoney:
		return "money"
	case DataTypeSingleSelect:
		return "single_select"
	case DataTypeMultiSelect:
		return "multi_select"
	case DataTypeList:
		return "list"
	case DataTypeRecord:
		return "record"
	case DataTypeFileReference:
		return "file_reference"
	}
	return "unknown"
}

// Accepts reports whether a submitted value is compatible with the data
// type. Null passes everywhere (an explicit "no answer"); Missing is never a
// valid submission. Dates and file references travel as strings.
func (d DataType) Accepts(v domain.Value) bool {
	if v.IsNull() {
		return true
	}
	switch d {
	case DataTypeText, DataTypeDate, DataTypeSingleSelect, DataTypeFileReference:
		_, ok := v.Text()
		return ok
	case DataTypeNumber, DataTypeMoney:
		_, ok := v.Number()
		return ok
	case DataTypeBoolean:
		_, ok := v.Bool()
		return ok
	case DataTypeMultiSelect, DataTypeList:
		_, ok := v.Items()
		return ok
	case DataTypeRecord:
		_, ok := v.Fields()
		return ok
	}
	return false
}

// Importance orders slots by how urgently they should be asked or surfaced.
// Lower rank is more important; Critical is rank 0.
type Importance int

const (
	ImportanceCritical Importance = iota
	ImportanceHigh
	ImportanceModerate
	ImportanceLow
)

func (i Importance) String() string {
	switch i {
	case ImportanceCritical:
		return "critical"
	case ImportanceHigh:
		return "high"
	case ImportanceModerate:
		return "moderate"
	case ImportanceLow:
		return "low"
	}
	return "unknown"
}

// Rank exposes the total order for sorting and floor comparisons.
func (i Importance) Rank() int { return int(i) }

// Scope restricts a slot to a jurisdiction and/or legal domain. Empty
// fields mean "any".
type Scope struct {
	Jurisdiction string
	Domain       string
}

// Operator is a conditional rule comparison operator.
type Operator int

const (
	OpEquals Operator = iota
	OpNotEquals
	OpGreaterThan
	OpLessThan
	OpIn
	OpNotIn
	OpContains
	OpExists
	OpNotExists
)

func (o Operator) String() string {
	switch o {
	case OpEquals:
		return "equals"
	case OpNotEquals:
		return "not_equals"
	case OpGreaterThan:
		return "greater_than"
	case OpLessThan:
		return "less_than"
	case OpIn:
		return "in"
	case OpNotIn:
		return "not_in"
	case OpContains:
		return "contains"
	case OpExists:
		return "exists"
	case OpNotExists:
		return "not_exists"
	}
	return "unknown"
}

// Rule is one conditional check against another slot's current value.
type Rule struct {
	Slot     Key
	Operator Operator
	Value    domain.Value
}

// Visibility gates whether an input slot is presented: all ShowWhen rules
// must hold and no HideWhen rule may hold.
type Visibility struct {
	ShowWhen []Rule
	HideWhen []Rule
}

// OnErrorPolicy decides the visible outcome when a strategy fails.
type OnErrorPolicy int

const (
	// OnErrorFail propagates the evaluation error to the caller.
	OnErrorFail OnErrorPolicy = iota
	// OnErrorUseDefault substitutes the configured default and records the
	// error alongside it.
	OnErrorUseDefault
	// OnErrorReturnNull substitutes Null and records the error alongside it.
	OnErrorReturnNull
)

func (p OnErrorPolicy) String() string {
	switch p {
	case OnErrorFail:
		return "fail"
	case OnErrorUseDefault:
		return "use_default"
	case OnErrorReturnNull:
		return "return_null"
	}
	return "unknown"
}

// Calculation describes how a Calculated/Outcome slot derives its value.
// Strategy is a closed union: exactly one of Formula, Script, DecisionTree,
// or LookupTable. Call sites dispatch with an exhaustive type switch so
// adding a strategy is a compile-checked change.
type Calculation struct {
	Strategy     Strategy
	Dependencies []Key
	Precision    *int
	OnError      OnErrorPolicy
	OnErrorValue domain.Value
}

// Strategy is the sealed interface over the four calculation strategies.
// Only types in this package implement it.
type Strategy interface {
	strategy()
	Name() string
}

// Formula evaluates an arithmetic expression over the dependency values.
type Formula struct {
	Expression string
}

// Script runs authored code in a sandboxed interpreter. Sandboxed is part of
// the wire contract; the engine refuses specs that claim otherwise.
type Script struct {
	Source    string
	Sandboxed bool
}

// DecisionTree routes through conditioned nodes to a literal result.
type DecisionTree struct {
	Root *TreeNode
}

// LookupTable maps the key slot's value through a table, with a default for
// absent keys. Mapping keys are the canonical scalar rendering of the
// looked-up value (domain.Value.Canonical).
type LookupTable struct {
	KeySlot Key
	Mapping map[string]domain.Value
	Default domain.Value
}

func (Formula) strategy()      {}
func (Script) strategy()       {}
func (DecisionTree) strategy() {}
func (LookupTable) strategy()  {}

func (Formula) Name() string      { return "formula" }
func (Script) Name() string       { return "script" }
func (DecisionTree) Name() string { return "decision_tree" }
func (LookupTable) Name() string  { return "lookup_table" }

// TreeNode is one decision tree node. A node without a condition is a leaf
// and yields Value. A conditioned node routes true to Children[0] (falling
// back to its own Value) and false to Children[1] (falling back to Null).
type TreeNode struct {
	Condition *Rule
	Value     domain.Value
	Children  []*TreeNode
}

// Slot is one immutable-per-version configuration record.
type Slot struct {
	Key         Key
	Category    Category
	DataType    DataType
	Importance  Importance
	Scope       *Scope // nil means globally applicable
	Visibility  *Visibility
	SkipIf      *Rule
	Calculation *Calculation // present only for Calculated/Outcome
	Active      bool
}

// Calculable reports whether the slot derives its value rather than being
// asked.
func (s *Slot) Calculable() bool {
	return (s.Category == CategoryCalculated || s.Category == CategoryOutcome) &&
		s.Calculation != nil
}

// InScope reports whether the slot applies to a case in the given
// jurisdiction and legal domain. The match is a union: global-or-matching
// jurisdiction AND global-or-matching domain.
func (s *Slot) InScope(jurisdiction, legalDomain string) bool {
	if s.Scope == nil {
		return true
	}
	if s.Scope.Jurisdiction != "" && jurisdiction != "" && s.Scope.Jurisdiction != jurisdiction {
		return false
	}
	if s.Scope.Domain != "" && legalDomain != "" && s.Scope.Domain != legalDomain {
		return false
	}
	return true
}
