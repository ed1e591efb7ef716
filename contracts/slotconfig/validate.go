package slotconfig

import (
	"errors"
	"fmt"
)

// maxTreeDepth bounds decision tree validation so a malformed deeply nested
// (or cyclically marshalled) tree cannot recurse unboundedly.
const maxTreeDepth = 64

var validCategories = map[string]bool{
	CategoryInput:      true,
	CategoryCalculated: true,
	CategoryOutcome:    true,
}

var validDataTypes = map[string]bool{
	DataTypeText:          true,
	DataTypeNumber:        true,
	DataTypeBoolean:       true,
	DataTypeDate:          true,
	DataTypeMoney:         true,
	DataTypeSingleSelect:  true,
	DataTypeMultiSelect:   true,
	DataTypeList:          true,
	DataTypeRecord:        true,
	DataTypeFileReference: true,
}

var validImportances = map[string]bool{
	ImportanceCritical: true,
	ImportanceHigh:     true,
	ImportanceModerate: true,
	ImportanceLow:      true,
}

var validOperators = map[string]bool{
	OperatorEquals:      true,
	OperatorNotEquals:   true,
	OperatorGreaterThan: true,
	OperatorLessThan:    true,
	OperatorIn:          true,
	OperatorNotIn:       true,
	OperatorContains:    true,
	OperatorExists:      true,
	OperatorNotExists:   true,
}

var validOnError = map[string]bool{
	"":                true, // defaults to fail
	OnErrorFail:       true,
	OnErrorUseDefault: true,
	OnErrorReturnNull: true,
}

// Validate checks that the record is structurally sound: enum fields carry
// known values, calculated slots carry a calculation, and strategy-specific
// fields are present for the declared strategy.
func (r *Record) Validate() error {
	if r.Key == "" {
		return errors.New("slot record missing key")
	}
	if !validCategories[r.Category] {
		return fmt.Errorf("slot %s: unknown category %q", r.Key, r.Category)
	}
	if !validDataTypes[r.DataType] {
		return fmt.Errorf("slot %s: unknown data type %q", r.Key, r.DataType)
	}
	if !validImportances[r.Importance] {
		return fmt.Errorf("slot %s: unknown importance %q", r.Key, r.Importance)
	}
	if r.Visibility != nil {
		for _, rule := range r.Visibility.ShowWhen {
			if err := rule.validate(); err != nil {
				return fmt.Errorf("slot %s: show_when: %w", r.Key, err)
			}
		}
		for _, rule := range r.Visibility.HideWhen {
			if err := rule.validate(); err != nil {
				return fmt.Errorf("slot %s: hide_when: %w", r.Key, err)
			}
		}
	}
	if r.SkipIf != nil {
		if err := r.SkipIf.validate(); err != nil {
			return fmt.Errorf("slot %s: skip_if: %w", r.Key, err)
		}
	}

	calculable := r.Category == CategoryCalculated || r.Category == CategoryOutcome
	switch {
	case calculable && r.Calculation == nil:
		return fmt.Errorf("slot %s: %s slot requires a calculation", r.Key, r.Category)
	case !calculable && r.Calculation != nil:
		return fmt.Errorf("slot %s: input slot must not carry a calculation", r.Key)
	}
	if r.Calculation != nil {
		if err := r.Calculation.validate(); err != nil {
			return fmt.Errorf("slot %s: %w", r.Key, err)
		}
	}
	return nil
}

func (ru *Rule) validate() error {
	if ru.Slot == "" {
		return errors.New("rule missing target slot")
	}
	if !validOperators[ru.Operator] {
		return fmt.Errorf("unknown operator %q", ru.Operator)
	}
	return nil
}

func (c *Calculation) validate() error {
	if !validOnError[c.OnError] {
		return fmt.Errorf("unknown on_error policy %q", c.OnError)
	}
	if c.OnError == OnErrorUseDefault && len(c.OnErrorValue) == 0 {
		return errors.New("use_default policy requires on_error_value")
	}
	switch c.Strategy {
	case StrategyFormula:
		if c.Expression == "" {
			return errors.New("formula strategy requires expression")
		}
	case StrategyScript:
		if c.Source == "" {
			return errors.New("script strategy requires source")
		}
	case StrategyDecisionTree:
		if c.Root == nil {
			return errors.New("decision_tree strategy requires root node")
		}
		if err := c.Root.validate(0); err != nil {
			return err
		}
	case StrategyLookupTable:
		if c.KeySlot == "" {
			return errors.New("lookup_table strategy requires key_slot")
		}
	default:
		return fmt.Errorf("unknown calculation strategy %q", c.Strategy)
	}
	return nil
}

// validate enforces the authored tree shape: a node without a condition is a
// leaf and must carry a value and no children; a conditioned node may carry
// at most two children (true branch, false branch).
func (n *TreeNode) validate(depth int) error {
	if depth > maxTreeDepth {
		return fmt.Errorf("decision tree exceeds max depth %d", maxTreeDepth)
	}
	if n.Condition == nil {
		if len(n.Children) > 0 {
			return errors.New("decision tree leaf must not have children")
		}
		if len(n.Value) == 0 {
			return errors.New("decision tree leaf missing value")
		}
		return nil
	}
	if err := n.Condition.validate(); err != nil {
		return err
	}
	if len(n.Children) > 2 {
		return fmt.Errorf("decision tree node has %d children, max 2", len(n.Children))
	}
	if len(n.Children) == 0 && len(n.Value) == 0 {
		return errors.New("conditioned node needs children or a fallback value")
	}
	for _, child := range n.Children {
		if child == nil {
			return errors.New("decision tree child must not be null")
		}
		if err := child.validate(depth + 1); err != nil {
			return err
		}
	}
	return nil
}
